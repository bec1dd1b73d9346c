package protocol

import (
	"encoding/json"
	"errors"
)

// Result is the part every decrypted response shares.
type Result struct {
	Action    Action `json:"action,omitempty"`
	Success   Flag   `json:"success"`
	Nonce     string `json:"nonce,omitempty"`
	Version   string `json:"version,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode Code   `json:"errorCode,omitempty"`
}

// Status exposes the shared part so the engine can check it before decoding
// the action-specific fields.
func (r *Result) Status() *Result { return r }

// Response is implemented by every decrypted response type.
type Response interface {
	Status() *Result
}

type AssociateResponse struct {
	Result
	ID string `json:"id"`
}

type DatabaseHashResponse struct {
	Result
}

type TestAssociateResponse struct {
	Result
	ID string `json:"id"`
}

// LoginEntry is one credential returned by get-logins.
type LoginEntry struct {
	Name           string              `json:"name"`
	Login          string              `json:"login"`
	Password       string              `json:"password"`
	UUID           string              `json:"uuid"`
	Group          string              `json:"group,omitempty"`
	TOTP           string              `json:"totp,omitempty"`
	Expired        Flag                `json:"expired,omitempty"`
	SkipAutoSubmit Flag                `json:"skipAutoSubmit,omitempty"`
	StringFields   []map[string]string `json:"stringFields,omitempty"`
}

type LoginsResponse struct {
	Result
	Count   int          `json:"count,omitempty"`
	Entries []LoginEntry `json:"entries"`
}

type GroupsResponse struct {
	Result
	Groups GroupTree `json:"groups"`
}

type GeneratedEntry struct {
	Login    string `json:"login,omitempty"`
	Password string `json:"password"`
}

type GeneratePasswordResponse struct {
	Result
	Password string           `json:"password,omitempty"`
	Entries  []GeneratedEntry `json:"entries,omitempty"`
}

// ErrNoPassword is returned when a generate-password reply holds no password
// in the place the peer version says it should be.
var ErrNoPassword = errors.New("generate-password reply has no password")

// GeneratedPassword returns the password from the field the peer version
// uses. Before 2.7.0 it lives in entries[0].password; from 2.7.0 on it is a
// bare field. A reply in the other shape is accepted as a fallback.
func (r *GeneratePasswordResponse) GeneratedPassword(v Version) (string, error) {
	legacy := func() string {
		if len(r.Entries) > 0 {
			return r.Entries[0].Password
		}
		return ""
	}

	first, second := legacy, func() string { return r.Password }
	if v.SupportsBarePassword() {
		first, second = second, first
	}
	if p := first(); p != "" {
		return p, nil
	}
	if p := second(); p != "" {
		return p, nil
	}
	return "", ErrNoPassword
}

type LockResponse struct {
	Result
}

// Locked reports whether the peer confirmed the lock. The inner action of
// the reply is not consulted; only the success marker counts.
func (r *LockResponse) Locked() bool {
	return bool(r.Success)
}

type CreateGroupResponse struct {
	Result
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

type TOTPResponse struct {
	Result
	TOTP string `json:"totp"`
}

type DeleteEntryResponse struct {
	Result
}

type AutotypeResponse struct {
	Result
}

// PasskeysResponse carries the authenticator reply untouched. When the
// peer refuses, Response holds only an errorCode.
type PasskeysResponse struct {
	Result
	Response json.RawMessage `json:"response"`
}

// ResponseErrorCode returns the errorCode inside Response, if any.
func (r *PasskeysResponse) ResponseErrorCode() Code {
	var inner struct {
		ErrorCode Code `json:"errorCode"`
	}
	if len(r.Response) == 0 || json.Unmarshal(r.Response, &inner) != nil {
		return ""
	}
	return inner.ErrorCode
}
