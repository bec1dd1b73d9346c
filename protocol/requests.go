package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Request is the plaintext body of an encrypted request.
type Request interface {
	Name() Action
}

// Stamper is implemented by requests whose encrypted body repeats the
// envelope nonce and client id.
type Stamper interface {
	Stamp(nonce, clientID string)
}

// Unlocker is implemented by requests that can ask the peer to prompt for
// database unlock.
type Unlocker interface {
	UnlockRequested() bool
}

// Header carries the action name inside a request body.
type Header struct {
	Action Action `json:"action"`
}

// Name returns the request action.
func (h Header) Name() Action { return h.Action }

// Echo holds the nonce and client id copied into the encrypted body.
type Echo struct {
	Nonce    string `json:"nonce,omitempty"`
	ClientID string `json:"clientID,omitempty"`
}

// Stamp fills in the per-call values.
func (e *Echo) Stamp(nonce, clientID string) {
	e.Nonce = nonce
	e.ClientID = clientID
}

// Key identifies one association: the associate id and its idKey public key.
type Key struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// ErrMalformedKey is returned for a Key with an empty id or key.
var ErrMalformedKey = errors.New("key entry is malformed")

// Validate checks that both halves of the key are present.
func (k Key) Validate() error {
	if k.ID == "" || k.Key == "" {
		return ErrMalformedKey
	}
	return nil
}

// ValidateUUID accepts entry and group identifiers in either the dashed or
// the 32 hex digit form the peer uses.
func ValidateUUID(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return nil
}

// NewHexUUID returns a random UUID in the 32 hex digit form.
func NewHexUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

type AssociateRequest struct {
	Header
	Key   string `json:"key"`
	IDKey string `json:"idKey"`
}

func NewAssociate(key, idKey string) *AssociateRequest {
	return &AssociateRequest{Header: Header{ActionAssociate}, Key: key, IDKey: idKey}
}

type DatabaseHashRequest struct {
	Header
	TriggerUnlock string `json:"triggerUnlock,omitempty"`
}

// NewDatabaseHash builds a get-databasehash request. With triggerUnlock the
// peer brings itself to the front and asks the user to unlock.
func NewDatabaseHash(triggerUnlock bool) *DatabaseHashRequest {
	r := &DatabaseHashRequest{Header: Header{ActionGetDatabaseHash}}
	if triggerUnlock {
		r.TriggerUnlock = "true"
	}
	return r
}

func (r *DatabaseHashRequest) UnlockRequested() bool {
	return r.TriggerUnlock == "true"
}

type TestAssociateRequest struct {
	Header
	ID  string `json:"id"`
	Key string `json:"key"`
}

func NewTestAssociate(id, key string) *TestAssociateRequest {
	return &TestAssociateRequest{Header: Header{ActionTestAssociate}, ID: id, Key: key}
}

type GetLoginsRequest struct {
	Header
	URL       string `json:"url"`
	SubmitURL string `json:"submitUrl"`
	HTTPAuth  bool   `json:"httpAuth"`
	Keys      []Key  `json:"keys"`
}

func NewGetLogins(url, submitURL string, httpAuth bool, keys []Key) (*GetLoginsRequest, error) {
	for i, k := range keys {
		if err := k.Validate(); err != nil {
			return nil, fmt.Errorf("keys[%d]: %w", i, err)
		}
	}
	if keys == nil {
		keys = []Key{}
	}
	return &GetLoginsRequest{
		Header:    Header{ActionGetLogins},
		URL:       url,
		SubmitURL: submitURL,
		HTTPAuth:  httpAuth,
		Keys:      keys,
	}, nil
}

// Login describes an entry to create or update with set-login. An empty
// UUID creates a new entry; an empty GroupUUID selects the default group.
type Login struct {
	URL       string
	SubmitURL string
	ID        string
	Login     string
	Password  string
	Group     string
	GroupUUID string
	UUID      string
}

type SetLoginRequest struct {
	Header
	Echo
	URL       string `json:"url"`
	SubmitURL string `json:"submitUrl"`
	ID        string `json:"id"`
	Login     string `json:"login"`
	Password  string `json:"password"`
	Group     string `json:"group"`
	GroupUUID string `json:"groupUuid"`
	UUID      string `json:"uuid"`
}

func NewSetLogin(l Login) (*SetLoginRequest, error) {
	if l.UUID != "" {
		if err := ValidateUUID(l.UUID); err != nil {
			return nil, err
		}
	}
	if l.GroupUUID != "" {
		if err := ValidateUUID(l.GroupUUID); err != nil {
			return nil, err
		}
	}
	return &SetLoginRequest{
		Header:    Header{ActionSetLogin},
		URL:       l.URL,
		SubmitURL: l.SubmitURL,
		ID:        l.ID,
		Login:     l.Login,
		Password:  l.Password,
		Group:     l.Group,
		GroupUUID: l.GroupUUID,
		UUID:      l.UUID,
	}, nil
}

type GeneratePasswordRequest struct {
	Header
	Echo
}

func NewGeneratePassword() *GeneratePasswordRequest {
	return &GeneratePasswordRequest{Header: Header{ActionGeneratePassword}}
}

// SimpleRequest is a request that carries nothing but its action:
// get-database-groups and lock-database.
type SimpleRequest struct {
	Header
}

func NewSimple(action Action) *SimpleRequest {
	return &SimpleRequest{Header: Header{action}}
}

type CreateGroupRequest struct {
	Header
	GroupName string `json:"groupName"`
}

// NewCreateGroup asks for a group at path. A path such as "a/b" creates
// every missing level.
func NewCreateGroup(path string) *CreateGroupRequest {
	return &CreateGroupRequest{Header: Header{ActionCreateNewGroup}, GroupName: path}
}

// EntryRequest addresses one entry by uuid: get-totp and delete-entry.
type EntryRequest struct {
	Header
	UUID string `json:"uuid"`
}

func NewEntryRequest(action Action, id string) (*EntryRequest, error) {
	if err := ValidateUUID(id); err != nil {
		return nil, err
	}
	return &EntryRequest{Header: Header{action}, UUID: id}, nil
}

type AutotypeRequest struct {
	Header
	GroupName string `json:"groupName"`
}

func NewAutotype(groupName string) *AutotypeRequest {
	return &AutotypeRequest{Header: Header{ActionRequestAutotype}, GroupName: groupName}
}

// PasskeysRequest carries a WebAuthn options object for registration or
// assertion. PublicKey is forwarded untouched.
type PasskeysRequest struct {
	Header
	PublicKey json.RawMessage `json:"publicKey"`
	Origin    string          `json:"origin"`
	Keys      []Key           `json:"keys"`
}

func NewPasskeys(action Action, publicKey json.RawMessage, origin string, keys []Key) (*PasskeysRequest, error) {
	if action != ActionPasskeysRegister && action != ActionPasskeysGet {
		return nil, fmt.Errorf("not a passkeys action: %s", action)
	}
	if !json.Valid(publicKey) {
		return nil, errors.New("passkeys publicKey is not valid JSON")
	}
	for i, k := range keys {
		if err := k.Validate(); err != nil {
			return nil, fmt.Errorf("keys[%d]: %w", i, err)
		}
	}
	if keys == nil {
		keys = []Key{}
	}
	return &PasskeysRequest{Header: Header{action}, PublicKey: publicKey, Origin: origin, Keys: keys}, nil
}
