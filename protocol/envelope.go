package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Flag is a boolean that the peer may send either as a JSON boolean or as
// the strings "true"/"false". It always marshals as a string.
type Flag bool

func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatBool(bool(f)))
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flag: %w", err)
	}
	*f = s == "true"
	return nil
}

// Code is a peer error code. Older peers send it as a number, newer ones as
// a string; both decode to the decimal string form.
type Code string

func (c *Code) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("error code: %w", err)
	}
	*c = Code(n.String())
	return nil
}

// KeyExchangeRequest is the cleartext handshake that opens every session.
type KeyExchangeRequest struct {
	Action    Action `json:"action"`
	PublicKey string `json:"publicKey"`
	Nonce     string `json:"nonce"`
	ClientID  string `json:"clientID"`
}

// EncryptedEnvelope wraps every request sent after the handshake. Message is
// the base64 box ciphertext of the JSON request body.
type EncryptedEnvelope struct {
	Action        Action `json:"action"`
	Message       string `json:"message"`
	Nonce         string `json:"nonce"`
	ClientID      string `json:"clientID"`
	TriggerUnlock string `json:"triggerUnlock,omitempty"`
}

// Inbound is the union of every cleartext object the peer sends: handshake
// replies, encrypted responses, error replies and signals.
type Inbound struct {
	Action    Action `json:"action,omitempty"`
	Message   string `json:"message,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
	Version   string `json:"version,omitempty"`
	Success   Flag   `json:"success,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode Code   `json:"errorCode,omitempty"`
}

// HasError reports whether the object carries an error marker.
func (in *Inbound) HasError() bool {
	return in.Error != "" || in.ErrorCode != ""
}

// DecodeInbound parses one framed object. An object without any known
// field is rejected so that garbage does not look like a reply.
func DecodeInbound(frame []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return nil, fmt.Errorf("decode inbound: %w", err)
	}
	if in == (Inbound{}) {
		return nil, fmt.Errorf("decode inbound: empty object")
	}
	return &in, nil
}
