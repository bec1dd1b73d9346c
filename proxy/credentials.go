package proxy

import (
	"github.com/opd-ai/kpxc/crypto"
)

// Credentials is everything needed to resume talking to one KeePassXC
// database: our box keypair, the peer key from the last exchange and the
// association established with the database.
type Credentials struct {
	OwnKeyPair      *crypto.KeyPair
	ServerPublicKey [crypto.KeySize]byte
	AssociateID     string
	IDKeyPublicKey  [crypto.KeySize]byte
}

// HasAssociation reports whether an association id and idKey are present.
func (c *Credentials) HasAssociation() bool {
	if c == nil || c.AssociateID == "" {
		return false
	}
	return c.IDKeyPublicKey != [crypto.KeySize]byte{}
}

// Clone returns a deep copy. A nil receiver yields nil.
func (c *Credentials) Clone() *Credentials {
	if c == nil {
		return nil
	}
	out := *c
	out.OwnKeyPair = c.OwnKeyPair.Clone()
	return &out
}

// SessionState tracks how far the session has progressed.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateKeysExchanged
	StateAssociated
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateKeysExchanged:
		return "keys_exchanged"
	case StateAssociated:
		return "associated"
	}
	return "unknown"
}
