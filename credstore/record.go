package credstore

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/proxy"
)

// recordVersion is the current record layout.
const recordVersion = 1

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("credential record is corrupt")

type record struct {
	Version      uint16 `cbor:"1,keyasint"`
	OwnSecret    []byte `cbor:"2,keyasint,omitempty"`
	ServerPublic []byte `cbor:"3,keyasint,omitempty"`
	AssociateID  string `cbor:"4,keyasint,omitempty"`
	IDKey        []byte `cbor:"5,keyasint,omitempty"`
}

func encodeRecord(c proxy.Credentials) ([]byte, error) {
	r := record{Version: recordVersion, AssociateID: c.AssociateID}
	if c.OwnKeyPair != nil {
		r.OwnSecret = append([]byte(nil), c.OwnKeyPair.Private[:]...)
		defer crypto.ZeroBytes(r.OwnSecret)
	}
	if c.ServerPublicKey != [crypto.KeySize]byte{} {
		r.ServerPublic = c.ServerPublicKey[:]
	}
	if c.IDKeyPublicKey != [crypto.KeySize]byte{} {
		r.IDKey = c.IDKeyPublicKey[:]
	}
	return cbor.Marshal(&r)
}

func decodeRecord(data []byte) (*proxy.Credentials, error) {
	var r record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	defer crypto.ZeroBytes(r.OwnSecret)

	if r.Version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptRecord, r.Version)
	}

	c := &proxy.Credentials{AssociateID: r.AssociateID}
	if len(r.OwnSecret) > 0 {
		secret, err := toKey(r.OwnSecret, "own secret key")
		if err != nil {
			return nil, err
		}
		kp, err := crypto.FromSecretKey(secret)
		crypto.ZeroBytes(secret[:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		c.OwnKeyPair = kp
	}
	if len(r.ServerPublic) > 0 {
		key, err := toKey(r.ServerPublic, "server public key")
		if err != nil {
			return nil, err
		}
		c.ServerPublicKey = key
	}
	if len(r.IDKey) > 0 {
		key, err := toKey(r.IDKey, "idKey")
		if err != nil {
			return nil, err
		}
		c.IDKeyPublicKey = key
	}
	return c, nil
}

func toKey(b []byte, what string) ([crypto.KeySize]byte, error) {
	var key [crypto.KeySize]byte
	if len(b) != crypto.KeySize {
		return key, fmt.Errorf("%w: %s has %d bytes", ErrCorruptRecord, what, len(b))
	}
	copy(key[:], b)
	return key, nil
}
