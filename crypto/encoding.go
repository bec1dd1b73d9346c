package crypto

import (
	"encoding/base64"
	"fmt"
)

// EncodeKey returns the standard base64 form of a key, as used on the wire
// and in exported connection records.
func EncodeKey(key [KeySize]byte) string {
	return base64.StdEncoding.EncodeToString(key[:])
}

// DecodeKey parses a base64 key and checks its length.
func DecodeKey(s string) ([KeySize]byte, error) {
	var key [KeySize]byte
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("invalid key encoding: %w", err)
	}
	if len(raw) != KeySize {
		return key, fmt.Errorf("invalid key length: got %d, want %d", len(raw), KeySize)
	}
	copy(key[:], raw)
	return key, nil
}

// EncodeBytes and DecodeBytes wrap base64 for ciphertext fields.
func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeBytes(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
