package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NonceSize is the length of a NaCl box nonce.
const NonceSize = 24

// Nonce is a 24-byte value used once per encryption under a given box.
type Nonce [NonceSize]byte

// GenerateNonce creates a cryptographically secure random nonce.
func GenerateNonce() (Nonce, error) {
	var nonce Nonce
	_, err := rand.Read(nonce[:])
	if err != nil {
		return Nonce{}, err
	}
	return nonce, nil
}

// Increment advances the nonce by one, treating all 24 bytes as a
// little-endian counter with carry. This is the sodium_increment convention
// the peer uses when it echoes a nonce back. The counter wraps to zero after
// the all-0xff value.
func (n *Nonce) Increment() {
	for i := range n {
		n[i]++
		if n[i] != 0 {
			return
		}
	}
}

// Incremented returns a copy of the nonce advanced by one.
func (n Nonce) Incremented() Nonce {
	n.Increment()
	return n
}

// String returns the standard base64 encoding used on the wire.
func (n Nonce) String() string {
	return base64.StdEncoding.EncodeToString(n[:])
}

// DecodeNonce parses a base64 wire nonce.
func DecodeNonce(s string) (Nonce, error) {
	var n Nonce
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return n, fmt.Errorf("invalid nonce encoding: %w", err)
	}
	if len(raw) != NonceSize {
		return n, fmt.Errorf("invalid nonce length: got %d, want %d", len(raw), NonceSize)
	}
	copy(n[:], raw)
	return n, nil
}
