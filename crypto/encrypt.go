package crypto

import (
	"golang.org/x/crypto/nacl/box"

	"github.com/opd-ai/kpxc/limits"
)

// Overhead is the number of bytes box encryption adds to a plaintext.
const Overhead = box.Overhead

// Seal encrypts and authenticates message under the shared box and nonce.
// The caller is responsible for never reusing a nonce on the same box.
func (b *SharedBox) Seal(message []byte, nonce Nonce) ([]byte, error) {
	if err := limits.ValidatePlaintext(message); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.wiped {
		return nil, ErrBoxWiped
	}
	return box.SealAfterPrecomputation(nil, message, (*[NonceSize]byte)(&nonce), &b.shared), nil
}
