package crypto

import (
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/box"
)

// ErrAuthentication is returned when a ciphertext fails to open.
var ErrAuthentication = errors.New("decryption failed: message authentication failed")

// Open authenticates and decrypts ciphertext. Nothing is returned unless the
// whole message authenticates.
func (b *SharedBox) Open(ciphertext []byte, nonce Nonce) ([]byte, error) {
	if len(ciphertext) < Overhead {
		return nil, errors.New("ciphertext shorter than box overhead")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.wiped {
		return nil, ErrBoxWiped
	}

	decrypted, ok := box.OpenAfterPrecomputation(nil, ciphertext, (*[NonceSize]byte)(&nonce), &b.shared)
	if !ok {
		logrus.WithFields(OperationFields("open", "rejected", logrus.Fields{
			"ciphertext_size": len(ciphertext),
		})).WithFields(SecureFieldHash(b.peerPublic[:], "peer_key")).Debug("Ciphertext failed authentication")
		return nil, ErrAuthentication
	}

	return decrypted, nil
}
