package crypto

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/box"
)

var (
	// ErrWeakPeerKey is returned when the peer public key is all zeros.
	ErrWeakPeerKey = errors.New("peer public key is all zeros")
	// ErrBoxWiped is returned by Seal and Open after Wipe.
	ErrBoxWiped = errors.New("shared box has been wiped")
)

// SharedBox holds the precomputed NaCl box key for one (own secret, peer
// public) pair. It is safe for concurrent use; a new key exchange produces
// a new SharedBox and the old one is wiped.
type SharedBox struct {
	peerPublic [KeySize]byte

	mu     sync.RWMutex
	shared [KeySize]byte
	wiped  bool
}

// NewSharedBox precomputes the box key for traffic between ownSecret and
// peerPublic. Both directions of the conversation use the same key.
func NewSharedBox(peerPublic, ownSecret [KeySize]byte) (*SharedBox, error) {
	if isZeroKey(peerPublic) {
		return nil, ErrWeakPeerKey
	}

	b := &SharedBox{peerPublic: peerPublic}
	box.Precompute(&b.shared, &peerPublic, &ownSecret)

	logrus.WithFields(logrus.Fields{
		"function": "NewSharedBox",
	}).WithFields(SecureFieldHash(peerPublic[:], "peer_key")).Debug("Derived shared box")

	return b, nil
}

// Wipe erases the precomputed key. Seal and Open fail with ErrBoxWiped
// afterwards. Wipe is idempotent and nil-safe.
func (b *SharedBox) Wipe() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wiped {
		return
	}
	ZeroBytes(b.shared[:])
	b.wiped = true

	logrus.WithFields(logrus.Fields{
		"function": "SharedBox.Wipe",
	}).WithFields(SecureFieldHash(b.peerPublic[:], "peer_key")).Debug("Wiped shared box")
}
