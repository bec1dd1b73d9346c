package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/opd-ai/kpxc/crypto"
)

const (
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000
	// SaltSize is the size of the per-file PBKDF2 salt.
	SaltSize = 32

	keySize = 32
)

// ErrNoPassphrase is returned when a sealed file is read without a Sealer,
// or a Sealer is created from an empty passphrase.
var ErrNoPassphrase = errors.New("credential file is encrypted and no passphrase was given")

// Sealer encrypts records at rest under a passphrase.
type Sealer struct {
	passphrase []byte
}

// NewSealer copies passphrase into a new Sealer.
func NewSealer(passphrase []byte) (*Sealer, error) {
	if len(passphrase) == 0 {
		return nil, ErrNoPassphrase
	}
	return &Sealer{passphrase: append([]byte(nil), passphrase...)}, nil
}

// Seal encrypts plaintext. Output: salt || nonce || ciphertext+tag.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, SaltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if len(data) < SaltSize {
		return nil, fmt.Errorf("%w: sealed data too short", ErrCorruptRecord)
	}
	gcm, err := s.aead(data[:SaltSize])
	if err != nil {
		return nil, err
	}

	rest := data[SaltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("%w: sealed data too short", ErrCorruptRecord)
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong passphrase or corrupted data): %w", err)
	}
	return plaintext, nil
}

// Wipe erases the passphrase. The Sealer must not be used afterwards.
func (s *Sealer) Wipe() {
	if s != nil {
		crypto.ZeroBytes(s.passphrase)
	}
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, PBKDF2Iterations, keySize, sha256.New)
	defer crypto.SecureWipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
