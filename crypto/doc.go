// Package crypto implements the cryptographic primitives of the KeePassXC
// browser protocol: key generation, nonce management and the NaCl box
// construction, all through Go's x/crypto packages.
//
// # Core Types
//
//   - [KeyPair]: NaCl crypto_box key pair (Curve25519)
//   - [Nonce]: 24-byte nonce with the little-endian increment the peer
//     applies when it echoes a request nonce
//   - [SharedBox]: precomputed box key for one key exchange
//
// # Encryption and Decryption
//
//	shared, _ := crypto.NewSharedBox(peerPublic, keys.Private)
//	nonce, _ := crypto.GenerateNonce()
//	ciphertext, _ := shared.Seal(plaintext, nonce)
//	plaintext, _ := shared.Open(ciphertext, nonce)
//
// A SharedBox never yields partial plaintext: Open either authenticates the
// whole message or returns [ErrAuthentication].
//
// # Memory
//
// [SecureWipe], [ZeroBytes] and [WipeKeyPair] overwrite secrets once they are
// no longer needed. [SharedBox.Wipe] erases a session key; the box refuses
// further use with [ErrBoxWiped]. Logging of keys goes through [SecureFieldHash], which
// records only a short prefix.
package crypto
