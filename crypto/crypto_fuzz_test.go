package crypto

import (
	"bytes"
	"testing"
)

// FuzzSealOpen fuzzes sealing and opening under a shared box
func FuzzSealOpen(f *testing.F) {
	// Add seed corpus
	f.Add([]byte("Hello, World!"))
	f.Add([]byte(""))
	f.Add(make([]byte, 100))

	f.Fuzz(func(t *testing.T, plaintext []byte) {
		client, err := GenerateKeyPair()
		if err != nil {
			return
		}
		server, err := GenerateKeyPair()
		if err != nil {
			return
		}

		// Skip very large inputs to prevent OOM
		if len(plaintext) > 10000 {
			return
		}

		outbound, err := NewSharedBox(server.Public, client.Private)
		if err != nil {
			return
		}
		inbound, err := NewSharedBox(client.Public, server.Private)
		if err != nil {
			return
		}

		nonce, err := GenerateNonce()
		if err != nil {
			return
		}
		ciphertext, err := outbound.Seal(plaintext, nonce)
		if err != nil {
			return
		}

		decrypted, err := inbound.Open(ciphertext, nonce)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if !bytes.Equal(plaintext, decrypted) {
			t.Errorf("Decryption mismatch: got %q, want %q", decrypted, plaintext)
		}

		// A different nonce must not authenticate
		if _, err := inbound.Open(ciphertext, nonce.Incremented()); err == nil {
			t.Error("Open succeeded with the wrong nonce")
		}
	})
}

// FuzzOpenGarbage feeds arbitrary ciphertext to Open
func FuzzOpenGarbage(f *testing.F) {
	f.Add(make([]byte, 0))
	f.Add(make([]byte, Overhead))
	f.Add(bytes.Repeat([]byte{0xff}, 64))

	kp, err := GenerateKeyPair()
	if err != nil {
		f.Fatal(err)
	}
	peer, err := GenerateKeyPair()
	if err != nil {
		f.Fatal(err)
	}
	b, err := NewSharedBox(peer.Public, kp.Private)
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, ciphertext []byte) {
		// Should not panic; random input never authenticates
		if _, err := b.Open(ciphertext, Nonce{}); err == nil {
			t.Error("Open accepted unauthenticated input")
		}
	})
}

// FuzzSecureWipe fuzzes the secure memory wiping function
func FuzzSecureWipe(f *testing.F) {
	// Add seed corpus
	f.Add(make([]byte, 0))
	f.Add(make([]byte, 1))
	f.Add(make([]byte, 32))
	f.Add(make([]byte, 1024))

	f.Fuzz(func(t *testing.T, data []byte) {
		// Make a copy since SecureWipe modifies in place
		testData := make([]byte, len(data))
		copy(testData, data)

		// Should not panic on any input
		_ = SecureWipe(testData)

		for i, b := range testData {
			if b != 0 {
				t.Errorf("Byte at index %d not zeroed: got %d", i, b)
			}
		}
	})
}

// FuzzKeypairFromSecret fuzzes keypair derivation from secret
func FuzzKeypairFromSecret(f *testing.F) {
	// Add seed corpus
	validSecret := make([]byte, 32)
	for i := range validSecret {
		validSecret[i] = byte(i * 7 % 256)
	}

	f.Add(validSecret)
	f.Add(make([]byte, 32))

	f.Fuzz(func(t *testing.T, secretData []byte) {
		if len(secretData) != KeySize {
			return
		}

		var secret [KeySize]byte
		copy(secret[:], secretData)

		// Should not panic
		kp, err := FromSecretKey(secret)
		if err != nil {
			return
		}

		if kp == nil {
			t.Error("FromSecretKey returned nil keypair without error")
		}
		again, err := FromSecretKey(secret)
		if err != nil || again.Public != kp.Public {
			t.Error("FromSecretKey is not deterministic")
		}
	})
}

// FuzzDecodeNonce fuzzes wire nonce parsing
func FuzzDecodeNonce(f *testing.F) {
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	f.Add("")
	f.Add("not base64!")

	f.Fuzz(func(t *testing.T, s string) {
		n, err := DecodeNonce(s)
		if err != nil {
			return
		}
		// Anything that parses must round trip
		again, err := DecodeNonce(n.String())
		if err != nil || again != n {
			t.Errorf("nonce %q did not round trip", s)
		}
	})
}
