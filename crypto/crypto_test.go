package crypto

import (
	"bytes"
	"testing"
)

func TestGenerateKeyPair(t *testing.T) {
	keyPair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}

	if isZeroKey(keyPair.Public) {
		t.Error("GenerateKeyPair() returned zero public key")
	}
	if isZeroKey(keyPair.Private) {
		t.Error("GenerateKeyPair() returned zero private key")
	}

	keyPair2, _ := GenerateKeyPair()
	if bytes.Equal(keyPair.Public[:], keyPair2.Public[:]) {
		t.Error("Multiple GenerateKeyPair() calls produced identical public keys")
	}
}

func TestFromSecretKey(t *testing.T) {
	cases := []struct {
		name      string
		secretKey [KeySize]byte
		wantError bool
	}{
		{name: "Valid key", secretKey: [KeySize]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{name: "Zero key", secretKey: [KeySize]byte{}, wantError: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keyPair, err := FromSecretKey(tc.secretKey)
			if tc.wantError {
				if err == nil {
					t.Fatal("FromSecretKey() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("FromSecretKey() unexpected error: %v", err)
			}
			if keyPair.Private != tc.secretKey {
				t.Error("FromSecretKey() did not keep the secret key")
			}
		})
	}
}

func TestFromSecretKeyMatchesGenerated(t *testing.T) {
	generated, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	restored, err := FromSecretKey(generated.Private)
	if err != nil {
		t.Fatal(err)
	}

	if restored.Public != generated.Public {
		t.Error("public key derived from secret differs from generated public key")
	}
}

func TestNonceIncrement(t *testing.T) {
	cases := []struct {
		name string
		in   Nonce
		want Nonce
	}{
		{name: "zero", in: Nonce{}, want: Nonce{1}},
		{name: "carry", in: Nonce{0xff, 0x00}, want: Nonce{0x00, 0x01}},
		{name: "double carry", in: Nonce{0xff, 0xff, 0x07}, want: Nonce{0x00, 0x00, 0x08}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Incremented()
			if got != tc.want {
				t.Errorf("Incremented() = %x, want %x", got, tc.want)
			}
		})
	}

	var all Nonce
	for i := range all {
		all[i] = 0xff
	}
	all.Increment()
	if all != (Nonce{}) {
		t.Errorf("all-ones nonce should wrap to zero, got %x", all)
	}
}

func TestNonceIncrementedLeavesOriginal(t *testing.T) {
	n := Nonce{5}
	_ = n.Incremented()
	if n[0] != 5 {
		t.Error("Incremented() modified its receiver")
	}
}

func TestNonceEncoding(t *testing.T) {
	n, err := GenerateNonce()
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeNonce(n.String())
	if err != nil {
		t.Fatalf("DecodeNonce() error: %v", err)
	}
	if decoded != n {
		t.Error("decoded nonce differs")
	}

	if _, err := DecodeNonce("AAAA"); err == nil {
		t.Error("DecodeNonce() accepted a short nonce")
	}
	if _, err := DecodeNonce("not base64!"); err == nil {
		t.Error("DecodeNonce() accepted invalid base64")
	}
}

func TestDecodeKey(t *testing.T) {
	kp, _ := GenerateKeyPair()

	key, err := DecodeKey(EncodeKey(kp.Public))
	if err != nil {
		t.Fatalf("DecodeKey() error: %v", err)
	}
	if key != kp.Public {
		t.Error("decoded key differs")
	}

	if _, err := DecodeKey(EncodeBytes([]byte{1, 2, 3})); err == nil {
		t.Error("DecodeKey() accepted a short key")
	}
}

func TestSharedBoxBothDirections(t *testing.T) {
	client, _ := GenerateKeyPair()
	server, _ := GenerateKeyPair()

	clientBox, err := NewSharedBox(server.Public, client.Private)
	if err != nil {
		t.Fatal(err)
	}
	serverBox, err := NewSharedBox(client.Public, server.Private)
	if err != nil {
		t.Fatal(err)
	}

	nonce, _ := GenerateNonce()
	message := []byte(`{"action":"get-databasehash"}`)

	ciphertext, err := clientBox.Seal(message, nonce)
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}
	if len(ciphertext) != len(message)+Overhead {
		t.Errorf("ciphertext length = %d, want %d", len(ciphertext), len(message)+Overhead)
	}

	plaintext, err := serverBox.Open(ciphertext, nonce)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if !bytes.Equal(plaintext, message) {
		t.Error("round trip changed the message")
	}

	reply := []byte(`{"hash":"abc"}`)
	replyNonce := nonce.Incremented()
	sealed, _ := serverBox.Seal(reply, replyNonce)
	opened, err := clientBox.Open(sealed, replyNonce)
	if err != nil || !bytes.Equal(opened, reply) {
		t.Errorf("reply direction failed: %v", err)
	}
}

func TestSharedBoxRejectsTampering(t *testing.T) {
	a, _ := GenerateKeyPair()
	b, _ := GenerateKeyPair()
	other, _ := GenerateKeyPair()

	sender, _ := NewSharedBox(b.Public, a.Private)
	receiver, _ := NewSharedBox(a.Public, b.Private)
	stranger, _ := NewSharedBox(a.Public, other.Private)

	nonce, _ := GenerateNonce()
	ciphertext, _ := sender.Seal([]byte("secret"), nonce)

	tampered := append([]byte(nil), ciphertext...)
	tampered[len(tampered)-1] ^= 0x01

	if _, err := receiver.Open(tampered, nonce); err != ErrAuthentication {
		t.Errorf("tampered ciphertext: got %v, want ErrAuthentication", err)
	}
	if _, err := receiver.Open(ciphertext, nonce.Incremented()); err != ErrAuthentication {
		t.Errorf("wrong nonce: got %v, want ErrAuthentication", err)
	}
	if _, err := stranger.Open(ciphertext, nonce); err != ErrAuthentication {
		t.Errorf("wrong key: got %v, want ErrAuthentication", err)
	}
	if _, err := receiver.Open([]byte{1, 2, 3}, nonce); err == nil {
		t.Error("short ciphertext should fail")
	}
}

func TestNewSharedBoxRejectsZeroKey(t *testing.T) {
	kp, _ := GenerateKeyPair()
	if _, err := NewSharedBox([KeySize]byte{}, kp.Private); err != ErrWeakPeerKey {
		t.Errorf("got %v, want ErrWeakPeerKey", err)
	}
}

func TestSharedBoxWipe(t *testing.T) {
	a, _ := GenerateKeyPair()
	b, _ := GenerateKeyPair()

	sender, _ := NewSharedBox(b.Public, a.Private)
	receiver, _ := NewSharedBox(a.Public, b.Private)

	nonce, _ := GenerateNonce()
	ciphertext, err := sender.Seal([]byte("secret"), nonce)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	receiver.Wipe()
	receiver.Wipe()
	if receiver.shared != [KeySize]byte{} {
		t.Error("Wipe left key material behind")
	}
	if _, err := receiver.Open(ciphertext, nonce); err != ErrBoxWiped {
		t.Errorf("Open after Wipe: got %v, want ErrBoxWiped", err)
	}
	if _, err := receiver.Seal([]byte("secret"), nonce.Incremented()); err != ErrBoxWiped {
		t.Errorf("Seal after Wipe: got %v, want ErrBoxWiped", err)
	}

	var nilBox *SharedBox
	nilBox.Wipe()
}
