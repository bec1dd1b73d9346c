package limits

import (
	"encoding/base64"
	"errors"
	"testing"

	"golang.org/x/crypto/nacl/box"
)

func TestEncryptionOverheadMatchesNaCl(t *testing.T) {
	if EncryptionOverhead != box.Overhead {
		t.Errorf("EncryptionOverhead = %d, want %d (box.Overhead)", EncryptionOverhead, box.Overhead)
	}
}

// A maximal plaintext must still fit in a frame once sealed and encoded.
func TestMaxPlaintextFitsInFrame(t *testing.T) {
	encoded := base64.StdEncoding.EncodedLen(MaxPlaintext + EncryptionOverhead)
	if encoded+EnvelopeHeadroom > MaxFrameSize {
		t.Errorf("encoded ciphertext %d plus headroom %d exceeds frame %d", encoded, EnvelopeHeadroom, MaxFrameSize)
	}
}

func TestValidatePlaintext(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{"empty", 0, ErrMessageEmpty},
		{"one byte", 1, nil},
		{"at limit", MaxPlaintext, nil},
		{"over limit", MaxPlaintext + 1, ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlaintext(make([]byte, tt.size))
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFrame(t *testing.T) {
	if err := ValidateFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("nil frame: got %v", err)
	}
	if err := ValidateFrame(make([]byte, MaxFrameSize)); err != nil {
		t.Errorf("frame at limit: %v", err)
	}
	if err := ValidateFrame(make([]byte, MaxFrameSize+1)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("oversized frame: got %v", err)
	}
}

func TestValidateMessageSize(t *testing.T) {
	if err := ValidateMessageSize([]byte("abc"), 2); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("got %v, want ErrMessageTooLarge", err)
	}
	if err := ValidateMessageSize([]byte("ab"), 2); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
