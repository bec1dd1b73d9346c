package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxFrameSize is the largest JSON object accepted from the transport.
	// The reader treats anything larger as a broken stream.
	MaxFrameSize = 1024 * 1024

	// EnvelopeHeadroom is reserved for the envelope fields surrounding the
	// base64 ciphertext (action, nonce, clientID, triggerUnlock).
	EnvelopeHeadroom = 4096

	// EncryptionOverhead is the Poly1305 tag added by box.Seal.
	EncryptionOverhead = 16 // golang.org/x/crypto/nacl/box.Overhead

	// MaxPlaintext is the largest request body that still fits in one frame
	// after encryption and base64 expansion.
	MaxPlaintext = (MaxFrameSize-EnvelopeHeadroom)/4*3 - EncryptionOverhead
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")

	// ErrFrameTooLarge indicates the stream produced an object larger than
	// MaxFrameSize. It is fatal for the stream it came from.
	ErrFrameTooLarge = errors.New("frame too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidatePlaintext validates a request body before encryption.
func ValidatePlaintext(message []byte) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > MaxPlaintext {
		return fmt.Errorf("%w: plaintext size %d exceeds limit %d", ErrMessageTooLarge, len(message), MaxPlaintext)
	}
	return nil
}

// ValidateFrame checks the size of a frame read from or written to the
// transport.
func ValidateFrame(frame []byte) error {
	if len(frame) == 0 {
		return ErrMessageEmpty
	}
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFrameTooLarge, len(frame), MaxFrameSize)
	}
	return nil
}
