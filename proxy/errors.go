package proxy

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

const (
	// KindTransport: the byte channel failed or was closed.
	KindTransport Kind = iota + 1
	// KindHandshake: the peer rejected or garbled the key exchange.
	KindHandshake
	// KindDecryption: a response did not authenticate under the shared box.
	KindDecryption
	// KindApplication: the peer answered but reported failure.
	KindApplication
	// KindTimeout: a bounded request got no answer in time.
	KindTimeout
	// KindMalformedMessage: an inbound frame could not be decoded. These are
	// counted by the reader and never returned from a call.
	KindMalformedMessage
	// KindIllegalState: the call is not allowed in the current session
	// state. No I/O was attempted.
	KindIllegalState
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHandshake:
		return "handshake"
	case KindDecryption:
		return "decryption"
	case KindApplication:
		return "application"
	case KindTimeout:
		return "timeout"
	case KindMalformedMessage:
		return "malformed_message"
	case KindIllegalState:
		return "illegal_state"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error type returned by Connection methods.
type Error struct {
	Kind    Kind
	Op      string // action or engine step that failed
	Code    string // peer errorCode, application and handshake errors only
	Message string // peer error text
	Err     error  // underlying cause
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("kpxc %s %s error", e.Op, e.Kind)
	if e.Code != "" {
		msg += fmt.Sprintf(" (code %s)", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrTimeout)
// holds for every timeout regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Code == "" && t.Message == "" && t.Kind == e.Kind
}

// Retryable reports whether repeating the call may succeed without any
// change on the caller's side.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransport
}

// Kind sentinels for errors.Is.
var (
	ErrTransport        = &Error{Kind: KindTransport}
	ErrHandshake        = &Error{Kind: KindHandshake}
	ErrDecryption       = &Error{Kind: KindDecryption}
	ErrApplication      = &Error{Kind: KindApplication}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrMalformedMessage = &Error{Kind: KindMalformedMessage}
	ErrIllegalState     = &Error{Kind: KindIllegalState}
)

var (
	// ErrClosed is the cause carried by errors after Close.
	ErrClosed = errors.New("connection closed")

	// ErrNotConnected is the cause when no key exchange has completed.
	ErrNotConnected = errors.New("no key exchange has completed")

	// ErrNotAssociated is the cause when a command needs an association
	// the credentials do not hold.
	ErrNotAssociated = errors.New("client is not associated")
)

// IsRetryable reports whether err is an engine error worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
