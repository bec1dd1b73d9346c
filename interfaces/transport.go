package interfaces

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ITransport is a duplex byte channel to the password manager that yields
// one complete JSON object per read. The proxy engine owns a transport for
// the lifetime of a connection generation and closes it on failure.
type ITransport interface {
	// Open establishes the channel. Calling Open on an open transport is a
	// no-op.
	Open(ctx context.Context) error

	// Write sends one complete frame.
	Write(frame []byte) error

	// ReadObject blocks until one top-level JSON object is available.
	// It returns io.EOF once the transport is closed.
	ReadObject() ([]byte, error)

	// IsOpen reports whether the channel is currently usable.
	IsOpen() bool

	// Close releases the channel and unblocks pending reads. It is
	// idempotent.
	Close() error
}

// Installation identifies how KeePassXC was installed, which decides where
// its socket lives.
type Installation string

const (
	InstallationRepo     Installation = "repo"
	InstallationAppImage Installation = "appimage"
	InstallationFlatpak  Installation = "flatpak"
	InstallationSnap     Installation = "snap"
)

// ParseInstallation maps a configuration string to an Installation.
// The empty string selects InstallationRepo.
func ParseInstallation(s string) (Installation, error) {
	switch Installation(s) {
	case "", InstallationRepo:
		return InstallationRepo, nil
	case InstallationAppImage, InstallationFlatpak, InstallationSnap:
		return Installation(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownInstallation, s)
}

var (
	// ErrInvalidTimeout is returned when ResponseTimeout is not positive.
	ErrInvalidTimeout = errors.New("response timeout must be positive")

	// ErrInvalidReconnectDelay is returned when ReconnectDelay is not positive.
	ErrInvalidReconnectDelay = errors.New("reconnect delay must be positive")

	// ErrInvalidThreshold is returned when MalformedThreshold is below one.
	ErrInvalidThreshold = errors.New("malformed threshold must be at least 1")

	// ErrUnknownInstallation is returned for unrecognised installation kinds.
	ErrUnknownInstallation = errors.New("unknown installation")
)

// ConnectionConfig holds configuration for the proxy connection and its
// transport.
type ConnectionConfig struct {
	// SocketPath overrides socket discovery when non-empty. On Windows it
	// names the pipe.
	SocketPath string

	// Installation selects the socket discovery rules.
	Installation Installation

	// UseSimulation replaces the real socket with an in-memory peer
	UseSimulation bool

	// ResponseTimeout bounds non-interactive requests, in milliseconds
	ResponseTimeout int

	// ReconnectDelay is the wait before each reconnect attempt, in milliseconds
	ReconnectDelay int

	// MalformedThreshold is how many consecutive undecodable frames are
	// tolerated before the transport is considered lost.
	MalformedThreshold int

	// VerifyPeerCredentials enables the socket peer uid check where the
	// platform supports it.
	VerifyPeerCredentials bool
}

// Validate checks that all numeric settings are usable.
func (c ConnectionConfig) Validate() error {
	if c.ResponseTimeout <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTimeout, c.ResponseTimeout)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidReconnectDelay, c.ReconnectDelay)
	}
	if c.MalformedThreshold < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, c.MalformedThreshold)
	}
	if _, err := ParseInstallation(string(c.Installation)); err != nil {
		return err
	}
	return nil
}

// ResponseTimeoutDuration returns ResponseTimeout as a time.Duration.
func (c ConnectionConfig) ResponseTimeoutDuration() time.Duration {
	return time.Duration(c.ResponseTimeout) * time.Millisecond
}

// ReconnectDelayDuration returns ReconnectDelay as a time.Duration.
func (c ConnectionConfig) ReconnectDelayDuration() time.Duration {
	return time.Duration(c.ReconnectDelay) * time.Millisecond
}
