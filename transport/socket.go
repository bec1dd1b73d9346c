package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/opd-ai/kpxc/limits"
	"github.com/sirupsen/logrus"
)

// ErrNotOpen is returned by Write when the socket has not been opened or
// has been closed.
var ErrNotOpen = errors.New("transport not open")

// Dialer opens the underlying byte stream.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Socket implements interfaces.ITransport over a stream produced by a
// Dialer. Each Open dials a fresh stream; Close tears it down and makes any
// blocked ReadObject return io.EOF.
type Socket struct {
	name string
	dial Dialer

	mu     sync.Mutex
	conn   io.ReadWriteCloser
	reader *ObjectReader

	writeMu sync.Mutex
}

// NewSocket creates a closed socket. name is used in logs and errors.
func NewSocket(name string, dial Dialer) *Socket {
	return &Socket{name: name, dial: dial}
}

// Name returns the address the socket dials.
func (s *Socket) Name() string {
	return s.name
}

// Open dials the stream unless it is already open.
func (s *Socket) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	conn, err := s.dial(ctx)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Open",
			"socket":   s.name,
			"error":    err.Error(),
		}).Warn("Cannot connect to KeePassXC, is it running with browser integration enabled?")
		return &Error{Op: "open", Addr: s.name, Err: err}
	}

	s.conn = conn
	s.reader = NewObjectReader(conn)

	logrus.WithFields(logrus.Fields{
		"function": "Open",
		"socket":   s.name,
	}).Info("Connected to KeePassXC")

	return nil
}

// Write sends one frame. Concurrent writers are serialized so frames never
// interleave on the stream.
func (s *Socket) Write(frame []byte) error {
	if err := limits.ValidateFrame(frame); err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return &Error{Op: "write", Addr: s.name, Err: ErrNotOpen}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Write",
		"socket":   s.name,
		"bytes":    len(frame),
	}).Debug("Sending frame")

	if _, err := conn.Write(frame); err != nil {
		return &Error{Op: "write", Addr: s.name, Err: err}
	}
	return nil
}

// ReadObject returns the next JSON object from the stream.
func (s *Socket) ReadObject() ([]byte, error) {
	s.mu.Lock()
	conn, reader := s.conn, s.reader
	s.mu.Unlock()
	if reader == nil {
		return nil, io.EOF
	}

	frame, err := reader.Next()
	if err == nil || errors.Is(err, ErrMalformedFrame) {
		return frame, err
	}

	// A read that fails because Close ran underneath it is a clean end.
	s.mu.Lock()
	closed := s.conn != conn
	s.mu.Unlock()
	if closed {
		return nil, io.EOF
	}
	if errors.Is(err, io.EOF) || errors.Is(err, limits.ErrFrameTooLarge) {
		return nil, err
	}
	return nil, &Error{Op: "read", Addr: s.name, Err: err}
}

// IsOpen reports whether a stream is currently held.
func (s *Socket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Close releases the stream. It is safe to call more than once.
func (s *Socket) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.reader = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Close",
		"socket":   s.name,
	}).Debug("Closing transport")

	if err := conn.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.name, err)
	}
	return nil
}
