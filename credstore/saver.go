package credstore

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/proxy"
	"github.com/opd-ai/kpxc/sched"
)

// DefaultSaveDelay is how long Saver waits for further changes before
// writing.
const DefaultSaveDelay = time.Second

// Store is what Saver writes to. *FileStore implements it.
type Store interface {
	Save(proxy.Credentials) error
}

// Saver coalesces credential changes into delayed writes. Update has the
// signature proxy.WithCredentialsListener expects.
type Saver struct {
	store Store
	delay time.Duration
	slot  sched.Slot

	mu      sync.Mutex
	pending *proxy.Credentials
	lastErr error
}

// NewSaver creates a Saver writing to store after delay.
func NewSaver(store Store, delay time.Duration) *Saver {
	return &Saver{store: store, delay: delay}
}

// Update records c as the latest credentials and (re)arms the write.
func (s *Saver) Update(c proxy.Credentials) {
	s.mu.Lock()
	s.pending = c.Clone()
	s.mu.Unlock()

	armed := s.slot.Schedule(s.delay, func() {
		s.Flush()
	})
	if !armed {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
	}
}

// Flush writes pending credentials now. It returns the error of this write,
// or nil when nothing was pending.
func (s *Saver) Flush() error {
	s.slot.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return nil
	}
	err := s.store.Save(*s.pending)
	s.lastErr = err
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Saver.Flush",
			"error":    err.Error(),
		}).Error("Failed to persist credentials")
		return err
	}
	s.pending = nil
	return nil
}

// Err returns the result of the most recent write.
func (s *Saver) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close cancels any pending write and disables the Saver. Call Flush first
// to keep pending changes.
func (s *Saver) Close() {
	s.slot.Stop()
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}
