// Package sched provides a single-slot timer: at most one scheduled
// function is pending at any instant, and scheduling a new one cancels the
// old one.
package sched

import (
	"sync"
	"time"
)

// Slot holds at most one pending function. The zero value is ready to use.
type Slot struct {
	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// Schedule arms fn to run after d, cancelling anything already pending.
// It returns false if the slot has been stopped. A function whose timer was
// superseded never runs, even if the timer had already fired.
func (s *Slot) Schedule(d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	s.cancelLocked()

	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen || s.stopped {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
	return true
}

// Cancel drops the pending function, if any. The slot stays usable.
func (s *Slot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Stop cancels the pending function and refuses all later schedules.
func (s *Slot) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.stopped = true
}

// Pending reports whether a function is armed and has not started.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Slot) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
