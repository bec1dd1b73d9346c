package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/opd-ai/kpxc/protocol"
)

// staleEntryAge is how long an unclaimed response may sit in the inbox.
const staleEntryAge = time.Minute

type inboxEntry struct {
	msg     *protocol.Inbound
	arrived time.Time
}

// matches reports whether the entry answers a call for action that sent
// a nonce whose increment is expected. Error replies may come without a
// nonce; when they carry one it must match as well.
func (e *inboxEntry) matches(action protocol.Action, expected string) bool {
	if e.msg.Action != action {
		return false
	}
	if e.msg.Nonce == expected {
		return true
	}
	return e.msg.HasError() && e.msg.Nonce == ""
}

// inbox holds responses the reader has decoded until a caller claims them.
// Waiters block on notify, which is closed and replaced on every push.
type inbox struct {
	mu      sync.Mutex
	entries []*inboxEntry
	notify  chan struct{}
	err     error
	now     func() time.Time
}

func newInbox() *inbox {
	return &inbox{
		notify: make(chan struct{}),
		now:    time.Now,
	}
}

// push appends a response and wakes every waiter. Entries older than
// staleEntryAge are dropped first.
func (b *inbox) push(msg *protocol.Inbound) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return
	}

	now := b.now()
	kept := b.entries[:0]
	for _, e := range b.entries {
		if now.Sub(e.arrived) < staleEntryAge {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(b.entries); i++ {
		b.entries[i] = nil
	}
	b.entries = append(kept, &inboxEntry{msg: msg, arrived: now})

	b.wakeLocked()
}

// await blocks until a matching entry arrives, ctx ends or the inbox fails.
// A matching entry is removed; all others stay for their own waiters.
func (b *inbox) await(ctx context.Context, action protocol.Action, expected string) (*protocol.Inbound, error) {
	for {
		b.mu.Lock()
		if msg := b.takeLocked(action, expected); msg != nil {
			b.mu.Unlock()
			return msg, nil
		}
		if b.err != nil {
			err := b.err
			b.mu.Unlock()
			return nil, err
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (b *inbox) takeLocked(action protocol.Action, expected string) *protocol.Inbound {
	for i, e := range b.entries {
		if e.matches(action, expected) {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return e.msg
		}
	}
	return nil
}

// fail releases every current and future waiter with err. The first
// failure wins.
func (b *inbox) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return
	}
	b.err = err
	b.entries = nil
	b.wakeLocked()
}

func (b *inbox) wakeLocked() {
	close(b.notify)
	b.notify = make(chan struct{})
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
