package testing

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/protocol"
)

var (
	// ErrPeerOffline is returned by Open while the peer is offline.
	ErrPeerOffline = errors.New("simulated peer is offline")

	// ErrSessionClosed is returned by Write without an open session.
	ErrSessionClosed = errors.New("simulated session closed")
)

// DefaultVersion is the KeePassXC version a new SimulatedPeer reports.
const DefaultVersion = "2.7.6"

// RequestRecord is one request the peer received, for test verification.
type RequestRecord struct {
	Action    protocol.Action
	ClientID  string
	Timestamp time.Time
	Answered  bool
}

// SimulatedPeer implements interfaces.ITransport entirely in memory and
// plays the KeePassXC side of the browser protocol against a Database.
// Faults can be injected to exercise the engine's error paths.
type SimulatedPeer struct {
	db *Database

	mu           sync.Mutex
	session      *peerSession
	boxes        map[string]*crypto.SharedBox
	associations map[string]string // associate id -> base64 idKey
	passkeys     map[string]string // origin -> credential id
	version      string
	locked       bool
	offline      bool
	rejectCode   protocol.Code
	rejectMsg    string
	dropped      map[protocol.Action]bool
	delayed      map[protocol.Action]time.Duration
	forced       map[protocol.Action]protocol.Code
	tampered     map[protocol.Action]bool
	log          []RequestRecord
	handshakes   int
	opens        int
	nextID       int
	autotype     []string
}

// peerSession is one open connection. Frames queue until ReadObject takes
// them.
type peerSession struct {
	mu     sync.Mutex
	queue  [][]byte
	notify chan struct{}
	closed bool
}

func newPeerSession() *peerSession {
	return &peerSession{notify: make(chan struct{})}
}

func (s *peerSession) push(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, frame)
	close(s.notify)
	s.notify = make(chan struct{})
}

func (s *peerSession) next() ([]byte, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, io.EOF
		}
		if len(s.queue) > 0 {
			frame := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return frame, nil
		}
		wait := s.notify
		s.mu.Unlock()
		<-wait
	}
}

func (s *peerSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	close(s.notify)
	s.notify = make(chan struct{})
}

// NewSimulatedPeer creates an online, unlocked peer over db. A nil db gets
// an empty database.
func NewSimulatedPeer(db *Database) *SimulatedPeer {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	if db == nil {
		db = NewDatabase()
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewSimulatedPeer",
		"version":  DefaultVersion,
	}).Info("Creating simulated KeePassXC peer")

	return &SimulatedPeer{
		db:           db,
		boxes:        make(map[string]*crypto.SharedBox),
		associations: make(map[string]string),
		passkeys:     make(map[string]string),
		version:      DefaultVersion,
		dropped:      make(map[protocol.Action]bool),
		delayed:      make(map[protocol.Action]time.Duration),
		forced:       make(map[protocol.Action]protocol.Code),
		tampered:     make(map[protocol.Action]bool),
	}
}

// Database returns the store the peer serves.
func (p *SimulatedPeer) Database() *Database {
	return p.db
}

// Open starts a new session unless one is open.
func (p *SimulatedPeer) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.offline {
		return ErrPeerOffline
	}
	if p.session != nil {
		return nil
	}
	p.session = newPeerSession()
	p.opens++
	return nil
}

// Write delivers one request frame to the peer. Responses are queued for
// ReadObject.
func (p *SimulatedPeer) Write(frame []byte) error {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess == nil {
		return ErrSessionClosed
	}

	p.handle(sess, append([]byte(nil), frame...))
	return nil
}

// ReadObject returns the next frame of the current session, or io.EOF
// once that session is closed.
func (p *SimulatedPeer) ReadObject() ([]byte, error) {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess == nil {
		return nil, io.EOF
	}
	return sess.next()
}

// IsOpen reports whether a session is open.
func (p *SimulatedPeer) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// Close ends the current session from the client side.
func (p *SimulatedPeer) Close() error {
	p.mu.Lock()
	sess := p.session
	p.session = nil
	p.mu.Unlock()

	if sess != nil {
		sess.close()
	}
	return nil
}

// Kill drops the current session from the peer side, as if KeePassXC had
// exited.
func (p *SimulatedPeer) Kill() {
	logrus.WithFields(logrus.Fields{
		"function": "SimulatedPeer.Kill",
	}).Info("Simulating peer exit")
	p.Close()
}

// SetOffline makes later Open calls fail until set back to false.
func (p *SimulatedPeer) SetOffline(offline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = offline
}

// SetVersion changes the version reported in handshakes.
func (p *SimulatedPeer) SetVersion(v string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version = v
}

// RejectHandshake makes key exchanges fail with code and message. An empty
// code accepts them again.
func (p *SimulatedPeer) RejectHandshake(code protocol.Code, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectCode, p.rejectMsg = code, message
}

// DropAction makes the peer swallow requests for action without replying.
func (p *SimulatedPeer) DropAction(action protocol.Action, drop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped[action] = drop
}

// DelayAction holds replies to action back for d.
func (p *SimulatedPeer) DelayAction(action protocol.Action, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delayed[action] = d
}

// FailAction answers requests for action with an error reply carrying
// code. An empty code restores normal handling.
func (p *SimulatedPeer) FailAction(action protocol.Action, code protocol.Code) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if code == "" {
		delete(p.forced, action)
		return
	}
	p.forced[action] = code
}

// TamperAction flips a ciphertext bit in replies to action.
func (p *SimulatedPeer) TamperAction(action protocol.Action, tamper bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tampered[action] = tamper
}

// InjectSignal pushes a signal to the open session.
func (p *SimulatedPeer) InjectSignal(signal protocol.Action) {
	p.InjectRaw(mustJSON(protocol.Inbound{Action: signal}))
}

// InjectRaw pushes an arbitrary frame to the open session.
func (p *SimulatedPeer) InjectRaw(frame []byte) {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess != nil {
		sess.push(frame)
	}
}

// LockDatabase locks the database and signals every open session.
func (p *SimulatedPeer) LockDatabase() {
	p.setLocked(true)
}

// UnlockDatabase unlocks the database and signals every open session.
func (p *SimulatedPeer) UnlockDatabase() {
	p.setLocked(false)
}

func (p *SimulatedPeer) setLocked(locked bool) {
	p.mu.Lock()
	changed := p.locked != locked
	p.locked = locked
	p.mu.Unlock()

	if !changed {
		return
	}
	if locked {
		p.InjectSignal(protocol.SignalDatabaseLocked)
	} else {
		p.InjectSignal(protocol.SignalDatabaseUnlocked)
	}
}

// Locked reports whether the database is locked.
func (p *SimulatedPeer) Locked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

// Associations returns a copy of the registered associations.
func (p *SimulatedPeer) Associations() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.associations))
	for k, v := range p.associations {
		out[k] = v
	}
	return out
}

// Forget removes an association, as if the user deleted it in KeePassXC.
func (p *SimulatedPeer) Forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.associations, id)
}

// Requests returns a copy of the request log.
func (p *SimulatedPeer) Requests() []RequestRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RequestRecord(nil), p.log...)
}

// RequestCount returns how many requests for action were received.
func (p *SimulatedPeer) RequestCount(action protocol.Action) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.log {
		if r.Action == action {
			n++
		}
	}
	return n
}

// Handshakes returns how many key exchanges succeeded.
func (p *SimulatedPeer) Handshakes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handshakes
}

// Opens returns how many sessions were started.
func (p *SimulatedPeer) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}
