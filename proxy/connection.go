package proxy

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/interfaces"
	"github.com/opd-ai/kpxc/protocol"
	"github.com/opd-ai/kpxc/sched"
)

// clientIDSize is the number of random bytes in a client id.
const clientIDSize = 24

// generation is one opened transport together with the reader that drains
// it. A new generation starts on every successful (re)connect.
type generation struct {
	id    uint64
	inbox *inbox
	done  chan struct{}

	// lost is set, under Connection.mu, once the generation is finished
	// for any reason. Later failures reported against it are ignored.
	lost bool

	// inSignal is set while the reader is inside the signal handler.
	inSignal atomic.Bool
}

// Connection is the encrypted browser-protocol session with KeePassXC.
// Commands may be issued concurrently from any goroutine; responses are
// matched to callers by action and nonce.
type Connection struct {
	transport interfaces.ITransport
	config    interfaces.ConnectionConfig
	clientID  string
	metrics   *Metrics

	onCredentials func(Credentials)
	onSignal      func(protocol.Action)

	// handshakeMu serializes key exchange, association and reconnects.
	handshakeMu    sync.Mutex
	handshakeNonce crypto.Nonce

	mu          sync.RWMutex
	state       SessionState
	box         *crypto.SharedBox
	credentials *Credentials
	peerVersion protocol.Version
	gen         *generation
	genCounter  uint64
	closed      bool

	reconnectSlot sched.Slot
	ctx           context.Context
	cancel        context.CancelFunc
}

// Option customizes a Connection.
type Option func(*Connection)

// WithCredentials seeds the connection with previously stored credentials.
// The keypair in them is replaced at the next key exchange, the association
// is kept.
func WithCredentials(c *Credentials) Option {
	return func(conn *Connection) {
		conn.credentials = c.Clone()
	}
}

// WithCredentialsListener registers fn to receive a copy of the credentials
// after every change. fn runs on the goroutine that made the change.
func WithCredentialsListener(fn func(Credentials)) Option {
	return func(conn *Connection) {
		conn.onCredentials = fn
	}
}

// WithSignalHandler registers fn for database-locked and database-unlocked
// signals. fn runs on the reader goroutine and must not block or issue
// commands synchronously. Calling Close from fn is allowed; Close then
// returns without waiting for the reader, which exits once fn returns.
func WithSignalHandler(fn func(protocol.Action)) Option {
	return func(conn *Connection) {
		conn.onSignal = fn
	}
}

// WithMetrics records engine activity on m.
func WithMetrics(m *Metrics) Option {
	return func(conn *Connection) {
		conn.metrics = m
	}
}

// NewConnection creates a disconnected session over t. Nothing is sent
// until Connect.
func NewConnection(t interfaces.ITransport, cfg interfaces.ConnectionConfig, opts ...Option) (*Connection, error) {
	if t == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := make([]byte, clientIDSize)
	if _, err := rand.Read(id); err != nil {
		return nil, err
	}
	nonce, err := crypto.GenerateNonce()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		transport:      t,
		config:         cfg,
		clientID:       base64.StdEncoding.EncodeToString(id),
		handshakeNonce: nonce,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	logrus.WithFields(logrus.Fields{
		"function":         "NewConnection",
		"response_timeout": cfg.ResponseTimeout,
		"reconnect_delay":  cfg.ReconnectDelay,
		"has_association":  c.credentials.HasAssociation(),
	}).Debug("Created proxy connection")

	return c, nil
}

// ClientID returns the base64 client id sent with every message.
func (c *Connection) ClientID() string {
	return c.clientID
}

// State returns the current session state.
func (c *Connection) State() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Credentials returns a copy of the current credentials, or nil before the
// first key exchange when none were supplied.
func (c *Connection) Credentials() *Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credentials.Clone()
}

// PeerVersion returns the KeePassXC version reported by the last handshake.
func (c *Connection) PeerVersion() protocol.Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peerVersion
}

// ReconnectPending reports whether a reconnect attempt is scheduled.
func (c *Connection) ReconnectPending() bool {
	return c.reconnectSlot.Pending()
}

// Connect opens the transport, performs the key exchange and starts the
// reader. When the credentials hold an association it is re-validated;
// a failed validation leaves the session in StateKeysExchanged without
// failing Connect.
func (c *Connection) Connect(ctx context.Context) error {
	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()

	if c.isClosed() {
		return newError(KindIllegalState, "connect", ErrClosed)
	}
	c.reconnectSlot.Cancel()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}
	c.restoreAssociation(ctx)
	return nil
}

// connectLocked runs with handshakeMu held.
func (c *Connection) connectLocked(ctx context.Context) error {
	c.retireGeneration()

	if err := c.transport.Open(ctx); err != nil {
		c.metrics.failure(KindTransport)
		return newError(KindTransport, "connect", err)
	}

	if err := c.exchangeKeys(ctx); err != nil {
		c.transport.Close()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.transport.Close()
		return newError(KindIllegalState, "connect", ErrClosed)
	}
	c.genCounter++
	g := &generation{id: c.genCounter, inbox: newInbox(), done: make(chan struct{})}
	c.gen = g
	c.mu.Unlock()

	go c.readLoop(g)

	logrus.WithFields(logrus.Fields{
		"function":   "Connect",
		"generation": g.id,
		"version":    string(c.PeerVersion()),
	}).Info("Connected to KeePassXC")
	return nil
}

// retireGeneration stops the current reader, if any, and waits for it.
func (c *Connection) retireGeneration() {
	c.mu.Lock()
	g := c.gen
	c.gen = nil
	if g != nil {
		g.lost = true
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	if g != nil {
		c.transport.Close()
		<-g.done
		g.inbox.fail(newError(KindTransport, "reconnect", ErrClosed))
	}
	c.dropBox()
}

// dropBox discards and wipes the session box. Callers fail the waiters of
// the generation that used it first.
func (c *Connection) dropBox() {
	c.mu.Lock()
	b := c.box
	c.box = nil
	c.mu.Unlock()
	b.Wipe()
}

// restoreAssociation re-validates stored association data after a key
// exchange.
func (c *Connection) restoreAssociation(ctx context.Context) {
	creds := c.Credentials()
	if !creds.HasAssociation() {
		return
	}

	err := c.TestAssociate(ctx, creds.AssociateID, crypto.EncodeKey(creds.IDKeyPublicKey))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "restoreAssociation",
			"associate_id": creds.AssociateID,
			"error":        err.Error(),
		}).Warn("Stored association was not accepted")
	}
}

// Close stops the reader, cancels any pending reconnect and closes the
// transport. Pending calls fail with a transport error and the session key
// is wiped. Close is idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	g := c.gen
	if g != nil {
		g.lost = true
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	c.cancel()
	c.reconnectSlot.Stop()
	err := c.transport.Close()

	if g != nil {
		if !g.inSignal.Load() {
			<-g.done
		}
		g.inbox.fail(newError(KindTransport, "close", ErrClosed))
	}
	c.dropBox()

	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Info("Proxy connection closed")
	return err
}

func (c *Connection) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// setCredentials applies fn to the credentials under the lock, then passes
// a copy to the listener.
func (c *Connection) setCredentials(fn func(*Credentials)) {
	c.mu.Lock()
	if c.credentials == nil {
		c.credentials = &Credentials{}
	}
	fn(c.credentials)
	snapshot := *c.credentials.Clone()
	c.mu.Unlock()

	if c.onCredentials != nil {
		c.onCredentials(snapshot)
	}
}
