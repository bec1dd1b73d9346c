package kpxc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/credstore"
	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/interfaces"
	"github.com/opd-ai/kpxc/protocol"
	"github.com/opd-ai/kpxc/proxy"
)

// Options contains configuration options for creating an Access.
type Options struct {
	// CredentialsPath is the credential file. Empty selects
	// credstore.DefaultPath().
	CredentialsPath string
	// Passphrase, when set, encrypts the credential file.
	Passphrase []byte
	// SaveDelay debounces credential writes.
	SaveDelay time.Duration
	// Registerer receives the engine metrics. Nil disables them.
	Registerer prometheus.Registerer
	// OnSignal is called for database-locked and database-unlocked.
	OnSignal func(protocol.Action)
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{
		SaveDelay: credstore.DefaultSaveDelay,
	}
}

// ValidLogin is the result of LoginExists. UUID is set only when an entry
// for the URL also carries the given password.
type ValidLogin struct {
	Found bool
	UUID  string
}

// Access is the high-level client: a proxy.Connection whose credentials are
// loaded from and saved to a credential file. Its methods never return
// errors; failures are logged and reported as false or empty values.
type Access struct {
	conn   *proxy.Connection
	store  *credstore.FileStore
	saver  *credstore.Saver
	sealer *credstore.Sealer
}

// New creates an Access over transport. Stored credentials are loaded now;
// nothing is sent until Connect.
func New(transport interfaces.ITransport, cfg interfaces.ConnectionConfig, options *Options) (*Access, error) {
	if options == nil {
		options = NewOptions()
	}

	path := options.CredentialsPath
	if path == "" {
		var err error
		if path, err = credstore.DefaultPath(); err != nil {
			return nil, err
		}
	}

	store := &credstore.FileStore{Path: path}
	if len(options.Passphrase) > 0 {
		sealer, err := credstore.NewSealer(options.Passphrase)
		if err != nil {
			return nil, err
		}
		store.Sealer = sealer
	}

	creds, err := store.Load()
	if err != nil {
		store.Sealer.Wipe()
		return nil, err
	}

	saver := credstore.NewSaver(store, options.SaveDelay)
	opts := []proxy.Option{
		proxy.WithCredentials(creds),
		proxy.WithCredentialsListener(saver.Update),
	}
	if options.OnSignal != nil {
		opts = append(opts, proxy.WithSignalHandler(options.OnSignal))
	}
	if options.Registerer != nil {
		metrics, err := proxy.NewMetrics(options.Registerer)
		if err != nil {
			store.Sealer.Wipe()
			return nil, err
		}
		opts = append(opts, proxy.WithMetrics(metrics))
	}

	conn, err := proxy.NewConnection(transport, cfg, opts...)
	if err != nil {
		store.Sealer.Wipe()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":        "New",
		"path":            path,
		"sealed":          store.Sealer != nil,
		"has_association": creds.HasAssociation(),
	}).Debug("Created KeePassXC access")

	return &Access{conn: conn, store: store, saver: saver, sealer: store.Sealer}, nil
}

// Connection exposes the underlying engine for callers that need errors.
func (a *Access) Connection() *proxy.Connection {
	return a.conn
}

func logFailure(op string, err error) {
	logrus.WithFields(logrus.Fields{
		"function": op,
		"error":    err.Error(),
	}).Info("KeePassXC request failed")
}

// Connect opens the channel and exchanges keys.
func (a *Access) Connect(ctx context.Context) bool {
	if err := a.conn.Connect(ctx); err != nil {
		logFailure("Connect", err)
		return false
	}
	return true
}

// Associate pairs with the open database. KeePassXC asks the user to
// approve, so ctx should allow for that.
func (a *Access) Associate(ctx context.Context) bool {
	if err := a.conn.Associate(ctx); err != nil {
		logFailure("Associate", err)
		return false
	}
	return true
}

// ConnectionAvailable reports whether a stored association exists and is
// still accepted by KeePassXC.
func (a *Access) ConnectionAvailable(ctx context.Context) bool {
	id, key := a.AssociateID(), a.IDKeyPublicKey()
	if id == "" || key == "" {
		return false
	}
	return a.TestAssociate(ctx, id, key)
}

func (a *Access) TestAssociate(ctx context.Context, id, key string) bool {
	if err := a.conn.TestAssociate(ctx, id, key); err != nil {
		logFailure("TestAssociate", err)
		return false
	}
	return true
}

// GetDatabaseHash returns the active database hash, or "".
func (a *Access) GetDatabaseHash(ctx context.Context, triggerUnlock bool) string {
	hash, err := a.conn.GetDatabaseHash(ctx, triggerUnlock)
	if err != nil {
		logFailure("GetDatabaseHash", err)
		return ""
	}
	return hash
}

// GetLogins returns the entries matching url. Empty keys uses the stored
// association.
func (a *Access) GetLogins(ctx context.Context, url, submitURL string, httpAuth bool, keys []protocol.Key) []protocol.LoginEntry {
	resp, err := a.conn.GetLogins(ctx, url, submitURL, httpAuth, keys)
	if err != nil {
		logFailure("GetLogins", err)
		return nil
	}
	return resp.Entries
}

// LoginExists reports whether url has entries and which of them, if any,
// already stores password.
func (a *Access) LoginExists(ctx context.Context, url, submitURL string, httpAuth bool, keys []protocol.Key, password string) ValidLogin {
	entries := a.GetLogins(ctx, url, submitURL, httpAuth, keys)
	if len(entries) == 0 {
		return ValidLogin{}
	}
	for _, e := range entries {
		if e.Password == password {
			return ValidLogin{Found: true, UUID: e.UUID}
		}
	}
	return ValidLogin{Found: true}
}

// SetLogin creates an entry, or updates it when l.UUID is set.
func (a *Access) SetLogin(ctx context.Context, l protocol.Login) bool {
	if err := a.conn.SetLogin(ctx, l); err != nil {
		logFailure("SetLogin", err)
		return false
	}
	return true
}

// GetDatabaseGroups returns the group tree, empty on failure.
func (a *Access) GetDatabaseGroups(ctx context.Context) protocol.GroupTree {
	tree, err := a.conn.GetDatabaseGroups(ctx)
	if err != nil {
		logFailure("GetDatabaseGroups", err)
		return protocol.GroupTree{}
	}
	return tree
}

// DatabaseGroupsToMap flattens tree to name -> uuid, leaving out the root.
func (a *Access) DatabaseGroupsToMap(tree protocol.GroupTree) map[string]string {
	return tree.Flatten()
}

func (a *Access) GeneratePassword(ctx context.Context) string {
	password, err := a.conn.GeneratePassword(ctx)
	if err != nil {
		logFailure("GeneratePassword", err)
		return ""
	}
	return password
}

func (a *Access) LockDatabase(ctx context.Context) bool {
	locked, err := a.conn.LockDatabase(ctx)
	if err != nil {
		logFailure("LockDatabase", err)
		return false
	}
	return locked
}

// CreateNewGroup creates path and returns {"name", "uuid"} of the last
// group, or an empty map.
func (a *Access) CreateNewGroup(ctx context.Context, path string) map[string]string {
	resp, err := a.conn.CreateNewGroup(ctx, path)
	if err != nil {
		logFailure("CreateNewGroup", err)
		return map[string]string{}
	}
	return map[string]string{"name": resp.Name, "uuid": resp.UUID}
}

func (a *Access) GetTOTP(ctx context.Context, uuid string) string {
	totp, err := a.conn.GetTOTP(ctx, uuid)
	if err != nil {
		logFailure("GetTOTP", err)
		return ""
	}
	return totp
}

func (a *Access) DeleteEntry(ctx context.Context, uuid string) bool {
	if err := a.conn.DeleteEntry(ctx, uuid); err != nil {
		logFailure("DeleteEntry", err)
		return false
	}
	return true
}

func (a *Access) RequestAutotype(ctx context.Context, search string) bool {
	if err := a.conn.RequestAutotype(ctx, search); err != nil {
		logFailure("RequestAutotype", err)
		return false
	}
	return true
}

// PasskeysRegister returns the authenticator response, or nil.
func (a *Access) PasskeysRegister(ctx context.Context, publicKey json.RawMessage, origin string, keys []protocol.Key) json.RawMessage {
	resp, err := a.conn.PasskeysRegister(ctx, publicKey, origin, keys)
	if err != nil {
		logFailure("PasskeysRegister", err)
		return nil
	}
	return resp.Response
}

// PasskeysGet returns the authenticator response, or nil.
func (a *Access) PasskeysGet(ctx context.Context, publicKey json.RawMessage, origin string, keys []protocol.Key) json.RawMessage {
	resp, err := a.conn.PasskeysGet(ctx, publicKey, origin, keys)
	if err != nil {
		logFailure("PasskeysGet", err)
		return nil
	}
	return resp.Response
}

// ExportConnection returns the association as {"id", "key"} so another
// client can reuse it through the keys argument of GetLogins.
func (a *Access) ExportConnection() map[string]string {
	return map[string]string{
		"id":  a.AssociateID(),
		"key": a.IDKeyPublicKey(),
	}
}

// AssociateID returns the stored association id, or "".
func (a *Access) AssociateID() string {
	creds := a.conn.Credentials()
	if creds == nil {
		return ""
	}
	return creds.AssociateID
}

// IDKeyPublicKey returns the base64 idKey public key, or "" when not
// associated.
func (a *Access) IDKeyPublicKey() string {
	creds := a.conn.Credentials()
	if !creds.HasAssociation() {
		return ""
	}
	return crypto.EncodeKey(creds.IDKeyPublicKey)
}

// Shutdown writes pending credentials and closes the connection. The
// Access must not be used afterwards.
func (a *Access) Shutdown() error {
	err := a.saver.Flush()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Shutdown",
			"path":     a.store.Path,
			"error":    err.Error(),
		}).Error("Failed to save credentials")
	}
	a.saver.Close()
	a.conn.Close()
	a.sealer.Wipe()
	return err
}
