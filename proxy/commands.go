package proxy

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/protocol"
)

// Associate registers this client with the open database. KeePassXC asks
// the user to confirm and name the connection, so there is no timeout
// beyond ctx. On success the credentials gain the new associate id and
// idKey.
func (c *Connection) Associate(ctx context.Context) error {
	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()

	creds := c.Credentials()
	if creds == nil || creds.OwnKeyPair == nil {
		return newError(KindIllegalState, string(protocol.ActionAssociate), ErrNotConnected)
	}

	idKeys, err := crypto.GenerateKeyPair()
	if err != nil {
		return newError(KindIllegalState, string(protocol.ActionAssociate), err)
	}

	req := protocol.NewAssociate(crypto.EncodeKey(creds.OwnKeyPair.Public), crypto.EncodeKey(idKeys.Public))
	var resp protocol.AssociateResponse
	if err := c.call(ctx, req, &resp, needKeys); err != nil {
		return err
	}

	c.setCredentials(func(cr *Credentials) {
		cr.AssociateID = resp.ID
		cr.IDKeyPublicKey = idKeys.Public
	})
	c.promote()

	logrus.WithFields(logrus.Fields{
		"function":     "Associate",
		"associate_id": resp.ID,
	}).Info("Associated with KeePassXC database")
	return nil
}

// TestAssociate checks that id and key still grant access. When they are
// the stored association the session moves to StateAssociated.
func (c *Connection) TestAssociate(ctx context.Context, id, key string) error {
	var resp protocol.TestAssociateResponse
	if err := c.call(ctx, protocol.NewTestAssociate(id, key), &resp, needKeys); err != nil {
		return err
	}

	creds := c.Credentials()
	if creds.HasAssociation() && creds.AssociateID == id && crypto.EncodeKey(creds.IDKeyPublicKey) == key {
		c.promote()
	}
	return nil
}

// promote moves a keyed session to StateAssociated.
func (c *Connection) promote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateKeysExchanged {
		c.state = StateAssociated
	}
}

// GetDatabaseHash returns the hash identifying the active database. With
// triggerUnlock KeePassXC comes to the foreground and asks for the master
// password if the database is locked.
func (c *Connection) GetDatabaseHash(ctx context.Context, triggerUnlock bool) (string, error) {
	var resp protocol.DatabaseHashResponse
	if err := c.call(ctx, protocol.NewDatabaseHash(triggerUnlock), &resp, needKeys); err != nil {
		return "", err
	}
	return resp.Hash, nil
}

// ownKeys returns the stored association as a get-logins key list.
func (c *Connection) ownKeys() []protocol.Key {
	creds := c.Credentials()
	if !creds.HasAssociation() {
		return nil
	}
	return []protocol.Key{{ID: creds.AssociateID, Key: crypto.EncodeKey(creds.IDKeyPublicKey)}}
}

// GetLogins looks up credentials for url. An empty keys list means this
// client's own association and requires one; explicit keys, such as those
// exported by another client, only need a completed key exchange.
func (c *Connection) GetLogins(ctx context.Context, url, submitURL string, httpAuth bool, keys []protocol.Key) (*protocol.LoginsResponse, error) {
	need := needKeys
	if len(keys) == 0 {
		keys = c.ownKeys()
		need = needAssociation
	}
	req, err := protocol.NewGetLogins(url, submitURL, httpAuth, keys)
	if err != nil {
		return nil, newError(KindIllegalState, string(protocol.ActionGetLogins), err)
	}

	var resp protocol.LoginsResponse
	if err := c.call(ctx, req, &resp, need); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetLogin stores a new entry or, when l.UUID is set, updates one.
func (c *Connection) SetLogin(ctx context.Context, l protocol.Login) error {
	if l.ID == "" {
		if creds := c.Credentials(); creds != nil {
			l.ID = creds.AssociateID
		}
	}
	req, err := protocol.NewSetLogin(l)
	if err != nil {
		return newError(KindIllegalState, string(protocol.ActionSetLogin), err)
	}

	var resp protocol.Result
	return c.call(ctx, req, &resp, needAssociation)
}

// GetDatabaseGroups returns the group tree of the active database.
func (c *Connection) GetDatabaseGroups(ctx context.Context) (protocol.GroupTree, error) {
	var resp protocol.GroupsResponse
	if err := c.call(ctx, protocol.NewSimple(protocol.ActionGetDatabaseGroups), &resp, needAssociation); err != nil {
		return protocol.GroupTree{}, err
	}
	return resp.Groups, nil
}

// GeneratePassword asks KeePassXC's generator for a password, reading it
// from the reply shape the peer version uses.
func (c *Connection) GeneratePassword(ctx context.Context) (string, error) {
	var resp protocol.GeneratePasswordResponse
	if err := c.call(ctx, protocol.NewGeneratePassword(), &resp, needAssociation); err != nil {
		return "", err
	}

	password, err := resp.GeneratedPassword(c.PeerVersion())
	if err != nil {
		return "", &Error{Kind: KindApplication, Op: string(protocol.ActionGeneratePassword), Err: err}
	}
	return password, nil
}

// LockDatabase locks the active database. It reports whether KeePassXC
// confirmed the lock.
func (c *Connection) LockDatabase(ctx context.Context) (bool, error) {
	var resp protocol.LockResponse
	if err := c.call(ctx, protocol.NewSimple(protocol.ActionLockDatabase), &resp, needAssociation); err != nil {
		return false, err
	}
	return resp.Locked(), nil
}

// CreateNewGroup creates the group at path, including missing parents.
// An existing group is returned unchanged.
func (c *Connection) CreateNewGroup(ctx context.Context, path string) (*protocol.CreateGroupResponse, error) {
	var resp protocol.CreateGroupResponse
	if err := c.call(ctx, protocol.NewCreateGroup(path), &resp, needAssociation); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTOTP returns the current TOTP of an entry, or "" when the entry has
// none configured.
func (c *Connection) GetTOTP(ctx context.Context, uuid string) (string, error) {
	req, err := protocol.NewEntryRequest(protocol.ActionGetTOTP, uuid)
	if err != nil {
		return "", newError(KindIllegalState, string(protocol.ActionGetTOTP), err)
	}

	var resp protocol.TOTPResponse
	if err := c.call(ctx, req, &resp, needAssociation); err != nil {
		return "", err
	}
	return resp.TOTP, nil
}

// DeleteEntry removes an entry. KeePassXC asks the user to confirm.
func (c *Connection) DeleteEntry(ctx context.Context, uuid string) error {
	req, err := protocol.NewEntryRequest(protocol.ActionDeleteEntry, uuid)
	if err != nil {
		return newError(KindIllegalState, string(protocol.ActionDeleteEntry), err)
	}

	var resp protocol.DeleteEntryResponse
	return c.call(ctx, req, &resp, needAssociation)
}

// RequestAutotype starts global Auto-Type for groupName.
func (c *Connection) RequestAutotype(ctx context.Context, groupName string) error {
	var resp protocol.AutotypeResponse
	return c.call(ctx, protocol.NewAutotype(groupName), &resp, needAssociation)
}

// PasskeysRegister forwards a WebAuthn credential creation request.
func (c *Connection) PasskeysRegister(ctx context.Context, publicKey json.RawMessage, origin string, keys []protocol.Key) (*protocol.PasskeysResponse, error) {
	return c.passkeys(ctx, protocol.ActionPasskeysRegister, publicKey, origin, keys)
}

// PasskeysGet forwards a WebAuthn assertion request.
func (c *Connection) PasskeysGet(ctx context.Context, publicKey json.RawMessage, origin string, keys []protocol.Key) (*protocol.PasskeysResponse, error) {
	return c.passkeys(ctx, protocol.ActionPasskeysGet, publicKey, origin, keys)
}

func (c *Connection) passkeys(ctx context.Context, action protocol.Action, publicKey json.RawMessage, origin string, keys []protocol.Key) (*protocol.PasskeysResponse, error) {
	need := needKeys
	if len(keys) == 0 {
		keys = c.ownKeys()
		need = needAssociation
	}
	req, err := protocol.NewPasskeys(action, publicKey, origin, keys)
	if err != nil {
		return nil, newError(KindIllegalState, string(action), err)
	}

	var resp protocol.PasskeysResponse
	if err := c.call(ctx, req, &resp, need); err != nil {
		return nil, err
	}
	if code := resp.ResponseErrorCode(); code != "" {
		return &resp, &Error{Kind: KindApplication, Op: string(action), Code: string(code)}
	}
	return &resp, nil
}
