package testing

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/protocol"
)

const testClientID = "test-client"

type testClient struct {
	t    *testing.T
	peer *SimulatedPeer
	box  *crypto.SharedBox
}

func connectClient(t *testing.T, p *SimulatedPeer) *testClient {
	t.Helper()
	require.NoError(t, p.Open(context.Background()))

	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	nonce, err := crypto.GenerateNonce()
	require.NoError(t, err)

	require.NoError(t, p.Write(mustJSON(protocol.KeyExchangeRequest{
		Action:    protocol.ActionChangePublicKeys,
		PublicKey: crypto.EncodeKey(keys.Public),
		Nonce:     nonce.String(),
		ClientID:  testClientID,
	})))

	reply := readInbound(t, p)
	require.True(t, bool(reply.Success))
	assert.Equal(t, nonce.Incremented().String(), reply.Nonce)
	assert.Equal(t, DefaultVersion, reply.Version)

	serverKey, err := crypto.DecodeKey(reply.PublicKey)
	require.NoError(t, err)
	box, err := crypto.NewSharedBox(serverKey, keys.Private)
	require.NoError(t, err)

	return &testClient{t: t, peer: p, box: box}
}

func readInbound(t *testing.T, p *SimulatedPeer) *protocol.Inbound {
	t.Helper()
	frame, err := p.ReadObject()
	require.NoError(t, err)
	in, err := protocol.DecodeInbound(frame)
	require.NoError(t, err)
	return in
}

// send encrypts req, writes it and returns the first frame queued after it.
func (c *testClient) send(req protocol.Request, triggerUnlock bool) (*protocol.Inbound, crypto.Nonce) {
	c.t.Helper()
	nonce, err := crypto.GenerateNonce()
	require.NoError(c.t, err)
	body, err := json.Marshal(req)
	require.NoError(c.t, err)
	sealed, err := c.box.Seal(body, nonce)
	require.NoError(c.t, err)

	env := protocol.EncryptedEnvelope{
		Action:   req.Name(),
		Message:  crypto.EncodeBytes(sealed),
		Nonce:    nonce.String(),
		ClientID: testClientID,
	}
	if triggerUnlock {
		env.TriggerUnlock = "true"
	}
	require.NoError(c.t, c.peer.Write(mustJSON(env)))
	return readInbound(c.t, c.peer), nonce
}

func (c *testClient) open(in *protocol.Inbound, sent crypto.Nonce, out interface{}) error {
	c.t.Helper()
	require.Equal(c.t, sent.Incremented().String(), in.Nonce)
	ciphertext, err := crypto.DecodeBytes(in.Message)
	require.NoError(c.t, err)
	plaintext, err := c.box.Open(ciphertext, sent.Incremented())
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, out)
}

func (c *testClient) associate() protocol.Key {
	c.t.Helper()
	idKeys, err := crypto.GenerateKeyPair()
	require.NoError(c.t, err)
	idKey := crypto.EncodeKey(idKeys.Public)

	in, nonce := c.send(protocol.NewAssociate("client-key", idKey), false)
	var resp protocol.AssociateResponse
	require.NoError(c.t, c.open(in, nonce, &resp))
	require.True(c.t, bool(resp.Success))
	require.NotEmpty(c.t, resp.ID)
	return protocol.Key{ID: resp.ID, Key: idKey}
}

func TestSimulatedPeerHandshake(t *testing.T) {
	p := NewSimulatedPeer(nil)
	connectClient(t, p)

	assert.True(t, p.IsOpen())
	assert.Equal(t, 1, p.Handshakes())
	assert.Equal(t, 1, p.Opens())
	assert.Equal(t, 1, p.RequestCount(protocol.ActionChangePublicKeys))
}

func TestSimulatedPeerRejectHandshake(t *testing.T) {
	p := NewSimulatedPeer(nil)
	p.RejectHandshake(protocol.CodeKeyChangeFailed, "rejected")
	require.NoError(t, p.Open(context.Background()))

	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, p.Write(mustJSON(protocol.KeyExchangeRequest{
		Action:    protocol.ActionChangePublicKeys,
		PublicKey: crypto.EncodeKey(keys.Public),
		Nonce:     "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		ClientID:  testClientID,
	})))

	reply := readInbound(t, p)
	assert.Equal(t, protocol.CodeKeyChangeFailed, reply.ErrorCode)
	assert.Equal(t, "rejected", reply.Error)
	assert.False(t, bool(reply.Success))
	assert.Equal(t, 0, p.Handshakes())
}

func TestSimulatedPeerLoginRoundTrip(t *testing.T) {
	db := NewDatabase()
	db.AddEntry("https://example.com/login", "alice", "s3cret")
	p := NewSimulatedPeer(db)
	c := connectClient(t, p)
	key := c.associate()

	req, err := protocol.NewGetLogins("https://example.com", "", false, []protocol.Key{key})
	require.NoError(t, err)
	in, nonce := c.send(req, false)

	var resp protocol.LoginsResponse
	require.NoError(t, c.open(in, nonce, &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "alice", resp.Entries[0].Login)
	assert.Equal(t, "s3cret", resp.Entries[0].Password)
	assert.Equal(t, db.Hash(), resp.Hash)
}

func TestSimulatedPeerGetLoginsUnassociated(t *testing.T) {
	p := NewSimulatedPeer(nil)
	c := connectClient(t, p)

	req, err := protocol.NewGetLogins("https://example.com", "", false, []protocol.Key{{ID: "x", Key: "y"}})
	require.NoError(t, err)
	in, _ := c.send(req, false)

	assert.Equal(t, protocol.CodeAssociationFailed, in.ErrorCode)
	assert.Empty(t, in.Nonce)
}

func TestSimulatedPeerLockedDatabase(t *testing.T) {
	p := NewSimulatedPeer(nil)
	c := connectClient(t, p)
	key := c.associate()

	p.LockDatabase()
	signal := readInbound(t, p)
	assert.Equal(t, protocol.SignalDatabaseLocked, signal.Action)
	assert.True(t, p.Locked())

	req, err := protocol.NewGetLogins("https://example.com", "", false, []protocol.Key{key})
	require.NoError(t, err)
	in, _ := c.send(req, false)
	assert.Equal(t, protocol.CodeDatabaseNotOpened, in.ErrorCode)

	in, nonce := c.send(protocol.NewDatabaseHash(true), true)
	assert.Equal(t, protocol.SignalDatabaseUnlocked, in.Action)
	assert.False(t, p.Locked())

	in = readInbound(t, p)
	var resp protocol.DatabaseHashResponse
	require.NoError(t, c.open(in, nonce, &resp))
	assert.Equal(t, p.Database().Hash(), resp.Hash)
}

func TestSimulatedPeerLockAction(t *testing.T) {
	p := NewSimulatedPeer(nil)
	c := connectClient(t, p)
	c.associate()

	in, nonce := c.send(protocol.NewSimple(protocol.ActionLockDatabase), false)
	assert.Equal(t, protocol.ActionLockDatabase, in.Action)
	var resp protocol.LockResponse
	require.NoError(t, c.open(in, nonce, &resp))
	assert.True(t, resp.Locked())

	signal := readInbound(t, p)
	assert.Equal(t, protocol.SignalDatabaseLocked, signal.Action)
	assert.True(t, p.Locked())
}

func TestSimulatedPeerUnknownClient(t *testing.T) {
	p := NewSimulatedPeer(nil)
	require.NoError(t, p.Open(context.Background()))

	require.NoError(t, p.Write(mustJSON(protocol.EncryptedEnvelope{
		Action:   protocol.ActionGetDatabaseHash,
		Message:  "AAAA",
		Nonce:    "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		ClientID: "stranger",
	})))

	in := readInbound(t, p)
	assert.Equal(t, protocol.CodeClientKeyMissing, in.ErrorCode)
}

func TestSimulatedPeerDropAction(t *testing.T) {
	p := NewSimulatedPeer(nil)
	c := connectClient(t, p)
	p.DropAction(protocol.ActionGetDatabaseHash, true)

	body, err := json.Marshal(protocol.NewDatabaseHash(false))
	require.NoError(t, err)
	nonce, err := crypto.GenerateNonce()
	require.NoError(t, err)
	sealed, err := c.box.Seal(body, nonce)
	require.NoError(t, err)
	require.NoError(t, p.Write(mustJSON(protocol.EncryptedEnvelope{
		Action:   protocol.ActionGetDatabaseHash,
		Message:  crypto.EncodeBytes(sealed),
		Nonce:    nonce.String(),
		ClientID: testClientID,
	})))

	p.InjectSignal(protocol.SignalDatabaseUnlocked)
	in := readInbound(t, p)
	assert.Equal(t, protocol.SignalDatabaseUnlocked, in.Action)

	records := p.Requests()
	require.Len(t, records, 2)
	assert.Equal(t, protocol.ActionGetDatabaseHash, records[1].Action)
	assert.False(t, records[1].Answered)
}

func TestSimulatedPeerFailAction(t *testing.T) {
	p := NewSimulatedPeer(nil)
	c := connectClient(t, p)
	p.FailAction(protocol.ActionGetDatabaseHash, protocol.CodeActionDenied)

	in, _ := c.send(protocol.NewDatabaseHash(false), false)
	assert.Equal(t, protocol.CodeActionDenied, in.ErrorCode)

	p.FailAction(protocol.ActionGetDatabaseHash, "")
	in, nonce := c.send(protocol.NewDatabaseHash(false), false)
	var resp protocol.DatabaseHashResponse
	require.NoError(t, c.open(in, nonce, &resp))
}

func TestSimulatedPeerTamperAction(t *testing.T) {
	p := NewSimulatedPeer(nil)
	c := connectClient(t, p)
	p.TamperAction(protocol.ActionGetDatabaseHash, true)

	in, nonce := c.send(protocol.NewDatabaseHash(false), false)
	var resp protocol.DatabaseHashResponse
	assert.ErrorIs(t, c.open(in, nonce, &resp), crypto.ErrAuthentication)
}

func TestSimulatedPeerDelayAction(t *testing.T) {
	p := NewSimulatedPeer(nil)
	c := connectClient(t, p)
	p.DelayAction(protocol.ActionGetDatabaseHash, 20*time.Millisecond)

	start := time.Now()
	in, nonce := c.send(protocol.NewDatabaseHash(false), false)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	var resp protocol.DatabaseHashResponse
	require.NoError(t, c.open(in, nonce, &resp))
}

func TestSimulatedPeerGeneratePasswordShapes(t *testing.T) {
	p := NewSimulatedPeer(nil)
	c := connectClient(t, p)

	in, nonce := c.send(protocol.NewGeneratePassword(), false)
	var bare protocol.GeneratePasswordResponse
	require.NoError(t, c.open(in, nonce, &bare))
	assert.NotEmpty(t, bare.Password)
	assert.Empty(t, bare.Entries)

	p.SetVersion("2.6.6")
	in, nonce = c.send(protocol.NewGeneratePassword(), false)
	var legacy protocol.GeneratePasswordResponse
	require.NoError(t, c.open(in, nonce, &legacy))
	assert.Empty(t, legacy.Password)
	require.Len(t, legacy.Entries, 1)
	assert.NotEmpty(t, legacy.Entries[0].Password)
}

func TestSimulatedPeerPasskeys(t *testing.T) {
	p := NewSimulatedPeer(nil)
	c := connectClient(t, p)
	key := c.associate()
	options := json.RawMessage(`{"challenge":"abc"}`)

	get, err := protocol.NewPasskeys(protocol.ActionPasskeysGet, options, "https://example.com", []protocol.Key{key})
	require.NoError(t, err)
	in, nonce := c.send(get, false)
	var missing protocol.PasskeysResponse
	require.NoError(t, c.open(in, nonce, &missing))
	assert.Equal(t, protocol.CodePasskeysCredentialsEmpty, missing.ResponseErrorCode())

	reg, err := protocol.NewPasskeys(protocol.ActionPasskeysRegister, options, "https://example.com", []protocol.Key{key})
	require.NoError(t, err)
	in, nonce = c.send(reg, false)
	var registered protocol.PasskeysResponse
	require.NoError(t, c.open(in, nonce, &registered))
	assert.Empty(t, registered.ResponseErrorCode())

	in, nonce = c.send(get, false)
	var found protocol.PasskeysResponse
	require.NoError(t, c.open(in, nonce, &found))
	assert.JSONEq(t, string(registered.Response), string(found.Response))
}

func TestSimulatedPeerKill(t *testing.T) {
	p := NewSimulatedPeer(nil)
	require.NoError(t, p.Open(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := p.ReadObject()
		done <- err
	}()

	p.Kill()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("ReadObject did not return after Kill")
	}
	assert.False(t, p.IsOpen())
	assert.ErrorIs(t, p.Write([]byte("{}")), ErrSessionClosed)
}

func TestSimulatedPeerOffline(t *testing.T) {
	p := NewSimulatedPeer(nil)
	p.SetOffline(true)
	assert.ErrorIs(t, p.Open(context.Background()), ErrPeerOffline)

	p.SetOffline(false)
	require.NoError(t, p.Open(context.Background()))
	require.NoError(t, p.Open(context.Background()))
	assert.Equal(t, 1, p.Opens())
}
