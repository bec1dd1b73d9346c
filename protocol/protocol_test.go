package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionClassification(t *testing.T) {
	assert.True(t, SignalDatabaseLocked.IsSignal())
	assert.True(t, SignalDatabaseUnlocked.IsSignal())
	assert.False(t, ActionLockDatabase.IsSignal())

	bounded := []Action{ActionChangePublicKeys, ActionGetDatabaseHash, ActionTestAssociate, ActionGetDatabaseGroups}
	for _, a := range bounded {
		assert.True(t, a.Bounded(), a)
	}
	for _, a := range []Action{ActionAssociate, ActionGetLogins, ActionSetLogin, ActionGeneratePassword, ActionPasskeysGet} {
		assert.False(t, a.Bounded(), a)
	}
}

func TestFlagAcceptsBothForms(t *testing.T) {
	tests := []struct {
		in   string
		want Flag
	}{
		{`"true"`, true},
		{`true`, true},
		{`"false"`, false},
		{`false`, false},
		{`null`, false},
	}
	for _, tt := range tests {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(tt.in), &f), tt.in)
		assert.Equal(t, tt.want, f, tt.in)
	}

	out, err := json.Marshal(Flag(true))
	require.NoError(t, err)
	assert.Equal(t, `"true"`, string(out))
}

func TestCodeAcceptsNumbers(t *testing.T) {
	var in Inbound
	require.NoError(t, json.Unmarshal([]byte(`{"action":"get-logins","errorCode":15,"error":"No logins found"}`), &in))
	assert.Equal(t, Code("15"), in.ErrorCode)
	assert.True(t, in.HasError())

	require.NoError(t, json.Unmarshal([]byte(`{"errorCode":"1"}`), &in))
	assert.Equal(t, Code("1"), in.ErrorCode)
}

func TestDecodeInbound(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"action":"database-locked"}`))
	require.NoError(t, err)
	assert.True(t, in.Action.IsSignal())
	assert.False(t, in.HasError())

	_, err = DecodeInbound([]byte(`{}`))
	assert.Error(t, err)

	_, err = DecodeInbound([]byte(`{"action":`))
	assert.Error(t, err)
}

func TestEncryptedEnvelopeOmitsTriggerUnlock(t *testing.T) {
	out, err := json.Marshal(EncryptedEnvelope{Action: ActionGetLogins, Message: "m", Nonce: "n", ClientID: "c"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "triggerUnlock")

	out, err = json.Marshal(EncryptedEnvelope{Action: ActionGetDatabaseHash, TriggerUnlock: "true"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"triggerUnlock":"true"`)
}

func TestRequestBodies(t *testing.T) {
	t.Run("associate", func(t *testing.T) {
		body, err := json.Marshal(NewAssociate("k", "i"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"action":"associate","key":"k","idKey":"i"}`, string(body))
	})

	t.Run("database hash", func(t *testing.T) {
		plain := NewDatabaseHash(false)
		assert.False(t, plain.UnlockRequested())
		body, _ := json.Marshal(plain)
		assert.JSONEq(t, `{"action":"get-databasehash"}`, string(body))

		unlock := NewDatabaseHash(true)
		assert.True(t, unlock.UnlockRequested())
	})

	t.Run("set-login is stamped", func(t *testing.T) {
		req, err := NewSetLogin(Login{URL: "https://example.com", Login: "user", Password: "pw"})
		require.NoError(t, err)
		var s Stamper = req
		s.Stamp("bm9uY2U=", "Y2xpZW50")
		body, _ := json.Marshal(req)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &m))
		assert.Equal(t, "set-login", m["action"])
		assert.Equal(t, "bm9uY2U=", m["nonce"])
		assert.Equal(t, "", m["uuid"])
		assert.Equal(t, "", m["groupUuid"])
	})

	t.Run("generate-password echoes client id", func(t *testing.T) {
		req := NewGeneratePassword()
		req.Stamp("n", "c")
		body, _ := json.Marshal(req)
		assert.JSONEq(t, `{"action":"generate-password","nonce":"n","clientID":"c"}`, string(body))
	})

	t.Run("get-logins rejects malformed keys", func(t *testing.T) {
		_, err := NewGetLogins("https://x", "", false, []Key{{ID: "id"}})
		assert.ErrorIs(t, err, ErrMalformedKey)

		req, err := NewGetLogins("https://x", "", true, nil)
		require.NoError(t, err)
		body, _ := json.Marshal(req)
		assert.Contains(t, string(body), `"keys":[]`)
	})

	t.Run("entry requests validate uuid", func(t *testing.T) {
		_, err := NewEntryRequest(ActionGetTOTP, "not-a-uuid")
		assert.Error(t, err)

		id := NewHexUUID()
		assert.Len(t, id, 32)
		req, err := NewEntryRequest(ActionDeleteEntry, id)
		require.NoError(t, err)
		assert.Equal(t, ActionDeleteEntry, req.Name())
	})

	t.Run("passkeys", func(t *testing.T) {
		_, err := NewPasskeys(ActionGetLogins, json.RawMessage(`{}`), "https://x", nil)
		assert.Error(t, err)
		_, err = NewPasskeys(ActionPasskeysGet, json.RawMessage(`{`), "https://x", nil)
		assert.Error(t, err)
		req, err := NewPasskeys(ActionPasskeysRegister, json.RawMessage(`{"challenge":"abc"}`), "https://x", nil)
		require.NoError(t, err)
		body, _ := json.Marshal(req)
		assert.Contains(t, string(body), `"publicKey":{"challenge":"abc"}`)
	})
}

func TestGeneratedPasswordByVersion(t *testing.T) {
	legacy := &GeneratePasswordResponse{Entries: []GeneratedEntry{{Password: "old"}}}
	bare := &GeneratePasswordResponse{Password: "new"}
	both := &GeneratePasswordResponse{Password: "new", Entries: []GeneratedEntry{{Password: "old"}}}

	p, err := legacy.GeneratedPassword("2.6.6")
	require.NoError(t, err)
	assert.Equal(t, "old", p)

	p, err = bare.GeneratedPassword("2.7.0")
	require.NoError(t, err)
	assert.Equal(t, "new", p)

	p, _ = both.GeneratedPassword("2.7.4")
	assert.Equal(t, "new", p)
	p, _ = both.GeneratedPassword("2.6.0")
	assert.Equal(t, "old", p)

	p, err = legacy.GeneratedPassword("2.7.1")
	require.NoError(t, err, "shape mismatch falls back")
	assert.Equal(t, "old", p)

	_, err = (&GeneratePasswordResponse{}).GeneratedPassword("2.7.0")
	assert.ErrorIs(t, err, ErrNoPassword)
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		v    Version
		min  string
		want bool
	}{
		{"2.7.0", "2.7.0", true},
		{"2.7.6", "2.7.0", true},
		{"2.6.6", "2.7.0", false},
		{"2.10.0", "2.7.0", true},
		{"2.7.0-snapshot", "2.7.0", true},
		{"", "2.7.0", false},
		{"garbage", "2.7.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.AtLeast(tt.min), "%s >= %s", tt.v, tt.min)
	}
	assert.True(t, Version("2.7.4").Valid())
	assert.False(t, Version("x").Valid())
}

func TestGroupTreeFlatten(t *testing.T) {
	raw := `{"groups":[{"name":"Root","uuid":"r","children":[
		{"name":"Email","uuid":"e","children":[]},
		{"name":"Work","uuid":"w","children":[{"name":"VPN","uuid":"v","children":[]}]}
	]}]}`
	var tree GroupTree
	require.NoError(t, json.Unmarshal([]byte(raw), &tree))

	assert.Equal(t, map[string]string{"Email": "e", "Work": "w", "VPN": "v"}, tree.Flatten())

	g, ok := tree.Find([]string{"Work", "VPN"})
	require.True(t, ok)
	assert.Equal(t, "v", g.UUID)

	_, ok = tree.Find([]string{"Missing"})
	assert.False(t, ok)

	assert.Empty(t, GroupTree{}.Flatten())
}

func TestLockResponseLocked(t *testing.T) {
	assert.True(t, (&LockResponse{Result{Success: true}}).Locked())
	assert.True(t, (&LockResponse{Result{Action: SignalDatabaseLocked, Success: true}}).Locked())
	assert.False(t, (&LockResponse{Result{Action: SignalDatabaseLocked}}).Locked())
	assert.False(t, (&LockResponse{}).Locked())
}

func TestPasskeysResponseErrorCode(t *testing.T) {
	r := &PasskeysResponse{Response: json.RawMessage(`{"errorCode":21}`)}
	assert.Equal(t, Code("21"), r.ResponseErrorCode())

	ok := &PasskeysResponse{Response: json.RawMessage(`{"id":"abc"}`)}
	assert.Equal(t, Code(""), ok.ResponseErrorCode())
}
