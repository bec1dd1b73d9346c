package testing

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/protocol"
)

var errorMessages = map[protocol.Code]string{
	protocol.CodeDatabaseNotOpened:        "Database not opened",
	protocol.CodeClientKeyMissing:         "Client public key not received",
	protocol.CodeCannotDecrypt:            "Cannot decrypt message",
	protocol.CodeActionDenied:             "Action cancelled or denied",
	protocol.CodeAssociationFailed:        "KeePassXC association failed, try again",
	protocol.CodeKeyChangeFailed:          "Key change was not successful",
	protocol.CodeIncorrectAction:          "Incorrect action",
	protocol.CodeNoURLProvided:            "No URL provided",
	protocol.CodeNoLoginsFound:            "No logins found",
	protocol.CodeCannotCreateGroup:        "Cannot create new group",
	protocol.CodeNoValidUUID:              "No valid UUID provided",
	protocol.CodePasskeysCredentialsEmpty: "No credentials found for passkey",
}

// wireRequest is any frame a client sends, handshake or encrypted.
type wireRequest struct {
	Action        protocol.Action `json:"action"`
	Message       string          `json:"message"`
	Nonce         string          `json:"nonce"`
	ClientID      string          `json:"clientID"`
	PublicKey     string          `json:"publicKey"`
	TriggerUnlock string          `json:"triggerUnlock"`
}

// handle answers one client frame on sess. Replies are queued before Write
// returns unless the action is dropped or delayed.
func (p *SimulatedPeer) handle(sess *peerSession, frame []byte) {
	var req wireRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SimulatedPeer.handle",
			"error":    err.Error(),
		}).Warn("Ignoring undecodable client frame")
		return
	}

	p.mu.Lock()
	dropped := p.dropped[req.Action]
	delay := p.delayed[req.Action]
	p.mu.Unlock()

	var reply []byte
	var after func()
	if !dropped {
		if req.Action == protocol.ActionChangePublicKeys {
			reply = p.exchangeKeys(req)
		} else {
			reply, after = p.handleEncrypted(req)
		}
	}

	p.mu.Lock()
	p.log = append(p.log, RequestRecord{
		Action:    req.Action,
		ClientID:  req.ClientID,
		Timestamp: time.Now(),
		Answered:  reply != nil,
	})
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SimulatedPeer.handle",
		"action":   string(req.Action),
		"answered": reply != nil,
		"delay":    delay,
	}).Debug("Simulated request handled")

	if reply == nil {
		return
	}
	deliver := func() {
		sess.push(reply)
		if after != nil {
			after()
		}
	}
	if delay > 0 {
		time.AfterFunc(delay, deliver)
		return
	}
	deliver()
}

func (p *SimulatedPeer) exchangeKeys(req wireRequest) []byte {
	p.mu.Lock()
	code, msg, version := p.rejectCode, p.rejectMsg, p.version
	p.mu.Unlock()

	if code != "" {
		return mustJSON(protocol.Inbound{Action: req.Action, ErrorCode: code, Error: msg})
	}

	clientKey, err := crypto.DecodeKey(req.PublicKey)
	if err != nil {
		return errorReply(req.Action, protocol.CodeKeyChangeFailed)
	}
	nonce, err := crypto.DecodeNonce(req.Nonce)
	if err != nil {
		return errorReply(req.Action, protocol.CodeKeyChangeFailed)
	}
	serverKeys, err := crypto.GenerateKeyPair()
	if err != nil {
		return errorReply(req.Action, protocol.CodeKeyChangeFailed)
	}
	shared, err := crypto.NewSharedBox(clientKey, serverKeys.Private)
	if err != nil {
		return errorReply(req.Action, protocol.CodeKeyChangeFailed)
	}

	p.mu.Lock()
	p.boxes[req.ClientID] = shared
	p.handshakes++
	p.mu.Unlock()

	return mustJSON(protocol.Inbound{
		Action:    req.Action,
		PublicKey: crypto.EncodeKey(serverKeys.Public),
		Nonce:     nonce.Incremented().String(),
		Success:   true,
		Version:   version,
	})
}

// handleEncrypted decrypts a request and builds the encrypted reply. The
// returned func, if any, runs after the reply has been queued.
func (p *SimulatedPeer) handleEncrypted(req wireRequest) ([]byte, func()) {
	p.mu.Lock()
	shared := p.boxes[req.ClientID]
	forced, isForced := p.forced[req.Action]
	tamper := p.tampered[req.Action]
	locked := p.locked
	version := p.version
	p.mu.Unlock()

	if shared == nil {
		return errorReply(req.Action, protocol.CodeClientKeyMissing), nil
	}
	nonce, err := crypto.DecodeNonce(req.Nonce)
	if err != nil {
		return errorReply(req.Action, protocol.CodeCannotDecrypt), nil
	}
	ciphertext, err := crypto.DecodeBytes(req.Message)
	if err != nil {
		return errorReply(req.Action, protocol.CodeCannotDecrypt), nil
	}
	plaintext, err := shared.Open(ciphertext, nonce)
	if err != nil {
		return errorReply(req.Action, protocol.CodeCannotDecrypt), nil
	}

	if isForced {
		return errorReply(req.Action, forced), nil
	}
	if locked && req.Action != protocol.ActionGeneratePassword {
		if req.Action != protocol.ActionGetDatabaseHash || req.TriggerUnlock != "true" {
			return errorReply(req.Action, protocol.CodeDatabaseNotOpened), nil
		}
		p.setLocked(false)
	}

	resp, code, after := p.respond(req.Action, plaintext, protocol.Version(version))
	if code != "" {
		return errorReply(req.Action, code), nil
	}

	replyNonce := nonce.Incremented()
	status := resp.Status()
	if status.Action == "" {
		status.Action = req.Action
	}
	status.Success = true
	status.Nonce = replyNonce.String()
	status.Version = version
	status.Hash = p.db.Hash()

	body, err := json.Marshal(resp)
	if err != nil {
		return errorReply(req.Action, protocol.CodeCannotEncrypt), nil
	}
	sealed, err := shared.Seal(body, replyNonce)
	if err != nil {
		return errorReply(req.Action, protocol.CodeCannotEncrypt), nil
	}
	if tamper {
		sealed[len(sealed)-1] ^= 0x01
	}

	return mustJSON(protocol.Inbound{
		Action:  req.Action,
		Message: crypto.EncodeBytes(sealed),
		Nonce:   replyNonce.String(),
	}), after
}

// respond runs one decrypted request against the simulated database. A
// non-empty code turns into an error reply.
func (p *SimulatedPeer) respond(action protocol.Action, plaintext []byte, version protocol.Version) (protocol.Response, protocol.Code, func()) {
	switch action {
	case protocol.ActionAssociate:
		var r protocol.AssociateRequest
		if json.Unmarshal(plaintext, &r) != nil || r.Key == "" || r.IDKey == "" {
			return nil, protocol.CodeAssociationFailed, nil
		}
		return &protocol.AssociateResponse{ID: p.associate(r.IDKey)}, "", nil

	case protocol.ActionGetDatabaseHash:
		return &protocol.DatabaseHashResponse{}, "", nil

	case protocol.ActionTestAssociate:
		var r protocol.TestAssociateRequest
		if json.Unmarshal(plaintext, &r) != nil || !p.associated(protocol.Key{ID: r.ID, Key: r.Key}) {
			return nil, protocol.CodeAssociationFailed, nil
		}
		return &protocol.TestAssociateResponse{ID: r.ID}, "", nil

	case protocol.ActionGetLogins:
		var r protocol.GetLoginsRequest
		if json.Unmarshal(plaintext, &r) != nil || !p.anyAssociated(r.Keys) {
			return nil, protocol.CodeAssociationFailed, nil
		}
		if r.URL == "" {
			return nil, protocol.CodeNoURLProvided, nil
		}
		entries := p.db.findLogins(r.URL)
		if len(entries) == 0 {
			return nil, protocol.CodeNoLoginsFound, nil
		}
		return &protocol.LoginsResponse{Count: len(entries), Entries: entries}, "", nil

	case protocol.ActionSetLogin:
		var r protocol.SetLoginRequest
		if json.Unmarshal(plaintext, &r) != nil || !p.hasAssociation(r.ID) {
			return nil, protocol.CodeAssociationFailed, nil
		}
		if !p.db.upsert(r) {
			return nil, protocol.CodeNoValidUUID, nil
		}
		return &protocol.Result{}, "", nil

	case protocol.ActionGetDatabaseGroups:
		return &protocol.GroupsResponse{Groups: p.db.Groups()}, "", nil

	case protocol.ActionGeneratePassword:
		password := randomPassword()
		if version.SupportsBarePassword() {
			return &protocol.GeneratePasswordResponse{Password: password}, "", nil
		}
		entries := []protocol.GeneratedEntry{{Login: fmt.Sprint(len(password) * 6), Password: password}}
		return &protocol.GeneratePasswordResponse{Entries: entries}, "", nil

	case protocol.ActionLockDatabase:
		resp := &protocol.LockResponse{Result: protocol.Result{Action: protocol.SignalDatabaseLocked}}
		return resp, "", func() { p.setLocked(true) }

	case protocol.ActionCreateNewGroup:
		var r protocol.CreateGroupRequest
		if json.Unmarshal(plaintext, &r) != nil {
			return nil, protocol.CodeCannotCreateGroup, nil
		}
		name, id, ok := p.db.CreateGroup(r.GroupName)
		if !ok {
			return nil, protocol.CodeCannotCreateGroup, nil
		}
		return &protocol.CreateGroupResponse{Name: name, UUID: id}, "", nil

	case protocol.ActionGetTOTP:
		var r protocol.EntryRequest
		if json.Unmarshal(plaintext, &r) != nil {
			return nil, protocol.CodeNoValidUUID, nil
		}
		e, ok := p.db.Entry(r.UUID)
		if !ok {
			return nil, protocol.CodeNoValidUUID, nil
		}
		return &protocol.TOTPResponse{TOTP: e.TOTP}, "", nil

	case protocol.ActionDeleteEntry:
		var r protocol.EntryRequest
		if json.Unmarshal(plaintext, &r) != nil || !p.db.remove(r.UUID) {
			return nil, protocol.CodeNoValidUUID, nil
		}
		return &protocol.DeleteEntryResponse{}, "", nil

	case protocol.ActionRequestAutotype:
		var r protocol.AutotypeRequest
		if json.Unmarshal(plaintext, &r) != nil {
			return nil, protocol.CodeIncorrectAction, nil
		}
		p.mu.Lock()
		p.autotype = append(p.autotype, r.GroupName)
		p.mu.Unlock()
		return &protocol.AutotypeResponse{}, "", nil

	case protocol.ActionPasskeysRegister, protocol.ActionPasskeysGet:
		var r protocol.PasskeysRequest
		if json.Unmarshal(plaintext, &r) != nil || !p.anyAssociated(r.Keys) {
			return nil, protocol.CodeAssociationFailed, nil
		}
		if r.Origin == "" {
			return nil, protocol.CodeNoURLProvided, nil
		}
		return &protocol.PasskeysResponse{Response: p.passkey(action, r.Origin)}, "", nil
	}

	return nil, protocol.CodeIncorrectAction, nil
}

func (p *SimulatedPeer) associate(idKey string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("simulated-client-%d", p.nextID)
	p.associations[id] = idKey
	return id
}

func (p *SimulatedPeer) associated(k protocol.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored, ok := p.associations[k.ID]
	return ok && k.Key != "" && stored == k.Key
}

func (p *SimulatedPeer) anyAssociated(keys []protocol.Key) bool {
	for _, k := range keys {
		if p.associated(k) {
			return true
		}
	}
	return false
}

func (p *SimulatedPeer) hasAssociation(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.associations[id]
	return ok
}

// passkey registers a credential for origin, or looks one up. A lookup
// without a stored credential answers with a numeric errorCode inside the
// response object.
func (p *SimulatedPeer) passkey(action protocol.Action, origin string) json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.passkeys[origin]
	if action == protocol.ActionPasskeysRegister {
		id = protocol.NewHexUUID()
		p.passkeys[origin] = id
	} else if !ok {
		return json.RawMessage(fmt.Sprintf(`{"errorCode":%s}`, protocol.CodePasskeysCredentialsEmpty))
	}
	return mustJSON(map[string]string{"id": id, "type": "public-key"})
}

// Autotypes returns the group names passed to request-autotype so far.
func (p *SimulatedPeer) Autotypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.autotype...)
}

func errorReply(action protocol.Action, code protocol.Code) []byte {
	return mustJSON(protocol.Inbound{Action: action, ErrorCode: code, Error: errorMessages[code]})
}

func randomPassword() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
