package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/protocol"
)

// requirement is the minimum session progress a command needs.
type requirement int

const (
	needKeys requirement = iota
	needAssociation
)

// call encrypts req, sends it and waits for the matching response, which is
// decrypted into out. Bounded actions give up after the response timeout;
// all others wait until ctx ends or the transport fails.
func (c *Connection) call(ctx context.Context, req protocol.Request, out protocol.Response, need requirement) error {
	action := req.Name()
	op := string(action)

	err := c.roundTrip(ctx, req, out, need)
	if err != nil {
		c.metrics.failure(kindOf(err))
		logrus.WithFields(logrus.Fields{
			"function": "call",
			"action":   op,
			"error":    err.Error(),
		}).Debug("Request failed")
	}
	return err
}

func (c *Connection) roundTrip(ctx context.Context, req protocol.Request, out protocol.Response, need requirement) error {
	action := req.Name()
	op := string(action)

	c.mu.RLock()
	closed, state, box, g := c.closed, c.state, c.box, c.gen
	creds := c.credentials
	c.mu.RUnlock()

	switch {
	case closed:
		return newError(KindIllegalState, op, ErrClosed)
	case state == StateDisconnected || box == nil || g == nil || g.lost:
		return newError(KindIllegalState, op, ErrNotConnected)
	case need == needAssociation && !creds.HasAssociation():
		return newError(KindIllegalState, op, ErrNotAssociated)
	}

	nonce, err := crypto.GenerateNonce()
	if err != nil {
		return newError(KindIllegalState, op, err)
	}
	frame, err := c.seal(req, box, nonce)
	if errors.Is(err, crypto.ErrBoxWiped) {
		return newError(KindIllegalState, op, ErrNotConnected)
	}
	if err != nil {
		return newError(KindIllegalState, op, err)
	}

	if action.Bounded() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ResponseTimeoutDuration())
		defer cancel()
	}

	start := time.Now()
	c.metrics.request(action)
	if err := c.transport.Write(frame); err != nil {
		c.handleTransportLoss(g, err)
		return newError(KindTransport, op, err)
	}

	expected := nonce.Incremented()
	msg, err := g.inbox.await(ctx, action, expected.String())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newError(KindTimeout, op, err)
		}
		return err
	}
	c.metrics.observe(action, time.Since(start))

	if msg.HasError() {
		return &Error{Kind: KindApplication, Op: op, Code: string(msg.ErrorCode), Message: msg.Error}
	}

	return c.open(op, msg, box, expected, out)
}

// seal builds the cleartext envelope around the encrypted request body.
func (c *Connection) seal(req protocol.Request, box *crypto.SharedBox, nonce crypto.Nonce) ([]byte, error) {
	if s, ok := req.(protocol.Stamper); ok {
		s.Stamp(nonce.String(), c.clientID)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	ciphertext, err := box.Seal(body, nonce)
	if err != nil {
		return nil, err
	}

	env := protocol.EncryptedEnvelope{
		Action:   req.Name(),
		Message:  crypto.EncodeBytes(ciphertext),
		Nonce:    nonce.String(),
		ClientID: c.clientID,
	}
	if u, ok := req.(protocol.Unlocker); ok && u.UnlockRequested() {
		env.TriggerUnlock = "true"
	}
	return json.Marshal(env)
}

// open decrypts a response and checks its success marker. Nothing is
// written to out unless the ciphertext authenticates.
func (c *Connection) open(op string, msg *protocol.Inbound, box *crypto.SharedBox, expected crypto.Nonce, out protocol.Response) error {
	ciphertext, err := crypto.DecodeBytes(msg.Message)
	if err != nil {
		return newError(KindDecryption, op, err)
	}
	plaintext, err := box.Open(ciphertext, expected)
	if errors.Is(err, crypto.ErrBoxWiped) {
		return newError(KindTransport, op, ErrClosed)
	}
	if err != nil {
		return newError(KindDecryption, op, err)
	}
	defer crypto.ZeroBytes(plaintext)

	if err := json.Unmarshal(plaintext, out); err != nil {
		return newError(KindDecryption, op, err)
	}

	status := out.Status()
	if !bool(status.Success) {
		code, text := status.ErrorCode, status.Error
		if code == "" && text == "" {
			code, text = msg.ErrorCode, msg.Error
		}
		return &Error{Kind: KindApplication, Op: op, Code: string(code), Message: text}
	}
	if status.Nonce != "" && status.Nonce != expected.String() {
		return newError(KindDecryption, op, errors.New("response nonce does not match request"))
	}
	return nil
}
