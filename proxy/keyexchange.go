package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/protocol"
	"github.com/opd-ai/kpxc/transport"
)

const opKeyExchange = string(protocol.ActionChangePublicKeys)

// exchangeKeys sends change-public-keys and reads the reply directly from
// the transport, before any reader goroutine exists. It runs with
// handshakeMu held. On failure credentials and state are left untouched.
func (c *Connection) exchangeKeys(ctx context.Context) error {
	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		return newError(KindHandshake, opKeyExchange, err)
	}
	nonce := c.handshakeNonce

	req := protocol.KeyExchangeRequest{
		Action:    protocol.ActionChangePublicKeys,
		PublicKey: crypto.EncodeKey(keys.Public),
		Nonce:     nonce.String(),
		ClientID:  c.clientID,
	}
	frame, err := json.Marshal(req)
	if err != nil {
		return newError(KindHandshake, opKeyExchange, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "exchangeKeys",
	}).WithFields(crypto.SecureFieldHash(keys.Public[:], "public_key")).Debug("Sending key exchange")

	c.metrics.request(protocol.ActionChangePublicKeys)
	if err := c.transport.Write(frame); err != nil {
		c.metrics.failure(KindTransport)
		return newError(KindTransport, opKeyExchange, err)
	}

	reply, err := c.awaitKeyExchangeReply(ctx)
	if err != nil {
		c.metrics.failure(kindOf(err))
		return err
	}

	serverKey, version, err := c.checkKeyExchangeReply(reply, nonce)
	if err != nil {
		c.metrics.failure(KindHandshake)
		return err
	}

	shared, err := crypto.NewSharedBox(serverKey, keys.Private)
	if err != nil {
		c.metrics.failure(KindHandshake)
		return newError(KindHandshake, opKeyExchange, err)
	}

	c.handshakeNonce.Increment()

	c.mu.Lock()
	c.box = shared
	c.peerVersion = version
	c.state = StateKeysExchanged
	c.mu.Unlock()

	var replaced *crypto.KeyPair
	c.setCredentials(func(cr *Credentials) {
		replaced = cr.OwnKeyPair
		cr.OwnKeyPair = keys
		cr.ServerPublicKey = serverKey
	})
	if replaced != nil && replaced != keys {
		_ = crypto.WipeKeyPair(replaced)
	}

	logrus.WithFields(logrus.Fields{
		"function": "exchangeKeys",
		"version":  string(version),
	}).WithFields(crypto.SecureFieldHash(serverKey[:], "server_key")).Info("Key exchange completed")

	return nil
}

type readResult struct {
	msg *protocol.Inbound
	err error
}

// awaitKeyExchangeReply reads frames until the handshake reply shows up,
// skipping signals and anything else that is not part of the exchange. The
// wait is bounded by the response timeout; on expiry the transport is
// closed so the blocked read returns.
func (c *Connection) awaitKeyExchangeReply(ctx context.Context) (*protocol.Inbound, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ResponseTimeoutDuration())
	defer cancel()

	result := make(chan readResult, 1)
	go func() {
		result <- c.readKeyExchangeReply()
	}()

	select {
	case r := <-result:
		return r.msg, r.err
	case <-ctx.Done():
		c.transport.Close()
		<-result
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newError(KindTimeout, opKeyExchange, ctx.Err())
		}
		return nil, newError(KindTransport, opKeyExchange, ctx.Err())
	}
}

func (c *Connection) readKeyExchangeReply() readResult {
	malformed := 0
	for {
		frame, err := c.transport.ReadObject()
		if err != nil && !errors.Is(err, transport.ErrMalformedFrame) {
			return readResult{err: newError(KindTransport, opKeyExchange, err)}
		}

		var msg *protocol.Inbound
		if err == nil {
			msg, err = protocol.DecodeInbound(frame)
		}
		if err != nil {
			malformed++
			c.metrics.malformed()
			logrus.WithFields(logrus.Fields{
				"function": "readKeyExchangeReply",
				"error":    err.Error(),
			}).Warn("Skipping malformed frame during key exchange")
			if malformed > c.config.MalformedThreshold {
				return readResult{err: newError(KindHandshake, opKeyExchange, ErrMalformedMessage)}
			}
			continue
		}
		malformed = 0

		switch {
		case msg.Action.IsSignal() && !msg.HasError():
			c.dispatchSignal(nil, msg.Action)
		case msg.Action == protocol.ActionChangePublicKeys, msg.Action == "" && (msg.PublicKey != "" || msg.HasError()):
			return readResult{msg: msg}
		default:
			logrus.WithFields(logrus.Fields{
				"function": "readKeyExchangeReply",
				"action":   string(msg.Action),
			}).Debug("Ignoring unrelated frame during key exchange")
		}
	}
}

func (c *Connection) checkKeyExchangeReply(reply *protocol.Inbound, sent crypto.Nonce) ([crypto.KeySize]byte, protocol.Version, error) {
	var zero [crypto.KeySize]byte

	if reply.HasError() || !bool(reply.Success) {
		logrus.WithFields(logrus.Fields{
			"function":   "exchangeKeys",
			"error_code": string(reply.ErrorCode),
			"error":      reply.Error,
		}).Warn("KeePassXC rejected key exchange")
		return zero, "", &Error{Kind: KindHandshake, Op: opKeyExchange, Code: string(reply.ErrorCode), Message: reply.Error}
	}

	if reply.Nonce != "" {
		got, err := crypto.DecodeNonce(reply.Nonce)
		if err != nil {
			return zero, "", newError(KindHandshake, opKeyExchange, err)
		}
		if got != sent.Incremented() {
			return zero, "", newError(KindHandshake, opKeyExchange, fmt.Errorf("reply nonce does not match request"))
		}
	}

	key, err := crypto.DecodeKey(reply.PublicKey)
	if err != nil {
		return zero, "", newError(KindHandshake, opKeyExchange, err)
	}
	return key, protocol.Version(reply.Version), nil
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}
