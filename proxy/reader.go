package proxy

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/protocol"
	"github.com/opd-ai/kpxc/transport"
)

// readLoop drains the transport for one generation. Signals go straight to
// the signal handler; everything else lands in the inbox. The loop ends on
// a hard read error or when too many consecutive frames fail to decode.
func (c *Connection) readLoop(g *generation) {
	defer close(g.done)

	malformed := 0
	for {
		frame, err := c.transport.ReadObject()
		if err != nil && !errors.Is(err, transport.ErrMalformedFrame) {
			c.handleTransportLoss(g, err)
			return
		}

		var msg *protocol.Inbound
		if err == nil {
			msg, err = protocol.DecodeInbound(frame)
		}
		if err != nil {
			malformed++
			c.metrics.malformed()
			logrus.WithFields(logrus.Fields{
				"function":    "readLoop",
				"generation":  g.id,
				"consecutive": malformed,
				"error":       err.Error(),
			}).Warn("Discarding malformed frame")

			if malformed > c.config.MalformedThreshold {
				c.handleTransportLoss(g, &Error{
					Kind: KindMalformedMessage,
					Op:   "read",
					Err:  fmt.Errorf("%d consecutive malformed frames", malformed),
				})
				return
			}
			continue
		}
		malformed = 0

		if msg.Action.IsSignal() && !msg.HasError() {
			c.dispatchSignal(g, msg.Action)
			continue
		}

		logrus.WithFields(logrus.Fields{
			"function":   "readLoop",
			"generation": g.id,
			"action":     string(msg.Action),
		}).Debug("Queued response")
		g.inbox.push(msg)
	}
}

// dispatchSignal runs the signal handler. g is nil during the key exchange,
// before any reader exists.
func (c *Connection) dispatchSignal(g *generation, action protocol.Action) {
	c.metrics.signal(action)
	logrus.WithFields(logrus.Fields{
		"function": "dispatchSignal",
		"signal":   string(action),
	}).Info("Received signal")

	if c.onSignal == nil {
		return
	}
	if g != nil {
		g.inSignal.Store(true)
		defer g.inSignal.Store(false)
	}
	c.onSignal(action)
}
