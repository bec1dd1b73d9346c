package proxy

import (
	"github.com/sirupsen/logrus"
)

// handleTransportLoss ends generation g: the session drops to
// StateDisconnected, waiters fail, the transport is closed and a reconnect
// is scheduled. Reports about a generation that already ended are ignored,
// so the reader and a failing writer can both call it.
func (c *Connection) handleTransportLoss(g *generation, cause error) {
	c.mu.Lock()
	if g.lost || c.gen != g {
		c.mu.Unlock()
		return
	}
	g.lost = true
	c.state = StateDisconnected
	closed := c.closed
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "handleTransportLoss",
		"generation": g.id,
		"error":      cause.Error(),
	}).Warn("Lost connection to KeePassXC")

	g.inbox.fail(newError(KindTransport, "read", cause))
	c.transport.Close()

	if !closed {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms the single reconnect slot, replacing any attempt
// that is already pending.
func (c *Connection) scheduleReconnect() {
	delay := c.config.ReconnectDelayDuration()
	if !c.reconnectSlot.Schedule(delay, c.reconnect) {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "scheduleReconnect",
		"delay":    delay.String(),
	}).Info("Reconnect scheduled")
}

// reconnect runs on the slot's timer goroutine. A failed attempt schedules
// the next one; there is no retry limit.
func (c *Connection) reconnect() {
	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()

	if c.isClosed() {
		return
	}
	if c.State() != StateDisconnected {
		return
	}

	c.metrics.reconnect()
	logrus.WithFields(logrus.Fields{
		"function": "reconnect",
	}).Info("Reconnecting to KeePassXC")

	if err := c.connectLocked(c.ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "reconnect",
			"error":    err.Error(),
		}).Warn("Reconnect failed")
		if !c.isClosed() {
			c.scheduleReconnect()
		}
		return
	}
	c.restoreAssociation(c.ctx)
}
