// Package proxy implements the KeePassXC browser protocol engine.
//
// A Connection owns one interfaces.ITransport. Connect performs the
// change-public-keys exchange in cleartext, after which every request is a
// NaCl box sealed under the shared key with a fresh random nonce. The
// response is matched to its caller by action name and by the request
// nonce incremented by one, so any number of commands may be in flight
// from different goroutines.
//
// One reader goroutine per connection generation drains the transport.
// Unsolicited database-locked and database-unlocked signals are delivered
// to the handler registered with WithSignalHandler and never satisfy a
// pending call. Everything else lands in an inbox that waiters poll.
//
// When the transport fails, or too many consecutive frames cannot be
// decoded, pending calls fail with a transport error and a reconnect is
// scheduled after ConnectionConfig.ReconnectDelay. Reconnects repeat
// without limit until one succeeds or Close is called. A successful
// reconnect redoes the key exchange and re-validates the stored
// association.
//
// Requests that KeePassXC answers without asking the user
// (change-public-keys, get-databasehash, test-associate and
// get-database-groups) are bounded by ConnectionConfig.ResponseTimeout.
// All others may wait on a confirmation dialog and are bounded only by the
// caller's context.
//
// Every failure is an *Error whose Kind can be tested with errors.Is
// against the sentinels ErrTransport, ErrHandshake, ErrDecryption,
// ErrApplication, ErrTimeout and ErrIllegalState:
//
//	hash, err := conn.GetDatabaseHash(ctx, false)
//	if errors.Is(err, proxy.ErrTimeout) {
//	    // KeePassXC did not answer in time
//	}
package proxy
