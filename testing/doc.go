// Package testing provides an in-memory KeePassXC peer for deterministic
// testing of the browser protocol engine.
//
// # Overview
//
// SimulatedPeer implements interfaces.ITransport without a socket. Frames
// written to it are handled synchronously: the peer performs the
// change-public-keys exchange, decrypts requests with the session box and
// answers them from a Database. Replies and signals are queued for
// ReadObject in the order they were produced.
//
// # Simulation vs Real Transport
//
//   - Simulation (this package): every session lives in memory and every
//     request is recorded for verification.
//
//   - Real (transport package): frames travel over the KeePassXC Unix
//     socket or Windows named pipe.
//
// The factory package switches between the two.
//
// # Usage
//
//	db := testing.NewDatabase()
//	db.AddEntry("https://example.com", "alice", "s3cret")
//
//	peer := testing.NewSimulatedPeer(db)
//	conn, _ := proxy.NewConnection(peer, cfg)
//	_ = conn.Connect(ctx)
//	_ = conn.Associate(ctx)
//
// # Fault Injection
//
// Tests steer the peer into the engine's error paths:
//
//	peer.RejectHandshake(protocol.CodeKeyChangeFailed, "no")
//	peer.DropAction(protocol.ActionGetDatabaseHash, true)
//	peer.DelayAction(protocol.ActionGetLogins, time.Second)
//	peer.FailAction(protocol.ActionSetLogin, protocol.CodeActionDenied)
//	peer.TamperAction(protocol.ActionGetLogins, true)
//	peer.InjectRaw([]byte("garbage"))
//	peer.Kill()
//
// LockDatabase and UnlockDatabase change the lock state and push the
// matching signal, the way KeePassXC does when the user locks it.
//
// # Request Log
//
// Requests returns one RequestRecord per frame received, including
// dropped ones. RequestCount, Handshakes and Opens summarise the log.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
//
// # Warning
//
// This package is for tests and the --simulate CLI mode only. It stores
// secrets in cleartext memory and performs no user confirmation.
package testing
