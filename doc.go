// Package kpxc talks to the KeePassXC browser integration from Go.
//
// KeePassXC exposes its password database to browser extensions over a
// local socket (a named pipe on Windows). Messages are JSON, encrypted with
// NaCl box after a cleartext public key exchange, and a client must be
// associated with the open database before it can read or write entries.
// This package provides the high-level [Access] type; the protocol engine
// lives in the proxy package.
//
// # Getting Started
//
//	f := factory.NewTransportFactory()
//	transport, err := f.CreateTransport()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	access, err := kpxc.New(transport, f.GetCurrentConfig(), kpxc.NewOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer access.Shutdown()
//
//	ctx := context.Background()
//	if !access.Connect(ctx) {
//	    log.Fatal("KeePassXC is not running")
//	}
//	if !access.ConnectionAvailable(ctx) && !access.Associate(ctx) {
//	    log.Fatal("association was not approved")
//	}
//
//	for _, e := range access.GetLogins(ctx, "https://example.com", "", false, nil) {
//	    fmt.Println(e.Login)
//	}
//
// # Credentials
//
// The client key pair, the KeePassXC public key and the association are
// kept in a credential file, by default
// <UserConfigDir>/keepass-proxy-access/keepass-proxy-access.dat. Changes are
// written one second after they happen; [Access.Shutdown] writes anything
// still pending. Set [Options.Passphrase] to encrypt the file.
//
// # Errors
//
// Access methods report failure as false, "" or an empty collection and
// log the cause at Info level with logrus. Use [Access.Connection] for the
// typed *proxy.Error values.
//
// # Signals
//
// KeePassXC announces database-locked and database-unlocked on its own.
// They reach [Options.OnSignal] and never complete a pending request.
package kpxc
