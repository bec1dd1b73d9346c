// Package interfaces defines the transport abstraction and connection
// configuration shared by the proxy engine, the socket implementations and
// the simulated peer.
//
// # Core Interfaces
//
// [ITransport] is a framed duplex channel. Every ReadObject call returns one
// complete JSON object, so the engine never deals with partial reads:
//
//	t := factory.NewTransportFactory().CreateTransport()
//	if err := t.Open(ctx); err != nil {
//	    return err
//	}
//	frame, err := t.ReadObject()
//
// Implementations live in the transport package (Unix socket, Windows named
// pipe) and the testing package (in-memory peer).
//
// # Configuration
//
// [ConnectionConfig] uses plain integer milliseconds so it can be populated
// from environment variables and flags without parsing durations:
//
//	cfg := interfaces.ConnectionConfig{
//	    ResponseTimeout:    5000,
//	    ReconnectDelay:     15000,
//	    MalformedThreshold: 4,
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package interfaces
