// Package factory creates the transport the proxy engine talks over.
//
// The factory hides whether the engine is connected to a real KeePassXC
// socket or to the in-memory SimulatedPeer, so callers such as the CLI can
// switch with a flag or an environment variable.
//
// # Configuration
//
// Defaults can be overridden from the environment:
//   - KPXC_SOCKET_PATH: explicit socket path or pipe name
//   - KPXC_INSTALLATION: repo, appimage, flatpak or snap
//   - KPXC_RESPONSE_TIMEOUT: milliseconds, 100 to 600000
//   - KPXC_RECONNECT_DELAY: milliseconds, 10 to 3600000
//   - KPXC_MALFORMED_THRESHOLD: 1 to 100
//   - KPXC_USE_SIMULATION: "true" to use the simulated peer
//   - KPXC_VERIFY_PEER: "false" to skip the socket peer uid check
//
// Values that fail to parse or fall outside their bounds are logged and
// the default is kept.
//
// # Usage
//
//	f := factory.NewTransportFactory()
//	t, err := f.CreateTransport()
//	if err != nil {
//	    return err
//	}
//	conn, err := proxy.NewConnection(t, f.GetCurrentConfig())
//
// # Testing
//
//	peer, cfg := f.CreateSimulationForTesting(db, factory.WithResponseTimeout(200))
//	conn, err := proxy.NewConnection(peer, cfg)
package factory
