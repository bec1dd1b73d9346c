// Package transport carries browser-protocol frames between this process
// and KeePassXC over a local socket.
//
// # Framing
//
// KeePassXC writes JSON objects back to back with no length prefix or
// delimiter. [ObjectReader] recovers frame boundaries by tracking brace
// depth outside string literals, so a single read may return one object
// even when several arrived in the same chunk, or when one object was split
// across many chunks:
//
//	r := transport.NewObjectReader(conn)
//	for {
//	    frame, err := r.Next()
//	    if errors.Is(err, transport.ErrMalformedFrame) {
//	        continue // garbage was skipped, stream still usable
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    handle(frame)
//	}
//
// # Sockets
//
// [Socket] implements interfaces.ITransport on top of any dialer.
// [NewUnixSocket] dials a Unix domain socket and, on Linux and macOS,
// checks that the listening process runs as the same user.
// On Windows [NewNamedPipe] opens \\.\pipe\org.keepassxc.KeePassXC.BrowserServer_<user>.
//
// # Socket Discovery
//
// [SocketPath] applies the KeePassXC placement rules:
//
//   - repo and AppImage builds: $XDG_RUNTIME_DIR/app/org.keepassxc.KeePassXC
//     when it exists (2.7.2 and later), else $XDG_RUNTIME_DIR, else $TMPDIR,
//     else /tmp
//   - Flatpak: $XDG_RUNTIME_DIR/app/org.keepassxc.KeePassXC
//   - Snap: ~/snap/keepassxc/common
//   - macOS: $TMPDIR
package transport
