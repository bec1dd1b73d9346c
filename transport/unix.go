//go:build !windows

package transport

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/sirupsen/logrus"
)

// NewUnixSocket returns a Socket that dials the Unix domain socket at path.
// With verifyPeer set, the connection is rejected unless the listening
// process runs under our uid, on platforms where that can be checked.
func NewUnixSocket(path string, verifyPeer bool) *Socket {
	return NewSocket(path, func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", path)
		if err != nil {
			return nil, err
		}

		if verifyPeer {
			uc, ok := conn.(*net.UnixConn)
			if !ok {
				conn.Close()
				return nil, fmt.Errorf("unexpected connection type %T", conn)
			}
			if err := verifyPeerCredentials(uc); err != nil {
				conn.Close()
				logrus.WithFields(logrus.Fields{
					"function": "NewUnixSocket",
					"socket":   path,
					"error":    err.Error(),
				}).Error("Refusing socket peer")
				return nil, err
			}
		}
		return conn, nil
	})
}

// NewPlatformSocket returns the socket kind native to this platform.
func NewPlatformSocket(path string, verifyPeer bool) *Socket {
	return NewUnixSocket(path, verifyPeer)
}
