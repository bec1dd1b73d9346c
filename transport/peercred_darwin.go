//go:build darwin

package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

func verifyPeerCredentials(conn *net.UnixConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var cred *unix.Xucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptXucred(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERCRED)
	}); err != nil {
		return err
	}
	if credErr != nil {
		return fmt.Errorf("LOCAL_PEERCRED: %w", credErr)
	}

	if int(cred.Uid) != os.Getuid() {
		return fmt.Errorf("%w: peer uid %d", ErrPeerCredentials, cred.Uid)
	}
	return nil
}
