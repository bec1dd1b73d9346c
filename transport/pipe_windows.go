//go:build windows

package transport

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sys/windows"
)

// NewNamedPipe returns a Socket that opens the named pipe \\.\pipe\<name>.
// verifyPeer is accepted for symmetry with NewUnixSocket; the pipe ACL
// created by KeePassXC already restricts access to the current user.
func NewNamedPipe(name string, verifyPeer bool) *Socket {
	path := `\\.\pipe\` + name
	return NewSocket(path, func(ctx context.Context) (io.ReadWriteCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := windows.UTF16PtrFromString(path)
		if err != nil {
			return nil, err
		}
		h, err := windows.CreateFile(p,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0, nil, windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
		if err != nil {
			return nil, err
		}
		return &pipeConn{h: h}, nil
	})
}

// pipeConn is a synchronous pipe handle. Close cancels a read blocked in
// another goroutine before closing the handle.
type pipeConn struct {
	h    windows.Handle
	once sync.Once
}

func (c *pipeConn) Read(b []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(c.h, b, &n, nil)
	if err != nil {
		if errors.Is(err, windows.ERROR_BROKEN_PIPE) ||
			errors.Is(err, windows.ERROR_OPERATION_ABORTED) ||
			errors.Is(err, windows.ERROR_PIPE_NOT_CONNECTED) ||
			errors.Is(err, windows.ERROR_INVALID_HANDLE) {
			return int(n), io.EOF
		}
		return int(n), err
	}
	if n == 0 && len(b) > 0 {
		return 0, io.EOF
	}
	return int(n), nil
}

func (c *pipeConn) Write(b []byte) (int, error) {
	total := 0
	for total < len(b) {
		var n uint32
		if err := windows.WriteFile(c.h, b[total:], &n, nil); err != nil {
			return total, err
		}
		total += int(n)
	}
	return total, nil
}

func (c *pipeConn) Close() error {
	var err error
	c.once.Do(func() {
		_ = windows.CancelIoEx(c.h, nil)
		err = windows.CloseHandle(c.h)
	})
	return err
}

// NewPlatformSocket returns the socket kind native to this platform.
func NewPlatformSocket(name string, verifyPeer bool) *Socket {
	return NewNamedPipe(name, verifyPeer)
}
