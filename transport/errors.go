package transport

import (
	"errors"
	"fmt"
)

// ErrPeerCredentials indicates the process on the other end of the socket
// runs as a different user.
var ErrPeerCredentials = errors.New("socket peer belongs to another user")

// Error records a failed socket operation together with the address.
type Error struct {
	Op   string // operation that caused the error
	Addr string // socket path or pipe name
	Err  error  // underlying error
}

func (e *Error) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
