package netio

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when content would reach or exceed a
	// FixedBuffer's capacity. The buffer is left cleared.
	ErrCapacityExceeded = errors.New("netio: buffer capacity exceeded")

	// ErrPeerClosed indicates the remote end closed the connection before
	// the requested bytes arrived.
	ErrPeerClosed = errors.New("netio: peer closed connection")

	// ErrInvalidSocket is returned by operations on a socket that holds no
	// connection (a placeholder, or one whose ownership was transferred).
	ErrInvalidSocket = errors.New("netio: invalid socket")

	// ErrShortWrite indicates the transport accepted fewer bytes than asked.
	ErrShortWrite = errors.New("netio: short write")

	// ErrInvalidPort is returned by Listen for an empty or non-numeric port.
	ErrInvalidPort = errors.New("netio: invalid port")
)

// OpError describes a failed socket primitive.
type OpError struct {
	// Op is the primitive that failed: "read", "read-until", "write", "accept", "listen".
	Op string

	// Err is the underlying error.
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("netio: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry.
func (e *OpError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
