package http1

import (
	"errors"
	"fmt"

	"github.com/watt-toolkit/relay/pkg/relay/netio"
)

// Reader errors
var (
	// ErrMalformedRequestLine indicates the request line is not
	// "METHOD SP TARGET SP VERSION".
	ErrMalformedRequestLine = errors.New("http1: malformed request line")

	// ErrMalformedTarget wraps a uri.ParseError for the request target.
	ErrMalformedTarget = errors.New("http1: malformed request target")

	// ErrMalformedHeader indicates a header line with no name/value separator.
	ErrMalformedHeader = errors.New("http1: malformed header line")

	// ErrTooManyHeaders indicates more than MaxHeaders header lines.
	ErrTooManyHeaders = errors.New("http1: too many headers")
)

// Writer errors
var (
	// ErrInvalidStatus indicates a Response whose Status is unset or not a
	// three-digit code.
	ErrInvalidStatus = errors.New("http1: invalid response status")

	// ErrInvalidSchema indicates a Response whose Schema is unknown.
	ErrInvalidSchema = errors.New("http1: response schema not set")

	// ErrHeadTooLarge indicates the status line and headers do not fit the
	// write buffer. Nothing is sent. It wraps netio.ErrCapacityExceeded.
	ErrHeadTooLarge = fmt.Errorf("http1: response head too large: %w", netio.ErrCapacityExceeded)
)

// IsIOError reports whether err came from the transport (including buffer
// capacity violations) rather than from message grammar.
func IsIOError(err error) bool {
	var opErr *netio.OpError
	return errors.As(err, &opErr) || errors.Is(err, netio.ErrCapacityExceeded)
}
