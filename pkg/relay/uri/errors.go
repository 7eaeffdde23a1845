package uri

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedToken is wrapped by every ParseError.
	ErrUnexpectedToken = errors.New("uri: unexpected token")

	// ErrEmpty is returned for an empty request target.
	ErrEmpty = errors.New("uri: empty URL")
)

// ParseError reports where the grammar was violated.
type ParseError struct {
	// Pos is the byte offset of the offending token.
	Pos int

	// Want is the token the grammar required.
	Want TokenTag

	// Got is the token that was found.
	Got TokenTag

	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("uri: at offset %d: expected %s, found %s", e.Pos, e.Want, e.Got)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
