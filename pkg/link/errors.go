package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by operations that need an open link.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by Connect on an open link.
	ErrAlreadyConnected = errors.New("already connected")
)

// ParseError indicates that a line from the module could not be parsed.
type ParseError struct {
	Line  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s in line %q: %v", e.Field, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
