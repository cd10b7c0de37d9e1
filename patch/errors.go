package patch

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks a statement that cannot be parsed.
	ErrMalformed = errors.New("malformed statement")
	// ErrUnknownKey marks a key that names nothing. It is only reported as a
	// warning.
	ErrUnknownKey = errors.New("unknown key")
	// ErrBackend marks a failure of the equation backend.
	ErrBackend = errors.New("equation backend")
	// ErrImage marks an image that could not be loaded.
	ErrImage = errors.New("image")
	// ErrReleased is returned when cloning an instance that was released or
	// whose compiled core was already freed.
	ErrReleased = errors.New("patch: instance released")
)

// CompileError describes why a patch failed to compile. Line is 1-based, or
// 0 for failures after parsing.
type CompileError struct {
	Line int
	Msg  string
	Err  error
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("patch: line %d: %s", e.Line, e.Msg)
	}
	return "patch: " + e.Msg
}

func (e *CompileError) Unwrap() error { return e.Err }
