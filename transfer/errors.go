package transfer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies transfer failures.
type ErrorKind int

const (
	// ErrorSinkOpen indicates a file sink could not be created.
	ErrorSinkOpen ErrorKind = iota
	// ErrorSinkWrite indicates a sink rejected bytes or failed to close.
	ErrorSinkWrite
	// ErrorSourceRead indicates the input source failed with something other than EOF.
	ErrorSourceRead
	// ErrorDelimiterTooLong indicates an empty delimiter or one longer than BoundaryMax.
	ErrorDelimiterTooLong
	// ErrorWindowTooSmall indicates a window that cannot hold a full scan span.
	ErrorWindowTooSmall
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorSinkOpen:
		return "sink_open"
	case ErrorSinkWrite:
		return "sink_write"
	case ErrorSourceRead:
		return "source_read"
	case ErrorDelimiterTooLong:
		return "delimiter_too_long"
	case ErrorWindowTooSmall:
		return "window_too_small"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a transfer failure. Every kind aborts the request it occurs in;
// end-of-stream is never reported as an Error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a transfer Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}
