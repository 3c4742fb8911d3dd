package form

import (
	"errors"
	"fmt"
	"strings"
)

// Decoder failures. Each aborts the request; match them with errors.Is.
var (
	// ErrMissingBoundary indicates the input does not start with a dash boundary.
	ErrMissingBoundary = errors.New("boundary string not found at start of input")
	// ErrNotMultipart indicates a Content-Type other than multipart/form-data.
	ErrNotMultipart = errors.New("content type is not multipart/form-data")
	// ErrMalformedBoundary indicates unexpected bytes after a boundary on the same line.
	ErrMalformedBoundary = errors.New("unexpected bytes after boundary")
	// ErrIncompleteHeader indicates the input ended inside a part header.
	ErrIncompleteHeader = errors.New("incomplete part header")
	// ErrTooManyHeaderLines indicates a part header longer than MaxHeaderLines.
	ErrTooManyHeaderLines = errors.New("part header has too many lines")
	// ErrLineTooLong indicates a header line longer than LineMax.
	ErrLineTooLong = errors.New("header line too long")
	// ErrMissingDisposition indicates a part without a Content-Disposition header.
	ErrMissingDisposition = errors.New("no Content-Disposition header in part")
	// ErrBadFilename indicates a filename parameter that could not be read.
	ErrBadFilename = errors.New("cannot read filename from Content-Disposition header")
	// ErrTooManyParts indicates the request exceeded MaxParts.
	ErrTooManyParts = errors.New("too many parts")
	// ErrNoPart indicates ReadBody or ReadField was called with no part pending.
	ErrNoPart = errors.New("no part body pending")
)

// Error locates a decoder failure within the request.
type Error struct {
	// Part is the 1-based part index, or 0 before the first part.
	Part int
	// Line is the 1-based header line number, or 0 outside a header.
	Line int
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Part > 0 {
		fmt.Fprintf(&b, "part %d: ", e.Part)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "header line %d: ", e.Line)
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}
