// Package transfer implements the streaming delimiter-scanning engine used to
// split multipart/form-data request bodies.
//
// An Engine owns one fixed-size Window over an input stream. Each Transfer
// call moves bytes from the stream into a Sink until a delimiter is consumed
// or the stream is exhausted. The delimiter may straddle any number of
// refills; the engine keeps just enough trailing bytes to recognize it.
//
// Nothing in this package is safe for concurrent use.
package transfer

import (
	"errors"
	"fmt"
	"io"
)

// maxConsecutiveEmptyReads bounds the number of (0, nil) reads tolerated
// from a source before Refill gives up with io.ErrNoProgress.
const maxConsecutiveEmptyReads = 100

// ErrConsumeOverrun is returned when Consume is asked to skip more bytes
// than the window holds.
var ErrConsumeOverrun = errors.New("consume exceeds available bytes")

// Window is a fixed-capacity read buffer over a sequential source.
//
// Invariant: 0 <= cursor <= end <= len(data). Only data[cursor:end] is
// readable; bytes before cursor are stale and get overwritten by Refill.
type Window struct {
	data   []byte
	cursor int
	end    int
	eof    bool
}

// NewWindow allocates a window of the given capacity.
func NewWindow(capacity int) *Window {
	return &Window{data: make([]byte, capacity)}
}

// Cap returns the fixed capacity.
func (w *Window) Cap() int { return len(w.data) }

// Available returns the number of unconsumed bytes.
func (w *Window) Available() int { return w.end - w.cursor }

// Bytes returns the unconsumed bytes. The slice aliases the window and is
// only valid until the next Refill or Consume.
func (w *Window) Bytes() []byte { return w.data[w.cursor:w.end] }

// Exhausted reports whether the source has signaled end-of-stream.
func (w *Window) Exhausted() bool { return w.eof }

// Consume advances the cursor by n bytes.
func (w *Window) Consume(n int) error {
	if n < 0 || n > w.Available() {
		return fmt.Errorf("%w: consume %d, available %d", ErrConsumeOverrun, n, w.Available())
	}
	w.cursor += n
	return nil
}

// Refill moves the unconsumed tail to offset 0 and reads new bytes from src
// into the free space behind it.
//
// It returns the number of newly read bytes. Zero with a nil error means the
// source is exhausted (or the window is already full, which callers must
// avoid). Once src returns io.EOF the window never reads from it again.
func (w *Window) Refill(src io.Reader) (int, error) {
	if w.cursor > 0 {
		w.end = copy(w.data, w.data[w.cursor:w.end])
		w.cursor = 0
	}
	if w.eof || w.end == len(w.data) {
		return 0, nil
	}

	for range maxConsecutiveEmptyReads {
		n, err := src.Read(w.data[w.end:])
		if n < 0 || n > len(w.data)-w.end {
			return 0, fmt.Errorf("source returned invalid read count %d", n)
		}
		w.end += n
		if err != nil {
			if err == io.EOF {
				w.eof = true
				return n, nil
			}
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, io.ErrNoProgress
}
