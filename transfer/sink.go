package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/valyala/bytebufferpool"
)

// Sink receives transferred bytes. Transfer closes the sink on every exit
// path, so a sink is good for exactly one Transfer call.
type Sink interface {
	io.Writer
	Close() error
}

var stringSinkPool bytebufferpool.Pool

// StringSink is a bounded in-memory accumulator for header lines and short
// text fields. Bytes beyond the capacity are dropped without error;
// Truncated reports whether that happened.
type StringSink struct {
	buf       *bytebufferpool.ByteBuffer
	capacity  int
	truncated bool
}

// NewStringSink returns a sink that retains at most capacity bytes.
// Call Release when done to return the buffer to the pool.
func NewStringSink(capacity int) *StringSink {
	return &StringSink{
		buf:      stringSinkPool.Get(),
		capacity: capacity,
	}
}

// Write retains as much of p as fits and always reports len(p) consumed.
func (s *StringSink) Write(p []byte) (int, error) {
	if s.buf == nil {
		s.buf = stringSinkPool.Get()
	}
	room := s.capacity - s.buf.Len()
	if room < len(p) {
		s.truncated = true
		if room > 0 {
			_, _ = s.buf.Write(p[:room])
		}
		return len(p), nil
	}
	_, _ = s.buf.Write(p)
	return len(p), nil
}

// Close is a no-op; the accumulated value stays readable.
func (s *StringSink) Close() error { return nil }

// String returns the retained bytes as a string.
func (s *StringSink) String() string {
	if s.buf == nil {
		return ""
	}
	return s.buf.String()
}

// Bytes returns the retained bytes. The slice aliases the sink's buffer.
func (s *StringSink) Bytes() []byte {
	if s.buf == nil {
		return nil
	}
	return s.buf.Bytes()
}

// Len returns the number of retained bytes.
func (s *StringSink) Len() int {
	if s.buf == nil {
		return 0
	}
	return s.buf.Len()
}

// Cap returns the retention limit.
func (s *StringSink) Cap() int { return s.capacity }

// Truncated reports whether any bytes were dropped.
func (s *StringSink) Truncated() bool { return s.truncated }

// Reset empties the sink for reuse.
func (s *StringSink) Reset() {
	if s.buf != nil {
		s.buf.Reset()
	}
	s.truncated = false
}

// Release returns the buffer to the pool. The sink reads as empty afterwards.
func (s *StringSink) Release() {
	if s.buf != nil {
		stringSinkPool.Put(s.buf)
		s.buf = nil
	}
}

// DiscardSink counts and drops everything written to it.
type DiscardSink struct {
	n int64
}

func (d *DiscardSink) Write(p []byte) (int, error) {
	d.n += int64(len(p))
	return len(p), nil
}

// Close is a no-op.
func (d *DiscardSink) Close() error { return nil }

// Discarded returns the number of bytes dropped so far.
func (d *DiscardSink) Discarded() int64 { return d.n }

// OpenFunc creates (or truncates) the destination for a file sink.
type OpenFunc func(path string) (io.WriteCloser, error)

// OpenFile is the default OpenFunc: create-or-truncate on the local filesystem.
func OpenFile(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

var errSinkClosed = errors.New("write to closed file sink")

// FileSink streams bytes to a destination opened on first use. An empty
// body still creates the destination when the sink is closed.
type FileSink struct {
	path    string
	open    OpenFunc
	w       io.WriteCloser
	written int64
	failed  bool
	closed  bool
}

// NewFileSink returns a sink writing to path through open.
// A nil open uses OpenFile.
func NewFileSink(path string, open OpenFunc) *FileSink {
	if open == nil {
		open = OpenFile
	}
	return &FileSink{path: path, open: open}
}

// Path returns the destination path.
func (s *FileSink) Path() string { return s.path }

// Written returns the number of bytes accepted by the destination.
func (s *FileSink) Written() int64 { return s.written }

func (s *FileSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errSinkClosed
	}
	if s.w == nil {
		if err := s.openDest(); err != nil {
			return 0, err
		}
	}
	n, err := s.w.Write(p)
	s.written += int64(n)
	if err != nil {
		return n, &Error{Kind: ErrorSinkWrite, Msg: fmt.Sprintf("write %s", s.path), Err: err}
	}
	return n, nil
}

// Close closes the destination, creating it first if nothing was written.
// Closing twice is a no-op.
func (s *FileSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.failed {
		return nil
	}
	if s.w == nil {
		if err := s.openDest(); err != nil {
			return err
		}
	}
	if err := s.w.Close(); err != nil {
		return &Error{Kind: ErrorSinkWrite, Msg: fmt.Sprintf("close %s", s.path), Err: err}
	}
	return nil
}

func (s *FileSink) openDest() error {
	w, err := s.open(s.path)
	if err != nil {
		s.failed = true
		return &Error{Kind: ErrorSinkOpen, Msg: fmt.Sprintf("cannot open %s", s.path), Err: err}
	}
	s.w = w
	return nil
}
