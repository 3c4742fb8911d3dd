package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Default limits.
const (
	// DefaultWindowSize is the default window capacity (4 MiB).
	DefaultWindowSize = 4 << 20
	// DefaultBoundaryMax is the default maximum delimiter length in bytes.
	DefaultBoundaryMax = 256
)

var crlf = []byte("\r\n")

// Config holds engine limits. Zero values select the defaults.
type Config struct {
	// WindowSize is the window capacity in bytes.
	WindowSize int
	// BoundaryMax is the longest delimiter the engine accepts.
	BoundaryMax int
}

// WithDefaults returns c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.WindowSize == 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.BoundaryMax == 0 {
		c.BoundaryMax = DefaultBoundaryMax
	}
	return c
}

// Validate checks that the window can always hold a full scan span: the
// longest delimiter plus the two framing bytes retained when trimming.
func (c Config) Validate() error {
	if c.BoundaryMax <= 0 {
		return &Error{Kind: ErrorDelimiterTooLong, Msg: fmt.Sprintf("boundary max must be positive, got %d", c.BoundaryMax)}
	}
	if c.WindowSize < c.BoundaryMax+len(crlf) {
		return &Error{
			Kind: ErrorWindowTooSmall,
			Msg:  fmt.Sprintf("window size %d cannot hold a %d-byte delimiter", c.WindowSize, c.BoundaryMax),
		}
	}
	return nil
}

// Delimiter is an immutable byte sequence validated against an engine's
// BoundaryMax. Obtain one from Engine.Delimiter.
type Delimiter struct {
	b []byte
}

// Len returns the delimiter length.
func (d Delimiter) Len() int { return len(d.b) }

// String returns the delimiter bytes as a string.
func (d Delimiter) String() string { return string(d.b) }

// Result describes one Transfer call.
type Result struct {
	// Transferred is the number of bytes delivered to the sink.
	Transferred int64
	// Found reports whether the delimiter was consumed. False means the
	// source was exhausted first.
	Found bool
}

// Engine moves bytes from one source into sinks, one delimiter at a time.
type Engine struct {
	cfg Config
	src io.Reader
	win *Window
}

// NewEngine validates cfg and allocates the window.
func NewEngine(src io.Reader, cfg Config) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg: cfg,
		src: src,
		win: NewWindow(cfg.WindowSize),
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Delimiter validates b once and returns a delimiter usable with Transfer.
func (e *Engine) Delimiter(b []byte) (Delimiter, error) {
	if len(b) == 0 {
		return Delimiter{}, &Error{Kind: ErrorDelimiterTooLong, Msg: "delimiter is empty"}
	}
	if len(b) > e.cfg.BoundaryMax {
		return Delimiter{}, &Error{
			Kind: ErrorDelimiterTooLong,
			Msg:  fmt.Sprintf("delimiter length %d exceeds maximum %d", len(b), e.cfg.BoundaryMax),
		}
	}
	return Delimiter{b: bytes.Clone(b)}, nil
}

// Buffered returns the bytes read from the source but not yet transferred.
// The slice aliases the window.
func (e *Engine) Buffered() []byte { return e.win.Bytes() }

// Exhausted reports whether the source is drained and nothing is buffered.
func (e *Engine) Exhausted() bool { return e.win.Exhausted() && e.win.Available() == 0 }

// Transfer streams bytes into sink until d is consumed or the source runs
// dry. With trimCRLF set, a CRLF ending the stream is framing and never
// reaches the sink, and so is a CRLF directly preceding d unless d itself
// starts with CRLF.
//
// The sink is closed before Transfer returns, on every path.
func (e *Engine) Transfer(d Delimiter, sink Sink, trimCRLF bool) (res Result, err error) {
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = asError(cerr, ErrorSinkWrite, "close sink")
		}
	}()

	if len(d.b) == 0 {
		return res, &Error{Kind: ErrorDelimiterTooLong, Msg: "delimiter is empty"}
	}

	// Bytes held back from each flush: a possible delimiter prefix, plus
	// the framing CRLF that may sit in front of it.
	retain := len(d.b) - 1
	if trimCRLF {
		retain += len(crlf)
	}
	trimBefore := trimCRLF && !bytes.HasPrefix(d.b, crlf)

	w := e.win
	for {
		if w.Available() <= retain {
			n, rerr := w.Refill(e.src)
			if rerr != nil {
				return res, &Error{Kind: ErrorSourceRead, Msg: "read source", Err: rerr}
			}
			if n > 0 {
				continue
			}
			// The tail may still hold the whole delimiter.
			if p, ok := Find(w, d.b); ok {
				err = e.finish(sink, d, p, trimBefore, &res)
				return res, err
			}
			// End of stream: the delimiter can no longer appear.
			rest := w.Bytes()
			if trimCRLF && bytes.HasSuffix(rest, crlf) {
				rest = rest[:len(rest)-len(crlf)]
			}
			if err := flush(sink, rest, &res); err != nil {
				return res, err
			}
			_ = w.Consume(w.Available())
			return res, nil
		}

		if p, ok := Find(w, d.b); ok {
			err = e.finish(sink, d, p, trimBefore, &res)
			return res, err
		}

		safe := w.Available() - retain
		if err := flush(sink, w.data[w.cursor:w.cursor+safe], &res); err != nil {
			return res, err
		}
		_ = w.Consume(safe)
	}
}

// finish flushes the bytes in front of the delimiter found at p and
// consumes the delimiter.
func (e *Engine) finish(sink Sink, d Delimiter, p int, trimCRLF bool, res *Result) error {
	w := e.win
	end := p
	if trimCRLF && end-w.cursor >= len(crlf) && bytes.Equal(w.data[end-len(crlf):end], crlf) {
		end -= len(crlf)
	}
	if err := flush(sink, w.data[w.cursor:end], res); err != nil {
		return err
	}
	_ = w.Consume(p + len(d.b) - w.cursor)
	res.Found = true
	return nil
}

func flush(sink Sink, p []byte, res *Result) error {
	if len(p) == 0 {
		return nil
	}
	n, err := sink.Write(p)
	res.Transferred += int64(n)
	if err != nil {
		return asError(err, ErrorSinkWrite, "write sink")
	}
	if n != len(p) {
		return &Error{Kind: ErrorSinkWrite, Msg: "write sink", Err: io.ErrShortWrite}
	}
	return nil
}

// asError keeps an existing transfer Error intact and wraps anything else.
func asError(err error, kind ErrorKind, msg string) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}
