// Package form decodes multipart/form-data request bodies part by part on
// top of the transfer engine.
//
// A Decoder reads header lines into bounded string sinks and streams each
// part body into a caller-supplied sink, so a request body is never held in
// memory. Parts must be consumed in order.
package form

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pithecene-io/sluice/transfer"
)

// Default limits.
const (
	// DefaultLineMax is the longest header line accepted, excluding CRLF.
	DefaultLineMax = 256
	// DefaultMaxHeaderLines bounds the header lines per part, including the
	// terminating empty line.
	DefaultMaxHeaderLines = 40
	// DefaultFieldMax is the default capacity for text field values.
	DefaultFieldMax = 64 << 10
)

// Config holds decoder limits. Zero values select the defaults.
type Config struct {
	Transfer       transfer.Config
	LineMax        int
	MaxHeaderLines int
	// MaxParts caps the number of parts per request. Zero means unlimited.
	MaxParts int
}

// WithDefaults returns c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	c.Transfer = c.Transfer.WithDefaults()
	if c.LineMax == 0 {
		c.LineMax = DefaultLineMax
	}
	if c.MaxHeaderLines == 0 {
		c.MaxHeaderLines = DefaultMaxHeaderLines
	}
	return c
}

// Validate checks limits after defaults are applied.
func (c Config) Validate() error {
	if err := c.Transfer.Validate(); err != nil {
		return err
	}
	if c.LineMax < 0 {
		return fmt.Errorf("line max must be positive, got %d", c.LineMax)
	}
	if c.MaxHeaderLines < 0 {
		return fmt.Errorf("max header lines must be positive, got %d", c.MaxHeaderLines)
	}
	if c.MaxParts < 0 {
		return fmt.Errorf("max parts must not be negative, got %d", c.MaxParts)
	}
	return nil
}

// Part describes one decoded part header.
type Part struct {
	// Index is the 1-based position of the part in the request.
	Index int
	// Name is the form field name.
	Name string
	// Filename is the client-supplied file name, unsanitized.
	Filename string
	// HasFilename reports whether a filename parameter was present.
	HasFilename bool
	// Disposition is the lowercased disposition type, usually "form-data".
	Disposition string
	ContentType string
	// Header holds the raw header lines without line terminators.
	Header []string
}

// IsFile reports whether the part carries a file upload.
func (p *Part) IsFile() bool { return p.HasFilename }

// Field is a text field read with ReadField.
type Field struct {
	Name  string
	Value string
	// Truncated reports that the value exceeded the requested capacity.
	Truncated bool
	// Complete reports that the closing boundary was seen. False means the
	// input ended inside the field.
	Complete bool
}

type state int

const (
	stateStart state = iota
	stateBoundary
	stateHeaders
	stateBody
	stateDone
)

// Decoder is a multipart/form-data reader. It is not safe for concurrent use.
type Decoder struct {
	cfg      Config
	eng      *transfer.Engine
	boundary string
	// dash is the bare dash boundary, matched only before the first part.
	dash transfer.Delimiter
	// delim is CRLF followed by the dash boundary and ends every body.
	delim transfer.Delimiter
	eol   transfer.Delimiter
	state state
	part  *Part
	parts int
	err   error
}

// NewDecoder returns a decoder reading src. An empty boundary is read from
// the first line of the input on the first call to NextPart.
func NewDecoder(src io.Reader, boundary string, cfg Config) (*Decoder, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eng, err := transfer.NewEngine(src, cfg.Transfer)
	if err != nil {
		return nil, err
	}
	eol, err := eng.Delimiter([]byte("\r\n"))
	if err != nil {
		return nil, err
	}
	d := &Decoder{cfg: cfg, eng: eng, eol: eol}
	if boundary != "" {
		if err := d.setBoundary("--" + boundary); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Boundary returns the boundary without its leading dashes, or "" if it has
// not been read from the input yet.
func (d *Decoder) Boundary() string {
	return strings.TrimPrefix(d.boundary, "--")
}

// Parts returns the number of part headers decoded so far.
func (d *Decoder) Parts() int { return d.parts }

func (d *Decoder) setBoundary(dash string) error {
	bare, err := d.eng.Delimiter([]byte(dash))
	if err != nil {
		return err
	}
	delim, err := d.eng.Delimiter([]byte("\r\n" + dash))
	if err != nil {
		return err
	}
	d.boundary = dash
	d.dash = bare
	d.delim = delim
	return nil
}

// NextPart advances to the next part and returns its header. A pending body
// that was not read is discarded. It returns io.EOF after the close
// delimiter or when the input ends between parts.
//
// Errors are sticky: once NextPart fails every later call fails the same way.
func (d *Decoder) NextPart() (*Part, error) {
	if d.err != nil {
		return nil, d.err
	}
	p, err := d.nextPart()
	if err != nil {
		d.fail(err)
		return nil, d.err
	}
	d.part = p
	return p, nil
}

func (d *Decoder) nextPart() (*Part, error) {
	switch d.state {
	case stateStart:
		if err := d.start(); err != nil {
			return nil, err
		}
	case stateBody:
		if _, err := d.ReadBody(&transfer.DiscardSink{}); err != nil {
			return nil, err
		}
	}

	if d.state == stateBoundary {
		closed, err := d.finishBoundaryLine()
		if err != nil {
			return nil, err
		}
		if closed {
			return nil, io.EOF
		}
	}
	if d.state == stateDone {
		return nil, io.EOF
	}

	if d.cfg.MaxParts > 0 && d.parts >= d.cfg.MaxParts {
		return nil, &Error{Part: d.parts + 1, Err: ErrTooManyParts}
	}
	d.parts++
	return d.readHeader()
}

// start positions the decoder after the first dash boundary.
func (d *Decoder) start() error {
	if d.boundary == "" {
		return d.sniffBoundary()
	}
	discard := &transfer.DiscardSink{}
	res, err := d.eng.Transfer(d.dash, discard, false)
	if err != nil {
		return err
	}
	if !res.Found {
		if discard.Discarded() == 0 {
			return io.EOF
		}
		return &Error{Err: ErrMissingBoundary}
	}
	d.state = stateBoundary
	return nil
}

// sniffBoundary takes the dash boundary from the first input line.
func (d *Decoder) sniffBoundary() error {
	line, found, n, err := d.readLine(d.cfg.Transfer.BoundaryMax)
	if errors.Is(err, ErrLineTooLong) {
		return &transfer.Error{
			Kind: transfer.ErrorDelimiterTooLong,
			Msg:  fmt.Sprintf("boundary line exceeds %d bytes", d.cfg.Transfer.BoundaryMax),
		}
	}
	if err != nil {
		return err
	}
	if !found && n == 0 {
		return io.EOF
	}
	line = strings.TrimRight(line, " \t")
	if !found || len(line) <= 2 || !strings.HasPrefix(line, "--") {
		return &Error{Err: ErrMissingBoundary}
	}
	if err := d.setBoundary(line); err != nil {
		return err
	}
	d.state = stateHeaders
	return nil
}

// finishBoundaryLine reads the rest of a boundary line. It reports closed
// for the close delimiter or when the input ends on the boundary.
func (d *Decoder) finishBoundaryLine() (closed bool, err error) {
	line, found, _, err := d.readLine(d.cfg.LineMax)
	if errors.Is(err, ErrLineTooLong) {
		return false, &Error{Part: d.parts, Err: ErrMalformedBoundary}
	}
	if err != nil {
		return false, err
	}
	if strings.HasPrefix(line, "--") {
		d.state = stateDone
		return true, nil
	}
	if strings.Trim(line, " \t") != "" {
		return false, &Error{Part: d.parts, Err: ErrMalformedBoundary}
	}
	if !found {
		d.state = stateDone
		return true, nil
	}
	d.state = stateHeaders
	return false, nil
}

func (d *Decoder) readHeader() (*Part, error) {
	p := &Part{Index: d.parts}
	sawDisposition := false

	for n := 1; ; n++ {
		if n > d.cfg.MaxHeaderLines {
			return nil, &Error{Part: p.Index, Line: n, Err: ErrTooManyHeaderLines}
		}
		line, found, read, err := d.readLine(d.cfg.LineMax)
		if errors.Is(err, ErrLineTooLong) {
			return nil, &Error{Part: p.Index, Line: n, Err: ErrLineTooLong}
		}
		if err != nil {
			return nil, err
		}
		if !found {
			if n == 1 && read == 0 {
				return nil, io.EOF
			}
			return nil, &Error{Part: p.Index, Line: n, Err: ErrIncompleteHeader}
		}
		if line == "" {
			break
		}

		p.Header = append(p.Header, line)
		if name, _, ok := splitHeader(line); ok && strings.EqualFold(name, "Content-Disposition") {
			sawDisposition = true
		}
		if err := applyHeader(p, line, d.cfg.LineMax); err != nil {
			return nil, &Error{Part: p.Index, Line: n, Err: err}
		}
	}

	if !sawDisposition {
		return nil, &Error{Part: p.Index, Err: ErrMissingDisposition}
	}
	d.state = stateBody
	return p, nil
}

// readLine transfers one CRLF-terminated line into a string sink of the
// given capacity.
func (d *Decoder) readLine(capacity int) (line string, found bool, n int64, err error) {
	sink := transfer.NewStringSink(capacity)
	defer sink.Release()

	res, err := d.eng.Transfer(d.eol, sink, false)
	if err != nil {
		return "", false, res.Transferred, err
	}
	if sink.Truncated() {
		return "", res.Found, res.Transferred, ErrLineTooLong
	}
	return sink.String(), res.Found, res.Transferred, nil
}

// ReadBody streams the current part body into sink up to the CRLF that
// frames the next boundary. A dash boundary not preceded by CRLF is body
// content. The sink is always closed. A result with Found
// false means the input ended inside the body; the decoder then reports
// io.EOF from NextPart.
func (d *Decoder) ReadBody(sink transfer.Sink) (transfer.Result, error) {
	if d.state != stateBody {
		_ = sink.Close()
		if d.err != nil && d.err != io.EOF {
			return transfer.Result{}, d.err
		}
		return transfer.Result{}, ErrNoPart
	}

	res, err := d.eng.Transfer(d.delim, sink, true)
	if err != nil {
		d.fail(err)
		return res, d.err
	}
	if res.Found {
		d.state = stateBoundary
	} else {
		d.state = stateDone
	}
	return res, nil
}

// ReadField reads the current part body as text, keeping at most max bytes.
func (d *Decoder) ReadField(max int) (Field, error) {
	if max <= 0 {
		max = DefaultFieldMax
	}
	sink := transfer.NewStringSink(max)
	defer sink.Release()

	var name string
	if d.part != nil {
		name = d.part.Name
	}
	res, err := d.ReadBody(sink)
	if err != nil {
		return Field{}, err
	}
	return Field{
		Name:      name,
		Value:     sink.String(),
		Truncated: sink.Truncated(),
		Complete:  res.Found,
	}, nil
}

// fail records err as the sticky decoder error.
func (d *Decoder) fail(err error) {
	d.state = stateDone
	if err == io.EOF {
		d.err = io.EOF
		return
	}
	var fe *Error
	if !errors.As(err, &fe) {
		err = &Error{Part: d.parts, Err: err}
	}
	d.err = err
}
