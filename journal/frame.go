package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/sluice/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (1 MiB), including length prefix.
	MaxFrameSize = 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Entry type discriminants.
const (
	EntryTypeUpload  = "upload"
	EntryTypeRequest = "request"
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack encoding or decoding error.
	FrameErrorDecode
	// FrameErrorUnknownType indicates an entry with an unrecognized type.
	FrameErrorUnknownType
)

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the rest of the stream is unreadable.
// Partial and oversized frames lose framing; a bad payload does not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// Entry is one journal record: an upload or a request summary.
type Entry struct {
	Type    string                `msgpack:"type"`
	Upload  *types.UploadRecord   `msgpack:"upload,omitempty"`
	Request *types.RequestSummary `msgpack:"request,omitempty"`
}

// validate checks that the payload matches the type.
func (e *Entry) validate() error {
	switch e.Type {
	case EntryTypeUpload:
		if e.Upload == nil {
			return errors.New("upload entry without upload record")
		}
	case EntryTypeRequest:
		if e.Request == nil {
			return errors.New("request entry without request summary")
		}
	default:
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
	return nil
}

// AppendFrame appends payload with its length prefix to dst.
func AppendFrame(dst, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return dst, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}

// EncodeEntry returns e as one framed msgpack payload.
func EncodeEntry(e *Entry) ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, &FrameError{Kind: FrameErrorUnknownType, Msg: "invalid entry", Err: err}
	}
	payload, err := msgpack.Marshal(e)
	if err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to encode entry", Err: err}
	}
	return AppendFrame(make([]byte, 0, LengthPrefixSize+len(payload)), payload)
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// ReadEntry reads and decodes the next entry.
// Returns io.EOF at a clean end of stream.
func (d *FrameDecoder) ReadEntry() (*Entry, error) {
	payload, err := d.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeEntry(payload)
}

// DecodeEntry decodes a payload as an Entry.
func DecodeEntry(payload []byte) (*Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(payload, &e); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode entry",
			Err:  err,
		}
	}
	if err := e.validate(); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorUnknownType,
			Msg:  "invalid entry",
			Err:  err,
		}
	}
	return &e, nil
}
