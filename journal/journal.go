// Package journal implements the upload log: an append-only file of
// length-prefixed msgpack frames, one per stored file and one per request.
//
// Frame format: a 4-byte big-endian payload length followed by a msgpack
// encoded Entry. Each entry is written with a single write call, so a crash
// can leave at most one partial frame at the end of the file.
package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pithecene-io/sluice/types"
)

// Journal appends entries to a file. Safe for concurrent use.
type Journal struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	closed bool
}

// Open opens path for appending, creating it and its directory if needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{path: path, f: f}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// RecordUpload appends an upload entry.
func (j *Journal) RecordUpload(ctx context.Context, rec *types.UploadRecord) error {
	return j.Append(ctx, &Entry{Type: EntryTypeUpload, Upload: rec})
}

// RecordRequest appends a request summary entry.
func (j *Journal) RecordRequest(ctx context.Context, sum *types.RequestSummary) error {
	return j.Append(ctx, &Entry{Type: EntryTypeRequest, Request: sum})
}

// Append writes e as one frame.
func (j *Journal) Append(ctx context.Context, e *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := EncodeEntry(e)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return os.ErrClosed
	}
	if _, err := j.f.Write(frame); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Close closes the journal file. Closing twice is a no-op.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.f.Close()
}

// Read decodes every entry in r. Entries decoded before an error are
// returned along with it; a partial final frame yields a fatal *FrameError.
func Read(r io.Reader) ([]Entry, error) {
	dec := NewFrameDecoder(r)
	var entries []Entry
	for {
		e, err := dec.ReadEntry()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, *e)
	}
}

// ReadFile decodes every entry in the journal at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer func() { _ = f.Close() }()

	entries, err := Read(f)
	if err != nil {
		return entries, fmt.Errorf("read journal %s: %w", path, err)
	}
	return entries, nil
}

// Uploads returns the upload records of entries in order.
func Uploads(entries []Entry) []types.UploadRecord {
	var out []types.UploadRecord
	for _, e := range entries {
		if e.Type == EntryTypeUpload && e.Upload != nil {
			out = append(out, *e.Upload)
		}
	}
	return out
}

// Requests returns the request summaries of entries in order.
func Requests(entries []Entry) []types.RequestSummary {
	var out []types.RequestSummary
	for _, e := range entries {
		if e.Type == EntryTypeRequest && e.Request != nil {
			out = append(out, *e.Request)
		}
	}
	return out
}
