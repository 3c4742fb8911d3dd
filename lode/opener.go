// Package lode provides storage backends for uploaded file bodies and the
// upload manifest dataset.
//
// An Opener creates the destination for one stored name. Backends are the
// local filesystem (DirOpener) and any Lode store (StoreOpener), which covers
// Lode's filesystem, in-memory and S3 stores. Failures are classified as
// *StorageError values.
package lode

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pithecene-io/sluice/transfer"
)

// Backend names reported by openers and used in configuration.
const (
	BackendFS   = "fs"
	BackendLode = "lode"
	BackendS3   = "s3"
)

// Opener creates the destination for a stored file body.
type Opener interface {
	// Open creates (or truncates) the destination for name.
	// The body is committed when the returned writer is closed.
	Open(ctx context.Context, name string) (io.WriteCloser, error)

	// Location returns the backend address name is stored at.
	Location(name string) string

	// Backend returns the backend name (fs, lode, s3).
	Backend() string
}

// OpenFunc adapts o to a transfer.OpenFunc bound to ctx.
func OpenFunc(ctx context.Context, o Opener) transfer.OpenFunc {
	return func(name string) (io.WriteCloser, error) {
		return o.Open(ctx, name)
	}
}

// ValidateName rejects stored names that are empty or that would leave the
// storage directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return NewStorageError(ErrInvalidName, "open", name, fmt.Errorf("%q", name))
	}
	return nil
}

// DirOpener stores bodies as files in a local directory.
type DirOpener struct {
	dir string
}

// NewDirOpener returns an opener for dir. The directory is created on
// first use when it does not exist.
func NewDirOpener(dir string) *DirOpener {
	return &DirOpener{dir: dir}
}

// Open creates or truncates dir/name.
func (o *DirOpener) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Wrap(err, "open", name)
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil, Wrap(err, "init", o.dir)
	}
	path := o.Location(name)
	f, err := transfer.OpenFile(path)
	if err != nil {
		return nil, Wrap(err, "open", path)
	}
	return &fileWriter{f: f, path: path}, nil
}

// Location returns the file path name is stored at.
func (o *DirOpener) Location(name string) string {
	return filepath.Join(o.dir, name)
}

// Backend returns BackendFS.
func (o *DirOpener) Backend() string { return BackendFS }

// Dir returns the storage directory.
func (o *DirOpener) Dir() string { return o.dir }

// fileWriter classifies write and close failures of a local file.
type fileWriter struct {
	f    io.WriteCloser
	path string
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	return n, Wrap(err, "write", w.path)
}

func (w *fileWriter) Close() error {
	return Wrap(w.f.Close(), "commit", w.path)
}

var (
	_ Opener = (*DirOpener)(nil)
	_ Opener = (*StoreOpener)(nil)
)
