package lode

import (
	"context"
	"io"
	"path"
	"sync"

	"github.com/justapithecus/lode/lode"
	"golang.org/x/sync/errgroup"
)

// StoreOpener stores bodies as objects in a Lode store.
// The store is created lazily from its factory on the first Open.
type StoreOpener struct {
	factory lode.StoreFactory
	prefix  string
	backend string
	locate  func(key string) string

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewStoreOpener returns an opener writing objects under prefix.
// Use lode.NewFSFactory(root) for local storage and lode.NewMemoryFactory()
// in tests.
func NewStoreOpener(factory lode.StoreFactory, prefix string) *StoreOpener {
	return &StoreOpener{factory: factory, prefix: prefix, backend: BackendLode}
}

// Open starts a Put of name. Bytes written are piped to the store as they
// arrive; Close waits for the Put to finish and returns its error.
func (o *StoreOpener) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	store, err := o.getOrCreateStore()
	if err != nil {
		return nil, Wrap(err, "init", o.prefix)
	}

	key := o.key(name)
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := store.Put(gctx, key, pr)
		// Unblock the writer if the store returns before draining the pipe.
		_ = pr.CloseWithError(errPutReturned(err))
		return err
	})
	return &storeWriter{pw: pw, g: g, key: key}, nil
}

// Location returns the object key name is stored at.
func (o *StoreOpener) Location(name string) string {
	if o.locate != nil {
		return o.locate(o.key(name))
	}
	return o.key(name)
}

// Backend returns the backend name.
func (o *StoreOpener) Backend() string { return o.backend }

// Store returns the underlying store, creating it if needed.
func (o *StoreOpener) Store() (lode.Store, error) {
	return o.getOrCreateStore()
}

func (o *StoreOpener) key(name string) string {
	if o.prefix == "" {
		return name
	}
	return path.Join(o.prefix, name)
}

func (o *StoreOpener) getOrCreateStore() (lode.Store, error) {
	o.storeOnce.Do(func() {
		o.store, o.storeErr = o.factory()
	})
	return o.store, o.storeErr
}

func errPutReturned(err error) error {
	if err != nil {
		return err
	}
	return io.ErrClosedPipe
}

// storeWriter feeds an in-flight store Put.
type storeWriter struct {
	pw     *io.PipeWriter
	g      *errgroup.Group
	key    string
	closed bool
	err    error
}

func (w *storeWriter) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	if err != nil {
		return n, Wrap(err, "write", w.key)
	}
	return n, nil
}

// Close ends the object body and waits for the store to commit it.
func (w *storeWriter) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	_ = w.pw.Close()
	w.err = Wrap(w.g.Wait(), "commit", w.key)
	return w.err
}
