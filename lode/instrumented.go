package lode

import (
	"context"
	"io"

	"github.com/pithecene-io/sluice/metrics"
)

// InstrumentedOpener wraps an Opener and records storage write metrics.
// Each stored object increments storage_write_success or
// storage_write_failure once: at Open when the destination cannot be
// created, otherwise at Close.
type InstrumentedOpener struct {
	inner     Opener
	collector *metrics.Collector
}

// NewInstrumentedOpener wraps an opener with metrics instrumentation.
func NewInstrumentedOpener(inner Opener, collector *metrics.Collector) *InstrumentedOpener {
	return &InstrumentedOpener{inner: inner, collector: collector}
}

// Open delegates to the inner opener.
func (o *InstrumentedOpener) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	w, err := o.inner.Open(ctx, name)
	if err != nil {
		o.collector.IncStorageWriteFailure()
		return nil, err
	}
	return &instrumentedWriter{WriteCloser: w, collector: o.collector}, nil
}

// Location delegates to the inner opener.
func (o *InstrumentedOpener) Location(name string) string {
	return o.inner.Location(name)
}

// Backend delegates to the inner opener.
func (o *InstrumentedOpener) Backend() string {
	return o.inner.Backend()
}

type instrumentedWriter struct {
	io.WriteCloser
	collector *metrics.Collector
	failed    bool
	done      bool
}

func (w *instrumentedWriter) Write(p []byte) (int, error) {
	n, err := w.WriteCloser.Write(p)
	if err != nil {
		w.failed = true
	}
	return n, err
}

func (w *instrumentedWriter) Close() error {
	err := w.WriteCloser.Close()
	if w.done {
		return err
	}
	w.done = true
	if err != nil || w.failed {
		w.collector.IncStorageWriteFailure()
	} else {
		w.collector.IncStorageWriteSuccess()
	}
	return err
}

// Verify InstrumentedOpener implements Opener.
var _ Opener = (*InstrumentedOpener)(nil)
