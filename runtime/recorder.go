package runtime

import (
	"context"
	"errors"

	"github.com/pithecene-io/sluice/adapter"
	"github.com/pithecene-io/sluice/types"
)

// Recorder receives one record per completed file part.
type Recorder interface {
	RecordUpload(ctx context.Context, rec *types.UploadRecord) error
}

// RequestRecorder is implemented by recorders that also keep a per-request
// summary, such as the journal and the manifest.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, sum *types.RequestSummary) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec *types.UploadRecord) error

// RecordUpload calls f.
func (f RecorderFunc) RecordUpload(ctx context.Context, rec *types.UploadRecord) error {
	return f(ctx, rec)
}

// MultiRecorder fans a record out to every recorder in order.
// A failing recorder does not stop the others.
type MultiRecorder []Recorder

// RecordUpload records rec everywhere and joins the failures.
func (m MultiRecorder) RecordUpload(ctx context.Context, rec *types.UploadRecord) error {
	return errors.Join(m.RecordUploadEach(ctx, rec)...)
}

// RecordUploadEach records rec everywhere and returns one error per
// recorder, nil where it succeeded.
func (m MultiRecorder) RecordUploadEach(ctx context.Context, rec *types.UploadRecord) []error {
	errs := make([]error, len(m))
	for i, r := range m {
		errs[i] = r.RecordUpload(ctx, rec)
	}
	return errs
}

// RecordRequestEach hands sum to every recorder that implements
// RequestRecorder. Other recorders get a nil entry.
func (m MultiRecorder) RecordRequestEach(ctx context.Context, sum *types.RequestSummary) []error {
	errs := make([]error, len(m))
	for i, r := range m {
		if rr, ok := r.(RequestRecorder); ok {
			errs[i] = rr.RecordRequest(ctx, sum)
		}
	}
	return errs
}

// AdapterRecorder publishes an upload_recorded event per record.
type AdapterRecorder struct {
	Adapter adapter.Adapter
}

// RecordUpload publishes rec.
func (a *AdapterRecorder) RecordUpload(ctx context.Context, rec *types.UploadRecord) error {
	return a.Adapter.Publish(ctx, adapter.NewUploadRecordedEvent(rec))
}
