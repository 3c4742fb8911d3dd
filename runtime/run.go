// Package runtime orchestrates the decoding of one upload request: parts
// are read with the form decoder, file bodies are streamed to storage, and
// every stored file is handed to the configured recorders.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pithecene-io/sluice/form"
	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/lode"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
	"github.com/pithecene-io/sluice/transfer"
	"github.com/pithecene-io/sluice/types"
)

// RequestConfig configures a single request.
type RequestConfig struct {
	// Source is the request body.
	Source io.Reader
	// Boundary is the multipart boundary without leading dashes.
	// If empty, it is read from the first line of Source.
	Boundary string
	// Meta is the request identity.
	Meta *types.RequestMeta
	// Form holds the decoder limits.
	Form form.Config
	// FieldMax is the capacity for text field values.
	// Zero selects form.DefaultFieldMax.
	FieldMax int
	// Names derives storage names. If nil, a policy with the default
	// denylist is used.
	Names *policy.NamePolicy
	// Opener stores file bodies.
	Opener lode.Opener
	// Recorders receive one record per stored file and the request summary.
	Recorders MultiRecorder
	// Collector is the metrics collector for this request.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// Logger overrides the default stderr logger.
	Logger *log.Logger
	// Now supplies the clock. Default is time.Now.
	Now func() time.Time
}

// RequestResult represents the result of a request.
type RequestResult struct {
	// Meta is the request identity.
	Meta *types.RequestMeta
	// Outcome is the request outcome.
	Outcome *types.RequestOutcome
	// Uploads holds one record per stored file, in part order.
	Uploads []types.UploadRecord
	// Fields holds the text fields, in part order.
	Fields []types.FieldRecord
	// Parts is the number of part headers decoded.
	Parts int
	// BytesRead is the number of request body bytes consumed.
	BytesRead int64
	// Duration is the total request duration.
	Duration time.Duration
	// NameStats counts the storage names derived for this request.
	NameStats policy.Stats
	// Metrics is the collector snapshot taken when the request finished.
	Metrics metrics.Snapshot
}

// Summary returns the per-request record handed to request recorders.
func (r *RequestResult) Summary() *types.RequestSummary {
	var stored int64
	for i := range r.Uploads {
		stored += r.Uploads[i].Bytes
	}
	return &types.RequestSummary{
		RecordVersion:   types.RecordVersion,
		RequestID:       r.Meta.RequestID,
		RemoteAddr:      r.Meta.RemoteAddr,
		Status:          r.Outcome.Status,
		Message:         r.Outcome.Message,
		Parts:           r.Parts,
		Files:           len(r.Uploads),
		Fields:          len(r.Fields),
		Bytes:           stored,
		DurationSeconds: r.Duration.Seconds(),
	}
}

// UploadOrchestrator orchestrates a single request.
type UploadOrchestrator struct {
	config    *RequestConfig
	logger    *log.Logger
	opener    lode.Opener
	now       func() time.Time
	startTime time.Time
}

// NewUploadOrchestrator creates a new upload orchestrator.
// Returns error if the request metadata or configuration is invalid.
func NewUploadOrchestrator(config *RequestConfig) (*UploadOrchestrator, error) {
	if config.Meta == nil {
		return nil, errors.New("request metadata is required")
	}
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request metadata: %w", err)
	}
	if config.Source == nil {
		return nil, errors.New("request source is required")
	}
	if config.Opener == nil {
		return nil, errors.New("storage opener is required")
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}
	if config.Names == nil {
		names, err := policy.NewNamePolicy(policy.NameConfig{Now: now})
		if err != nil {
			return nil, err
		}
		config.Names = names
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.Meta)
	}

	return &UploadOrchestrator{
		config: config,
		logger: logger,
		opener: lode.NewInstrumentedOpener(config.Opener, config.Collector),
		now:    now,
	}, nil
}

// requestState accumulates per-part results while the request is decoded.
type requestState struct {
	uploads       []types.UploadRecord
	fields        []types.FieldRecord
	truncatedPart int
	names         *policy.NameSet
}

// reserve makes name unique within the request.
func (s *requestState) reserve(name string) string {
	if s.names == nil {
		s.names = policy.NewNameSet()
	}
	return s.names.Reserve(name)
}

// Execute decodes the request end-to-end.
//
// Execution flow:
//  1. Decode part headers in order
//  2. Stream file bodies to storage and record each stored file
//  3. Read text fields into bounded buffers
//  4. Determine outcome
//  5. Record the request summary
//  6. Return result
//
// Decode, transfer and storage failures end the request and are reported in
// the result outcome. Only setup failures return an error.
func (r *UploadOrchestrator) Execute(ctx context.Context) (*RequestResult, error) {
	r.startTime = r.now()
	namesBefore := r.config.Names.Stats()

	src := iox.NewContextReader(ctx, r.config.Source)
	counter := iox.NewCountingReader(src)
	dec, err := form.NewDecoder(counter, r.config.Boundary, r.config.Form)
	if err != nil {
		return nil, fmt.Errorf("invalid decoder configuration: %w", err)
	}

	r.config.Collector.IncRequestStarted()
	r.logger.Info("starting request", map[string]any{
		"boundary":       r.config.Boundary,
		"content_length": r.config.Meta.ContentLength,
		"storage":        r.opener.Backend(),
	})

	var st requestState
	decodeErr := r.decode(ctx, dec, &st)

	canceled := src.Canceled()
	outcome := DetermineOutcome(decodeErr, canceled, st.truncatedPart, len(st.uploads))
	if decodeErr != nil && !canceled {
		r.logger.Error("request failed", map[string]any{
			"error":      decodeErr.Error(),
			"error_kind": *outcome.ErrorKind,
			"part":       dec.Parts(),
		})
	}

	result := r.buildResult(outcome, &st, dec.Parts(), counter.Count(), namesBefore)
	r.recordRequest(ctx, result)

	r.logger.Info("request completed", map[string]any{
		"outcome":  outcome.Status,
		"parts":    result.Parts,
		"files":    len(result.Uploads),
		"fields":   len(result.Fields),
		"bytes":    result.BytesRead,
		"duration": result.Duration.String(),
	})
	return result, nil
}

// decode runs the part loop. It returns the first fatal error.
func (r *UploadOrchestrator) decode(ctx context.Context, dec *form.Decoder, st *requestState) error {
	for {
		part, err := dec.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		r.config.Collector.IncPartDecoded()

		if part.IsFile() {
			err = r.storeFile(ctx, dec, part, st)
		} else {
			err = r.readField(dec, part, st)
		}
		if err != nil {
			return err
		}
	}
}

// storeFile streams one file body to storage and records it.
func (r *UploadOrchestrator) storeFile(ctx context.Context, dec *form.Decoder, part *form.Part, st *requestState) error {
	// Browsers send an empty filename for a file input left blank.
	if part.Filename == "" {
		if _, err := dec.ReadBody(&transfer.DiscardSink{}); err != nil {
			return err
		}
		r.config.Collector.IncFileSkipped()
		r.logger.Debug("skipping file part without filename", map[string]any{
			"part":  part.Index,
			"field": part.Name,
		})
		return nil
	}

	started := r.now()
	stored := st.reserve(r.config.Names.DeriveStoredNameAt(part.Filename, started))
	sink := transfer.NewFileSink(stored, lode.OpenFunc(ctx, r.opener))

	res, err := dec.ReadBody(sink)
	if err != nil {
		return err
	}
	finished := r.now()

	rec := types.UploadRecord{
		RecordVersion:  types.RecordVersion,
		RequestID:      r.config.Meta.RequestID,
		PartIndex:      part.Index,
		FieldName:      part.Name,
		OriginalName:   part.Filename,
		StoredName:     stored,
		Location:       r.opener.Location(stored),
		ContentType:    part.ContentType,
		Bytes:          res.Transferred,
		ElapsedSeconds: finished.Sub(started).Seconds(),
		Truncated:      !res.Found,
		Ts:             types.FormatTimestamp(finished),
	}
	if rec.Truncated {
		st.truncatedPart = part.Index
	}
	st.uploads = append(st.uploads, rec)
	r.config.Collector.AddFileStored(rec.Bytes, rec.Truncated)

	r.logger.Info("file stored", map[string]any{
		"part":          rec.PartIndex,
		"field":         rec.FieldName,
		"original_name": rec.OriginalName,
		"stored_name":   rec.StoredName,
		"location":      rec.Location,
		"bytes":         rec.Bytes,
		"elapsed":       rec.ElapsedSeconds,
		"truncated":     rec.Truncated,
	})

	r.recordUpload(ctx, &rec)
	return nil
}

// readField reads one text field into a bounded buffer.
func (r *UploadOrchestrator) readField(dec *form.Decoder, part *form.Part, st *requestState) error {
	f, err := dec.ReadField(r.config.FieldMax)
	if err != nil {
		return err
	}
	if !f.Complete {
		st.truncatedPart = part.Index
	}
	st.fields = append(st.fields, types.FieldRecord{
		Name:      f.Name,
		Value:     f.Value,
		Truncated: f.Truncated,
	})
	r.config.Collector.AddFieldRead(int64(len(f.Value)), f.Truncated)

	if f.Truncated {
		r.logger.Warn("field value truncated", map[string]any{
			"part":  part.Index,
			"field": f.Name,
		})
	}
	return nil
}

// recordUpload hands rec to every recorder. Recorder failures are logged
// and counted; they never fail the request.
func (r *UploadOrchestrator) recordUpload(ctx context.Context, rec *types.UploadRecord) {
	for i, err := range r.config.Recorders.RecordUploadEach(ctx, rec) {
		if err != nil {
			r.config.Collector.IncRecordFailure()
			r.logger.Warn("failed to record upload", map[string]any{
				"recorder":    i,
				"stored_name": rec.StoredName,
				"error":       err.Error(),
			})
			continue
		}
		r.config.Collector.IncRecordSuccess()
	}
}

// recordRequest hands the request summary to request recorders. The
// summary is written even when the request context is already canceled.
func (r *UploadOrchestrator) recordRequest(ctx context.Context, result *RequestResult) {
	sum := result.Summary()
	sum.Ts = types.FormatTimestamp(r.now())

	ctx = context.WithoutCancel(ctx)
	for i, err := range r.config.Recorders.RecordRequestEach(ctx, sum) {
		if err != nil {
			r.logger.Warn("failed to record request summary", map[string]any{
				"recorder": i,
				"error":    err.Error(),
			})
		}
	}
}

// buildResult constructs the final request result.
func (r *UploadOrchestrator) buildResult(
	outcome *types.RequestOutcome,
	st *requestState,
	parts int,
	bytesRead int64,
	namesBefore policy.Stats,
) *RequestResult {
	namesAfter := r.config.Names.Stats()
	result := &RequestResult{
		Meta:      r.config.Meta,
		Outcome:   outcome,
		Uploads:   st.uploads,
		Fields:    st.fields,
		Parts:     parts,
		BytesRead: bytesRead,
		Duration:  r.now().Sub(r.startTime),
		NameStats: policy.Stats{
			Derived:   namesAfter.Derived - namesBefore.Derived,
			Rewritten: namesAfter.Rewritten - namesBefore.Rewritten,
			Fallbacks: namesAfter.Fallbacks - namesBefore.Fallbacks,
		},
	}

	switch outcome.Status {
	case types.OutcomeSuccess:
		r.config.Collector.IncRequestCompleted()
	case types.OutcomeTruncated:
		r.config.Collector.IncRequestTruncated()
	case types.OutcomeFailed:
		r.config.Collector.IncRequestFailed()
		if outcome.ErrorKind != nil {
			r.config.Collector.IncError(*outcome.ErrorKind)
		}
	case types.OutcomeCanceled:
		r.config.Collector.IncRequestCanceled()
	}

	r.config.Collector.AbsorbNameStats(result.NameStats.Derived, result.NameStats.Rewritten)
	result.Metrics = r.config.Collector.Snapshot()
	return result
}
