package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/sluice/lode"
	"github.com/pithecene-io/sluice/types"
)

// ErrRequestNotFound is returned by InspectRequest when no record mentions
// the request.
var ErrRequestNotFound = errors.New("request not found")

// ListUploads returns stored uploads matching opts, oldest first.
func ListUploads(ctx context.Context, src Source, opts ListOptions) ([]ListUploadItem, error) {
	recs, err := src.Uploads(ctx, lode.Filter{Day: opts.Day, RequestID: opts.RequestID})
	if err != nil {
		return nil, fmt.Errorf("read uploads: %w", err)
	}

	items := make([]ListUploadItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, ListUploadItem{
			RequestID:    rec.RequestID,
			PartIndex:    rec.PartIndex,
			FieldName:    rec.FieldName,
			OriginalName: rec.OriginalName,
			StoredName:   rec.StoredName,
			Bytes:        rec.Bytes,
			Truncated:    rec.Truncated,
			Ts:           rec.Ts,
		})
	}
	return limit(items, opts.Limit), nil
}

// ListRequests returns request summaries matching opts, oldest first.
func ListRequests(ctx context.Context, src Source, opts ListOptions) ([]ListRequestItem, error) {
	sums, err := src.Requests(ctx, lode.Filter{Day: opts.Day, RequestID: opts.RequestID})
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	items := make([]ListRequestItem, 0, len(sums))
	for _, sum := range sums {
		if opts.Status != "" && sum.Status != opts.Status {
			continue
		}
		items = append(items, ListRequestItem{
			RequestID: sum.RequestID,
			Status:    sum.Status,
			Files:     sum.Files,
			Fields:    sum.Fields,
			Bytes:     sum.Bytes,
			Ts:        sum.Ts,
		})
	}
	return limit(items, opts.Limit), nil
}

// StatsUploads aggregates the requests and uploads matching f.
func StatsUploads(ctx context.Context, src Source, f lode.Filter) (*UploadStats, error) {
	sums, err := src.Requests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}
	recs, err := src.Uploads(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read uploads: %w", err)
	}

	stats := &UploadStats{Requests: len(sums)}
	for _, sum := range sums {
		switch sum.Status {
		case types.OutcomeSuccess:
			stats.Succeeded++
		case types.OutcomeTruncated:
			stats.Truncated++
		case types.OutcomeFailed:
			stats.Failed++
		case types.OutcomeCanceled:
			stats.Canceled++
		}
		stats.observeTs(sum.Ts)
	}

	var elapsed float64
	for _, rec := range recs {
		stats.Files++
		stats.Bytes += rec.Bytes
		if rec.Truncated {
			stats.TruncatedFiles++
		}
		if rec.Bytes > stats.LargestFile {
			stats.LargestFile = rec.Bytes
		}
		elapsed += rec.ElapsedSeconds
		stats.observeTs(rec.Ts)
	}
	if elapsed > 0 {
		stats.BytesPerSecond = float64(stats.Bytes) / elapsed
	}
	return stats, nil
}

// observeTs widens the first/last window. Timestamps share one UTC layout,
// so unparseable values are skipped and the rest compare as times.
func (s *UploadStats) observeTs(ts string) {
	t, err := parseTs(ts)
	if err != nil {
		return
	}
	if first, err := parseTs(s.FirstTs); err != nil || t.Before(first) {
		s.FirstTs = ts
	}
	if last, err := parseTs(s.LastTs); err != nil || t.After(last) {
		s.LastTs = ts
	}
}

// InspectRequest returns the summary and uploads of one request. Summary is
// nil when the request was recorded without one (for example after a crash).
func InspectRequest(ctx context.Context, src Source, requestID string) (*InspectRequestResponse, error) {
	f := lode.Filter{RequestID: requestID}
	sums, err := src.Requests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}
	recs, err := src.Uploads(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read uploads: %w", err)
	}
	if len(sums) == 0 && len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}

	resp := &InspectRequestResponse{RequestID: requestID, Uploads: recs}
	if resp.Uploads == nil {
		resp.Uploads = []types.UploadRecord{}
	}
	if len(sums) > 0 {
		last := sums[len(sums)-1]
		resp.Summary = &last
	}
	return resp, nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
