package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BatchConfig configures a batch of requests decoded from saved bodies.
type BatchConfig struct {
	// Parallel is the maximum number of concurrent requests. Default 1.
	Parallel int
	// MaxRequests caps the number of requests executed. Zero means unlimited.
	MaxRequests int
}

// BatchItem is one request of a batch.
type BatchItem struct {
	// Input is the path of the saved request body.
	Input string
	// DedupKey identifies the input; the same input runs once per batch.
	DedupKey string
	// RequestID is the assigned request id.
	RequestID string
}

// RequestFactory builds and executes the request for item.
type RequestFactory func(ctx context.Context, item BatchItem) (*RequestResult, error)

// BatchResult aggregates batch execution statistics.
type BatchResult struct {
	// RequestsTotal is the number of requests executed.
	RequestsTotal int64
	// RequestsSucceeded counts requests with a success or truncated outcome.
	RequestsSucceeded int64
	// RequestsFailed counts failed or canceled requests and setup errors.
	RequestsFailed int64
	// InputsDeduped counts inputs skipped as duplicates.
	InputsDeduped int64
	// InputsSkipped counts inputs skipped by MaxRequests or cancellation.
	InputsSkipped int64
	// Items lists the executed items in input order.
	Items []BatchItem
	// Results holds each request result, keyed by request id.
	Results map[string]*RequestResult
	// Errors holds setup errors, keyed by request id.
	Errors map[string]error
}

// Batch runs a set of requests with bounded concurrency.
type Batch struct {
	config  BatchConfig
	factory RequestFactory

	succeeded atomic.Int64
	failed    atomic.Int64

	mu      sync.Mutex
	results map[string]*RequestResult
	errs    map[string]error
}

// NewBatch creates a batch runner.
func NewBatch(config BatchConfig, factory RequestFactory) *Batch {
	if config.Parallel < 1 {
		config.Parallel = 1
	}
	return &Batch{
		config:  config,
		factory: factory,
		results: make(map[string]*RequestResult),
		errs:    make(map[string]error),
	}
}

// Plan assigns request ids to inputs, dropping duplicates and inputs past
// MaxRequests.
func (b *Batch) Plan(inputs []string) (items []BatchItem, deduped, skipped int64) {
	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		key := computeDedupKey(input)
		if _, dup := seen[key]; dup {
			deduped++
			continue
		}
		seen[key] = struct{}{}
		if b.config.MaxRequests > 0 && len(items) >= b.config.MaxRequests {
			skipped++
			continue
		}
		items = append(items, BatchItem{
			Input:     input,
			DedupKey:  key,
			RequestID: uuid.NewString(),
		})
	}
	return items, deduped, skipped
}

// Run executes every planned input. A failing request does not stop the
// others; cancellation of ctx stops dispatching new ones.
func (b *Batch) Run(ctx context.Context, inputs []string) BatchResult {
	items, deduped, skipped := b.Plan(inputs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Parallel)

	var started atomic.Int64
	for _, item := range items {
		if gctx.Err() != nil {
			skipped++
			continue
		}
		started.Add(1)
		g.Go(func() error {
			result, err := b.factory(gctx, item)
			b.collect(item, result, err)
			return nil
		})
	}
	_ = g.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	return BatchResult{
		RequestsTotal:     started.Load(),
		RequestsSucceeded: b.succeeded.Load(),
		RequestsFailed:    b.failed.Load(),
		InputsDeduped:     deduped,
		InputsSkipped:     skipped,
		Items:             items,
		Results:           maps.Clone(b.results),
		Errors:            maps.Clone(b.errs),
	}
}

func (b *Batch) collect(item BatchItem, result *RequestResult, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if result != nil {
		b.results[item.RequestID] = result
	}
	if err != nil {
		b.errs[item.RequestID] = err
	}
	if err != nil || result == nil || !result.Outcome.Status.IsSuccess() {
		b.failed.Add(1)
		return
	}
	b.succeeded.Add(1)
}

// computeDedupKey produces a deterministic key from the cleaned input path.
func computeDedupKey(input string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(input)))
	return hex.EncodeToString(sum[:])
}

// PrintBatchSummary writes a human-readable batch summary to w.
func PrintBatchSummary(w io.Writer, result BatchResult) {
	_, _ = fmt.Fprintf(w, "\n=== Batch Summary ===\n")
	_, _ = fmt.Fprintf(w, "Requests: %d total, %d succeeded, %d failed\n",
		result.RequestsTotal, result.RequestsSucceeded, result.RequestsFailed)
	_, _ = fmt.Fprintf(w, "Inputs:   %d deduped, %d skipped\n",
		result.InputsDeduped, result.InputsSkipped)

	if len(result.Results) == 0 && len(result.Errors) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n--- Request Results ---\n")
	ids := slices.Sorted(maps.Keys(result.Results))
	for _, id := range ids {
		res := result.Results[id]
		_, _ = fmt.Fprintf(w, "  %s: outcome=%s, files=%d, duration=%s\n",
			id, res.Outcome.Status, len(res.Uploads), res.Duration)
	}
	for _, id := range slices.Sorted(maps.Keys(result.Errors)) {
		if _, ok := result.Results[id]; ok {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s: error=%v\n", id, result.Errors[id])
	}
}
