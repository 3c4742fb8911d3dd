// Package metrics provides per-request metrics collection.
//
// The Collector accumulates counters while one request is decoded. It is a
// leaf package with no internal dependencies. Name policy counters are
// absorbed from policy.Stats at request completion rather than recorded live.
package metrics

import (
	"maps"
	"sync"
)

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Request lifecycle
	RequestsStarted   int64 `json:"requests_started"`
	RequestsCompleted int64 `json:"requests_completed"`
	RequestsTruncated int64 `json:"requests_truncated"`
	RequestsFailed    int64 `json:"requests_failed"`
	RequestsCanceled  int64 `json:"requests_canceled"`

	// Parts
	PartsDecoded    int64 `json:"parts_decoded"`
	FilesStored     int64 `json:"files_stored"`
	FilesTruncated  int64 `json:"files_truncated"`
	FilesSkipped    int64 `json:"files_skipped"`
	FieldsRead      int64 `json:"fields_read"`
	FieldsTruncated int64 `json:"fields_truncated"`
	BytesStored     int64 `json:"bytes_stored"`
	FieldBytes      int64 `json:"field_bytes"`

	// Failures by transfer or decoder error kind
	ErrorsByKind map[string]int64 `json:"errors_by_kind"`

	// Storage (per stored object)
	StorageWriteSuccess int64 `json:"storage_write_success"`
	StorageWriteFailure int64 `json:"storage_write_failure"`

	// Recorders (per record per recorder)
	RecordSuccess int64 `json:"record_success"`
	RecordFailure int64 `json:"record_failure"`

	// Names (absorbed from policy.Stats at request completion)
	NamesDerived   int64 `json:"names_derived"`
	NamesRewritten int64 `json:"names_rewritten"`

	// Dimensions (informational, set at construction)
	StorageBackend string `json:"storage_backend"`
	RequestID      string `json:"request_id"`
}

// Collector accumulates metrics during a single request.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	requestsStarted   int64
	requestsCompleted int64
	requestsTruncated int64
	requestsFailed    int64
	requestsCanceled  int64

	partsDecoded    int64
	filesStored     int64
	filesTruncated  int64
	filesSkipped    int64
	fieldsRead      int64
	fieldsTruncated int64
	bytesStored     int64
	fieldBytes      int64

	errorsByKind map[string]int64

	storageWriteSuccess int64
	storageWriteFailure int64

	recordSuccess int64
	recordFailure int64

	namesDerived   int64
	namesRewritten int64

	storageBackend string
	requestID      string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(storageBackend, requestID string) *Collector {
	return &Collector{
		errorsByKind:   make(map[string]int64),
		storageBackend: storageBackend,
		requestID:      requestID,
	}
}

func (c *Collector) add(counter *int64, n int64) {
	c.mu.Lock()
	*counter += n
	c.mu.Unlock()
}

// --- Request lifecycle ---

// IncRequestStarted records a request start.
func (c *Collector) IncRequestStarted() {
	if c == nil {
		return
	}
	c.add(&c.requestsStarted, 1)
}

// IncRequestCompleted records a request decoded through its close delimiter.
func (c *Collector) IncRequestCompleted() {
	if c == nil {
		return
	}
	c.add(&c.requestsCompleted, 1)
}

// IncRequestTruncated records a request whose input ended inside a part.
func (c *Collector) IncRequestTruncated() {
	if c == nil {
		return
	}
	c.add(&c.requestsTruncated, 1)
}

// IncRequestFailed records a request aborted by a fatal error.
func (c *Collector) IncRequestFailed() {
	if c == nil {
		return
	}
	c.add(&c.requestsFailed, 1)
}

// IncRequestCanceled records a request stopped by context cancellation.
func (c *Collector) IncRequestCanceled() {
	if c == nil {
		return
	}
	c.add(&c.requestsCanceled, 1)
}

// --- Parts ---

// IncPartDecoded records a decoded part header.
func (c *Collector) IncPartDecoded() {
	if c == nil {
		return
	}
	c.add(&c.partsDecoded, 1)
}

// AddFileStored records a stored file body of n bytes.
func (c *Collector) AddFileStored(n int64, truncated bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesStored++
	c.bytesStored += n
	if truncated {
		c.filesTruncated++
	}
	c.mu.Unlock()
}

// IncFileSkipped records a file part with an empty filename whose body was discarded.
func (c *Collector) IncFileSkipped() {
	if c == nil {
		return
	}
	c.add(&c.filesSkipped, 1)
}

// AddFieldRead records a text field of n retained bytes.
func (c *Collector) AddFieldRead(n int64, truncated bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fieldsRead++
	c.fieldBytes += n
	if truncated {
		c.fieldsTruncated++
	}
	c.mu.Unlock()
}

// IncError records a failure of the given kind (for example "sink_open").
func (c *Collector) IncError(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.errorsByKind == nil {
		c.errorsByKind = make(map[string]int64)
	}
	c.errorsByKind[kind]++
	c.mu.Unlock()
}

// --- Storage ---

// IncStorageWriteSuccess records a stored object committed by the backend.
func (c *Collector) IncStorageWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.storageWriteSuccess, 1)
}

// IncStorageWriteFailure records an object the backend failed to open or commit.
func (c *Collector) IncStorageWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.storageWriteFailure, 1)
}

// --- Recorders ---

// IncRecordSuccess records an upload record accepted by a recorder.
func (c *Collector) IncRecordSuccess() {
	if c == nil {
		return
	}
	c.add(&c.recordSuccess, 1)
}

// IncRecordFailure records an upload record rejected by a recorder.
func (c *Collector) IncRecordFailure() {
	if c == nil {
		return
	}
	c.add(&c.recordFailure, 1)
}

// --- Names ---

// AbsorbNameStats copies name policy counters into the collector.
// Called once after request completion with the final policy stats snapshot.
func (c *Collector) AbsorbNameStats(derived, rewritten int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.namesDerived = derived
	c.namesRewritten = rewritten
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	errs := make(map[string]int64, len(c.errorsByKind))
	maps.Copy(errs, c.errorsByKind)

	return Snapshot{
		RequestsStarted:   c.requestsStarted,
		RequestsCompleted: c.requestsCompleted,
		RequestsTruncated: c.requestsTruncated,
		RequestsFailed:    c.requestsFailed,
		RequestsCanceled:  c.requestsCanceled,

		PartsDecoded:    c.partsDecoded,
		FilesStored:     c.filesStored,
		FilesTruncated:  c.filesTruncated,
		FilesSkipped:    c.filesSkipped,
		FieldsRead:      c.fieldsRead,
		FieldsTruncated: c.fieldsTruncated,
		BytesStored:     c.bytesStored,
		FieldBytes:      c.fieldBytes,

		ErrorsByKind: errs,

		StorageWriteSuccess: c.storageWriteSuccess,
		StorageWriteFailure: c.storageWriteFailure,

		RecordSuccess: c.recordSuccess,
		RecordFailure: c.recordFailure,

		NamesDerived:   c.namesDerived,
		NamesRewritten: c.namesRewritten,

		StorageBackend: c.storageBackend,
		RequestID:      c.requestID,
	}
}
