// Package adapter defines the notification boundary for stored uploads.
//
// Adapters publish one event per stored file to downstream systems. The
// runtime owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"math"
	"time"

	"github.com/pithecene-io/sluice/types"
)

// EventTypeUploadRecorded is the event_type of every published event.
const EventTypeUploadRecorded = "upload_recorded"

// DefaultBackoff is the delay before the first retry; it doubles per retry.
const DefaultBackoff = 500 * time.Millisecond

// UploadRecordedEvent is the payload published when a file part is stored.
type UploadRecordedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "upload_recorded"
	RequestID       string `json:"request_id"`
	PartIndex       int    `json:"part_index"`
	FieldName       string `json:"field_name"`
	OriginalName    string `json:"original_name"`
	StoredName      string `json:"stored_name"`
	Location        string `json:"location"`
	ContentType     string `json:"content_type,omitempty"`
	Bytes           int64  `json:"bytes"`
	Truncated       bool   `json:"truncated"`
	Timestamp       string `json:"timestamp"` // ISO 8601
	DurationMs      int64  `json:"duration_ms"`
}

// NewUploadRecordedEvent builds the event for rec.
func NewUploadRecordedEvent(rec *types.UploadRecord) *UploadRecordedEvent {
	return &UploadRecordedEvent{
		ContractVersion: types.Version,
		EventType:       EventTypeUploadRecorded,
		RequestID:       rec.RequestID,
		PartIndex:       rec.PartIndex,
		FieldName:       rec.FieldName,
		OriginalName:    rec.OriginalName,
		StoredName:      rec.StoredName,
		Location:        rec.Location,
		ContentType:     rec.ContentType,
		Bytes:           rec.Bytes,
		Truncated:       rec.Truncated,
		Timestamp:       rec.Ts,
		DurationMs:      int64(math.Round(rec.ElapsedSeconds * 1000)),
	}
}

// Adapter publishes upload events to a downstream system.
type Adapter interface {
	// Publish sends an upload event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *UploadRecordedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the delay before retry attempt (1-based): base, 2*base, 4*base...
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(1<<uint(attempt-1)) * base
}
