package types

import (
	"errors"
	"time"
)

// TimestampFormat is the layout of record timestamps (ISO 8601, UTC).
const TimestampFormat = time.RFC3339Nano

// UploadRecord describes one stored file part. It is produced once per file
// part after its body transfer ends and is handed to recorders; the decoder
// does not retain it.
type UploadRecord struct {
	// RecordVersion is the record format version.
	RecordVersion string `msgpack:"record_version" json:"record_version"`
	// RequestID is the request the part belongs to.
	RequestID string `msgpack:"request_id" json:"request_id"`
	// PartIndex is the 1-based position of the part in the request.
	PartIndex int `msgpack:"part_index" json:"part_index"`
	// FieldName is the form field name.
	FieldName string `msgpack:"field_name" json:"field_name"`
	// OriginalName is the client-supplied file name.
	OriginalName string `msgpack:"original_name" json:"original_name"`
	// StoredName is the name the body was stored under.
	StoredName string `msgpack:"stored_name" json:"stored_name"`
	// Location is the backend-specific address of the stored body.
	Location string `msgpack:"location" json:"location"`
	// ContentType is the part Content-Type, if sent.
	ContentType string `msgpack:"content_type,omitempty" json:"content_type,omitempty"`
	// Bytes is the number of body bytes stored.
	Bytes int64 `msgpack:"bytes" json:"bytes"`
	// ElapsedSeconds is the wall time spent transferring the body.
	ElapsedSeconds float64 `msgpack:"elapsed_seconds" json:"elapsed_seconds"`
	// Truncated reports that the input ended before the closing boundary.
	Truncated bool `msgpack:"truncated" json:"truncated"`
	// Ts is the completion timestamp in ISO 8601 UTC format.
	Ts string `msgpack:"ts" json:"ts"`
}

// Validate checks required fields.
func (r *UploadRecord) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id must be non-empty")
	}
	if r.StoredName == "" {
		return errors.New("stored_name must be non-empty")
	}
	if r.Bytes < 0 {
		return errors.New("bytes must be >= 0")
	}
	return nil
}

// Time parses Ts.
func (r *UploadRecord) Time() (time.Time, error) {
	return time.Parse(TimestampFormat, r.Ts)
}

// FieldRecord is a decoded text field.
type FieldRecord struct {
	Name  string `msgpack:"name" json:"name"`
	Value string `msgpack:"value" json:"value"`
	// Truncated reports that the value exceeded the field size limit.
	Truncated bool `msgpack:"truncated" json:"truncated"`
}

// RequestSummary is the per-request entry written after the last part.
type RequestSummary struct {
	RecordVersion   string        `msgpack:"record_version" json:"record_version"`
	RequestID       string        `msgpack:"request_id" json:"request_id"`
	RemoteAddr      *string       `msgpack:"remote_addr,omitempty" json:"remote_addr,omitempty"`
	Status          OutcomeStatus `msgpack:"status" json:"status"`
	Message         string        `msgpack:"message" json:"message"`
	Parts           int           `msgpack:"parts" json:"parts"`
	Files           int           `msgpack:"files" json:"files"`
	Fields          int           `msgpack:"fields" json:"fields"`
	Bytes           int64         `msgpack:"bytes" json:"bytes"`
	DurationSeconds float64       `msgpack:"duration_seconds" json:"duration_seconds"`
	Ts              string        `msgpack:"ts" json:"ts"`
}

// FormatTimestamp renders t in the record timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
