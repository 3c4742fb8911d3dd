// Package types defines the domain types shared by the decoder runtime,
// storage, journal and CLI.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RequestMeta identifies one upload request.
type RequestMeta struct {
	// RequestID is the request identifier. Must be non-empty.
	RequestID string
	// RemoteAddr is the client address, when known.
	RemoteAddr *string
	// ContentLength is the declared body length, or -1 if unknown.
	ContentLength int64
}

// NewRequestMeta returns metadata with a fresh random request ID and an
// unknown content length.
func NewRequestMeta() RequestMeta {
	return RequestMeta{
		RequestID:     uuid.NewString(),
		ContentLength: -1,
	}
}

// Validate checks the metadata invariants.
func (m *RequestMeta) Validate() error {
	if m.RequestID == "" {
		return errors.New("request_id must be non-empty")
	}
	if m.ContentLength < -1 {
		return fmt.Errorf("content_length must be >= -1, got %d", m.ContentLength)
	}
	return nil
}

// OutcomeStatus is the final status of a request.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates every part was decoded up to the close delimiter.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeTruncated indicates the input ended inside a part body. Parts
	// stored before that point are kept; the last one is flagged truncated.
	OutcomeTruncated OutcomeStatus = "truncated"
	// OutcomeFailed indicates a fatal decode, storage or transfer error.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeCanceled indicates the request context was canceled.
	OutcomeCanceled OutcomeStatus = "canceled"
)

// IsSuccess reports whether the status maps to a clean exit.
func (s OutcomeStatus) IsSuccess() bool {
	return s == OutcomeSuccess || s == OutcomeTruncated
}

// RequestOutcome is the final outcome of a request.
type RequestOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus `msgpack:"status" json:"status"`
	// Message is a single human-readable line, suitable for a CGI response.
	Message string `msgpack:"message" json:"message"`
	// ErrorKind classifies a failure (for example "sink_open"), when known.
	ErrorKind *string `msgpack:"error_kind,omitempty" json:"error_kind,omitempty"`
}
