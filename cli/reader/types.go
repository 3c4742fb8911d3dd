// Package reader provides the read-side data access layer for the sluice CLI.
//
// This package isolates read operations from the decoder runtime. Read-only
// commands (list, stats, inspect) go through it exclusively and see the same
// records whether they come from the journal or the manifest dataset.
package reader

import "github.com/pithecene-io/sluice/types"

// ListUploadItem is one row of list uploads.
type ListUploadItem struct {
	RequestID    string `json:"request_id"`
	PartIndex    int    `json:"part_index"`
	FieldName    string `json:"field_name"`
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	Bytes        int64  `json:"bytes"`
	Truncated    bool   `json:"truncated"`
	Ts           string `json:"ts"`
}

// ListRequestItem is one row of list requests.
type ListRequestItem struct {
	RequestID string              `json:"request_id"`
	Status    types.OutcomeStatus `json:"status"`
	Files     int                 `json:"files"`
	Fields    int                 `json:"fields"`
	Bytes     int64               `json:"bytes"`
	Ts        string              `json:"ts"`
}

// ListOptions filters list commands.
type ListOptions struct {
	Day       string
	RequestID string
	// Status filters requests by outcome. Ignored for uploads.
	Status types.OutcomeStatus
	// Limit caps the number of rows; 0 means no limit.
	Limit int
}

// UploadStats aggregates recorded requests and uploads.
type UploadStats struct {
	Requests  int `json:"requests"`
	Succeeded int `json:"succeeded"`
	Truncated int `json:"truncated"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`

	Files          int     `json:"files"`
	TruncatedFiles int     `json:"truncated_files"`
	Bytes          int64   `json:"bytes"`
	LargestFile    int64   `json:"largest_file"`
	BytesPerSecond float64 `json:"bytes_per_second"`

	FirstTs string `json:"first_ts,omitempty"`
	LastTs  string `json:"last_ts,omitempty"`
}

// InspectRequestResponse is the deep view of one request.
type InspectRequestResponse struct {
	RequestID string                `json:"request_id"`
	Summary   *types.RequestSummary `json:"summary"`
	Uploads   []types.UploadRecord  `json:"uploads"`
}
