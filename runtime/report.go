package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/types"
)

// RequestReport is the structured JSON report written by --report.
type RequestReport struct {
	RequestID  string              `json:"request_id"`
	RemoteAddr string              `json:"remote_addr,omitempty"`
	Outcome    types.OutcomeStatus `json:"outcome"`
	Message    string              `json:"message"`
	ErrorKind  string              `json:"error_kind,omitempty"`
	ExitCode   int                 `json:"exit_code"`
	DurationMs int64               `json:"duration_ms"`
	BytesRead  int64               `json:"bytes_read"`
	Parts      int                 `json:"parts"`

	Names   *ReportNames      `json:"names"`
	Storage *ReportStorage    `json:"storage"`
	Metrics *metrics.Snapshot `json:"metrics"`

	Uploads []types.UploadRecord `json:"uploads"`
	Fields  []ReportField        `json:"fields,omitempty"`
}

// ReportNames holds name policy stats in the report.
type ReportNames struct {
	Derived   int64 `json:"derived"`
	Rewritten int64 `json:"rewritten"`
	Fallbacks int64 `json:"fallbacks"`
}

// ReportStorage holds storage stats in the report.
type ReportStorage struct {
	Backend   string `json:"backend"`
	Files     int    `json:"files"`
	Truncated int    `json:"truncated"`
	Bytes     int64  `json:"bytes"`
}

// ReportField is a text field in the report. Values are reported by size
// only.
type ReportField struct {
	Name      string `json:"name"`
	Bytes     int    `json:"bytes"`
	Truncated bool   `json:"truncated"`
}

// BuildRequestReport composes a RequestReport from a RequestResult.
// The exitCode is the process exit code that will be returned to the caller.
func BuildRequestReport(result *RequestResult, backend string, exitCode int) *RequestReport {
	snap := result.Metrics
	report := &RequestReport{
		RequestID:  result.Meta.RequestID,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		ExitCode:   exitCode,
		DurationMs: result.Duration.Milliseconds(),
		BytesRead:  result.BytesRead,
		Parts:      result.Parts,
		Names: &ReportNames{
			Derived:   result.NameStats.Derived,
			Rewritten: result.NameStats.Rewritten,
			Fallbacks: result.NameStats.Fallbacks,
		},
		Storage: &ReportStorage{Backend: backend},
		Metrics: &snap,
		Uploads: result.Uploads,
	}
	if report.Uploads == nil {
		report.Uploads = []types.UploadRecord{}
	}

	if result.Meta.RemoteAddr != nil {
		report.RemoteAddr = *result.Meta.RemoteAddr
	}
	if result.Outcome.ErrorKind != nil {
		report.ErrorKind = *result.Outcome.ErrorKind
	}

	for _, u := range result.Uploads {
		report.Storage.Files++
		report.Storage.Bytes += u.Bytes
		if u.Truncated {
			report.Storage.Truncated++
		}
	}
	for _, f := range result.Fields {
		report.Fields = append(report.Fields, ReportField{
			Name:      f.Name,
			Bytes:     len(f.Value),
			Truncated: f.Truncated,
		})
	}

	return report
}

// WriteRequestReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRequestReport(report *RequestReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRequestReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeRequestReportTo writes report JSON to any writer.
func writeRequestReportTo(report *RequestReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *RequestReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
