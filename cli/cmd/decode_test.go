package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pithecene-io/sluice/runtime"
	"github.com/pithecene-io/sluice/types"
)

func TestDecode_Stdin(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	body := requestBody(true,
		fieldPart("title", "hello"),
		filePart("doc", "report.txt", "file contents"),
	)

	res := runApp(t, body, "decode",
		"--boundary", testBoundary,
		"--storage-path", uploads,
		"--request-id", "req-1",
		"--log-level", "error",
	)
	if res.code() != exitSuccess {
		t.Fatalf("exit code = %d, want %d (err=%v, stderr=%s)", res.code(), exitSuccess, res.err, res.errOut)
	}
	for _, want := range []string{"request_id=req-1", "outcome=success", "1 file uploaded", "=== Fields ===", `title = "hello"`} {
		if !strings.Contains(res.out, want) {
			t.Errorf("output missing %q:\n%s", want, res.out)
		}
	}

	names := storedFiles(t, uploads)
	if len(names) != 1 || !strings.HasSuffix(names[0], "report.txt") {
		t.Fatalf("stored = %v, want one file ending in report.txt", names)
	}
	data, err := os.ReadFile(filepath.Join(uploads, names[0]))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "file contents" {
		t.Errorf("stored content = %q", data)
	}
}

func TestDecode_SniffsBoundary(t *testing.T) {
	uploads := t.TempDir()
	body := requestBody(true, filePart("doc", "a.bin", "abc"))

	res := runApp(t, body, "decode", "--storage-path", uploads, "--quiet", "--log-level", "error")
	if res.code() != exitSuccess {
		t.Fatalf("exit code = %d (err=%v, stderr=%s)", res.code(), res.err, res.errOut)
	}
	if res.out != "" {
		t.Errorf("--quiet output = %q, want empty", res.out)
	}
	if names := storedFiles(t, uploads); len(names) != 1 {
		t.Errorf("stored = %v, want 1 file", names)
	}
}

func TestDecode_TruncatedExitsZero(t *testing.T) {
	uploads := t.TempDir()
	body := requestBody(false, filePart("doc", "cut.bin", "partial"))
	// Drop the trailing CRLF so the input ends inside the body.
	body = strings.TrimSuffix(body, "\r\n")

	res := runApp(t, body, "decode", "--boundary", testBoundary, "--storage-path", uploads, "--log-level", "error")
	if res.code() != exitSuccess {
		t.Fatalf("exit code = %d, want %d (err=%v)", res.code(), exitSuccess, res.err)
	}
	if !strings.Contains(res.out, "outcome=truncated") {
		t.Errorf("output missing truncated outcome:\n%s", res.out)
	}
}

func TestDecode_FileInputWithReport(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	input := writeInput(t, dir, "body.txt", requestBody(true, filePart("doc", "x.txt", "12345")))
	reportPath := filepath.Join(dir, "report.json")

	res := runApp(t, "", "decode",
		"--boundary", testBoundary,
		"--storage-path", uploads,
		"--report", reportPath,
		"--quiet",
		"--log-level", "error",
		input,
	)
	if res.code() != exitSuccess {
		t.Fatalf("exit code = %d (err=%v, stderr=%s)", res.code(), res.err, res.errOut)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("ReadFile report: %v", err)
	}
	var report runtime.RequestReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.ExitCode != exitSuccess {
		t.Errorf("report exit code = %d", report.ExitCode)
	}
	if report.Outcome != types.OutcomeSuccess {
		t.Errorf("report outcome = %q", report.Outcome)
	}
}

func TestDecode_MissingInputFails(t *testing.T) {
	res := runApp(t, "", "decode",
		"--storage-path", t.TempDir(),
		filepath.Join(t.TempDir(), "missing.txt"),
	)
	if res.code() != exitFailed {
		t.Errorf("exit code = %d, want %d", res.code(), exitFailed)
	}
}

func TestDecode_DirectoryInputFails(t *testing.T) {
	res := runApp(t, "", "decode", "--storage-path", t.TempDir(), t.TempDir())
	if res.code() != exitFailed {
		t.Errorf("exit code = %d, want %d", res.code(), exitFailed)
	}
}

func TestDecode_ConfigErrors(t *testing.T) {
	dir := t.TempDir()
	a := writeInput(t, dir, "a.txt", "")
	b := writeInput(t, dir, "b.txt", "")
	badConfig := writeInput(t, dir, "sluice.yaml", "storage:\n  backend: tape\n")
	unknownKey := writeInput(t, dir, "unknown.yaml", "storage:\n  bucket: x\n")

	tests := []struct {
		name string
		args []string
	}{
		{"request-id with batch", []string{"decode", "--request-id", "r", a, b}},
		{"report with batch", []string{"decode", "--report", "-", a, b}},
		{"bad backend flag", []string{"decode", "--storage-backend", "tape", a}},
		{"bad backend in file", []string{"decode", "--config", badConfig, a}},
		{"unknown config key", []string{"decode", "--config", unknownKey, a}},
		{"missing config file", []string{"decode", "--config", filepath.Join(dir, "nope.yaml"), a}},
		{"bad log level", []string{"decode", "--log-level", "loud", a}},
		{"adapter without url", []string{"decode", "--adapter", "webhook", a}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runApp(t, "", tt.args...)
			if res.code() != exitConfig {
				t.Errorf("exit code = %d, want %d (err=%v)", res.code(), exitConfig, res.err)
			}
		})
	}
}

func TestDecode_ConfigFileFlagOverride(t *testing.T) {
	dir := t.TempDir()
	fromFile := filepath.Join(dir, "from-file")
	fromFlag := filepath.Join(dir, "from-flag")
	cfg := writeInput(t, dir, "sluice.yaml", "storage:\n  path: "+fromFile+"\nlog:\n  level: error\n")

	body := requestBody(true, filePart("doc", "a.txt", "abc"))
	res := runApp(t, body, "decode", "--config", cfg, "--storage-path", fromFlag, "--boundary", testBoundary, "--quiet")
	if res.code() != exitSuccess {
		t.Fatalf("exit code = %d (err=%v)", res.code(), res.err)
	}
	if names := storedFiles(t, fromFlag); len(names) != 1 {
		t.Errorf("flag directory holds %v, want 1 file", names)
	}
	if _, err := os.Stat(fromFile); !os.IsNotExist(err) {
		t.Errorf("config directory should not be created, stat err = %v", err)
	}
}

func TestDecode_Batch(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	journalPath := filepath.Join(dir, "sluice.journal")
	a := writeInput(t, dir, "a.txt", requestBody(true, filePart("doc", "first.txt", "one")))
	b := writeInput(t, dir, "b.txt", requestBody(true, filePart("doc", "second.txt", "two")))

	res := runApp(t, "", "decode",
		"--boundary", testBoundary,
		"--storage-path", uploads,
		"--journal", journalPath,
		"--parallel", "2",
		"--log-level", "error",
		a, b,
	)
	if res.code() != exitSuccess {
		t.Fatalf("exit code = %d (err=%v, stderr=%s)", res.code(), res.err, res.errOut)
	}
	if names := storedFiles(t, uploads); len(names) != 2 {
		t.Errorf("stored = %v, want 2 files", names)
	}

	list := runApp(t, "", "list", "requests", "--journal", journalPath, "--format", "json")
	if list.err != nil {
		t.Fatalf("list requests: %v", list.err)
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(list.out), &items); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, list.out)
	}
	if len(items) != 2 {
		t.Errorf("requests = %d, want 2", len(items))
	}
}

func TestDecode_BatchWithFailureExitsOne(t *testing.T) {
	dir := t.TempDir()
	good := writeInput(t, dir, "good.txt", requestBody(true, filePart("doc", "ok.txt", "ok")))
	missing := filepath.Join(dir, "missing.txt")

	res := runApp(t, "", "decode",
		"--boundary", testBoundary,
		"--storage-path", filepath.Join(dir, "uploads"),
		"--log-level", "error",
		good, missing,
	)
	if res.code() != exitFailed {
		t.Errorf("exit code = %d, want %d", res.code(), exitFailed)
	}
}

func TestOutcomeToExitCode(t *testing.T) {
	tests := []struct {
		status types.OutcomeStatus
		want   int
	}{
		{types.OutcomeSuccess, exitSuccess},
		{types.OutcomeTruncated, exitSuccess},
		{types.OutcomeFailed, exitFailed},
		{types.OutcomeCanceled, exitCanceled},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := outcomeToExitCode(tt.status); got != tt.want {
				t.Errorf("outcomeToExitCode(%s) = %d, want %d", tt.status, got, tt.want)
			}
		})
	}
}

func TestNewRequestMeta(t *testing.T) {
	meta := newRequestMeta("", "")
	if meta.RequestID == "" {
		t.Error("RequestID should default to a generated ID")
	}
	if meta.RemoteAddr != nil {
		t.Error("RemoteAddr should be nil when empty")
	}

	meta = newRequestMeta("req-9", "10.0.0.1")
	if meta.RequestID != "req-9" {
		t.Errorf("RequestID = %q", meta.RequestID)
	}
	if meta.RemoteAddr == nil || *meta.RemoteAddr != "10.0.0.1" {
		t.Errorf("RemoteAddr = %v", meta.RemoteAddr)
	}
}
