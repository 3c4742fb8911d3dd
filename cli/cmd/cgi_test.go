package cmd

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func setCGIEnv(t *testing.T, method, contentType string, contentLength int) {
	t.Helper()
	t.Setenv("REQUEST_METHOD", method)
	t.Setenv("CONTENT_TYPE", contentType)
	t.Setenv("REMOTE_ADDR", "192.0.2.7")
	t.Setenv("HTTP_CONTENT_ENCODING", "")
	if contentLength >= 0 {
		t.Setenv("CONTENT_LENGTH", strconv.Itoa(contentLength))
	} else {
		t.Setenv("CONTENT_LENGTH", "")
	}
}

func TestCGI_Upload(t *testing.T) {
	uploads := t.TempDir()
	body := requestBody(true, filePart("doc", "photo.png", "png-bytes"))
	setCGIEnv(t, "POST", "multipart/form-data; boundary="+testBoundary, len(body))

	// Bytes past CONTENT_LENGTH must not be read.
	res := runApp(t, body+"trailing garbage", "cgi", "--storage-path", uploads, "--log-level", "error")
	if res.code() != exitSuccess {
		t.Fatalf("exit code = %d (err=%v, stderr=%s)", res.code(), res.err, res.errOut)
	}
	if want := "Content-type: text/plain\n\n1 file uploaded\n"; res.out != want {
		t.Errorf("response = %q, want %q", res.out, want)
	}
	if names := storedFiles(t, uploads); len(names) != 1 {
		t.Errorf("stored = %v, want 1 file", names)
	}
}

func TestCGI_RecordsRemoteAddr(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "sluice.journal")
	body := requestBody(true, fieldPart("note", "hi"))
	setCGIEnv(t, "POST", "multipart/form-data; boundary="+testBoundary, len(body))

	res := runApp(t, body, "cgi", "--storage-path", filepath.Join(dir, "uploads"), "--journal", journalPath, "--log-level", "error")
	if res.code() != exitSuccess {
		t.Fatalf("exit code = %d (err=%v)", res.code(), res.err)
	}
	if !strings.Contains(res.out, "0 files uploaded") {
		t.Errorf("response = %q", res.out)
	}

	list := runApp(t, "", "list", "requests", "--journal", journalPath, "--format", "yaml")
	if list.err != nil {
		t.Fatalf("list requests: %v", list.err)
	}
	if !strings.Contains(list.out, "status: success") {
		t.Errorf("list output = %q", list.out)
	}
}

func TestCGI_FailedRequestExitsZero(t *testing.T) {
	body := "--" + testBoundary + "\r\nX-Note: no disposition\r\n\r\nbody\r\n--" + testBoundary + "--\r\n"
	setCGIEnv(t, "POST", "multipart/form-data; boundary="+testBoundary, len(body))

	res := runApp(t, body, "cgi", "--storage-path", t.TempDir(), "--log-level", "error")
	if res.code() != 0 {
		t.Fatalf("exit code = %d, want 0 (err=%v)", res.code(), res.err)
	}
	if !strings.HasPrefix(res.out, "Content-type: text/plain\n\n") || !strings.Contains(res.out, "Content-Disposition") {
		t.Errorf("response = %q", res.out)
	}
}

func TestCGI_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		wantMsg     string
	}{
		{"get method", "GET", "multipart/form-data; boundary=x", "method GET not allowed"},
		{"not multipart", "POST", "text/plain", "multipart"},
		{"missing boundary", "POST", "multipart/form-data", "boundary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setCGIEnv(t, tt.method, tt.contentType, 0)
			res := runApp(t, "", "cgi", "--storage-path", t.TempDir())
			if res.code() != 0 {
				t.Errorf("exit code = %d, want 0 once the response is written", res.code())
			}
			if !strings.HasPrefix(res.out, "Content-type: text/plain\n\n") {
				t.Errorf("response missing CGI header: %q", res.out)
			}
			if !strings.Contains(res.out, tt.wantMsg) {
				t.Errorf("response = %q, want it to contain %q", res.out, tt.wantMsg)
			}
		})
	}
}

func TestCGI_ConfigErrorHidesDetails(t *testing.T) {
	setCGIEnv(t, "POST", "multipart/form-data; boundary="+testBoundary, 0)

	res := runApp(t, "", "cgi", "--storage-backend", "tape")
	if res.code() != 0 {
		t.Fatalf("exit code = %d, want 0 once the response is written", res.code())
	}
	if want := "Content-type: text/plain\n\n" + cgiConfigError + "\n"; res.out != want {
		t.Errorf("response = %q, want %q", res.out, want)
	}
	if strings.Contains(res.out, "tape") {
		t.Error("response should not leak config details")
	}
	if !strings.Contains(res.errOut, "tape") {
		t.Errorf("log should carry the config error, got %q", res.errOut)
	}
}

func TestReadCGIEnv(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantLength int64
		wantErr    bool
	}{
		{"absent length", map[string]string{"REQUEST_METHOD": "POST"}, -1, false},
		{"length", map[string]string{"CONTENT_LENGTH": "42"}, 42, false},
		{"padded length", map[string]string{"CONTENT_LENGTH": " 7 "}, 7, false},
		{"negative length", map[string]string{"CONTENT_LENGTH": "-1"}, 0, true},
		{"garbage length", map[string]string{"CONTENT_LENGTH": "lots"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := readCGIEnv(func(k string) string { return tt.env[k] })
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.contentLength != tt.wantLength {
				t.Errorf("contentLength = %d, want %d", req.contentLength, tt.wantLength)
			}
		})
	}
}
