package lode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"
)

func TestClassify_Messages(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		{"context deadline exceeded", "context deadline exceeded", ErrTimeout},
		{"timeout in message", "connection timeout after 30s", ErrTimeout},

		// access denied is checked before permission denied
		{"AccessDenied response", "AccessDenied: you do not have access", ErrAccessDenied},
		{"Forbidden response", "Forbidden", ErrAccessDenied},
		{"HTTP 403", "received status 403", ErrAccessDenied},

		{"permission denied", "permission denied for /srv/uploads", ErrPermissionDenied},
		{"EACCES errno", "open /tmp/file: EACCES", ErrPermissionDenied},

		{"no space left on device", "write /srv/uploads/a: no space left on device", ErrDiskFull},
		{"ENOSPC errno", "ENOSPC: write failed", ErrDiskFull},
		{"quota exceeded", "quota exceeded for user", ErrDiskFull},

		{"no such file", "no such file or directory", ErrNotFound},
		{"ENOENT errno", "open /missing: ENOENT", ErrNotFound},
		{"NoSuchBucket S3", "NoSuchBucket: The specified bucket does not exist", ErrNotFound},

		{"path exists", "lode: path exists", ErrExists},

		{"HTTP 429", "received status 429", ErrThrottled},
		{"SlowDown S3", "SlowDown: please reduce request rate", ErrThrottled},

		{"NoCredentialProviders", "NoCredentialProviders: no valid credential providers", ErrAuth},
		{"ExpiredToken", "ExpiredToken: the security token has expired", ErrAuth},

		{"connection refused", "dial tcp 127.0.0.1:9000: connection refused", ErrNetwork},
		{"DNS resolution failure", "DNS lookup failed for bucket.s3.amazonaws.com", ErrNetwork},

		{"unrecognized error", "something completely unexpected happened", ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(errors.New(tt.errMsg))
			if got != tt.wantKind {
				t.Errorf("Classify(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

func TestClassify_TypedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"fs.ErrNotExist", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, ErrNotFound},
		{"fs.ErrExist", fmt.Errorf("create: %w", fs.ErrExist), ErrExists},
		{"fs.ErrPermission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, ErrPermissionDenied},
		{"ENOSPC", &fs.PathError{Op: "write", Path: "/x", Err: syscall.ENOSPC}, ErrDiskFull},
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"invalid name", fmt.Errorf("open: %w", ErrInvalidName), ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "write", "a") != nil {
		t.Error("Wrap(nil) != nil")
	}

	cause := errors.New("no space left on device")
	err := Wrap(cause, "write", "20240309-070502-a.txt")

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("Wrap returned %T, want *StorageError", err)
	}
	if se.Op != "write" || se.Path != "20240309-070502-a.txt" {
		t.Errorf("op/path = %q/%q", se.Op, se.Path)
	}
	if !errors.Is(err, ErrDiskFull) {
		t.Error("errors.Is(err, ErrDiskFull) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("cause lost from chain")
	}
	want := "write 20240309-070502-a.txt: no space left on device: no space left on device"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	// Already classified errors keep their original op.
	if again := Wrap(err, "commit", "other"); again != err {
		t.Errorf("Wrap rewrapped a StorageError: %v", again)
	}
}
