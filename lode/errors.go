package lode

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

// Sentinel errors for storage failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrPermissionDenied indicates a local permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates the target directory or bucket does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExists indicates the stored name is already taken in the backend.
	ErrExists = errors.New("already exists")

	// ErrDiskFull indicates storage is out of space (ENOSPC).
	ErrDiskFull = errors.New("no space left on device")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrAuth indicates missing or invalid credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrAccessDenied indicates valid credentials without permission (403).
	ErrAccessDenied = errors.New("access denied")

	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network error")

	// ErrInvalidName indicates a stored name that would escape its directory.
	ErrInvalidName = errors.New("invalid stored name")

	// ErrUnclassified is the kind of any storage failure not matched above.
	ErrUnclassified = errors.New("storage error")
)

// StorageError wraps a backend failure with its classification.
// The original error stays in the chain for errors.As.
type StorageError struct {
	// Kind is the sentinel used for classification (e.g. ErrDiskFull).
	Kind error
	// Op is the failed operation: "init", "open", "write", "commit" or "read".
	Op string
	// Path is the stored name or location involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the error's classification sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewStorageError creates a classified storage error.
func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Path: path, Err: err}
}

// Wrap classifies err and wraps it for op on path.
// Returns nil if err is nil. An error that is already a *StorageError is
// returned unchanged.
func Wrap(err error, op, path string) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return NewStorageError(Classify(err), op, path, err)
}

// Classify returns the sentinel that best describes err.
// Typed errors are checked before message patterns.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{ErrInvalidName, ErrExists, ErrNotFound} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	switch {
	case errors.Is(err, fs.ErrExist):
		return ErrExists
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, syscall.ENOSPC):
		return ErrDiskFull
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "accessdenied", "forbidden", "403"):
		return ErrAccessDenied
	case containsAny(msg, "permission denied", "eacces"):
		return ErrPermissionDenied
	case containsAny(msg, "no such file", "does not exist", "enoent", "nosuchkey", "nosuchbucket", "404"):
		return ErrNotFound
	case containsAny(msg, "already exists", "path exists"):
		return ErrExists
	case containsAny(msg, "no space left", "enospc", "disk full", "quota exceeded"):
		return ErrDiskFull
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrTimeout
	case containsAny(msg, "slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"):
		return ErrThrottled
	case containsAny(msg, "nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"):
		return ErrAuth
	case containsAny(msg, "connection refused", "no route to host", "network unreachable",
		"no such host", "dns", "dial tcp"):
		return ErrNetwork
	default:
		return ErrUnclassified
	}
}

// containsAny reports whether lowered s contains any of the lowercase substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
