package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(_ *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestReportExit(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"success", cli.Exit("", 0), 0},
		{"failed with message", cli.Exit("request failed", 1), 1},
		{"canceled", cli.Exit("", 2), 2},
		{"config error", cli.Exit("invalid config", 3), 3},
		{"wrapped", fmt.Errorf("decode: %w", cli.Exit("inner", 42)), 42},
		{"joined", errors.Join(errors.New("context"), cli.Exit("", 3)), 3},
		{"regular error", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reportExit(tt.err); got != tt.wantCode {
				t.Errorf("reportExit() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

// TestExitErrHandler_MessageSuppression verifies empty messages don't print.
func TestExitErrHandler_MessageSuppression(t *testing.T) {
	err := cli.Exit("", 0)
	msg := err.Error()

	if msg != "" && msg != "exit status 0" {
		t.Errorf("Expected empty or 'exit status 0', got %q", msg)
	}
}
