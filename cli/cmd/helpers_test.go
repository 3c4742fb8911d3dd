package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

const testBoundary = "cmdTestBoundary"

func requestBody(closed bool, parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("--" + testBoundary + "\r\n")
		b.WriteString(p)
		b.WriteString("\r\n")
	}
	if closed {
		b.WriteString("--" + testBoundary + "--\r\n")
	}
	return b.String()
}

func fieldPart(name, value string) string {
	return `Content-Disposition: form-data; name="` + name + "\"\r\n\r\n" + value
}

func filePart(name, filename, body string) string {
	return `Content-Disposition: form-data; name="` + name + `"; filename="` + filename + "\"\r\n" +
		"Content-Type: application/octet-stream\r\n\r\n" + body
}

type appResult struct {
	out    string
	errOut string
	err    error
}

// code returns the exit code the binary would use for the result.
func (r appResult) code() int {
	if r.err == nil {
		return 0
	}
	var exitCoder cli.ExitCoder
	if errors.As(r.err, &exitCoder) {
		return exitCoder.ExitCode()
	}
	return 1
}

// runApp runs the sluice commands in-process with stdin as input.
func runApp(t *testing.T, stdin string, args ...string) appResult {
	t.Helper()
	var out, errOut bytes.Buffer
	app := &cli.App{
		Name:           "sluice",
		Reader:         strings.NewReader(stdin),
		Writer:         &out,
		ErrWriter:      &errOut,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			DecodeCommand(),
			CGICommand(),
			ListCommand(),
			StatsCommand(),
			InspectCommand(),
			VersionCommand("abc123"),
		},
	}
	err := app.Run(append([]string{"sluice"}, args...))
	return appResult{out: out.String(), errOut: errOut.String(), err: err}
}

// storedFiles returns the names of files in dir.
func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func writeInput(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}
