// Package main provides the sluice CLI entrypoint.
//
// Usage:
//
//	sluice <command> [subcommand] [options]
//
// Exit codes for `decode`:
//   - 0: success or truncated body
//   - 1: failed request
//   - 2: canceled by signal
//   - 3: configuration error
//
// `cgi` exits 0 once its response is written.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/cli/cmd"
	"github.com/pithecene-io/sluice/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "sluice",
		Usage:          "Streaming multipart/form-data upload decoder",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.DecodeCommand(),
			cmd.CGICommand(),
			cmd.ListCommand(),
			cmd.StatsCommand(),
			cmd.InspectCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(reportExit(err))
}

// reportExit prints the message of err, if any, and returns its exit code.
func reportExit(err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		return code
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
