// Package cmd provides CLI commands for the sluice binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}

	// ConfigFlag points at a sluice.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to sluice.yaml config file",
		EnvVars: []string{"SLUICE_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// SourceFlags select the records read by list, stats and inspect.
func SourceFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{Name: "journal", Usage: "Read records from this journal file"},
		&cli.StringFlag{Name: "manifest", Usage: "Read records from this manifest dataset root"},
	}
}

// StorageFlags override the storage section of the config file.
func StorageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "storage-backend", Usage: "Storage backend: fs, lode or s3"},
		&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs, lode: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "storage-prefix", Usage: "Key prefix inside the store"},
		&cli.StringFlag{Name: "storage-region", Usage: "AWS region for the s3 backend"},
		&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom S3 endpoint (R2, MinIO)"},
		&cli.BoolFlag{Name: "storage-s3-path-style", Usage: "Use path-style S3 addressing"},
	}
}

// RecorderFlags override where upload records are written.
func RecorderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "journal", Usage: "Append upload records to this journal file"},
		&cli.StringFlag{Name: "manifest", Usage: "Write upload records to a manifest dataset at this directory"},
		&cli.StringFlag{Name: "adapter", Usage: "Event adapter: webhook or redis"},
		&cli.StringFlag{Name: "adapter-url", Usage: "Webhook endpoint or Redis URL"},
		&cli.StringFlag{Name: "adapter-channel", Usage: "Redis pub/sub channel"},
	}
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
