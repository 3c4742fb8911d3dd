package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/runtime"
	"github.com/pithecene-io/sluice/types"
)

// stdinInput names standard input as a decode input.
const stdinInput = "-"

// DecodeCommand returns the decode command.
// It decodes one or more multipart/form-data bodies from files or stdin.
func DecodeCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:  "boundary",
			Usage: "Multipart boundary (default: read from the first input line)",
		},
		&cli.StringFlag{
			Name:  "encoding",
			Usage: "Content-Encoding of the input: " + strings.Join(iox.SupportedEncodings(), ", ") + " (comma-separated when stacked)",
		},
		&cli.StringFlag{
			Name:  "request-id",
			Usage: "Request ID (single input only; default: random UUID)",
		},
		&cli.StringFlag{
			Name:  "remote-addr",
			Usage: "Client address recorded with the request",
		},
		&cli.IntFlag{
			Name:  "field-max",
			Usage: "Maximum stored size of a text field value in bytes",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Maximum concurrent requests when decoding several inputs",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "max-requests",
			Usage: "Maximum number of inputs decoded (0 = no limit)",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON request report to this path (\"-\" for stderr; single input only)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress result output",
		},
	}
	flags = append(flags, StorageFlags()...)
	flags = append(flags, RecorderFlags()...)

	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode multipart/form-data bodies and store their files",
		ArgsUsage: "[input...] (default: - for stdin)",
		Flags:     flags,
		Action:    decodeAction,
	}
}

func decodeAction(c *cli.Context) error {
	inputs := c.Args().Slice()
	if len(inputs) == 0 {
		inputs = []string{stdinInput}
	}
	if len(inputs) > 1 {
		if c.IsSet("request-id") {
			return cli.Exit("--request-id requires a single input", exitConfig)
		}
		if c.IsSet("report") {
			return cli.Exit("--report requires a single input", exitConfig)
		}
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitConfig)
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := buildPipeline(ctx, cfg, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	defer iox.DiscardErr(p.Close)

	opts := decodeOptions{
		boundary:   c.String("boundary"),
		encoding:   c.String("encoding"),
		remoteAddr: c.String("remote-addr"),
		stdin:      c.App.Reader,
	}

	if len(inputs) == 1 {
		meta := newRequestMeta(c.String("request-id"), opts.remoteAddr)
		return decodeSingle(ctx, c, p, inputs[0], &meta, opts)
	}
	return decodeBatch(ctx, c, p, inputs, opts)
}

// decodeOptions holds the per-input settings shared by every request.
type decodeOptions struct {
	boundary   string
	encoding   string
	remoteAddr string
	stdin      io.Reader
}

func newRequestMeta(requestID, remoteAddr string) types.RequestMeta {
	meta := types.NewRequestMeta()
	if requestID != "" {
		meta.RequestID = requestID
	}
	if remoteAddr != "" {
		meta.RemoteAddr = &remoteAddr
	}
	return meta
}

func decodeSingle(ctx context.Context, c *cli.Context, p *pipeline, input string, meta *types.RequestMeta, opts decodeOptions) error {
	result, err := p.decodeInput(ctx, input, meta, opts)
	if err != nil {
		return cli.Exit(err.Error(), exitFailed)
	}
	code := outcomeToExitCode(result.Outcome.Status)

	if path := c.String("report"); path != "" {
		report := runtime.BuildRequestReport(result, p.opener.Backend(), code)
		if err := runtime.WriteRequestReport(report, path); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", err)
		}
	}
	if !c.Bool("quiet") {
		printDecodeResult(c.App.Writer, result)
	}

	return cli.Exit("", code)
}

func decodeBatch(ctx context.Context, c *cli.Context, p *pipeline, inputs []string, opts decodeOptions) error {
	factory := func(ctx context.Context, item runtime.BatchItem) (*runtime.RequestResult, error) {
		meta := newRequestMeta(item.RequestID, opts.remoteAddr)
		return p.decodeInput(ctx, item.Input, &meta, opts)
	}
	batch := runtime.NewBatch(runtime.BatchConfig{
		Parallel:    c.Int("parallel"),
		MaxRequests: c.Int("max-requests"),
	}, factory)

	result := batch.Run(ctx, inputs)
	if !c.Bool("quiet") {
		runtime.PrintBatchSummary(c.App.Writer, result)
	}

	switch {
	case ctx.Err() != nil:
		return cli.Exit("", exitCanceled)
	case result.RequestsFailed > 0:
		return cli.Exit("", exitFailed)
	default:
		return cli.Exit("", exitSuccess)
	}
}

// decodeInput opens input ("-" is stdin) and decodes it as one request.
// The content length of a regular file is recorded with the request.
func (p *pipeline) decodeInput(ctx context.Context, input string, meta *types.RequestMeta, opts decodeOptions) (*runtime.RequestResult, error) {
	var src io.Reader
	if input == stdinInput {
		src = opts.stdin
		if src == nil {
			src = os.Stdin
		}
	} else {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer iox.DiscardClose(f)
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat input: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("open input: %s is a directory", input)
		}
		if info.Mode().IsRegular() {
			meta.ContentLength = info.Size()
		}
		src = f
	}
	return p.execute(ctx, meta, src, opts.boundary, opts.encoding)
}

func printDecodeResult(w io.Writer, result *runtime.RequestResult) {
	_, _ = fmt.Fprintf(w, "\nrequest_id=%s, outcome=%s, duration=%s\n",
		result.Meta.RequestID,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)

	_, _ = fmt.Fprintf(w, "\n=== Request Result ===\n")
	_, _ = fmt.Fprintf(w, "Request ID:   %s\n", result.Meta.RequestID)
	if result.Meta.RemoteAddr != nil {
		_, _ = fmt.Fprintf(w, "Remote Addr:  %s\n", *result.Meta.RemoteAddr)
	}
	_, _ = fmt.Fprintf(w, "Outcome:      %s\n", result.Outcome.Status)
	_, _ = fmt.Fprintf(w, "Message:      %s\n", result.Outcome.Message)
	if result.Outcome.ErrorKind != nil {
		_, _ = fmt.Fprintf(w, "Error Kind:   %s\n", *result.Outcome.ErrorKind)
	}
	_, _ = fmt.Fprintf(w, "Parts:        %d\n", result.Parts)
	_, _ = fmt.Fprintf(w, "Bytes Read:   %d\n", result.BytesRead)
	_, _ = fmt.Fprintf(w, "Duration:     %s\n", result.Duration)

	if len(result.Uploads) > 0 {
		_, _ = fmt.Fprintf(w, "\n=== Uploads ===\n")
		for _, rec := range result.Uploads {
			suffix := ""
			if rec.Truncated {
				suffix = " (truncated)"
			}
			_, _ = fmt.Fprintf(w, "  [%d] %s: %s -> %s, %d bytes%s\n",
				rec.PartIndex, rec.FieldName, rec.OriginalName, rec.Location, rec.Bytes, suffix)
		}
	}

	if len(result.Fields) > 0 {
		_, _ = fmt.Fprintf(w, "\n=== Fields ===\n")
		for _, f := range result.Fields {
			suffix := ""
			if f.Truncated {
				suffix = " (truncated)"
			}
			_, _ = fmt.Fprintf(w, "  %s = %q%s\n", f.Name, f.Value, suffix)
		}
	}

	names := result.NameStats
	if names.Rewritten > 0 || names.Fallbacks > 0 {
		_, _ = fmt.Fprintf(w, "\n=== Names ===\n")
		_, _ = fmt.Fprintf(w, "Derived:      %d\n", names.Derived)
		_, _ = fmt.Fprintf(w, "Rewritten:    %d\n", names.Rewritten)
		_, _ = fmt.Fprintf(w, "Fallbacks:    %d\n", names.Fallbacks)
	}
}
