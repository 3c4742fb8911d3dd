package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/cli/reader"
	"github.com/pithecene-io/sluice/cli/render"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// ListCommand returns the list command with subcommands.
// List returns thin rows; inspect gives the full view of one request.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recorded uploads or requests",
		Subcommands: []*cli.Command{
			listUploadsCommand(),
			listRequestsCommand(),
		},
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "limit",
		Usage: "Maximum number of rows to return (0 = no limit)",
	}
}

func listUploadsCommand() *cli.Command {
	return &cli.Command{
		Name:   "uploads",
		Usage:  "List stored files",
		Flags:  sourceCommandFlags(append(filterFlags(), limitFlag())...),
		Action: listUploadsAction,
	}
}

func listUploadsAction(c *cli.Context) error {
	r, src, opts, err := prepareList(c)
	if err != nil {
		return err
	}

	items, err := reader.ListUploads(c.Context, src, opts)
	if err != nil {
		return err
	}
	warnSource(c, src)
	warnLarge(c, len(items), opts.Limit)
	return r.Render(items)
}

func listRequestsCommand() *cli.Command {
	flags := append(filterFlags(), limitFlag(), &cli.StringFlag{
		Name:  "status",
		Usage: "Filter by outcome: success, truncated, failed, canceled",
	})
	return &cli.Command{
		Name:   "requests",
		Usage:  "List request summaries",
		Flags:  sourceCommandFlags(flags...),
		Action: listRequestsAction,
	}
}

func listRequestsAction(c *cli.Context) error {
	r, src, opts, err := prepareList(c)
	if err != nil {
		return err
	}
	status, err := reader.ParseStatus(c.String("status"))
	if err != nil {
		return err
	}
	opts.Status = status

	items, err := reader.ListRequests(c.Context, src, opts)
	if err != nil {
		return err
	}
	warnSource(c, src)
	warnLarge(c, len(items), opts.Limit)
	return r.Render(items)
}

func prepareList(c *cli.Context) (*render.Renderer, reader.Source, reader.ListOptions, error) {
	var opts reader.ListOptions
	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, nil, opts, err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return nil, nil, opts, cli.Exit("--tui is not supported for list commands", 1)
	}

	filter, err := parseFilter(c)
	if err != nil {
		return nil, nil, opts, err
	}
	src, err := openSource(c)
	if err != nil {
		return nil, nil, opts, err
	}

	opts.Day = filter.Day
	opts.RequestID = filter.RequestID
	opts.Limit = c.Int("limit")
	return r, src, opts, nil
}

// warnLarge warns when output is large and --limit was not specified
// (TTY only to avoid noise in pipelines).
func warnLarge(c *cli.Context, n, limit int) {
	if n > listWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(c.App.ErrWriter, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", n)
	}
}
