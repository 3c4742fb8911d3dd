package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/cli/reader"
	"github.com/pithecene-io/sluice/cli/render"
	"github.com/pithecene-io/sluice/cli/tui"
)

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated, derived facts.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated upload statistics",
		Subcommands: []*cli.Command{
			statsUploadsCommand(),
		},
	}
}

func statsUploadsCommand() *cli.Command {
	return &cli.Command{
		Name:   "uploads",
		Usage:  "Show request outcome and stored file statistics",
		Flags:  sourceCommandFlags(filterFlags()...),
		Action: statsUploadsAction,
	}
}

func statsUploadsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	src, err := openSource(c)
	if err != nil {
		return err
	}

	stats, err := reader.StatsUploads(c.Context, src, filter)
	if err != nil {
		return err
	}
	warnSource(c, src)

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsUploads, stats)
	}
	return r.Render(stats)
}
