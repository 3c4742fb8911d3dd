package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/cli/reader"
	"github.com/pithecene-io/sluice/cli/render"
	"github.com/pithecene-io/sluice/cli/tui"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single request.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a single recorded request",
		Subcommands: []*cli.Command{
			inspectRequestCommand(),
		},
	}
}

func inspectRequestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Usage:     "Inspect a request by ID",
		ArgsUsage: "<request-id>",
		Flags:     sourceCommandFlags(),
		Action:    inspectRequestAction,
	}
}

func inspectRequestAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("request-id required", 1)
	}
	requestID := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	src, err := openSource(c)
	if err != nil {
		return err
	}

	resp, err := reader.InspectRequest(c.Context, src, requestID)
	if err != nil {
		return err
	}
	warnSource(c, src)

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectRequest, resp)
	}
	return r.Render(resp)
}
