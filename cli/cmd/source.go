package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/cli/reader"
	"github.com/pithecene-io/sluice/lode"
)

// errNoSource is returned when no journal or manifest is configured.
var errNoSource = errors.New("no record source: set --journal, --manifest, or a config file with journal or manifest")

// openSource selects the record source of a read-only command. Flags win
// over the config file; a journal wins over a manifest.
func openSource(c *cli.Context) (reader.Source, error) {
	journalPath, manifestRoot := c.String("journal"), c.String("manifest")
	if journalPath == "" && manifestRoot == "" {
		if path := c.String("config"); path != "" {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			journalPath, manifestRoot = cfg.Journal, cfg.Manifest
		}
	}

	switch {
	case journalPath != "":
		return reader.NewJournalSource(journalPath), nil
	case manifestRoot != "":
		m, err := lode.NewManifestFS(manifestRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest: %w", err)
		}
		return m, nil
	default:
		return nil, errNoSource
	}
}

// warnSource prints a recoverable read problem reported by src.
func warnSource(c *cli.Context, src reader.Source) {
	if js, ok := src.(*reader.JournalSource); ok {
		if w := js.Warning(); w != "" {
			fmt.Fprintf(c.App.ErrWriter, "Warning: %s\n", w)
		}
	}
}

// filterFlags narrow read-only commands to a day or request.
func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "day", Usage: "Only records of this UTC day: YYYY-MM-DD, today or yesterday"},
		&cli.StringFlag{Name: "request-id", Usage: "Only records of this request"},
	}
}

func parseFilter(c *cli.Context) (lode.Filter, error) {
	day, err := reader.ParseDay(c.String("day"), time.Now())
	if err != nil {
		return lode.Filter{}, err
	}
	return lode.Filter{Day: day, RequestID: c.String("request-id")}, nil
}

func sourceCommandFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(ReadOnlyFlags(), SourceFlags()...)
	return append(flags, extra...)
}
