package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/flanker/cli/reader"
	"github.com/justapithecus/flanker/cli/render"
	"github.com/justapithecus/flanker/cli/tui"
)

// SummaryCommand returns the summary command.
// Summary reads persisted results and never modifies them.
func SummaryCommand() *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Summarize persisted results (CSV, SQLite or Lode dataset)",
		ArgsUsage: "<path>",
		Flags: append(TUIReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Source kind: csv, sqlite or lode (detected from the path when omitted)",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session ID (sqlite, lode)",
			},
			&cli.StringFlag{
				Name:  "participant",
				Usage: "Participant code filter (lode)",
			},
			&cli.StringFlag{
				Name:  "dataset",
				Usage: "Lode dataset name",
				Value: "flanker",
			},
		),
		Action: summaryAction,
	}
}

func summaryAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("results path required", 1)
	}

	kind := reader.SourceKind(c.String("kind"))
	switch kind {
	case "", reader.SourceCSV, reader.SourceSQLite, reader.SourceLode:
	default:
		return cli.Exit(fmt.Sprintf("invalid --kind %q (must be csv, sqlite or lode)", kind), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	summary, err := reader.GetReader().Summary(c.Context, reader.Source{
		Kind:        kind,
		Path:        c.Args().First(),
		SessionID:   c.String("session"),
		Participant: c.String("participant"),
		Dataset:     c.String("dataset"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("summary failed: %v", err), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewSummary, summary)
	}
	return r.Render(summary)
}
