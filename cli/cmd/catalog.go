package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/flanker/cli/reader"
	"github.com/justapithecus/flanker/cli/render"
	"github.com/justapithecus/flanker/cli/tui"
)

// CatalogCommand returns the catalog command.
// It lists the stimuli a session draws from.
func CatalogCommand() *cli.Command {
	return &cli.Command{
		Name:   "catalog",
		Usage:  "List the stimulus catalog",
		Flags:  TUIReadOnlyFlags(),
		Action: catalogAction,
	}
}

func catalogAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	items := reader.GetReader().Catalog()
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewCatalog, items)
	}
	return r.Render(items)
}
