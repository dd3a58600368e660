package reader

import "context"

// Reader abstracts read-only results access for CLI commands.
// Implementations read local files, Lode datasets or stubs.
//
// All methods are read-only and must not mutate persisted results.
type Reader interface {
	// Summary reads the outcomes at src and summarizes them.
	Summary(ctx context.Context, src Source) (*SessionSummary, error)

	// Catalog lists the stimulus catalog.
	Catalog() []CatalogItem
}

// defaultReader is the package-level reader instance.
var defaultReader Reader = NewResultsReader()

// SetReader sets the package-level reader instance.
// Tests use it to install a StubReader.
func SetReader(r Reader) {
	defaultReader = r
}

// GetReader returns the current package-level reader instance.
func GetReader() Reader {
	return defaultReader
}

var (
	_ Reader = (*ResultsReader)(nil)
	_ Reader = (*StubReader)(nil)
)
