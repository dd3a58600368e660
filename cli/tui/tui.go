package tui

import (
	"fmt"
	"slices"
)

// View types.
const (
	ViewSummary = "summary_session"
	ViewCatalog = "summary_catalog"
)

// Run starts the TUI for the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return RunSummaryTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only the summary views do.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewSummary, ViewCatalog}
}
