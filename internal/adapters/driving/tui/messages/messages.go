// Package messages holds the tea.Msg types the TUI views exchange.
package messages

import (
	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// ViewType identifies a screen.
type ViewType int

const (
	ViewMenu ViewType = iota
	ViewSearch
	ViewRecord
	ViewStats
	ViewHelp
)

var viewNames = [...]string{"menu", "search", "record", "stats", "help"}

func (v ViewType) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return "unknown"
	}
	return viewNames[v]
}

// ViewChanged asks the app to switch screens.
type ViewChanged struct {
	View ViewType
}

// SearchCompleted carries the outcome of a query.
type SearchCompleted struct {
	Results []domain.SearchResult
	Err     error
}

// ErrorOccurred reports a failure to the active view.
type ErrorOccurred struct {
	Err error
}

// Quit ends the program.
type Quit struct{}

// RecordRequested asks the app to load and show a stored record.
type RecordRequested struct {
	Key domain.RecordKey
}

// RecordLoaded carries a record fetched for the detail view.
type RecordLoaded struct {
	Record *domain.EmbeddingRecord
	Err    error
}

// StatsLoaded carries engine statistics.
type StatsLoaded struct {
	Stats *domain.EngineStats
	Err   error
}

// RebuildCompleted signals that an index rebuild finished.
type RebuildCompleted struct {
	// ContentType is empty when every index was rebuilt.
	ContentType domain.ContentType
	Err         error
}
