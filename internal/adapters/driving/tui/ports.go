// Package tui provides an interactive terminal browser for stored
// embeddings. It is a driving adapter over the core services.
package tui

import (
	"errors"

	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
)

// ErrMissingSearchService is returned by Validate and NewApp without a
// search service.
var ErrMissingSearchService = errors.New("tui: search service is required")

// Ports aggregates the driving ports used by the TUI.
type Ports struct {
	// Search runs vector, match and semantic queries.
	Search driving.SearchService

	// Vectors loads full records for the detail view. Optional.
	Vectors driving.VectorService

	// Maintenance backs the statistics view. Optional.
	Maintenance driving.MaintenanceService
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
