package mcp

import (
	"errors"

	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
)

// ErrMissingSearchService is returned by Validate and NewServer.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// Ports aggregates the driving ports the MCP server uses.
type Ports struct {
	// Search provides similarity search. Required.
	Search driving.SearchService

	// Vectors exposes stored records as resources. Optional.
	Vectors driving.VectorService

	// Maintenance provides the stats tool and resource. Optional.
	Maintenance driving.MaintenanceService

	// Scheduler provides the jobs tool. Optional.
	Scheduler driving.Scheduler
}

// Validate reports a missing required port.
func (p *Ports) Validate() error {
	if p == nil || p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
