// Package services implements the driving ports.
//
// NewEngine wires the pieces: VectorService writes records, SearchService
// ranks them, MaintenanceService rebuilds and ages out, and IndexManager
// keeps one ANN snapshot per content type in step with the store.
// Scheduler runs the maintenance jobs on their intervals and records
// every run.
package services
