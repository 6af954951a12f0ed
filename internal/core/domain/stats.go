package domain

import "time"

// StoreStats aggregates record store contents.
type StoreStats struct {
	// Counts holds the number of records per content type.
	Counts map[ContentType]int `json:"counts"`

	// Total is the number of records across all types.
	Total int `json:"total"`

	// SizeBytes is the approximate on-disk size of the store.
	SizeBytes int64 `json:"size_bytes"`

	// LatestUpdate is the most recent UpdatedAt, zero when empty.
	LatestUpdate time.Time `json:"latest_update"`
}

// IndexStats describes the ANN index for one content type.
type IndexStats struct {
	// Kind is the index variant in use.
	Kind IndexKind `json:"kind"`

	// SnapshotID identifies the live snapshot. Empty before the first build.
	SnapshotID string `json:"snapshot_id,omitempty"`

	// Entries is the number of vectors in the live snapshot.
	Entries int `json:"entries"`

	// CoverageVersion is the store version the snapshot reflects.
	CoverageVersion uint64 `json:"coverage_version"`

	// StoreVersion counts committed store mutations for this type.
	StoreVersion uint64 `json:"store_version"`

	// Fresh is true when the snapshot reflects every committed mutation.
	Fresh bool `json:"fresh"`

	// Rebuilding is true while a full rebuild is running.
	Rebuilding bool `json:"rebuilding"`

	// LastRebuild is when the live snapshot was built.
	LastRebuild time.Time `json:"last_rebuild"`

	// LastRebuildDuration is how long the last build took.
	LastRebuildDuration time.Duration `json:"last_rebuild_duration"`

	// Fallbacks counts searches served by brute force.
	Fallbacks uint64 `json:"fallbacks"`
}

// EngineStats is the combined view returned by the stats operation.
type EngineStats struct {
	Store StoreStats                 `json:"store"`
	Index map[ContentType]IndexStats `json:"index"`
}
