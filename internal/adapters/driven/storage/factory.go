// Package storage selects a storage backend from a DSN.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/simmatch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// Backend names reported by Stores.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// MemoryDSN selects the ephemeral in-memory backend.
const MemoryDSN = "memory"

// Stores bundles the stores one backend provides.
type Stores struct {
	Embeddings driven.EmbeddingStore
	Scheduler  driven.SchedulerStore
	Backend    string
}

// Close releases the backend.
func (s *Stores) Close() error {
	return s.Embeddings.Close()
}

// Open creates stores based on the DSN.
//   - Empty DSN: SQLite at vectors.db in dataDir (~/.simmatch/data when empty)
//   - postgres:// or postgresql://: PostgreSQL with pgvector
//   - "memory": in-process maps, lost on exit
//   - Anything else: SQLite at the given file path
func Open(ctx context.Context, dsn, dataDir string, poolSize int) (*Stores, error) {
	switch {
	case dsn == MemoryDSN:
		return &Stores{
			Embeddings: memory.NewEmbeddingStore(),
			Scheduler:  memory.NewSchedulerStore(),
			Backend:    BackendMemory,
		}, nil

	case postgres.IsDSN(dsn):
		store, err := postgres.NewStore(ctx, dsn, poolSize)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Stores{Embeddings: store, Scheduler: store.SchedulerStore(), Backend: BackendPostgres}, nil

	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("unsupported storage DSN scheme: %s", dsn[:strings.Index(dsn, "://")])
	}

	var store *sqlite.Store
	var err error
	if dsn == "" {
		store, err = sqlite.NewStore(dataDir, poolSize)
	} else {
		store, err = sqlite.OpenStore(dsn, poolSize)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &Stores{Embeddings: store, Scheduler: store.SchedulerStore(), Backend: BackendSQLite}, nil
}
