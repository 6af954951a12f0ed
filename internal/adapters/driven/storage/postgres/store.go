package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// DefaultPoolSize bounds open connections when the caller passes zero.
const DefaultPoolSize = 20

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is a PostgreSQL-backed embedding store.
type Store struct {
	db *sql.DB
}

var _ driven.EmbeddingStore = (*Store)(nil)

// IsDSN reports whether dsn selects this backend.
func IsDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// NewStore connects to dsn, verifies the connection and applies migrations.
func NewStore(ctx context.Context, dsn string, poolSize int) (*Store, error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", domain.WrapStorageError("connecting", err))
	}

	s := &Store{db: db}
	if err := s.migrate(ctx, migrationFiles); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchedulerStore returns the job schedule store sharing this connection pool.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &jobStore{db: s.db}
}

func (s *Store) migrate(ctx context.Context, files embed.FS) error {
	fsys, err := fs.Sub(files, "migrations")
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(ctx, version, string(content)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}

	return nil
}

// applyMigration runs each statement of a migration and records its version
// in one transaction.
func (s *Store) applyMigration(ctx context.Context, version int, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range splitStatements(content) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Embedding Store ====================

const selectColumns = `content_type, content_id, vector, metadata, model_version, created_at, updated_at`

// Upsert inserts or replaces a record in a single statement.
// updated_at is bumped past the stored value so it strictly increases.
func (s *Store) Upsert(ctx context.Context, rec *domain.EmbeddingRecord) (*domain.EmbeddingRecord, error) {
	if rec == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := rec.Key().Validate(); err != nil {
		return nil, err
	}

	metadataJSON, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var createdAt, updatedAt time.Time

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO embeddings (content_type, content_id, vector, metadata, model_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $6)
		ON CONFLICT (content_type, content_id) DO UPDATE SET
			vector = EXCLUDED.vector,
			metadata = EXCLUDED.metadata,
			model_version = EXCLUDED.model_version,
			updated_at = GREATEST(EXCLUDED.updated_at, embeddings.updated_at + interval '1 microsecond')
		RETURNING created_at, updated_at
	`, string(rec.ContentType), rec.ContentID, pgvector.NewVector(rec.Vector),
		metadataJSON, rec.ModelVersion, now).Scan(&createdAt, &updatedAt)
	if err != nil {
		return nil, domain.WrapStorageError("upserting embedding", err)
	}

	out := rec.Clone()
	out.CreatedAt = createdAt.UTC()
	out.UpdatedAt = updatedAt.UTC()
	return out, nil
}

// Get retrieves a record by key.
func (s *Store) Get(ctx context.Context, key domain.RecordKey) (*domain.EmbeddingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM embeddings WHERE content_type = $1 AND content_id = $2",
		string(key.ContentType), key.ContentID)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, domain.WrapStorageError("getting embedding", err)
	}
	return rec, nil
}

// GetMany retrieves the records of one content type with the given IDs.
func (s *Store) GetMany(ctx context.Context, contentType domain.ContentType, contentIDs []string) ([]*domain.EmbeddingRecord, error) {
	if len(contentIDs) == 0 {
		return []*domain.EmbeddingRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM embeddings WHERE content_type = $1 AND content_id = ANY($2::text[])",
		string(contentType), contentIDs)
	if err != nil {
		return nil, domain.WrapStorageError("querying embeddings", err)
	}
	defer rows.Close()

	records := make([]*domain.EmbeddingRecord, 0, len(contentIDs))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, domain.WrapStorageError("scanning embeddings", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorageError("iterating embeddings", err)
	}
	return records, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, key domain.RecordKey) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE content_type = $1 AND content_id = $2",
		string(key.ContentType), key.ContentID)
	if err != nil {
		return domain.WrapStorageError("deleting embedding", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.WrapStorageError("deleting embedding", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteOlderThan removes every record last written before cutoff in one statement.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]domain.RecordKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"DELETE FROM embeddings WHERE updated_at < $1 RETURNING content_type, content_id",
		cutoff.UTC())
	if err != nil {
		return nil, domain.WrapStorageError("deleting old embeddings", err)
	}
	defer rows.Close()

	var keys []domain.RecordKey //nolint:prealloc // size unknown from query
	for rows.Next() {
		var ct, id string
		if err := rows.Scan(&ct, &id); err != nil {
			return nil, domain.WrapStorageError("scanning deleted key", err)
		}
		keys = append(keys, domain.RecordKey{ContentID: id, ContentType: domain.ContentType(ct)})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorageError("iterating deleted keys", err)
	}
	return keys, nil
}

// Scan streams every record of a content type ordered by content ID.
// Rows are read inside one read-only transaction so the callback sees a
// consistent snapshot.
func (s *Store) Scan(ctx context.Context, contentType domain.ContentType, fn func(*domain.EmbeddingRecord) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.WrapStorageError("scanning embeddings", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	rows, err := tx.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM embeddings WHERE content_type = $1 ORDER BY content_id COLLATE \"C\"",
		string(contentType))
	if err != nil {
		return domain.WrapStorageError("scanning embeddings", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return domain.WrapStorageError("scanning embeddings", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return domain.WrapStorageError("iterating embeddings", err)
	}
	return nil
}

// Stats returns per-type counts, relation size and latest update.
func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{Counts: make(map[domain.ContentType]int)}

	rows, err := s.db.QueryContext(ctx,
		"SELECT content_type, COUNT(*), MAX(updated_at) FROM embeddings GROUP BY content_type")
	if err != nil {
		return nil, domain.WrapStorageError("querying stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct string
		var count int
		var latest time.Time
		if err := rows.Scan(&ct, &count, &latest); err != nil {
			return nil, domain.WrapStorageError("scanning stats", err)
		}
		stats.Counts[domain.ContentType(ct)] = count
		stats.Total += count
		if latest.After(stats.LatestUpdate) {
			stats.LatestUpdate = latest.UTC()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorageError("iterating stats", err)
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT pg_total_relation_size('embeddings')").Scan(&stats.SizeBytes); err != nil {
		return nil, domain.WrapStorageError("querying relation size", err)
	}

	return stats, nil
}

// ==================== Helper Functions ====================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.EmbeddingRecord, error) {
	var rec domain.EmbeddingRecord
	var ct string
	var vec pgvector.Vector
	var metadataJSON []byte

	if err := row.Scan(&ct, &rec.ContentID, &vec, &metadataJSON,
		&rec.ModelVersion, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}

	rec.ContentType = domain.ContentType(ct)
	rec.Vector = vec.Slice()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	if len(metadataJSON) > 0 && string(metadataJSON) != "null" {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	return &rec, nil
}

// marshalMetadata encodes metadata as a JSON object, "{}" when empty.
func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("%w: marshalling metadata: %w", domain.ErrInvalidInput, err)
	}
	return string(b), nil
}

// splitStatements splits a migration file on semicolons, dropping blanks.
func splitStatements(content string) []string {
	var stmts []string
	for _, part := range strings.Split(content, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
