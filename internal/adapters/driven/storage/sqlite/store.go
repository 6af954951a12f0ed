package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// DefaultPoolSize bounds open connections when the caller passes zero.
const DefaultPoolSize = 20

// migrationFiles holds the versioned schema, applied in order on open.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

// getManyBatch caps the number of placeholders in one IN clause.
const getManyBatch = 500

// Store is a SQLite-backed embedding store. It also provides the
// scheduler store through a wrapper type sharing the same connection pool.
type Store struct {
	db   *sql.DB
	path string
}

var _ driven.EmbeddingStore = (*Store)(nil)

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.simmatch/data/vectors.db.
func NewStore(dataDir string, poolSize int) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".simmatch", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return OpenStore(filepath.Join(dataDir, "vectors.db"), poolSize)
}

// OpenStore opens or creates the database file at dbPath.
func OpenStore(dbPath string, poolSize int) (*Store, error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	// WAL lets readers proceed while a writer commits.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Callers beyond the pool size wait inside database/sql for a free connection.
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrationFiles); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SchedulerStore returns the job schedule store sharing this database.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &jobStore{db: s.db}
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(files embed.FS) error {
	fsys, err := fs.Sub(files, "migrations")
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
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
		// "001_embeddings.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Embedding Store ====================

// Upsert inserts or replaces a record in a single statement.
// updated_at is bumped past the stored value so it strictly increases
// even when two writes land within the same clock tick.
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

	now := time.Now().UTC().UnixNano()
	var createdAt, updatedAt int64

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO embeddings (content_type, content_id, vector, dimension, metadata, model_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_type, content_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			metadata = excluded.metadata,
			model_version = excluded.model_version,
			updated_at = MAX(excluded.updated_at, embeddings.updated_at + 1)
		RETURNING created_at, updated_at
	`, string(rec.ContentType), rec.ContentID, float32SliceToBytes(rec.Vector), len(rec.Vector),
		metadataJSON, rec.ModelVersion, now, now).Scan(&createdAt, &updatedAt)
	if err != nil {
		return nil, domain.WrapStorageError("upserting embedding", err)
	}

	out := rec.Clone()
	out.CreatedAt = time.Unix(0, createdAt).UTC()
	out.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return out, nil
}

// Get retrieves a record by key.
func (s *Store) Get(ctx context.Context, key domain.RecordKey) (*domain.EmbeddingRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT content_type, content_id, vector, metadata, model_version, created_at, updated_at
		FROM embeddings WHERE content_type = ? AND content_id = ?
	`, string(key.ContentType), key.ContentID)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, domain.WrapStorageError("getting embedding", err)
	}
	return rec, nil
}

// GetMany retrieves the records of one content type with the given IDs.
func (s *Store) GetMany(ctx context.Context, contentType domain.ContentType, contentIDs []string) ([]*domain.EmbeddingRecord, error) {
	records := make([]*domain.EmbeddingRecord, 0, len(contentIDs))

	for start := 0; start < len(contentIDs); start += getManyBatch {
		end := min(start+getManyBatch, len(contentIDs))
		batch := contentIDs[start:end]

		args := make([]any, 0, len(batch)+1)
		args = append(args, string(contentType))
		for _, id := range batch {
			args = append(args, id)
		}

		//nolint:gosec // G201: only placeholders are interpolated.
		query := fmt.Sprintf(`
			SELECT content_type, content_id, vector, metadata, model_version, created_at, updated_at
			FROM embeddings WHERE content_type = ? AND content_id IN (%s)
		`, placeholders(len(batch)))

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, domain.WrapStorageError("querying embeddings", err)
		}

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				rows.Close()
				return nil, domain.WrapStorageError("scanning embeddings", err)
			}
			records = append(records, rec)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, domain.WrapStorageError("iterating embeddings", err)
		}
	}

	return records, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, key domain.RecordKey) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE content_type = ? AND content_id = ?",
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

// DeleteOlderThan removes every record last written before cutoff.
// The delete runs as one statement, so concurrent scans see either all
// of the removed rows or none of them.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]domain.RecordKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"DELETE FROM embeddings WHERE updated_at < ? RETURNING content_type, content_id",
		cutoff.UTC().UnixNano())
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
func (s *Store) Scan(ctx context.Context, contentType domain.ContentType, fn func(*domain.EmbeddingRecord) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_type, content_id, vector, metadata, model_version, created_at, updated_at
		FROM embeddings WHERE content_type = ?
		ORDER BY content_id
	`, string(contentType))
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

// Stats returns per-type counts, database size and latest update.
func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{Counts: make(map[domain.ContentType]int)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content_type, COUNT(*), MAX(updated_at)
		FROM embeddings GROUP BY content_type
	`)
	if err != nil {
		return nil, domain.WrapStorageError("querying stats", err)
	}
	defer rows.Close()

	var latest int64
	for rows.Next() {
		var ct string
		var count int
		var maxUpdated int64
		if err := rows.Scan(&ct, &count, &maxUpdated); err != nil {
			return nil, domain.WrapStorageError("scanning stats", err)
		}
		stats.Counts[domain.ContentType(ct)] = count
		stats.Total += count
		latest = max(latest, maxUpdated)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorageError("iterating stats", err)
	}
	if latest > 0 {
		stats.LatestUpdate = time.Unix(0, latest).UTC()
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
	).Scan(&stats.SizeBytes)
	if err != nil {
		return nil, domain.WrapStorageError("querying database size", err)
	}

	return stats, nil
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans one embeddings row.
func scanRecord(row rowScanner) (*domain.EmbeddingRecord, error) {
	var rec domain.EmbeddingRecord
	var ct string
	var vectorBlob []byte
	var metadataJSON string
	var createdAt, updatedAt int64

	if err := row.Scan(&ct, &rec.ContentID, &vectorBlob, &metadataJSON,
		&rec.ModelVersion, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}

	rec.ContentType = domain.ContentType(ct)
	rec.Vector = bytesToFloat32Slice(vectorBlob)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if metadataJSON != "" && metadataJSON != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &rec, nil
}

// jsonNull is the JSON representation of null.
const jsonNull = "null"

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

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
