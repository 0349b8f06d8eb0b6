package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"descry/pkg/types"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrMetricChanged is returned when an existing index was built with a
	// different distance metric than the one now configured. Mixing metrics
	// across rebuilds is undefined; the index must be rebuilt from scratch.
	ErrMetricChanged = errors.New("index metric changed, rebuild required")
)

// Metric selects the distance function for vector search. It is fixed for
// the lifetime of one index instance.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
)

// Meta keys pinned per index.
const (
	metaMetric    = "metric"
	metaDimension = "dimension"
	metaProvider  = "embed_provider"
	metaModel     = "embed_model"
)

// Options configures a Store at open time.
type Options struct {
	Metric Metric
	Logger *zap.Logger
}

// Store persists file descriptions and their embeddings in one SQLite
// database, so the description cache, the vector store, and the id<->path
// mapping always load and save as a single consistent unit.
type Store struct {
	db     *sql.DB
	metric Metric
	log    *zap.Logger
}

// Hit is one result of a nearest-neighbor lookup, ascending by Distance.
type Hit struct {
	Path     string
	Distance float64
}

// Stats describes the current index contents.
type Stats struct {
	Files       int
	Described   int
	Vectors     int
	Dimension   int
	Metric      Metric
	IndexSizeMB float64
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open opens (or creates) the index at dbPath, applies migrations, pins the
// distance metric, and verifies integrity. Use ":memory:" for tests.
func Open(dbPath string, opts Options) (*Store, error) {
	if opts.Metric == "" {
		opts.Metric = MetricCosine
	}
	if opts.Metric != MetricCosine && opts.Metric != MetricEuclidean {
		return nil, fmt.Errorf("%w: unknown metric %q", types.ErrInvalidArgument, opts.Metric)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &Store{db: db, metric: opts.Metric, log: opts.Logger}

	if err := s.pinMetric(ctx, opts.Metric); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := s.VerifyIntegrity(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Metric returns the distance metric this index was created with.
func (s *Store) Metric() Metric {
	return s.metric
}

// pinMetric records the metric on first open and rejects metric changes on
// subsequent opens.
func (s *Store) pinMetric(ctx context.Context, metric Metric) error {
	stored, err := s.getMeta(ctx, s.db, metaMetric)
	if err != nil {
		return err
	}
	if stored == "" {
		return s.setMeta(ctx, s.db, metaMetric, string(metric))
	}
	if stored != string(metric) {
		return fmt.Errorf("%w: index built with %q, configured %q", ErrMetricChanged, stored, metric)
	}
	return nil
}

// Meta access takes an explicit querier so it can run inside an open
// transaction: the pool holds a single connection, so going through s.db
// while a transaction is open would wait on it forever.
func (s *Store) getMeta(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// Dimension returns the pinned vector dimension, or 0 if no vector has been
// written yet.
func (s *Store) Dimension(ctx context.Context) (int, error) {
	return s.dimensionWithQuerier(ctx, s.db)
}

func (s *Store) dimensionWithQuerier(ctx context.Context, q querier) (int, error) {
	value, err := s.getMeta(ctx, q, metaDimension)
	if err != nil || value == "" {
		return 0, err
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: bad dimension meta %q", types.ErrCorruptIndex, value)
	}
	return dim, nil
}

// SetEmbeddingModel records which embedder produced the stored vectors.
// Cross-model vectors are not comparable, so a model change means a rebuild.
func (s *Store) SetEmbeddingModel(ctx context.Context, provider, model string) error {
	if err := s.setMeta(ctx, s.db, metaProvider, provider); err != nil {
		return err
	}
	return s.setMeta(ctx, s.db, metaModel, model)
}

// EmbeddingModel returns the recorded embedder provider and model.
func (s *Store) EmbeddingModel(ctx context.Context) (provider, model string, err error) {
	if provider, err = s.getMeta(ctx, s.db, metaProvider); err != nil {
		return "", "", err
	}
	model, err = s.getMeta(ctx, s.db, metaModel)
	return provider, model, err
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// File record operations

// putFileWithQuerier is the internal implementation that uses a querier
func (s *Store) putFileWithQuerier(ctx context.Context, q querier, rec *types.FileRecord) error {
	query := `
		INSERT INTO files (path, fingerprint, description, size_bytes, mod_time, described_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			description = excluded.description,
			size_bytes = excluded.size_bytes,
			mod_time = excluded.mod_time,
			described_at = excluded.described_at,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		rec.Path, rec.Fingerprint[:], rec.Description, rec.SizeBytes,
		rec.ModTime, rec.DescribedAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to put file record: %w", err)
	}
	return nil
}

// PutFile upserts a file record. The write is a single statement, so a
// concurrent reader observes either the old or the new record, never a
// half-written one.
func (s *Store) PutFile(ctx context.Context, rec *types.FileRecord) error {
	return s.putFileWithQuerier(ctx, s.db, rec)
}

func scanFileRecord(row interface{ Scan(...interface{}) error }) (*types.FileRecord, error) {
	var rec types.FileRecord
	var fingerprint []byte
	var modTime, describedAt sql.NullTime
	err := row.Scan(&rec.Path, &fingerprint, &rec.Description, &rec.SizeBytes, &modTime, &describedAt)
	if err != nil {
		return nil, err
	}
	copy(rec.Fingerprint[:], fingerprint)
	if modTime.Valid {
		rec.ModTime = modTime.Time
	}
	if describedAt.Valid {
		rec.DescribedAt = describedAt.Time
	}
	return &rec, nil
}

// GetFile returns the record for path, or ErrNotFound.
func (s *Store) GetFile(ctx context.Context, path string) (*types.FileRecord, error) {
	query := `
		SELECT path, fingerprint, description, size_bytes, mod_time, described_at
		FROM files
		WHERE path = ?
	`
	rec, err := scanFileRecord(s.db.QueryRowContext(ctx, query, path))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListFiles returns all file records ordered by path.
func (s *Store) ListFiles(ctx context.Context) ([]*types.FileRecord, error) {
	query := `
		SELECT path, fingerprint, description, size_bytes, mod_time, described_at
		FROM files
		ORDER BY path
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := make([]*types.FileRecord, 0)
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteFile removes a file record and, via cascade, its vector. Hard
// delete: no tombstones.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path)
	return err
}

// Vector operations

// upsertVectorWithQuerier is the internal implementation that uses a querier
func (s *Store) upsertVectorWithQuerier(ctx context.Context, q querier, path string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", types.ErrInvalidArgument)
	}

	// All vectors share one dimension, pinned on the first write. The pin
	// is read and written through q so it lands in the caller's transaction.
	dim, err := s.dimensionWithQuerier(ctx, q)
	if err != nil {
		return err
	}
	if dim == 0 {
		if err := s.setMeta(ctx, q, metaDimension, strconv.Itoa(len(vector))); err != nil {
			return err
		}
	} else if dim != len(vector) {
		return fmt.Errorf("%w: index dimension %d, got %d", types.ErrDimensionMismatch, dim, len(vector))
	}

	query := `
		INSERT INTO vectors (path, vector, dimension, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension
	`
	_, err = q.ExecContext(ctx, query, path, serializeVector(vector), len(vector), time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

// UpsertVector replaces the stored vector for path wholesale. A dimension
// mismatch fails with ErrDimensionMismatch and leaves the index unchanged.
func (s *Store) UpsertVector(ctx context.Context, path string, vector []float32) error {
	return s.upsertVectorWithQuerier(ctx, s.db, path, vector)
}

// GetVector returns the stored vector for path, or ErrNotFound.
func (s *Store) GetVector(ctx context.Context, path string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT vector FROM vectors WHERE path = ?", path).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deserializeVector(blob), nil
}

// DeleteVector removes the vector for path. Removing a nonexistent path is
// a no-op.
func (s *Store) DeleteVector(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM vectors WHERE path = ?", path)
	return err
}

// SearchVector returns up to k nearest neighbors of query, ascending by
// distance. An empty index yields an empty slice, never an error.
func (s *Store) SearchVector(ctx context.Context, query []float32, k int) ([]Hit, error) {
	return searchVector(ctx, s.db, s.metric, query, k)
}

// CommitFile writes a file record and its vector in one transaction, so a
// crash mid-update cannot persist a description from one file version with
// an embedding from another. A nil vector commits the record alone.
func (s *Store) CommitFile(ctx context.Context, rec *types.FileRecord, vector []float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.putFileWithQuerier(ctx, tx, rec); err != nil {
		return err
	}
	if vector != nil {
		if err := s.upsertVectorWithQuerier(ctx, tx, rec.Path, vector); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// VerifyIntegrity checks that the vector store and the description cache
// agree: every vector belongs to a known file and matches the pinned
// dimension. Corruption is surfaced, never silently repaired.
func (s *Store) VerifyIntegrity(ctx context.Context) error {
	var orphans int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vectors v
		LEFT JOIN files f ON v.path = f.path
		WHERE f.path IS NULL
	`).Scan(&orphans)
	if err != nil {
		return fmt.Errorf("failed to check vector mapping: %w", err)
	}
	if orphans > 0 {
		return fmt.Errorf("%w: %d vectors reference missing file records", types.ErrCorruptIndex, orphans)
	}

	dim, err := s.Dimension(ctx)
	if err != nil {
		return err
	}
	if dim > 0 {
		var mismatched int
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors WHERE dimension != ?", dim).Scan(&mismatched)
		if err != nil {
			return fmt.Errorf("failed to check vector dimensions: %w", err)
		}
		if mismatched > 0 {
			return fmt.Errorf("%w: %d vectors disagree with pinned dimension %d", types.ErrCorruptIndex, mismatched, dim)
		}
	}

	return nil
}

// Stats reports index contents for status surfaces.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Metric: s.metric}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&stats.Files); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE description != ''").Scan(&stats.Described); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&stats.Vectors); err != nil {
		return nil, err
	}

	dim, err := s.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	stats.Dimension = dim

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}
