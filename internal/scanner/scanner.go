package scanner

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"descry/internal/embedder"
	"descry/internal/store"
	"descry/internal/summarizer"
	"descry/pkg/types"
)

// ErrScanInProgress is returned when a scan is requested while another scan
// of the same project is still running.
var ErrScanInProgress = errors.New("scan already in progress")

// Scanner walks a project tree and reconciles the index with what it finds:
// new and changed files get described and embedded, vanished files get
// purged. Rescanning an unchanged tree is a no-op.
type Scanner struct {
	store      *store.Store
	summarizer summarizer.Summarizer
	embedder   embedder.Embedder
	log        *zap.Logger

	workers   int
	ignore    *Ignore
	predicate IgnorePredicate
	lock      ScanLock
}

// Config contains configuration for the scanner
type Config struct {
	Workers      int             // Number of concurrent workers (default: runtime.NumCPU())
	Extensions   []string        // File extensions to index (default: common source/text files)
	IgnoreDirs   []string        // Directory names to skip entirely
	MaxFileBytes int64           // Files larger than this are skipped (default: 1 MiB)
	Predicate    IgnorePredicate // Extra exclusion, e.g. GitignorePredicate (optional)
	Logger       *zap.Logger
}

// New creates a new Scanner instance
func New(st *store.Store, sum summarizer.Summarizer, emb embedder.Embedder, cfg Config) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scanner{
		store:      st,
		summarizer: sum,
		embedder:   emb,
		log:        cfg.Logger,
		workers:    cfg.Workers,
		ignore:     NewIgnore(cfg.Extensions, cfg.IgnoreDirs, cfg.MaxFileBytes),
		predicate:  cfg.Predicate,
	}
}

// Scan reconciles the index with the tree rooted at rootPath. Per-file
// summarization and embedding failures are recorded in the report and leave
// that file's previous index entry intact; index-level failures (dimension
// mismatch, corruption) abort the scan.
func (s *Scanner) Scan(ctx context.Context, rootPath string) (*types.ScanReport, error) {
	if !s.lock.TryAcquire() {
		return nil, ErrScanInProgress
	}
	defer s.lock.Release()

	start := time.Now()
	report := &types.ScanReport{}

	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: bad root path: %v", types.ErrInvalidArgument, err)
	}

	files, err := s.discoverFiles(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	existing, err := s.store.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	known := make(map[string]*types.FileRecord, len(existing))
	for _, rec := range existing {
		known[rec.Path] = rec
	}

	if err := s.processFiles(ctx, rootPath, files, known, report); err != nil {
		return nil, err
	}

	// Anything still indexed but no longer on disk is removed outright,
	// description and vector both.
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f] = true
	}
	for path := range known {
		if seen[path] {
			continue
		}
		if err := s.store.DeleteFile(ctx, path); err != nil {
			return nil, fmt.Errorf("failed to remove %s from index: %w", path, err)
		}
		report.Removed = append(report.Removed, path)
	}

	sort.Strings(report.Added)
	sort.Strings(report.Updated)
	sort.Strings(report.Removed)
	report.Duration = time.Since(start)

	s.log.Info("scan complete",
		zap.String("root", rootPath),
		zap.Int("added", len(report.Added)),
		zap.Int("updated", len(report.Updated)),
		zap.Int("removed", len(report.Removed)),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// discoverFiles finds all indexable files under rootPath, returning paths
// relative to the root with forward slashes.
func (s *Scanner) discoverFiles(rootPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == rootPath {
			return nil
		}

		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if s.ignore.SkipDir(info.Name()) {
				return filepath.SkipDir
			}
			if s.predicate != nil && s.predicate(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignore.SkipFile(info.Name(), info.Size()) {
			return nil
		}
		if s.predicate != nil && s.predicate(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})

	return files, err
}

// processFiles fingerprints every discovered file and reindexes the new and
// changed ones concurrently.
func (s *Scanner) processFiles(ctx context.Context, rootPath string, files []string,
	known map[string]*types.FileRecord, report *types.ScanReport) error {

	g, gctx := errgroup.WithContext(ctx)
	semaphore := make(chan struct{}, s.workers)
	var mu sync.Mutex

	for _, relPath := range files {
		relPath := relPath
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			outcome, err := s.processFile(gctx, rootPath, relPath, known[relPath])

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && isFatal(err):
				return err
			case err != nil:
				// Recoverable: record the failure, keep the old entry
				report.Failed = append(report.Failed, types.FileError{Path: relPath, Err: err})
				s.log.Warn("skipping file", zap.String("path", relPath), zap.Error(err))
			case outcome == outcomeUnchanged:
				report.Unchanged++
			case outcome == outcomeAdded:
				report.Added = append(report.Added, relPath)
			case outcome == outcomeUpdated:
				report.Updated = append(report.Updated, relPath)
			}
			return nil
		})
	}

	return g.Wait()
}

type fileOutcome int

const (
	outcomeUnchanged fileOutcome = iota
	outcomeAdded
	outcomeUpdated
)

// processFile reindexes one file: fingerprint, then describe and embed only
// if the content actually changed. The record and its vector land in one
// transaction.
func (s *Scanner) processFile(ctx context.Context, rootPath, relPath string, prev *types.FileRecord) (fileOutcome, error) {
	absPath := filepath.Join(rootPath, filepath.FromSlash(relPath))

	fingerprint, modTime, sizeBytes, err := fingerprintFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("read failed: %w", err)
	}

	if prev != nil && prev.Fingerprint == fingerprint && prev.Described() {
		return outcomeUnchanged, nil
	}

	contents, err := os.ReadFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("read failed: %w", err)
	}
	if isBinary(contents) {
		return 0, fmt.Errorf("%w: binary content", types.ErrSummarization)
	}

	description, err := s.summarizer.Summarize(ctx, relPath, contents)
	if err != nil {
		return 0, err
	}

	emb, err := s.embedder.Embed(ctx, description)
	if err != nil {
		return 0, err
	}

	rec := &types.FileRecord{
		Path:        relPath,
		Fingerprint: fingerprint,
		Description: description,
		SizeBytes:   sizeBytes,
		ModTime:     modTime,
		DescribedAt: time.Now(),
	}
	if err := s.store.CommitFile(ctx, rec, emb.Vector); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", relPath, err)
	}

	if prev == nil {
		return outcomeAdded, nil
	}
	return outcomeUpdated, nil
}

// isFatal separates index-level failures from per-file ones. Per-file
// failures skip the file; these abort the scan.
func isFatal(err error) bool {
	return errors.Is(err, types.ErrDimensionMismatch) ||
		errors.Is(err, types.ErrCorruptIndex) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// fingerprintFile computes the SHA-256 of a file's contents
func fingerprintFile(path string) ([32]byte, time.Time, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))
	return result, info.ModTime(), info.Size(), nil
}

// isBinary sniffs for a NUL byte in the first 8000 bytes, the same check
// git uses to classify files.
func isBinary(contents []byte) bool {
	limit := len(contents)
	if limit > 8000 {
		limit = 8000
	}
	for _, b := range contents[:limit] {
		if b == 0 {
			return true
		}
	}
	return false
}
