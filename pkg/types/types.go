package types

import (
	"fmt"
	"time"
)

// FileRecord is the cached state of one source file: its identity, a content
// fingerprint used to detect staleness, and the natural-language description
// generated for it. The embedding derived from the description lives in the
// vector store keyed by the same path.
type FileRecord struct {
	Path        string // Relative to project root, unique key
	Fingerprint [32]byte
	Description string // Empty until summarization succeeds
	SizeBytes   int64
	ModTime     time.Time
	DescribedAt time.Time
}

// Described reports whether the record carries a usable description.
// Records without one are excluded from ranking, not scored as zero.
func (r *FileRecord) Described() bool {
	return r.Description != ""
}

// Match is a single ranked search hit.
type Match struct {
	Path         string
	Score        float64 // Weighted combination, ordering contract only
	KeywordScore float64 // [0,1] token overlap
	VectorScore  float64 // [0,1] similarity
}

// QueryResult is an ordered sequence of matches, descending by Score with
// ties broken by ascending Path. Scores are dimensionless and only comparable
// within one query.
type QueryResult []Match

// FileError records a per-file failure during a scan.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// ScanReport summarizes the file changes one scan produced. Per-file failures
// never abort a scan; they are collected here alongside the successes.
type ScanReport struct {
	Added     []string
	Updated   []string
	Removed   []string
	Failed    []FileError
	Unchanged int
	Duration  time.Duration
}

// Changed reports whether the scan mutated the index at all.
func (r *ScanReport) Changed() bool {
	return len(r.Added)+len(r.Updated)+len(r.Removed) > 0
}
