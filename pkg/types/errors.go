package types

import "errors"

// Error taxonomy for the retrieval engine.
//
// Per-file errors (ErrSummarization, ErrEmbedding) are recoverable: a scan
// logs them, records the path in ScanReport.Failed, and keeps going.
// Index-wide errors (ErrDimensionMismatch, ErrCorruptIndex) are fatal to the
// operation that hit them and are surfaced so the caller can decide to
// rebuild. ErrInvalidArgument is caller misuse and is returned immediately.
var (
	ErrSummarization     = errors.New("summarization failed")
	ErrEmbedding         = errors.New("embedding failed")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrCorruptIndex      = errors.New("corrupt index")
	ErrInvalidArgument   = errors.New("invalid argument")
)
