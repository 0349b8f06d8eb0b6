// Package types defines the shared data model of the retrieval engine:
// cached file records, ranked query results, scan reports, and the error
// taxonomy that separates per-file recoverable failures from index-wide
// fatal ones.
package types
