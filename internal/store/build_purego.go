//go:build purego || !cgo_sqlite
// +build purego !cgo_sqlite

package store

// Compiled when building without CGO or with the purego tag. Uses a pure Go
// SQLite implementation: no C compiler required, cross-compiles anywhere,
// somewhat slower on large indices.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
