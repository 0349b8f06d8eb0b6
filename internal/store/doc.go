// Package store provides SQLite-based persistence for the retrieval index.
//
// One database file holds the whole index:
//   - meta: settings pinned at creation (distance metric, vector dimension,
//     embedding provider/model)
//   - files: the description cache, one row per tracked file with its
//     content fingerprint
//   - vectors: the embedding store, with a stable integer id per path and
//     cascade delete back to files
//
// Because all three live in one database, the index loads and saves as a
// single consistent unit; there is no cross-file reconciliation step.
//
// # Basic Usage
//
//	st, err := store.Open("~/.descry/index.db", store.Options{Metric: store.MetricCosine})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	err = st.CommitFile(ctx, &types.FileRecord{Path: "auth/login.go", ...}, vector)
//
// # Build Modes
//
// Two SQLite drivers are supported via build tags: mattn/go-sqlite3 when
// built with -tags cgo_sqlite, modernc.org/sqlite otherwise. See
// build_cgo.go and build_purego.go.
package store
