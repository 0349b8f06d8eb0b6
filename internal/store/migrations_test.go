package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMigrationDB(t *testing.T) *sql.DB {
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	var name string
	err := db.QueryRowContext(context.Background(),
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	db := setupMigrationDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))
	require.NoError(t, ApplyMigrations(ctx, db))

	var version string
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&version))
	assert.Equal(t, CurrentSchemaVersion, version)

	var applied int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_version").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestRollbackMigration(t *testing.T) {
	db := setupMigrationDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))
	require.True(t, tableExists(t, db, "files"))

	require.NoError(t, RollbackMigration(ctx, db))
	assert.False(t, tableExists(t, db, "files"))
	assert.False(t, tableExists(t, db, "vectors"))
	assert.False(t, tableExists(t, db, "meta"))

	// Nothing left to roll back
	assert.Error(t, RollbackMigration(ctx, db))

	// Reapplying restores the schema
	require.NoError(t, ApplyMigrations(ctx, db))
	assert.True(t, tableExists(t, db, "files"))
}
