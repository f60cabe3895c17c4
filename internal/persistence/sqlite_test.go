package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSQLite_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLiteDSN(ctx, fmt.Sprintf("file:test_migrate?mode=memory&cache=shared&%s", SQLitePragmas))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, MigrateSQLite(ctx, db))

	var applied int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations;").Scan(&applied))
	assert.Equal(t, 1, applied)

	_, err = db.ExecContext(ctx, `INSERT INTO access_requests(id, first_name, last_name, verification_code, status, submitted_at_ms)
VALUES ('x', 'a', 'b', '12345', 'archived', 0);`)
	assert.Error(t, err, "status check constraint")
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("0007_add_index.sql")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = parseMigrationVersion("abc_bad.sql")
	assert.Error(t, err)
}
