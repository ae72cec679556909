package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}

func TestApply_RecordsAndSkips(t *testing.T) {
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE items;"),
		},
	}

	require.NoError(t, Apply(db, migrations))
	require.NoError(t, Apply(db, migrations), "re-applying must be idempotent")

	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='items'"))
}

func TestApply_FailingMigrationIsNotRecorded(t *testing.T) {
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("CREATE TABLE (")},
	}

	assert.Error(t, Apply(db, migrations))
	assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"))
}

func TestExtractUp(t *testing.T) {
	assert.Equal(t, "SELECT 1;", ExtractUp("SELECT 1;"))
	assert.Equal(t, "\nA;\n", ExtractUp("-- +migrate Up\nA;\n-- +migrate Down\nB;"))
	assert.Equal(t, "\nA;", ExtractUp("-- +migrate Up\nA;"))
}
