package store

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	ms, err := loadMigrations(migrationFS)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "definitions", ms[0].Name)
	assert.Equal(t, "checksum_index", ms[1].Name)
}

func TestLoadMigrations_Ordering(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql": {Data: []byte("SELECT 1;")},
		"migrations/002_early.sql": {Data: []byte("SELECT 2;")},
	}
	ms, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, []int{2, 10}, []int{ms[0].Version, ms[1].Version})
}

func TestLoadMigrations_BadNames(t *testing.T) {
	for name, fsys := range map[string]fstest.MapFS{
		"no underscore": {"migrations/001.sql": {}},
		"not a number":  {"migrations/abc_x.sql": {}},
		"zero":          {"migrations/000_x.sql": {}},
		"duplicate":     {"migrations/001_a.sql": {}, "migrations/1_b.sql": {}},
	} {
		_, err := loadMigrations(fsys)
		assert.Error(t, err, name)
	}
}

func TestSQLStatements(t *testing.T) {
	script := `-- header comment
CREATE TABLE a (x INTEGER);
  -- indented comment;
CREATE INDEX i ON a (x);

`
	assert.Equal(t, []string{"CREATE TABLE a (x INTEGER)", "CREATE INDEX i ON a (x)"}, sqlStatements(script))
	assert.Empty(t, sqlStatements("-- only a comment;\n"))
}

func TestAppliedMigrations(t *testing.T) {
	s := newTestStore(t)

	applied, err := s.AppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []AppliedMigration{{1, "definitions"}, {2, "checksum_index"}}, applied)

	var n int
	require.NoError(t, s.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_definitions_checksum'`).Scan(&n))
	assert.Equal(t, 1, n)
}
