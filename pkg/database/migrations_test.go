package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMigrations_OrdersAndNames(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.sql":      {Data: []byte("CREATE INDEX idx_t ON t(name);")},
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE t (name TEXT);")},
		"README.md":              {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial_schema", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "add_index", migrations[1].Name)
}

func TestLoadMigrations_RejectsBadFiles(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "duplicate migration version 1")

	for _, name := range []string{"initial.sql", "001.sql", "v1_init.sql"} {
		_, err = LoadMigrations(fstest.MapFS{name: {Data: []byte("SELECT 1;")}})
		assert.ErrorContains(t, err, "invalid migration filename", name)
	}
}

func TestMigrator_AppliesOnce(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Path: ":memory:"}, logger)
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE t (name TEXT);")},
	}
	ctx := context.Background()
	migrator := NewMigrator(db, logger)
	n, err := migrator.Apply(ctx, fsys)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	// A second run must skip the applied file rather than fail on CREATE TABLE.
	n, err = migrator.Apply(ctx, fsys)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)

	fsys["002_seed.sql"] = &fstest.MapFile{Data: []byte("INSERT INTO t (name) VALUES ('a');")}
	_, err = migrator.Apply(ctx, fsys)
	require.NoError(t, err)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM t").Scan(&count))
	assert.Equal(t, 1, count)

	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Path: ":memory:"}, logger)
	require.NoError(t, err)
	defer db.Close()

	migrator := NewMigrator(db, logger)
	_, err = migrator.Apply(context.Background(), fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE (;")},
	})
	require.Error(t, err)

	version, err := migrator.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_busy_timeout=5000&_foreign_keys=on", DSN(Config{Path: MemoryPath}))
	assert.Equal(t,
		"file:data/carrier.db?_busy_timeout=250&_foreign_keys=on&_journal_mode=WAL",
		DSN(Config{Path: "file:data/carrier.db", BusyTimeout: 250 * time.Millisecond}))
}

func TestNew_EnforcesForeignKeys(t *testing.T) {
	db, err := New(Config{Path: MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE parent (id TEXT PRIMARY KEY);
		CREATE TABLE child (id TEXT PRIMARY KEY, parent_id TEXT NOT NULL REFERENCES parent(id));`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO child (id, parent_id) VALUES ('c', 'missing')`)
	assert.Error(t, err)
}
