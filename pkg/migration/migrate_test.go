package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("バージョン順に並び関係ないファイルは無視されること", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/000002_second.up.sql":  {Data: []byte("SELECT 1;")},
			"m/000001_first.up.sql":   {Data: []byte("SELECT 1;")},
			"m/000001_first.down.sql": {Data: []byte("SELECT 1;")},
			"m/README.md":             {Data: []byte("docs")},
			"m/abc_invalid.up.sql":    {Data: []byte("SELECT 1;")},
		}

		files, err := Collect(fsys, "m")
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, File{Version: 1, Name: "first", Path: "m/000001_first.up.sql"}, files[0])
		assert.Equal(t, File{Version: 2, Name: "second", Path: "m/000002_second.up.sql"}, files[1])
	})

	t.Run("バージョンが重複する場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/000001_a.up.sql": {Data: []byte("SELECT 1;")},
			"m/000001_b.up.sql": {Data: []byte("SELECT 1;")},
		}
		_, err := Collect(fsys, "m")
		assert.Error(t, err)
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"m/000001_create_items.up.sql": {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);")},
		"m/000002_add_name.up.sql":     {Data: []byte("ALTER TABLE items ADD COLUMN name TEXT NOT NULL DEFAULT '';")},
	}

	t.Run("未適用のマイグレーションのみ適用されること", func(t *testing.T) {
		t.Parallel()

		db := openMemoryDB(t)
		ctx := context.Background()

		n, err := Run(ctx, db, fsys, "m", zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = Run(ctx, db, fsys, "m", zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = db.ExecContext(ctx, "INSERT INTO items (id, name) VALUES ('1', 'x')")
		assert.NoError(t, err)
	})

	t.Run("失敗したマイグレーションはロールバックされること", func(t *testing.T) {
		t.Parallel()

		db := openMemoryDB(t)
		broken := fstest.MapFS{
			"m/000001_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
			"m/000002_broken.up.sql": {Data: []byte("CREATE TABLE broken (;")},
		}

		n, err := Run(context.Background(), db, broken, "m", zerolog.Nop())
		require.Error(t, err)
		assert.Equal(t, 1, n)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
		assert.Equal(t, 1, count)
	})
}
