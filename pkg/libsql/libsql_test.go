package libsql

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRunsMigrations(t *testing.T) {
	ctx := context.Background()
	migrations := fstest.MapFS{
		"00001_init.sql": &fstest.MapFile{Data: []byte(`-- +goose Up
CREATE TABLE widgets (id TEXT PRIMARY KEY, name TEXT NOT NULL);

-- +goose Down
DROP TABLE widgets;
`)},
	}

	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", "test.db"), MaxOpenConns: 2, BusyTimeoutMS: 1000}
	db, err := cfg.Open(ctx, migrations)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "INSERT INTO widgets (id, name) VALUES (?, ?)", "w1", "spoon")
	require.NoError(t, err)

	var name string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT name FROM widgets WHERE id = ?", "w1").Scan(&name))
	assert.Equal(t, "spoon", name)

	// reopening applies nothing new
	require.NoError(t, Migrate(ctx, db.DB, migrations))
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Config{}.Open(context.Background(), nil)
	assert.Error(t, err)
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", VectorLiteral(nil))
	assert.Equal(t, "[1,0.5,-2]", VectorLiteral([]float32{1, 0.5, -2}))
}
