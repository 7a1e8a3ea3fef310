// Package libsql opens embedded libSQL databases, probes the optional
// extensions the stores rely on and applies goose migrations.
package libsql

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "github.com/chat-food/server/pkg/logger"
	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/go-libsql"
)

type Config struct {
	Path          string `envconfig:"LIBSQL_PATH" default:"data/chatfood.db"`
	MaxOpenConns  int    `envconfig:"LIBSQL_MAX_OPEN_CONNS" default:"8"`
	BusyTimeoutMS int    `envconfig:"LIBSQL_BUSY_TIMEOUT_MS" default:"5000"`
}

// Capabilities records which optional libSQL features answered the probe.
type Capabilities struct {
	FTS5   bool
	Vector bool
}

// DB is a libSQL handle plus the capabilities detected when it was opened.
type DB struct {
	*sql.DB
	Caps Capabilities
}

// Open connects to the database file (creating parent directories), applies
// pragmas, runs every migration in migrations and probes capabilities.
// migrations may be nil when the schema is managed elsewhere.
func (c Config) Open(ctx context.Context, migrations fs.FS) (*DB, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("libsql path is empty")
	}
	if dir := filepath.Dir(c.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("libsql", "file:"+c.Path)
	if err != nil {
		return nil, fmt.Errorf("open libsql %s: %w", c.Path, err)
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
		db.SetMaxIdleConns(c.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql: %w", err)
	}

	if err := pragmas(ctx, db, c.BusyTimeoutMS); err != nil {
		_ = db.Close()
		return nil, err
	}

	if migrations != nil {
		if err := Migrate(ctx, db, migrations); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	caps := Probe(ctx, db)
	logx.Info().
		Str("path", c.Path).
		Bool("fts5", caps.FTS5).
		Bool("vector", caps.Vector).
		Msg("libsql database ready")

	return &DB{DB: db, Caps: caps}, nil
}

// Migrate applies pending goose migrations found at the root of fsys.
func Migrate(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	provider, err := goose.NewProvider(goose.DialectTurso, db, fsys)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run goose migrations: %w", err)
	}
	for _, r := range results {
		logx.Debug().
			Str("migration", r.Source.Path).
			Dur("duration", r.Duration).
			Msg("migration applied")
	}
	return nil
}

// Probe checks for FTS5 and the libSQL vector functions.
func Probe(ctx context.Context, db *sql.DB) Capabilities {
	var caps Capabilities

	probeCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if _, err := db.ExecContext(probeCtx, "CREATE VIRTUAL TABLE IF NOT EXISTS temp._fts5_probe USING fts5(content)"); err == nil {
		caps.FTS5 = true
		_, _ = db.ExecContext(probeCtx, "DROP TABLE IF EXISTS temp._fts5_probe")
	}

	var dist float64
	err := db.QueryRowContext(probeCtx, "SELECT vector_distance_cos(vector32('[1,2,3]'), vector32('[1,2,3]'))").Scan(&dist)
	caps.Vector = err == nil

	return caps
}

func pragmas(ctx context.Context, db *sql.DB, busyTimeoutMS int) error {
	settings := []string{
		"PRAGMA foreign_keys = ON",
	}
	if busyTimeoutMS > 0 {
		settings = append(settings, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS))
	}

	for _, q := range settings {
		if _, err := db.ExecContext(ctx, q); err != nil {
			// some pragmas echo their value back as a row
			if !strings.Contains(err.Error(), "returned rows") {
				return fmt.Errorf("apply %q: %w", q, err)
			}
			rows, qerr := db.QueryContext(ctx, q)
			if qerr != nil {
				return fmt.Errorf("apply %q: %w", q, qerr)
			}
			rows.Close()
		}
	}
	return nil
}

// VectorLiteral renders an embedding in the text form accepted by vector32().
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", f)
	}
	b.WriteByte(']')
	return b.String()
}
