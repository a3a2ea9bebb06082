package repo

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migration is one SQL file. Its version is the file name.
type migration struct {
	version string
	sql     string
}

// loadMigrations reads the *.sql files of dir in lexicographical order,
// skipping empty ones.
func loadMigrations(filesystem fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(filesystem, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		sqlBytes, err := fs.ReadFile(filesystem, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(string(sqlBytes)) == "" {
			continue
		}
		out = append(out, migration{version: entry.Name(), sql: string(sqlBytes)})
	}
	return out, nil
}

// ApplyMigrations executes the root SQL files against the pool, each in its
// own transaction, and records applied versions in schema_migrations.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, filesystem fs.FS) (int, error) {
	pending, err := loadMigrations(filesystem, ".")
	if err != nil {
		return 0, err
	}

	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range pending {
		var done bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version).Scan(&done); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", m.version, err)
		}
		if done {
			continue
		}
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("execute migration %s: %w", m.version, err)
		}
		applied++
	}
	return applied, nil
}

// applySQLiteMigrations is the SQLite counterpart of ApplyMigrations for the
// files under sqlite/.
func applySQLiteMigrations(ctx context.Context, db *sql.DB, filesystem fs.FS, now time.Time) (int, error) {
	pending, err := loadMigrations(filesystem, "sqlite")
	if err != nil {
		return 0, err
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range pending {
		var n int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&n); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", m.version, err)
		}
		if n > 0 {
			continue
		}
		if err := execSQLiteMigration(ctx, db, m, now); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		applied++
	}
	return applied, nil
}

func execSQLiteMigration(ctx context.Context, db *sql.DB, m migration, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, m.version, formatSQLiteTime(now)); err != nil {
		return err
	}
	return tx.Commit()
}
