/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	applog "mangashelf/internal/log"
	"mangashelf/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// FileName is the database file inside the data directory.
	FileName = "library.sqlite"
	// BackupDirName holds copies of databases that failed the health check.
	BackupDirName = "backups"

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// DB is an open library database. It is safe for concurrent use.
type DB struct {
	sql      *sql.DB
	path     string
	log      *slog.Logger
	capBytes atomic.Int64
}

// Path returns the database file path for a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Open ensures the database exists under dataDir, enables WAL mode, creates
// the schema and runs pending migrations.
func Open(dataDir string) (*DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(
		slog.String("dir", dataDir),
	)
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		l.Error("create data dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := Path(dataDir)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; readers queue behind it.
	sdb.SetMaxOpenConns(1)
	sdb.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := sdb.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = sdb.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, sdb); err != nil {
		_ = sdb.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureSchema(ctx, sdb); err != nil {
		_ = sdb.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, sdb); err != nil {
		_ = sdb.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	d := &DB{sql: sdb, path: path, log: applog.WithComponent("storage")}
	d.capBytes.Store(MaxPreviewsBytesFromEnv())
	l.Info("database ready", slog.String("path", path))
	return d, nil
}

// OpenOrRebuild opens the database and, when it cannot be opened or fails the
// integrity check, backs the file up into BackupDirName and starts over with
// an empty database. It reports whether a rebuild happened.
func OpenOrRebuild(ctx context.Context, dataDir string) (*DB, bool, error) {
	path := Path(dataDir)
	d, err := Open(dataDir)
	if err == nil {
		if d.healthy(ctx) {
			return d, false, nil
		}
		_ = d.sql.Close()
	}
	applog.WithComponent("storage").Warn("database unusable, rebuilding",
		slog.String("path", path), slog.Any("err", err))
	backupFile(path)
	removeDatabase(path)
	d, rerr := Open(dataDir)
	if rerr != nil {
		if err != nil {
			return nil, false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rerr, err)
		}
		return nil, false, fmt.Errorf("rebuild: %w", rerr)
	}
	return d, true, nil
}

func (d *DB) healthy(ctx context.Context) bool {
	var chk string
	if err := d.sql.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		return false
	}
	if _, err := d.sql.ExecContext(ctx, `SELECT 1 FROM entries LIMIT 1;`); err != nil {
		return false
	}
	return true
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Checkpoint folds the WAL back into the main database file.
func (d *DB) Checkpoint(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// Close checkpoints and closes the database.
func (d *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Checkpoint(ctx); err != nil {
		d.log.Warn("checkpoint on close failed", slog.Any("err", err))
	}
	return d.sql.Close()
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema for runMigrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureSchema creates the tables of the current schema when missing.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id       TEXT    PRIMARY KEY,
			path     TEXT    NOT NULL UNIQUE,
			title    TEXT    NOT NULL,
			kind     TEXT    NOT NULL,
			size     INTEGER NOT NULL DEFAULT 0,
			mod_time INTEGER NOT NULL DEFAULT 0,
			ord      INTEGER NOT NULL,
			scan_id  TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_ord ON entries(ord);`,

		`CREATE TABLE IF NOT EXISTS metadata (
			path       TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			author     TEXT NOT NULL DEFAULT '',
			publisher  TEXT NOT NULL DEFAULT '',
			category   TEXT NOT NULL DEFAULT '',
			tags       TEXT NOT NULL DEFAULT '[]',
			updated_at INTEGER NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS progress (
			path       TEXT    PRIMARY KEY,
			page       INTEGER NOT NULL,
			pages      INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return EnsurePreviewsTable(ctx, db)
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// written by a newer build; leave it alone
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// v1 tracked only the page number
			if !hasColumn(ctx, db, "progress", "pages") {
				stmts = append(stmts, `ALTER TABLE progress ADD COLUMN pages INTEGER NOT NULL DEFAULT 0;`)
			}
			stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_progress_updated ON progress(updated_at);`)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) bool {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

// backupFile copies the database into a timestamped backup next to it.
func backupFile(dbPath string) {
	bdir := filepath.Join(filepath.Dir(dbPath), BackupDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(dbPath), stamp))
	if data, err := os.ReadFile(dbPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeDatabase(dbPath string) {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		_ = os.Remove(p)
	}
}
