/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// PreviewsMaxBytesEnv caps the total size of cached thumbnails.
const PreviewsMaxBytesEnv = "MSH_PREVIEWS_MAX_BYTES"

// DefaultPreviewsMaxBytes applies when PreviewsMaxBytesEnv is unset or invalid.
const DefaultPreviewsMaxBytes int64 = 256 * 1024 * 1024

// EnsurePreviewsTable creates the thumbnail cache table and its indexes.
// It is safe to call multiple times.
func EnsurePreviewsTable(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS previews (
			id          INTEGER PRIMARY KEY,
			key         TEXT    NOT NULL,
			w           INTEGER NOT NULL DEFAULT 0,
			blob        BLOB    NOT NULL,
			size        INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT    NOT NULL,
			last_access INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_variant ON previews(key, w);`,
		// LRU eviction scans by access time
		`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure previews: %w", err)
		}
	}
	return nil
}

// SetPreviewCap overrides the byte cap enforced by PutPreview. n <= 0
// disables eviction.
func (d *DB) SetPreviewCap(n int64) { d.capBytes.Store(n) }

// PreviewCap returns the byte cap enforced by PutPreview.
func (d *DB) PreviewCap() int64 { return d.capBytes.Load() }

// GetPreview returns the cached thumbnail for key at width and marks it as
// recently used. A miss returns nil, nil.
func (d *DB) GetPreview(ctx context.Context, key string, width int) ([]byte, error) {
	var blob []byte
	err := d.sql.QueryRowContext(ctx, `SELECT blob FROM previews WHERE key=? AND w=?`, key, width).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	_, _ = d.sql.ExecContext(ctx, `UPDATE previews SET last_access=? WHERE key=? AND w=?`, accessStamp(), key, width)
	return blob, nil
}

// PutPreview upserts a thumbnail and enforces the cache cap via LRU eviction.
func (d *DB) PutPreview(ctx context.Context, key string, width int, blob []byte) error {
	if key == "" {
		return errors.New("preview key is required")
	}
	if len(blob) == 0 {
		return errors.New("preview blob is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.sql.ExecContext(ctx, `INSERT INTO previews(key,w,blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(key,w) DO UPDATE SET blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		key, width, blob, len(blob), now, accessStamp())
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if capBytes := d.capBytes.Load(); capBytes > 0 {
		if err := d.EvictPreviewsToFit(ctx, capBytes); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreatePreview fetches a thumbnail or generates and stores it using gen.
func (d *DB) GetOrCreatePreview(ctx context.Context, key string, width int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := d.GetPreview(ctx, key, width); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if err := d.PutPreview(ctx, key, width, data); err != nil {
		return nil, err
	}
	return data, nil
}

// DeletePreviews drops every cached width of key.
func (d *DB) DeletePreviews(ctx context.Context, key string) error {
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM previews WHERE key=?`, key); err != nil {
		return fmt.Errorf("delete previews: %w", err)
	}
	return nil
}

// EvictPreviewsToFit deletes least-recently-used rows until total size <= capBytes.
func (d *DB) EvictPreviewsToFit(ctx context.Context, capBytes int64) error {
	total, err := d.TotalPreviewBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	toDelete := make([]int64, 0, 32)
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		toDelete = append(toDelete, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// the cursor holds the only connection
	if err := rows.Close(); err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}
	q := `DELETE FROM previews WHERE id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(toDelete)), ",") + `)`
	args := make([]any, len(toDelete))
	for i, v := range toDelete {
		args[i] = v
	}
	if _, err := d.sql.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	d.log.Debug("previews evicted", slog.Int("rows", len(toDelete)), slog.Int64("cap", capBytes))
	return nil
}

// TotalPreviewBytes returns total bytes tracked by previews.size.
func (d *DB) TotalPreviewBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := d.sql.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum previews size: %w", err)
	}
	return total, nil
}

// MaxPreviewsBytesFromEnv reads PreviewsMaxBytesEnv, defaulting to 256MB.
func MaxPreviewsBytesFromEnv() int64 {
	v := os.Getenv(PreviewsMaxBytesEnv)
	if v == "" {
		return DefaultPreviewsMaxBytes
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return DefaultPreviewsMaxBytes
	}
	return n
}

var lastStamp atomic.Int64

// accessStamp returns a strictly increasing access time so LRU order holds
// for writes within the same clock tick.
func accessStamp() int64 {
	now := time.Now().UnixNano()
	for {
		prev := lastStamp.Load()
		next := max(now, prev+1)
		if lastStamp.CompareAndSwap(prev, next) {
			return next
		}
	}
}
