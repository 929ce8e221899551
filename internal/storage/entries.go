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
	"time"

	"mangashelf/internal/library"
)

// ReplaceEntries stores the outcome of a scan, replacing the previous one.
// The stored order is the slice order.
func (d *DB) ReplaceEntries(ctx context.Context, scanID string, entries []library.Entry) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear entries: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO entries(id, path, title, kind, size, mod_time, ord, scan_id) VALUES(?,?,?,?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for i, e := range entries {
		id := e.ID
		if id == "" {
			id = library.EntryID(e.Path)
		}
		if _, err := ins.ExecContext(ctx, id, e.Path, e.Title, string(e.Kind), e.Size, e.ModTime.UnixMilli(), i, scanID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert entry %s: %w", e.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListEntries returns the entries of the last stored scan in scan order.
func (d *DB) ListEntries(ctx context.Context) ([]library.Entry, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, path, title, kind, size, mod_time FROM entries ORDER BY ord;")
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()
	var out []library.Entry
	for rows.Next() {
		var e library.Entry
		var kind string
		var mod int64
		if err := rows.Scan(&e.ID, &e.Path, &e.Title, &kind, &e.Size, &mod); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = library.Kind(kind)
		e.ModTime = time.UnixMilli(mod)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastScanID returns the scan ID stored with the entries, or "".
func (d *DB) LastScanID(ctx context.Context) (string, error) {
	var id sql.NullString
	if err := d.sql.QueryRowContext(ctx, "SELECT scan_id FROM entries ORDER BY ord LIMIT 1;").Scan(&id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("query scan id: %w", err)
	}
	return id.String, nil
}
