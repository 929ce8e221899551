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
)

// Progress is the reading position of one book, keyed by its path.
type Progress struct {
	Path      string
	Page      int
	Pages     int
	UpdatedAt time.Time
}

// SaveProgress records the position unconditionally. A zero UpdatedAt means now.
func (d *DB) SaveProgress(ctx context.Context, p Progress) error {
	if p.Path == "" {
		return errors.New("progress path is required")
	}
	if p.Page < 0 {
		p.Page = 0
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO progress(path, page, pages, updated_at) VALUES(?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET page=excluded.page, pages=excluded.pages, updated_at=excluded.updated_at`,
		p.Path, p.Page, p.Pages, p.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// MergeProgress applies p only when it is newer than the stored position and
// reports whether it did.
func (d *DB) MergeProgress(ctx context.Context, p Progress) (bool, error) {
	if p.Path == "" {
		return false, errors.New("progress path is required")
	}
	res, err := d.sql.ExecContext(ctx, `INSERT INTO progress(path, page, pages, updated_at) VALUES(?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET page=excluded.page, pages=excluded.pages, updated_at=excluded.updated_at
		WHERE excluded.updated_at > progress.updated_at`,
		p.Path, max(p.Page, 0), p.Pages, p.UpdatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("merge progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("merge progress: %w", err)
	}
	return n > 0, nil
}

// LoadProgress returns the stored position for path; ok is false when none was saved.
func (d *DB) LoadProgress(ctx context.Context, path string) (p Progress, ok bool, err error) {
	var ms int64
	err = d.sql.QueryRowContext(ctx, `SELECT path, page, pages, updated_at FROM progress WHERE path=?`, path).
		Scan(&p.Path, &p.Page, &p.Pages, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, fmt.Errorf("load progress: %w", err)
	}
	p.UpdatedAt = time.UnixMilli(ms)
	return p, true, nil
}

// ListProgress returns every stored position, most recent first.
func (d *DB) ListProgress(ctx context.Context) ([]Progress, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT path, page, pages, updated_at FROM progress ORDER BY updated_at DESC, path`)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()
	var out []Progress
	for rows.Next() {
		var p Progress
		var ms int64
		if err := rows.Scan(&p.Path, &p.Page, &p.Pages, &ms); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p.UpdatedAt = time.UnixMilli(ms)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProgress forgets the position of path.
func (d *DB) DeleteProgress(ctx context.Context, path string) error {
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM progress WHERE path=?`, path); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
