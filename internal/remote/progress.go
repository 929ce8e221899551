/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package remote

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	applog "mangashelf/internal/log"
	"mangashelf/internal/storage"
)

// Record is one row of the shared progress table.
type Record struct {
	Key       string
	Page      int
	Pages     int
	Device    string
	UpdatedAt time.Time
}

// Remote is the shared side of a sync. Store implements it.
type Remote interface {
	PushProgress(ctx context.Context, recs []Record) (int, error)
	PullProgress(ctx context.Context, since time.Time) ([]Record, error)
}

// LocalStore is the local side of a sync. storage.DB implements it.
type LocalStore interface {
	ListProgress(ctx context.Context) ([]storage.Progress, error)
	MergeProgress(ctx context.Context, p storage.Progress) (bool, error)
}

const upsertProgress = `INSERT INTO reading_progress(book_key, page, pages, device, updated_at)
VALUES($1, $2, $3, $4, $5)
ON CONFLICT(book_key) DO UPDATE SET page=EXCLUDED.page, pages=EXCLUDED.pages, device=EXCLUDED.device, updated_at=EXCLUDED.updated_at
WHERE EXCLUDED.updated_at > reading_progress.updated_at`

// PushProgress upserts recs, keeping newer remote rows, and returns how many
// rows changed.
func (s *Store) PushProgress(ctx context.Context, recs []Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, r := range recs {
		dev := r.Device
		if dev == "" {
			dev = s.device
		}
		batch.Queue(upsertProgress, r.Key, r.Page, r.Pages, dev, r.UpdatedAt.UTC())
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	changed := 0
	for range recs {
		tag, err := br.Exec()
		if err != nil {
			return changed, fmt.Errorf("push progress: %w", err)
		}
		changed += int(tag.RowsAffected())
	}
	return changed, nil
}

// PullProgress returns rows updated after since.
func (s *Store) PullProgress(ctx context.Context, since time.Time) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT book_key, page, pages, device, updated_at FROM reading_progress WHERE updated_at > $1 ORDER BY updated_at`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("pull progress: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(&r.Key, &r.Page, &r.Pages, &r.Device, &r.UpdatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	return recs, nil
}

// Stats summarizes a Sync.
type Stats struct {
	Pushed  int
	Pulled  int
	Skipped int
}

// Sync pushes every local position under root, then pulls the shared table
// and merges rows newer than the local ones.
func Sync(ctx context.Context, r Remote, local LocalStore, root string) (Stats, error) {
	l := applog.WithOperation(applog.WithComponent("remote"), "sync").With(slog.String("root", root))
	var st Stats
	ps, err := local.ListProgress(ctx)
	if err != nil {
		return st, err
	}
	recs := make([]Record, 0, len(ps))
	for _, p := range ps {
		key, ok := KeyFor(root, p.Path)
		if !ok {
			st.Skipped++
			continue
		}
		recs = append(recs, Record{Key: key, Page: p.Page, Pages: p.Pages, UpdatedAt: p.UpdatedAt})
	}
	if st.Pushed, err = r.PushProgress(ctx, recs); err != nil {
		return st, err
	}
	remote, err := r.PullProgress(ctx, time.Time{})
	if err != nil {
		return st, err
	}
	for _, rec := range remote {
		applied, err := local.MergeProgress(ctx, storage.Progress{
			Path:      PathFor(root, rec.Key),
			Page:      rec.Page,
			Pages:     rec.Pages,
			UpdatedAt: rec.UpdatedAt,
		})
		if err != nil {
			return st, err
		}
		if applied {
			st.Pulled++
		}
	}
	l.InfoContext(ctx, "sync finished", slog.Int("pushed", st.Pushed), slog.Int("pulled", st.Pulled), slog.Int("skipped", st.Skipped))
	return st, nil
}

// KeyFor returns the shared key of the book at p: its slash path relative to
// root. ok is false for books outside root.
func KeyFor(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// PathFor maps a shared key back to a local path under root.
func PathFor(root, key string) string {
	return filepath.Join(root, filepath.FromSlash(key))
}
