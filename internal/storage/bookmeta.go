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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mangashelf/internal/metadata"
)

// PutMetadata stores normalized metadata for the book at path. Zero metadata
// deletes the row.
func (d *DB) PutMetadata(ctx context.Context, path string, m metadata.BookMetadata) error {
	if path == "" {
		return errors.New("metadata path is required")
	}
	m = m.Normalized()
	if m.IsZero() {
		return d.DeleteMetadata(ctx, path)
	}
	tags, err := json.Marshal(nonNilTags(m.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO metadata(path, title, author, publisher, category, tags, updated_at) VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET title=excluded.title, author=excluded.author, publisher=excluded.publisher,
			category=excluded.category, tags=excluded.tags, updated_at=excluded.updated_at`,
		path, m.Title, m.Author, m.Publisher, string(m.Category), string(tags), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put metadata: %w", err)
	}
	return nil
}

// GetMetadata returns the metadata of path; ok is false when none is stored.
func (d *DB) GetMetadata(ctx context.Context, path string) (m metadata.BookMetadata, ok bool, err error) {
	var cat, tags string
	err = d.sql.QueryRowContext(ctx, `SELECT title, author, publisher, category, tags FROM metadata WHERE path=?`, path).
		Scan(&m.Title, &m.Author, &m.Publisher, &cat, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return metadata.BookMetadata{}, false, nil
	}
	if err != nil {
		return metadata.BookMetadata{}, false, fmt.Errorf("get metadata: %w", err)
	}
	m.Category = metadata.Category(cat)
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return metadata.BookMetadata{}, false, fmt.Errorf("decode tags of %s: %w", path, err)
	}
	return m, true, nil
}

// AllMetadata returns every stored record keyed by book path.
func (d *DB) AllMetadata(ctx context.Context) (map[string]metadata.BookMetadata, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT path, title, author, publisher, category, tags FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer rows.Close()
	out := map[string]metadata.BookMetadata{}
	for rows.Next() {
		var path, cat, tags string
		var m metadata.BookMetadata
		if err := rows.Scan(&path, &m.Title, &m.Author, &m.Publisher, &cat, &tags); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		m.Category = metadata.Category(cat)
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			d.log.Warn("skipping metadata with bad tags", slog.String("path", path), slog.Any("err", err))
			continue
		}
		out[path] = m
	}
	return out, rows.Err()
}

// DeleteMetadata removes the metadata of path.
func (d *DB) DeleteMetadata(ctx context.Context, path string) error {
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM metadata WHERE path=?`, path); err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	return nil
}

// ImportDocument merges a legacy document: metadata overwrites, progress is
// merged by recency, preferences and the root land in settings.
func (d *DB) ImportDocument(ctx context.Context, doc metadata.Document) (books int, err error) {
	for path, m := range doc.Metadata {
		if err := d.PutMetadata(ctx, path, m); err != nil {
			return books, err
		}
		books++
	}
	// legacy positions carry no timestamp; never let them beat a recorded one
	at := time.UnixMilli(1)
	for path, page := range doc.Progress {
		if _, err := d.MergeProgress(ctx, Progress{Path: path, Page: page, UpdatedAt: at}); err != nil {
			return books, err
		}
	}
	prefs := map[string]string{
		SettingViewMode:    doc.Preferences.ViewMode,
		SettingDirection:   doc.Preferences.ReadingDirection,
		SettingLibraryRoot: doc.RootPath,
	}
	for k, v := range prefs {
		if v == "" {
			continue
		}
		if err := d.SetSetting(ctx, k, v); err != nil {
			return books, err
		}
	}
	return books, nil
}

func nonNilTags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
