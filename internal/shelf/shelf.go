/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package shelf wires the library services together: the database, the
// in-memory catalog the grid engine is virtualized over, scanning and the
// thumbnail filler. CLI commands and both UI hosts start from a Shelf.
package shelf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mangashelf/internal/config"
	"mangashelf/internal/library"
	applog "mangashelf/internal/log"
	"mangashelf/internal/metadata"
	"mangashelf/internal/reader"
	"mangashelf/internal/storage"
	"mangashelf/internal/thumbs"
)

// ErrNoRoot is returned by Rescan when no library root is known.
var ErrNoRoot = errors.New("no library root configured")

// memoryThumbs is the number of thumbnails kept in memory in front of the
// database cache.
const memoryThumbs = 512

// Shelf is an open library.
type Shelf struct {
	Config  config.AppConfig
	DataDir string
	DB      *storage.DB
	Catalog *library.Catalog
	log     *slog.Logger
}

// Open opens (or rebuilds) the database in dataDir and loads the catalog.
func Open(ctx context.Context, cfg config.AppConfig, dataDir string) (*Shelf, error) {
	l := applog.WithComponent("shelf")
	db, rebuilt, err := storage.OpenOrRebuild(ctx, dataDir)
	if err != nil {
		return nil, err
	}
	if rebuilt {
		l.Warn("library database was corrupt and has been rebuilt; rescan to repopulate",
			slog.String("path", db.Path()))
	}
	capBytes := cfg.Thumbs.CacheMaxBytes
	if os.Getenv(storage.PreviewsMaxBytesEnv) != "" || capBytes <= 0 {
		capBytes = storage.MaxPreviewsBytesFromEnv()
	}
	db.SetPreviewCap(capBytes)

	s := &Shelf{Config: cfg, DataDir: dataDir, DB: db, Catalog: library.NewCatalog(), log: l}
	if err := s.Load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close flushes and closes the database.
func (s *Shelf) Close() error { return s.DB.Close() }

// Load fills the catalog from the last stored scan and the stored metadata.
func (s *Shelf) Load(ctx context.Context) error {
	entries, err := s.DB.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	meta, err := s.DB.AllMetadata(ctx)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	s.Catalog.ReplaceEntries(entries, meta)
	s.log.Debug("catalog loaded", slog.Int("entries", len(entries)), slog.Int("metadata", len(meta)))
	return nil
}

// Root returns the library root: the configured one, else the one used by
// the last scan.
func (s *Shelf) Root(ctx context.Context) string {
	if r := strings.TrimSpace(s.Config.Library.Root); r != "" {
		return r
	}
	if r, ok, err := s.DB.GetSetting(ctx, storage.SettingLibraryRoot); err == nil && ok {
		return r
	}
	return ""
}

// Rescan walks root (or Root when empty), replaces the stored entries and
// reloads the catalog.
func (s *Shelf) Rescan(ctx context.Context, root string) (library.ScanResult, error) {
	if root == "" {
		root = s.Root(ctx)
	}
	if root == "" {
		return library.ScanResult{}, ErrNoRoot
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	l := applog.WithOperation(s.log, "rescan")
	res, err := library.Scan(ctx, root, library.ScanOptions{
		Exclude:     s.Config.Library.Exclude,
		LeafFolders: s.Config.Library.LeafFolders,
	})
	if err != nil {
		return res, err
	}
	if err := s.DB.ReplaceEntries(ctx, res.ID, res.Entries); err != nil {
		return res, err
	}
	if err := s.DB.SetSetting(ctx, storage.SettingLibraryRoot, root); err != nil {
		return res, err
	}
	if err := s.Load(ctx); err != nil {
		return res, err
	}
	l.InfoContext(ctx, "rescanned",
		slog.String("root", root),
		slog.String("scan", res.ID),
		slog.Int("entries", len(res.Entries)),
		slog.Duration("took", res.Duration))
	return res, nil
}

// SetMetadata stores m for path and updates the catalog.
func (s *Shelf) SetMetadata(ctx context.Context, path string, m metadata.BookMetadata) error {
	if err := s.DB.PutMetadata(ctx, path, m); err != nil {
		return err
	}
	s.Catalog.SetMetadata(path, m)
	return nil
}

// NewFiller starts a thumbnail filler backed by a memory LRU in front of the
// database preview cache.
func (s *Shelf) NewFiller() (*thumbs.Filler, error) {
	cache, err := thumbs.NewMemoryCache(memoryThumbs, s.DB)
	if err != nil {
		return nil, err
	}
	return thumbs.NewFiller(thumbs.Options{
		Width:   s.Config.Thumbs.Width,
		Workers: s.Config.Thumbs.Workers,
		Cache:   cache,
	}), nil
}

// ReaderPrefs returns the reader view settings: the last ones saved from a
// reader window, else the configured defaults.
func (s *Shelf) ReaderPrefs(ctx context.Context) reader.Prefs {
	p := reader.Prefs{
		Mode:      reader.ParseViewMode(s.Config.Reader.ViewMode),
		Direction: reader.ParseDirection(s.Config.Reader.Direction),
	}
	if v, ok, err := s.DB.GetSetting(ctx, storage.SettingViewMode); err == nil && ok {
		p.Mode = reader.ParseViewMode(v)
	}
	if v, ok, err := s.DB.GetSetting(ctx, storage.SettingDirection); err == nil && ok {
		p.Direction = reader.ParseDirection(v)
	}
	return p
}

// SaveReaderPrefs remembers p for the next reader window.
func (s *Shelf) SaveReaderPrefs(ctx context.Context, p reader.Prefs) error {
	if err := s.DB.SetSetting(ctx, storage.SettingViewMode, string(p.Mode)); err != nil {
		return err
	}
	return s.DB.SetSetting(ctx, storage.SettingDirection, string(p.Direction))
}

// ProgressOf reports the stored reading position of path for display.
func (s *Shelf) ProgressOf(ctx context.Context, path string) (page, pages int, ok bool) {
	p, ok, err := s.DB.LoadProgress(ctx, path)
	if err != nil || !ok {
		return 0, 0, false
	}
	return p.Page, p.Pages, true
}
