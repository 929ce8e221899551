//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"mangashelf/internal/gridlayout"
	"mangashelf/internal/library"
	applog "mangashelf/internal/log"
	"mangashelf/internal/metadata"
	"mangashelf/internal/shelf"
	"mangashelf/internal/storage"
	"mangashelf/internal/version"
)

// Run starts the desktop UI on s and blocks until the main window closes or
// ctx is canceled.
func Run(ctx context.Context, s *shelf.Shelf) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	filler, err := s.NewFiller()
	if err != nil {
		return fmt.Errorf("start thumbnails: %w", err)
	}
	defer filler.Close()

	fyneApp := app.NewWithID("mangashelf")
	w := fyneApp.NewWindow("MangaShelf")
	width, height := restoreGeometry(ctx, s)
	w.Resize(fyne.NewSize(width, height))

	status := widget.NewLabel("")
	grid := NewCoverGrid(s.Catalog, filler, GridOptions{
		Sizing:         gridlayout.Sizing{ItemWidth: s.Config.Grid.ItemWidth, ItemHeight: s.Config.Grid.ItemHeight},
		PreserveOffset: s.Config.Grid.PreserveOffset,
		Logger:         l,
	})
	updateStatus := func() {
		status.SetText(fmt.Sprintf("%d of %d books", s.Catalog.ItemCount(), s.Catalog.Total()))
	}
	unsub := s.Catalog.OnChange(func() { fyne.Do(updateStatus) })
	defer unsub()
	updateStatus()

	// vertical sliders grow upwards, so the value is mirrored
	scrollbar := widget.NewSlider(0, 1)
	scrollbar.Orientation = widget.Vertical
	syncing := false
	grid.OnScroll = func(st gridlayout.ScrollState) {
		syncing = true
		scrollbar.Max = max(st.MaxOffset(), 1)
		scrollbar.SetValue(scrollbar.Max - st.Offset)
		syncing = false
	}
	scrollbar.OnChanged = func(v float64) {
		if !syncing {
			grid.SetOffset(scrollbar.Max - v)
		}
	}

	grid.OnSelect = func(_ int, it library.Item) {
		m := it.Effective()
		text := m.Title
		if m.Author != "" {
			text += " / " + m.Author
		}
		if page, pages, ok := s.ProgressOf(ctx, it.Entry.Path); ok && pages > 0 {
			text += fmt.Sprintf("  (page %d of %d)", page+1, pages)
		}
		status.SetText(text)
	}
	grid.OnOpen = func(it library.Item) { openReader(ctx, fyneApp, w, s, it) }

	search := widget.NewEntry()
	search.SetPlaceHolder("Search title, author or tag")
	search.OnChanged = func(q string) {
		q = strings.TrimSpace(q)
		cr := metadata.Criteria{}
		if q != "" {
			cr = metadata.Criteria{Title: q, Author: q, Tags: []string{q}, Mode: metadata.ModeOr}
		}
		s.Catalog.Filter(cr)
	}

	rescan := func(root string) {
		status.SetText("Scanning…")
		go func() {
			res, err := s.Rescan(ctx, root)
			fyne.Do(func() {
				if err != nil {
					l.Error("rescan failed", slog.Any("err", err))
					dialog.ShowError(err, w)
					updateStatus()
					return
				}
				status.SetText(fmt.Sprintf("Found %d books in %s", len(res.Entries), res.Duration.Round(1e6)))
			})
		}()
	}
	openFolder := widget.NewButtonWithIcon("", theme.FolderOpenIcon(), func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uri == nil {
				return
			}
			rescan(uri.Path())
		}, w)
	})
	refresh := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() { rescan("") })

	// the toolbar is drawn above the grid so covers scrolled past the top are hidden
	toolbar := container.NewStack(
		canvas.NewRectangle(theme.Color(theme.ColorNameBackground)),
		container.NewBorder(nil, nil, container.NewHBox(openFolder, refresh), nil, search),
	)
	w.SetContent(container.NewBorder(toolbar, status, nil, scrollbar, grid))

	restoreOffset(ctx, s, grid)
	w.SetOnClosed(func() {
		saveGeometry(ctx, s, w.Canvas().Size())
		if err := s.DB.SetSetting(ctx, storage.SettingGridOffset, strconv.FormatFloat(grid.Engine().Offset(), 'f', 1, 64)); err != nil {
			l.Warn("save grid offset failed", slog.Any("err", err))
		}
		grid.Close()
	})
	go func() {
		<-ctx.Done()
		fyne.Do(fyneApp.Quit)
	}()

	if s.Catalog.Total() == 0 && s.Root(ctx) != "" {
		rescan("")
	}
	w.ShowAndRun()
	l.Info("UI closed")
	return nil
}

// restoreGeometry reads the stored "WxH" window size with sane minimums.
func restoreGeometry(ctx context.Context, s *shelf.Shelf) (float32, float32) {
	w, h := float32(1200), float32(800)
	if v, ok, err := s.DB.GetSetting(ctx, storage.SettingWindowGeometry); err == nil && ok {
		if ws, hs, found := strings.Cut(v, "x"); found {
			if pw, err := strconv.ParseFloat(ws, 32); err == nil {
				w = float32(pw)
			}
			if ph, err := strconv.ParseFloat(hs, 32); err == nil {
				h = float32(ph)
			}
		}
	}
	return max(w, 640), max(h, 480)
}

func saveGeometry(ctx context.Context, s *shelf.Shelf, sz fyne.Size) {
	v := fmt.Sprintf("%dx%d", int(sz.Width), int(sz.Height))
	if err := s.DB.SetSetting(ctx, storage.SettingWindowGeometry, v); err != nil {
		applog.WithComponent("ui").Warn("save window geometry failed", slog.Any("err", err))
	}
}

// restoreOffset scrolls to the stored offset once the grid has a size.
func restoreOffset(ctx context.Context, s *shelf.Shelf, g *CoverGrid) {
	v, ok, err := s.DB.GetSetting(ctx, storage.SettingGridOffset)
	if err != nil || !ok {
		return
	}
	off, err := strconv.ParseFloat(v, 64)
	if err != nil || off <= 0 {
		return
	}
	g.RestoreOffset(off)
}
