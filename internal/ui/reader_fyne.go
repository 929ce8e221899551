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
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"mangashelf/internal/archive"
	"mangashelf/internal/library"
	applog "mangashelf/internal/log"
	"mangashelf/internal/reader"
	"mangashelf/internal/shelf"
	"mangashelf/internal/storage"
)

// readerWindow shows one book a spread at a time. Session calls happen on the
// UI goroutine; page bytes are read on a background goroutine.
type readerWindow struct {
	w      fyne.Window
	sess   *reader.Session
	shelf  *shelf.Shelf
	log    *slog.Logger
	pages  *fyne.Container
	label  *widget.Label
	modeB  *widget.Button
	dirB   *widget.Button
	readMu sync.Mutex
	gen    int
}

// openReader opens it in a new window. Formats without pages (PDF, EPUB)
// report an error dialog on parent.
func openReader(ctx context.Context, a fyne.App, parent fyne.Window, s *shelf.Shelf, it library.Item) {
	l := applog.WithComponent("ui.reader")
	book, err := archive.Open(it.Entry.Path)
	if err != nil {
		l.Warn("open book failed", slog.String("path", it.Entry.Path), slog.Any("err", err))
		dialog.ShowError(fmt.Errorf("cannot open %s: %w", it.Effective().Title, err), parent)
		return
	}
	sess, err := reader.Open(ctx, book, s.DB, s.ReaderPrefs(ctx))
	if err != nil {
		_ = book.Close()
		dialog.ShowError(err, parent)
		return
	}
	rw := &readerWindow{
		w:     a.NewWindow(it.Effective().Title),
		sess:  sess,
		shelf: s,
		log:   l.With(slog.String("path", it.Entry.Path)),
		pages: container.NewGridWithColumns(1),
		label: widget.NewLabel(""),
	}
	prev := widget.NewButton("Prev", func() { rw.step(ctx, false) })
	next := widget.NewButton("Next", func() { rw.step(ctx, true) })
	rw.modeB = widget.NewButton("", func() { rw.toggleMode(ctx) })
	rw.dirB = widget.NewButton("", func() { rw.toggleDirection(ctx) })
	bar := container.NewHBox(prev, next, rw.modeB, rw.dirB, rw.label)
	rw.w.SetContent(container.NewBorder(nil, bar, nil, nil, rw.pages))
	rw.w.Canvas().SetOnTypedKey(func(e *fyne.KeyEvent) { rw.key(ctx, e) })
	rw.w.SetOnClosed(func() {
		rw.readMu.Lock()
		defer rw.readMu.Unlock()
		if err := rw.sess.Close(ctx); err != nil {
			rw.log.Warn("close session failed", slog.Any("err", err))
		}
	})
	rw.w.Resize(fyne.NewSize(900, 700))
	rw.show()
	rw.w.Show()
	if err := s.DB.SetSetting(ctx, storage.SettingLastOpened, it.Entry.Path); err != nil {
		l.Debug("remember last opened failed", slog.Any("err", err))
	}
}

func (rw *readerWindow) key(ctx context.Context, e *fyne.KeyEvent) {
	rtl := rw.sess.Prefs().Direction == reader.RTL
	switch e.Name {
	case fyne.KeyLeft:
		rw.step(ctx, rtl)
	case fyne.KeyRight:
		rw.step(ctx, !rtl)
	case fyne.KeySpace, fyne.KeyPageDown:
		rw.step(ctx, true)
	case fyne.KeyBackspace, fyne.KeyPageUp:
		rw.step(ctx, false)
	case fyne.KeyHome:
		rw.jump(ctx, 0)
	case fyne.KeyEscape:
		rw.w.Close()
	}
}

func (rw *readerWindow) step(ctx context.Context, forward bool) {
	var err error
	if forward {
		err = rw.sess.Next(ctx)
	} else {
		err = rw.sess.Prev(ctx)
	}
	if err != nil {
		rw.log.Warn("page change failed", slog.Any("err", err))
	}
	rw.show()
}

func (rw *readerWindow) jump(ctx context.Context, page int) {
	if err := rw.sess.Jump(ctx, page); err != nil {
		rw.log.Warn("jump failed", slog.Any("err", err))
	}
	rw.show()
}

func (rw *readerWindow) toggleMode(ctx context.Context) {
	p := rw.sess.Prefs()
	if p.Mode == reader.ViewDouble {
		p.Mode = reader.ViewSingle
	} else {
		p.Mode = reader.ViewDouble
	}
	rw.setPrefs(ctx, p)
}

func (rw *readerWindow) toggleDirection(ctx context.Context) {
	p := rw.sess.Prefs()
	if p.Direction == reader.RTL {
		p.Direction = reader.LTR
	} else {
		p.Direction = reader.RTL
	}
	rw.setPrefs(ctx, p)
}

func (rw *readerWindow) setPrefs(ctx context.Context, p reader.Prefs) {
	rw.sess.SetPrefs(p)
	if err := rw.shelf.SaveReaderPrefs(ctx, rw.sess.Prefs()); err != nil {
		rw.log.Warn("save reader prefs failed", slog.Any("err", err))
	}
	rw.show()
}

// show updates the controls and loads the displayed pages. Loads started
// before the latest one are dropped.
func (rw *readerWindow) show() {
	p := rw.sess.Prefs()
	rw.modeB.SetText(string(p.Mode))
	rw.dirB.SetText(string(p.Direction))
	display := rw.sess.Display()
	if len(display) == 1 {
		rw.label.SetText(fmt.Sprintf("%d / %d", display[0]+1, rw.sess.Total()))
	} else if len(display) == 2 {
		lo, hi := min(display[0], display[1]), max(display[0], display[1])
		rw.label.SetText(fmt.Sprintf("%d-%d / %d", lo+1, hi+1, rw.sess.Total()))
	}
	rw.gen++
	gen := rw.gen
	book := rw.sess.Book()
	go func() {
		rw.readMu.Lock()
		data := make([][]byte, 0, len(display))
		var err error
		for _, i := range display {
			var b []byte
			if b, err = book.ReadPage(i); err != nil {
				break
			}
			data = append(data, b)
		}
		rw.readMu.Unlock()
		fyne.Do(func() {
			if gen != rw.gen {
				return
			}
			if err != nil {
				rw.log.Warn("read page failed", slog.Any("err", err))
				rw.label.SetText(err.Error())
				return
			}
			rw.setImages(display, data)
		})
	}()
}

func (rw *readerWindow) setImages(display []int, data [][]byte) {
	names := rw.sess.Book().Pages()
	objs := make([]fyne.CanvasObject, 0, len(data))
	for k, b := range data {
		img := canvas.NewImageFromResource(fyne.NewStaticResource(names[display[k]], b))
		img.FillMode = canvas.ImageFillContain
		objs = append(objs, img)
	}
	rw.pages.Layout = container.NewGridWithColumns(max(len(objs), 1)).Layout
	rw.pages.Objects = objs
	rw.pages.Refresh()
}
