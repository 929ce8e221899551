/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mangashelf/internal/archive"
	applog "mangashelf/internal/log"
	"mangashelf/internal/storage"
)

// ProgressStore persists reading positions. storage.DB implements it.
type ProgressStore interface {
	LoadProgress(ctx context.Context, path string) (storage.Progress, bool, error)
	SaveProgress(ctx context.Context, p storage.Progress) error
}

// Prefs are the view settings a session starts with.
type Prefs struct {
	Mode      ViewMode
	Direction Direction
}

// Session is an open book with a current page. Every page change is written
// to the store. It is not safe for concurrent use.
type Session struct {
	book  archive.Book
	store ProgressStore
	prefs Prefs
	page  int
	now   func() time.Time
	log   *slog.Logger
}

// Open starts a session on book, resuming at the stored position. A stored
// position past the end of the book restarts at the cover. store may be nil.
func Open(ctx context.Context, book archive.Book, store ProgressStore, prefs Prefs) (*Session, error) {
	if book == nil {
		return nil, errors.New("reader: nil book")
	}
	if prefs.Mode == "" {
		prefs.Mode = ViewSingle
	}
	if prefs.Direction == "" {
		prefs.Direction = RTL
	}
	s := &Session{
		book:  book,
		store: store,
		prefs: prefs,
		now:   time.Now,
		log:   applog.WithComponent("reader").With(slog.String("book", book.Path())),
	}
	if store != nil {
		p, ok, err := store.LoadProgress(ctx, book.Path())
		if err != nil {
			return nil, fmt.Errorf("load progress: %w", err)
		}
		if ok && p.Page < s.Total() {
			s.page = SpreadStart(p.Page, prefs.Mode)
		}
	}
	s.log.Debug("session opened", slog.Int("page", s.page), slog.Int("pages", s.Total()))
	return s, nil
}

// Book returns the open book.
func (s *Session) Book() archive.Book { return s.book }

// Page returns the current page index.
func (s *Session) Page() int { return s.page }

// Total returns the page count.
func (s *Session) Total() int { return len(s.book.Pages()) }

// Prefs returns the current view settings.
func (s *Session) Prefs() Prefs { return s.prefs }

// Display returns the pages on screen in left-to-right order.
func (s *Session) Display() []int {
	return DisplayPages(s.page, s.prefs.Mode, s.Total(), s.prefs.Direction)
}

// Upcoming returns the pages of the next spread, for preloading.
func (s *Session) Upcoming() []int {
	next := Next(s.page, s.prefs.Mode, s.Total())
	if next <= s.page {
		return nil
	}
	return DisplayPages(next, s.prefs.Mode, s.Total(), s.prefs.Direction)
}

// Next advances one spread, wrapping to the cover after the last page.
func (s *Session) Next(ctx context.Context) error {
	return s.Jump(ctx, Next(s.page, s.prefs.Mode, s.Total()))
}

// Prev goes back one spread.
func (s *Session) Prev(ctx context.Context) error {
	return s.Jump(ctx, Prev(s.page, s.prefs.Mode))
}

// Jump moves to the spread holding page and saves the position.
func (s *Session) Jump(ctx context.Context, page int) error {
	if page < 0 || page >= s.Total() {
		return fmt.Errorf("%w: %d of %d", archive.ErrPageRange, page, s.Total())
	}
	s.page = SpreadStart(page, s.prefs.Mode)
	return s.save(ctx)
}

// SetPrefs changes the view settings and keeps the current page on screen.
func (s *Session) SetPrefs(p Prefs) {
	if p.Mode != "" {
		s.prefs.Mode = p.Mode
	}
	if p.Direction != "" {
		s.prefs.Direction = p.Direction
	}
	s.page = SpreadStart(s.page, s.prefs.Mode)
}

// ReadDisplay returns the image bytes of the displayed pages.
func (s *Session) ReadDisplay() ([][]byte, error) {
	pages := s.Display()
	out := make([][]byte, 0, len(pages))
	for _, p := range pages {
		b, err := s.book.ReadPage(p)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", p, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Close saves the position and closes the book.
func (s *Session) Close(ctx context.Context) error {
	err := s.save(ctx)
	if cerr := s.book.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Session) save(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	p := storage.Progress{Path: s.book.Path(), Page: s.page, Pages: s.Total(), UpdatedAt: s.now()}
	if err := s.store.SaveProgress(ctx, p); err != nil {
		s.log.Warn("save progress failed", slog.Any("err", err))
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
