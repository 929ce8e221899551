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

// These tests need the Fyne test driver:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/internal/gridlayout"
	"mangashelf/internal/library"
	"mangashelf/internal/metadata"
	"mangashelf/internal/thumbs"
)

type gridFixture struct {
	grid    *CoverGrid
	catalog *library.Catalog
	queue   chan func()
	r       fyne.WidgetRenderer
}

func newGridFixture(t *testing.T, n int) *gridFixture {
	t.Helper()
	test.NewTempApp(t)
	items := make([]library.Item, n)
	for i := range items {
		items[i] = library.Item{Entry: library.Entry{
			Path:  fmt.Sprintf("/lib/book%02d.cbz", i),
			Title: fmt.Sprintf("Book %02d", i),
			Kind:  library.KindArchive,
		}}
	}
	cat := library.NewCatalog()
	cat.Replace(items)
	filler := thumbs.NewFiller(thumbs.Options{
		Width:   64,
		Workers: 2,
		Loader: func(_ context.Context, key string) ([]byte, error) {
			return thumbs.Placeholder(80), nil
		},
	})
	t.Cleanup(filler.Close)

	f := &gridFixture{catalog: cat, queue: make(chan func(), 1024)}
	f.grid = NewCoverGrid(cat, filler, GridOptions{Sizing: gridlayout.Sizing{ItemWidth: 160, ItemHeight: 216}})
	f.grid.do = func(fn func()) { f.queue <- fn }
	f.r = test.TempWidgetRenderer(t, f.grid)
	f.r.Layout(fyne.NewSize(800, 600))
	return f
}

// drain runs queued UI callbacks until want covers arrived or time runs out.
func (f *gridFixture) drain(t *testing.T, want int) int {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for f.covers() < want {
		select {
		case fn := <-f.queue:
			fn()
		case <-deadline:
			return f.covers()
		}
	}
	return f.covers()
}

func (f *gridFixture) covers() int {
	n := 0
	for c := range f.grid.cells {
		if c.img.Resource != nil && strings.HasSuffix(c.img.Resource.Name(), ".cbz.jpg") {
			n++
		}
	}
	return n
}

func TestCoverGrid_RealizesVisibleRange(t *testing.T) {
	f := newGridFixture(t, 50)
	// 5 columns, 3 visible rows plus one overscan row
	assert.Equal(t, gridlayout.Range{Start: 0, End: 20}, f.grid.Engine().Range())
	assert.Len(t, f.grid.cells, 20)
	assert.Len(t, f.r.Objects(), 1+20*4)
	assert.Equal(t, 20, f.drain(t, 20))
}

func TestCoverGrid_ScrollAndTap(t *testing.T) {
	f := newGridFixture(t, 50)
	var opened library.Item
	f.grid.OnOpen = func(it library.Item) { opened = it }

	f.grid.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, -100)})
	assert.Equal(t, 100.0, f.grid.Engine().Offset())

	f.grid.Tapped(&fyne.PointEvent{Position: fyne.NewPos(170, 10)})
	assert.Equal(t, 1, f.grid.Selected())

	f.grid.TypedKey(&fyne.KeyEvent{Name: fyne.KeyReturn})
	assert.Equal(t, "/lib/book01.cbz", opened.Entry.Path)

	f.grid.TypedKey(&fyne.KeyEvent{Name: fyne.KeyEnd})
	mt, ok := f.grid.Engine().Metrics()
	require.True(t, ok)
	assert.Equal(t, mt.ExtentHeight-600, f.grid.Engine().Offset())
	assert.Equal(t, 50, f.grid.Engine().Range().End)
}

func TestCoverGrid_DropsStaleCovers(t *testing.T) {
	f := newGridFixture(t, 50)
	first, ok := f.grid.Engine().Lookup(0)
	require.True(t, ok)
	f.grid.SetOffset(2000)
	require.False(t, f.grid.Engine().Live(first.Serial))

	// a late result for the evicted slot must not touch any live cell
	f.grid.applyThumb(thumbs.Result{Serial: first.Serial, Key: "/lib/book00.cbz", Data: []byte("x")})
	for c := range f.grid.cells {
		assert.NotEqual(t, "/lib/book00.cbz.jpg", c.img.Resource.Name())
	}
}

func TestCoverGrid_RebindsOnFilter(t *testing.T) {
	f := newGridFixture(t, 50)
	f.drain(t, 20)
	f.catalog.Filter(metadata.Criteria{Title: "Book 07"})
	// the listener hops through the UI queue
	deadline := time.After(5 * time.Second)
	for f.grid.Engine().Range().End != 1 {
		select {
		case fn := <-f.queue:
			fn()
		case <-deadline:
			t.Fatal("items change never reached the grid")
		}
	}
	require.Equal(t, gridlayout.Range{Start: 0, End: 1}, f.grid.Engine().Range())
	require.Len(t, f.grid.cells, 1)
	for c := range f.grid.cells {
		assert.Equal(t, "/lib/book07.cbz", c.key)
		assert.Equal(t, "Book 07", c.title.Text)
	}
	assert.Equal(t, 1, f.drain(t, 1))
}

func TestFitText(t *testing.T) {
	test.NewTempApp(t)
	style := fyne.TextStyle{}
	assert.Equal(t, "abc", fitText("abc", 500, 12, style))
	short := fitText(strings.Repeat("long title ", 20), 80, 12, style)
	assert.True(t, strings.HasSuffix(short, "..."))
	assert.LessOrEqual(t, fyne.MeasureText(short, 12, style).Width, float32(80))
	assert.Equal(t, "", fitText("abc", 0, 12, style))
}
