/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package tui

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/internal/gridlayout"
	"mangashelf/internal/library"
	"mangashelf/internal/metadata"
)

func testCatalog(n int) *library.Catalog {
	items := make([]library.Item, n)
	for i := range items {
		items[i] = library.Item{
			Entry: library.Entry{
				Path:  fmt.Sprintf("/lib/book%02d.cbz", i),
				Title: fmt.Sprintf("Book %02d", i),
				Kind:  library.KindArchive,
			},
		}
	}
	items[7].Meta = metadata.BookMetadata{Title: "Zeta Story", Author: "Someone"}
	items[42].Meta = metadata.BookMetadata{Author: "Zeta Circle"}
	c := library.NewCatalog()
	c.Replace(items)
	return c
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// 80x14 terminal: 3 columns of 26 cells, 12 grid rows = 48 units = 3 card rows.
func newSized(t *testing.T, n int, opts Options) *Model {
	t.Helper()
	m := New(testCatalog(n), opts)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 14})
	return m
}

func TestModel_InitialLayout(t *testing.T) {
	m := newSized(t, 50, Options{})
	mt, ok := m.Engine().Metrics()
	require.True(t, ok)
	assert.Equal(t, 3, mt.Columns)
	assert.Equal(t, float64(cardRows*rowUnits), mt.ItemHeight)
	// three visible rows plus one overscan row
	assert.Equal(t, gridlayout.Range{Start: 0, End: 12}, m.Engine().Range())
	assert.Len(t, m.factory.live, 12)

	v := m.View()
	assert.Contains(t, v, "Book 00")
	assert.Contains(t, v, "Zeta Story")
	assert.Contains(t, v, "50/50 books")
	assert.NotContains(t, v, "Book 12")
}

func TestModel_CursorScrollsMinimally(t *testing.T) {
	m := newSized(t, 50, Options{})
	for range 3 {
		m.Update(runes("j"))
	}
	assert.Equal(t, 9, m.Cursor())
	assert.Equal(t, 16.0, m.Engine().Offset())
	assert.Equal(t, gridlayout.Range{Start: 3, End: 15}, m.Engine().Range())

	m.Update(runes("l"))
	assert.Equal(t, 10, m.Cursor())
	m.Update(runes("k"))
	assert.Equal(t, 7, m.Cursor())
	assert.Equal(t, 16.0, m.Engine().Offset(), "cursor still visible")
}

func TestModel_LineAndPageKeys(t *testing.T) {
	m := newSized(t, 50, Options{})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.Equal(t, float64(gridlayout.LineStepSize), m.Engine().Offset())
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, 0.0, m.Engine().Offset())

	m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	assert.Equal(t, 48.0, m.Engine().Offset())
	assert.Equal(t, 9, m.Cursor(), "cursor follows the page")

	m.Update(tea.KeyMsg{Type: tea.KeyEnd})
	assert.Equal(t, 49, m.Cursor())
	// 17 rows of 16 units minus the 48 unit viewport
	assert.Equal(t, 224.0, m.Engine().Offset())
	assert.Equal(t, 50, m.Engine().Range().End)
	assert.Contains(t, m.View(), "Book 49")

	m.Update(tea.KeyMsg{Type: tea.KeyHome})
	assert.Equal(t, 0, m.Cursor())
	assert.Equal(t, 0.0, m.Engine().Offset())
}

func TestModel_EnterReportsSelection(t *testing.T) {
	m := newSized(t, 50, Options{})
	m.Update(runes("l"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(SelectedMsg)
	require.True(t, ok)
	assert.Equal(t, 1, msg.Index)
	assert.Equal(t, "/lib/book01.cbz", msg.Item.Entry.Path)

	it, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Book 01", it.Effective().Title)
	assert.Contains(t, m.View(), "selected: Book 01")
}

func TestModel_Search(t *testing.T) {
	m := newSized(t, 50, Options{})
	m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	m.Update(runes("/"))
	m.Update(runes("zeta"))
	assert.Equal(t, 2, m.catalog.ItemCount())
	assert.Equal(t, 0.0, m.Engine().Offset())
	assert.Equal(t, 0, m.Cursor())
	assert.Equal(t, gridlayout.Range{Start: 0, End: 2}, m.Engine().Range())
	assert.Contains(t, m.View(), "/zeta")

	// typed keys go to the prompt, not the grid
	m.Update(runes("q"))
	assert.Equal(t, 0, m.catalog.ItemCount())
	assert.Contains(t, m.View(), "no books")
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, 2, m.catalog.ItemCount())

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, 50, m.catalog.ItemCount())
	assert.False(t, m.searching)
}

func TestModel_MouseClickAndWheel(t *testing.T) {
	m := newSized(t, 50, Options{})
	// second card row, second column
	m.Update(tea.MouseMsg{X: 30, Y: headerRows + cardRows, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	assert.Equal(t, 4, m.Cursor())

	m.Update(tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	assert.Equal(t, float64(gridlayout.LineStepSize), m.Engine().Offset())
	m.Update(tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	assert.Equal(t, 0.0, m.Engine().Offset())
}

func TestModel_PreserveOffsetOnChange(t *testing.T) {
	m := newSized(t, 50, Options{PreserveOffset: true})
	m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	off := m.Engine().Offset()
	require.Positive(t, off)

	m.catalog.SetMetadata("/lib/book10.cbz", metadata.BookMetadata{Title: "Renamed"})
	assert.Equal(t, off, m.Engine().Offset())
	assert.Contains(t, m.View(), "Renamed")

	// shrinking below the offset re-clamps
	m.catalog.Replace(nil)
	assert.Equal(t, 0.0, m.Engine().Offset())
	assert.Equal(t, 0, m.Cursor())
	assert.Empty(t, m.factory.live)
}

func TestModel_Progress(t *testing.T) {
	m := newSized(t, 5, Options{Progress: func(path string) (int, int, bool) {
		if path == "/lib/book00.cbz" {
			return 4, 20, true
		}
		return 0, 0, false
	}})
	assert.Contains(t, m.View(), "archive  5/20")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcd", 3))
	assert.Equal(t, "…", truncate("abcd", 1))
	assert.Equal(t, "", truncate("abcd", 0))
}
