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
	"log/slog"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mangashelf/internal/gridlayout"
	"mangashelf/internal/library"
	applog "mangashelf/internal/log"
	"mangashelf/internal/metadata"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	searchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// ProgressFunc reports reading progress of a book for the card footer.
type ProgressFunc func(path string) (page, pages int, ok bool)

// SelectedMsg is emitted when the user presses enter on a card.
type SelectedMsg struct {
	Index int
	Item  library.Item
}

// Options configures a Model.
type Options struct {
	Title    string
	Progress ProgressFunc
	// PreserveOffset keeps the scroll position when the catalog changes.
	PreserveOffset bool
	Logger         *slog.Logger
}

// Model is a bubbletea model drawing the catalog as a grid of text cards.
// Layout and virtualization come from a gridlayout.Engine whose units are
// terminal columns horizontally and rowUnits per terminal row vertically.
type Model struct {
	catalog  *library.Catalog
	factory  *cardFactory
	engine   *gridlayout.Engine
	opts     Options
	log      *slog.Logger
	unsub    func()
	width    int
	height   int
	cursor   int
	selected *library.Item
	// searching is true while the search prompt takes key input.
	searching bool
	query     string
	scroll    gridlayout.ScrollState
}

// New builds a model over catalog.
func New(catalog *library.Catalog, opts Options) *Model {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("tui")
	}
	m := &Model{catalog: catalog, opts: opts, log: l, factory: newCardFactory(catalog)}
	policy := gridlayout.OffsetPolicyReset
	if opts.PreserveOffset {
		policy = gridlayout.OffsetPolicyPreserve
	}
	m.engine = gridlayout.New(catalog, m.factory, gridlayout.Config{
		Sizing:       gridlayout.Sizing{ItemWidth: cardCols, ItemHeight: cardRows * rowUnits},
		OffsetPolicy: policy,
		ScrollOwner:  gridlayout.ScrollOwnerFunc(func(s gridlayout.ScrollState) { m.scroll = s }),
		Logger:       l,
	})
	// catalog changes are made from Update, on the program goroutine
	m.unsub = catalog.OnChange(m.itemsChanged)
	return m
}

// Engine exposes the layout engine.
func (m *Model) Engine() *gridlayout.Engine { return m.engine }

// Cursor returns the highlighted index.
func (m *Model) Cursor() int { return m.cursor }

// Selected returns the item chosen with enter, if any.
func (m *Model) Selected() (library.Item, bool) {
	if m.selected == nil {
		return library.Item{}, false
	}
	return *m.selected, true
}

// Close detaches the model from the catalog and releases all cards.
func (m *Model) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
	m.engine.Close()
}

func (m *Model) itemsChanged() {
	m.engine.NotifyItemsChanged()
	if m.opts.PreserveOffset {
		m.cursor = min(m.cursor, max(0, m.catalog.ItemCount()-1))
	} else {
		m.cursor = 0
	}
	m.factory.refresh()
}

// Init satisfies tea.Model.
func (m *Model) Init() tea.Cmd { return nil }

// Update handles resize, keyboard and mouse input.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.engine.Resize(gridlayout.Size{Width: float64(msg.Width), Height: float64(m.gridRows() * rowUnits)})
		m.ensureVisible()
	case tea.MouseMsg:
		return m, m.mouse(msg)
	case tea.KeyMsg:
		if m.searching {
			return m, m.searchKey(msg)
		}
		return m, m.key(msg)
	}
	return m, nil
}

func (m *Model) key(msg tea.KeyMsg) tea.Cmd {
	n := m.catalog.ItemCount()
	cols := m.columns()
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	case "up", "k":
		m.moveCursor(-cols, n)
	case "down", "j":
		m.moveCursor(cols, n)
	case "left", "h":
		m.moveCursor(-1, n)
	case "right", "l":
		m.moveCursor(1, n)
	case "ctrl+y":
		m.engine.LineUp()
	case "ctrl+e":
		m.engine.LineDown()
	case "pgup", "ctrl+b":
		if m.engine.PageUp() {
			m.cursorToView()
		}
	case "pgdown", "ctrl+f", " ":
		if m.engine.PageDown() {
			m.cursorToView()
		}
	case "home", "g":
		m.cursor = 0
		m.engine.SetOffset(0)
	case "end", "G":
		if n > 0 {
			m.cursor = n - 1
			m.ensureVisible()
		}
	case "/":
		m.searching = true
	case "enter":
		if it, ok := m.catalog.At(m.cursor); ok {
			m.selected = &it
			m.log.Info("selected", slog.Int("index", m.cursor), slog.String("path", it.Entry.Path))
			idx := m.cursor
			return func() tea.Msg { return SelectedMsg{Index: idx, Item: it} }
		}
	}
	return nil
}

func (m *Model) searchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
	case tea.KeyEsc:
		m.searching = false
		m.query = ""
		m.applyQuery()
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
			m.applyQuery()
		}
	case tea.KeySpace:
		m.query += " "
		m.applyQuery()
	case tea.KeyRunes:
		m.query += string(msg.Runes)
		m.applyQuery()
	case tea.KeyCtrlC:
		return tea.Quit
	}
	return nil
}

// applyQuery filters the catalog by title, author or tag.
func (m *Model) applyQuery() {
	q := strings.TrimSpace(m.query)
	cr := metadata.Criteria{}
	if q != "" {
		cr = metadata.Criteria{Title: q, Author: q, Tags: []string{q}, Mode: metadata.ModeOr}
	}
	m.catalog.Filter(cr)
}

func (m *Model) mouse(msg tea.MouseMsg) tea.Cmd {
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.engine.LineUp()
	case msg.Button == tea.MouseButtonWheelDown:
		m.engine.LineDown()
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		y := msg.Y - headerRows
		if y < 0 || y >= m.gridRows() {
			return nil
		}
		if idx := m.engine.IndexAt(float64(msg.X), float64(y*rowUnits)); idx >= 0 {
			m.cursor = idx
		}
	}
	return nil
}

func (m *Model) columns() int {
	if mt, ok := m.engine.Metrics(); ok {
		return mt.Columns
	}
	return 1
}

func (m *Model) moveCursor(delta, n int) {
	if n == 0 {
		return
	}
	next := m.cursor + delta
	if next < 0 || next >= n {
		return
	}
	m.cursor = next
	m.ensureVisible()
}

// ensureVisible scrolls the minimum amount that shows the cursor row.
func (m *Model) ensureVisible() {
	mt, ok := m.engine.Metrics()
	if !ok || m.catalog.ItemCount() == 0 {
		return
	}
	top := float64(mt.RowOf(m.cursor)) * mt.ItemHeight
	bottom := top + mt.ItemHeight
	off := m.engine.Offset()
	view := m.engine.Viewport().Height
	switch {
	case top < off:
		m.engine.SetOffset(top)
	case bottom > off+view:
		m.engine.SetOffset(bottom - view)
	}
}

// cursorToView moves the cursor into the visible rows after a page scroll.
func (m *Model) cursorToView() {
	mt, ok := m.engine.Metrics()
	if !ok {
		return
	}
	firstRow := int(math.Ceil(m.engine.Offset() / mt.ItemHeight))
	col := m.cursor % mt.Columns
	m.cursor = min(firstRow*mt.Columns+col, max(0, m.catalog.ItemCount()-1))
}

const (
	headerRows = 1
	footerRows = 1
)

func (m *Model) gridRows() int { return max(0, m.height-headerRows-footerRows) }

// View renders the header, the visible cards and a status line.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	title := m.opts.Title
	if title == "" {
		title = "MangaShelf"
	}
	header := headerStyle.Render(title)
	if m.searching || m.query != "" {
		header += "  " + searchStyle.Render("/"+m.query)
	}
	lines := m.gridLines()
	for len(lines) < m.gridRows() {
		lines = append(lines, "")
	}
	return header + "\n" + strings.Join(lines, "\n") + "\n" + statusStyle.Render(m.status())
}

func (m *Model) status() string {
	n := m.catalog.ItemCount()
	r := m.engine.Range()
	s := fmt.Sprintf("%d/%d books", n, m.catalog.Total())
	if n > 0 {
		s += fmt.Sprintf("  #%d  showing %d-%d", m.cursor+1, r.Start+1, r.End)
	}
	if mo := m.scroll.MaxOffset(); mo > 0 {
		s += fmt.Sprintf("  %d%%", int(math.Round(m.scroll.Offset/mo*100)))
	}
	if it, ok := m.Selected(); ok {
		s += "  selected: " + it.Effective().Title
	}
	return truncate(s, m.width)
}

// gridLines draws the placed cards. Cards scrolled partly above the top are
// cut at the first visible terminal row.
func (m *Model) gridLines() []string {
	if m.catalog.ItemCount() == 0 {
		return []string{subtleStyle.Render("  no books")}
	}
	rows := m.gridRows()
	out := make([]string, 0, rows)
	cards := placed(m.engine.Slots())
	for i := 0; i < len(cards); {
		y := cards[i].rect.Y
		var row []string
		for ; i < len(cards) && cards[i].rect.Y == y; i++ {
			row = append(row, m.renderCard(cards[i]))
		}
		block := strings.Split(lipgloss.JoinHorizontal(lipgloss.Top, row...), "\n")
		top := int(math.Floor(y / rowUnits))
		for k, line := range block {
			if r := top + k; r >= 0 && r < rows {
				out = append(out, line)
			}
		}
	}
	if len(out) > rows {
		out = out[:rows]
	}
	return out
}

func (m *Model) renderCard(c *card) string {
	w := int(c.rect.Width) - 2
	meta := c.item.Effective()
	lines := []string{
		titleStyle.Render(truncate(meta.Title, w)),
		subtleStyle.Render(truncate(meta.Author, w)),
		subtleStyle.Render(truncate(m.progressText(c.item.Entry), w)),
		"",
	}
	body := lipgloss.NewStyle().Width(w).Render(strings.Join(lines, "\n"))
	if c.index == m.cursor {
		body = selectedStyle.Render(body)
	}
	return lipgloss.NewStyle().PaddingRight(2).Render(body)
}

func (m *Model) progressText(e library.Entry) string {
	if m.opts.Progress != nil {
		if page, pages, ok := m.opts.Progress(e.Path); ok && pages > 0 {
			return fmt.Sprintf("%s  %d/%d", e.Kind, page+1, pages)
		}
	}
	return string(e.Kind)
}

func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w == 1 {
		return "…"
	}
	return string(r[:w-1]) + "…"
}
