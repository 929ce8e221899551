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
	"errors"
	"image/color"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"mangashelf/internal/gridlayout"
	"mangashelf/internal/library"
	applog "mangashelf/internal/log"
	"mangashelf/internal/thumbs"
)

var errItemGone = errors.New("item no longer in catalog")

// captionHeight is the part of a cell below the cover used for the title.
const captionHeight = 36

var (
	cellBg       = color.RGBA{R: 40, G: 40, B: 46, A: 255}
	cellSelected = color.RGBA{R: 0, G: 120, B: 215, A: 255}
	gridBg       = color.RGBA{R: 24, G: 24, B: 28, A: 255}
)

// coverCell is the visual of one realized index.
type coverCell struct {
	index  int
	serial uint64
	key    string
	item   library.Item
	frame  *canvas.Rectangle
	img    *canvas.Image
	title  *canvas.Text
	author *canvas.Text
}

func (c *coverCell) objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{c.frame, c.img, c.title, c.author}
}

// GridOptions configures a CoverGrid.
type GridOptions struct {
	Sizing         gridlayout.Sizing
	PreserveOffset bool
	Logger         *slog.Logger
}

// CoverGrid is a virtualized cover grid over a library catalog. It is the
// VisualFactory and ScrollOwner of its gridlayout.Engine; only the cells in
// the realized range exist as canvas objects.
type CoverGrid struct {
	widget.BaseWidget

	catalog *library.Catalog
	filler  *thumbs.Filler
	engine  *gridlayout.Engine
	log     *slog.Logger

	cells    map[*coverCell]struct{}
	bySerial map[uint64]*coverCell
	selected int
	unsub    func()
	// restore is applied at the first layout with a real size.
	restore float64
	// do runs fn on the UI goroutine.
	do func(fn func())

	// OnSelect fires when a cover is tapped.
	OnSelect func(index int, it library.Item)
	// OnOpen fires on double tap or Return.
	OnOpen func(it library.Item)
	// OnScroll follows the scroll state, e.g. to drive a scrollbar.
	OnScroll func(gridlayout.ScrollState)
}

// NewCoverGrid builds a grid over catalog filling covers from filler.
func NewCoverGrid(catalog *library.Catalog, filler *thumbs.Filler, opts GridOptions) *CoverGrid {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("ui.grid")
	}
	g := &CoverGrid{
		catalog:  catalog,
		filler:   filler,
		log:      l,
		cells:    map[*coverCell]struct{}{},
		bySerial: map[uint64]*coverCell{},
		selected: -1,
		do:       fyne.Do,
	}
	policy := gridlayout.OffsetPolicyReset
	if opts.PreserveOffset {
		policy = gridlayout.OffsetPolicyPreserve
	}
	g.engine = gridlayout.New(catalog, g, gridlayout.Config{
		Sizing:       opts.Sizing,
		OffsetPolicy: policy,
		ScrollOwner: gridlayout.ScrollOwnerFunc(func(s gridlayout.ScrollState) {
			if g.OnScroll != nil {
				g.OnScroll(s)
			}
		}),
		Logger: l,
	})
	// scans run in the background; hop to the UI goroutine
	g.unsub = catalog.OnChange(func() { g.do(g.itemsChanged) })
	g.ExtendBaseWidget(g)
	return g
}

// Engine exposes the layout engine.
func (g *CoverGrid) Engine() *gridlayout.Engine { return g.engine }

// Selected returns the selected index or -1.
func (g *CoverGrid) Selected() int { return g.selected }

// Close detaches from the catalog and releases every cell.
func (g *CoverGrid) Close() {
	if g.unsub != nil {
		g.unsub()
		g.unsub = nil
	}
	g.engine.Close()
}

// Create implements gridlayout.VisualFactory.
func (g *CoverGrid) Create(index int) (gridlayout.Handle, error) {
	it, ok := g.catalog.At(index)
	if !ok {
		return nil, errItemGone
	}
	img := canvas.NewImageFromResource(nil)
	img.FillMode = canvas.ImageFillContain
	title := canvas.NewText("", theme.Color(theme.ColorNameForeground))
	title.TextSize = 12
	title.TextStyle = fyne.TextStyle{Bold: true}
	author := canvas.NewText("", theme.Color(theme.ColorNameDisabled))
	author.TextSize = 11
	c := &coverCell{index: index, frame: canvas.NewRectangle(cellBg), img: img, title: title, author: author}
	g.bind(c, it)
	g.cells[c] = struct{}{}
	return c, nil
}

// Recycle implements gridlayout.VisualFactory.
func (g *CoverGrid) Recycle(h gridlayout.Handle, index int) {
	c := h.(*coverCell)
	c.index = index
	if it, ok := g.catalog.At(index); ok && it.Entry.Path != c.key {
		g.bind(c, it)
	}
}

// Destroy implements gridlayout.VisualFactory.
func (g *CoverGrid) Destroy(h gridlayout.Handle) {
	c := h.(*coverCell)
	if c.serial != 0 {
		g.filler.Cancel(c.serial)
		delete(g.bySerial, c.serial)
	}
	delete(g.cells, c)
}

// Measure implements gridlayout.VisualFactory.
func (g *CoverGrid) Measure(h gridlayout.Handle, w, ht float64) {
	c := h.(*coverCell)
	c.frame.Resize(fyne.NewSize(float32(w), float32(ht)))
}

// Place implements gridlayout.VisualFactory.
func (g *CoverGrid) Place(h gridlayout.Handle, r gridlayout.Rect) {
	c := h.(*coverCell)
	const pad = 4
	x, y := float32(r.X), float32(r.Y)
	w, ht := float32(r.Width), float32(r.Height)
	c.frame.Move(fyne.NewPos(x+pad/2, y+pad/2))
	c.frame.Resize(fyne.NewSize(w-pad, ht-pad))
	coverH := max(ht-captionHeight-pad, 0)
	c.img.Move(fyne.NewPos(x+pad, y+pad))
	c.img.Resize(fyne.NewSize(w-2*pad, coverH))
	c.title.Move(fyne.NewPos(x+pad, y+pad+coverH+2))
	c.author.Move(fyne.NewPos(x+pad, y+pad+coverH+18))
	c.title.Text = fitText(c.item.Effective().Title, w-2*pad, c.title.TextSize, c.title.TextStyle)
	c.author.Text = fitText(c.item.Effective().Author, w-2*pad, c.author.TextSize, c.author.TextStyle)
	if c.index == g.selected {
		c.frame.FillColor = cellSelected
	} else {
		c.frame.FillColor = cellBg
	}
}

// bind points c at it and shows the placeholder until its cover arrives.
func (g *CoverGrid) bind(c *coverCell, it library.Item) {
	c.item = it
	c.key = it.Entry.Path
	c.title.Text = it.Effective().Title
	c.author.Text = it.Effective().Author
	c.img.Resource = fyne.NewStaticResource("placeholder.jpg", thumbs.Placeholder(g.filler.Width()))
	if c.serial != 0 {
		g.request(c)
	}
}

// requestMissing asks the filler for covers of slots realized by the last
// pass. Slot serials are only known after Sync, so this runs after a pass.
func (g *CoverGrid) requestMissing() {
	for _, s := range g.engine.Slots() {
		if s.Failed {
			continue
		}
		c := s.Handle.(*coverCell)
		if c.serial == s.Serial {
			continue
		}
		c.serial = s.Serial
		g.bySerial[s.Serial] = c
		g.request(c)
	}
}

func (g *CoverGrid) request(c *coverCell) {
	serial := c.serial
	if !g.filler.Request(serial, c.key, func(r thumbs.Result) {
		g.do(func() { g.applyThumb(r) })
	}) {
		g.log.Debug("thumbnail queue full", slog.String("key", c.key))
	}
}

// applyThumb runs on the UI goroutine. Results for evicted slots are dropped.
func (g *CoverGrid) applyThumb(r thumbs.Result) {
	if !g.engine.Live(r.Serial) {
		return
	}
	c, ok := g.bySerial[r.Serial]
	if !ok {
		return
	}
	if r.Key != c.key {
		// the slot was rebound while this cover was in flight
		g.request(c)
		return
	}
	if r.Err != nil {
		g.log.Debug("cover failed", slog.String("key", r.Key), slog.Any("err", r.Err))
		return
	}
	c.img.Resource = fyne.NewStaticResource(r.Key+".jpg", r.Data)
	c.img.Refresh()
}

func (g *CoverGrid) itemsChanged() {
	g.engine.NotifyItemsChanged()
	// indices kept their slots but may now refer to other books
	for c := range g.cells {
		if it, ok := g.catalog.At(c.index); ok && it.Entry.Path != c.key {
			g.bind(c, it)
		} else if ok {
			c.item = it
		}
	}
	if g.selected >= g.catalog.ItemCount() {
		g.selected = -1
	}
	g.afterPass()
}

// afterPass requests covers and redraws.
func (g *CoverGrid) afterPass() {
	g.requestMissing()
	g.Refresh()
}

// ScrollToIndex makes index visible.
func (g *CoverGrid) ScrollToIndex(index int) {
	if g.engine.ScrollToIndex(index) {
		g.afterPass()
	}
}

// RestoreOffset scrolls to v once the grid has been laid out.
func (g *CoverGrid) RestoreOffset(v float64) { g.restore = v }

// SetOffset scrolls to v.
func (g *CoverGrid) SetOffset(v float64) {
	if g.engine.SetOffset(v) {
		g.afterPass()
	}
}

// Scrolled implements fyne.Scrollable.
func (g *CoverGrid) Scrolled(e *fyne.ScrollEvent) {
	g.SetOffset(g.engine.Offset() - float64(e.Scrolled.DY))
}

// Tapped implements fyne.Tappable.
func (g *CoverGrid) Tapped(e *fyne.PointEvent) {
	idx := g.engine.IndexAt(float64(e.Position.X), float64(e.Position.Y))
	if idx < 0 {
		return
	}
	g.selectIndex(idx)
	if c := fyne.CurrentApp(); c != nil && c.Driver() != nil {
		if cv := c.Driver().CanvasForObject(g); cv != nil {
			cv.Focus(g)
		}
	}
}

// DoubleTapped implements fyne.DoubleTappable.
func (g *CoverGrid) DoubleTapped(e *fyne.PointEvent) {
	idx := g.engine.IndexAt(float64(e.Position.X), float64(e.Position.Y))
	if idx < 0 {
		return
	}
	g.selectIndex(idx)
	g.open()
}

func (g *CoverGrid) selectIndex(idx int) {
	g.selected = idx
	it, ok := g.catalog.At(idx)
	if ok && g.OnSelect != nil {
		g.OnSelect(idx, it)
	}
	g.Refresh()
}

func (g *CoverGrid) open() {
	if it, ok := g.catalog.At(g.selected); ok && g.OnOpen != nil {
		g.OnOpen(it)
	}
}

// FocusGained implements fyne.Focusable.
func (g *CoverGrid) FocusGained() {}

// FocusLost implements fyne.Focusable.
func (g *CoverGrid) FocusLost() {}

// TypedRune implements fyne.Focusable.
func (g *CoverGrid) TypedRune(rune) {}

// TypedKey implements fyne.Focusable.
func (g *CoverGrid) TypedKey(e *fyne.KeyEvent) {
	moved := false
	switch e.Name {
	case fyne.KeyUp:
		moved = g.engine.LineUp()
	case fyne.KeyDown:
		moved = g.engine.LineDown()
	case fyne.KeyPageUp:
		moved = g.engine.PageUp()
	case fyne.KeyPageDown:
		moved = g.engine.PageDown()
	case fyne.KeyHome:
		moved = g.engine.SetOffset(0)
	case fyne.KeyEnd:
		moved = g.engine.ScrollToIndex(g.catalog.ItemCount() - 1)
	case fyne.KeyReturn, fyne.KeyEnter:
		g.open()
	}
	if moved {
		g.afterPass()
	}
}

// CreateRenderer implements fyne.Widget.
func (g *CoverGrid) CreateRenderer() fyne.WidgetRenderer {
	r := &coverGridRenderer{g: g, bg: canvas.NewRectangle(gridBg)}
	r.rebuild()
	return r
}

type coverGridRenderer struct {
	g       *CoverGrid
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *coverGridRenderer) Destroy()                     { r.g.Close() }
func (r *coverGridRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *coverGridRenderer) MinSize() fyne.Size           { return fyne.NewSize(160, 240) }

func (r *coverGridRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.g.engine.Resize(gridlayout.Size{Width: float64(size.Width), Height: float64(size.Height)})
	if r.g.restore > 0 && size.Height > 0 && r.g.catalog.ItemCount() > 0 {
		r.g.engine.SetOffset(r.g.restore)
		r.g.restore = 0
	}
	r.g.requestMissing()
	r.rebuild()
}

func (r *coverGridRenderer) Refresh() {
	r.rebuild()
	for _, o := range r.objects {
		o.Refresh()
	}
	canvas.Refresh(r.g)
}

// rebuild lists the background plus the objects of every live cell in index
// order.
func (r *coverGridRenderer) rebuild() {
	objs := r.objects[:0]
	objs = append(objs, r.bg)
	for _, s := range r.g.engine.Slots() {
		if s.Failed {
			continue
		}
		c := s.Handle.(*coverCell)
		if c.index == r.g.selected {
			c.frame.FillColor = cellSelected
		} else {
			c.frame.FillColor = cellBg
		}
		objs = append(objs, c.objects()...)
	}
	r.objects = objs
}

// fitText returns s shortened with an ellipsis to fit width.
func fitText(s string, width, size float32, style fyne.TextStyle) string {
	if width <= 0 {
		return ""
	}
	if fyne.MeasureText(s, size, style).Width <= width {
		return s
	}
	rs := []rune(s)
	for len(rs) > 0 && fyne.MeasureText(string(rs)+"...", size, style).Width > width {
		rs = rs[:len(rs)-1]
	}
	return string(rs) + "..."
}
