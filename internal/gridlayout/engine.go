/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gridlayout

import (
	"log/slog"
	"math"

	applog "mangashelf/internal/log"
)

// OverscanRows is the number of rows realized past the visible area to hide
// pop-in at the trailing edge while scrolling.
const OverscanRows = 1

// maxCoalescedPasses bounds the follow-up passes run for triggers that arrive
// while a pass is in flight.
const maxCoalescedPasses = 8

// DataSource supplies the ordered, indexable item count. Changes must be
// signaled through Engine.NotifyItemsChanged.
type DataSource interface {
	ItemCount() int
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc func() int

func (f DataSourceFunc) ItemCount() int { return f() }

// OffsetPolicy decides what NotifyItemsChanged does with the scroll offset.
type OffsetPolicy int

const (
	// OffsetPolicyReset scrolls back to the top on every items change.
	OffsetPolicyReset OffsetPolicy = iota
	// OffsetPolicyPreserve keeps the offset and only re-clamps it.
	OffsetPolicyPreserve
)

// State is the layout cycle state.
type State int

const (
	StateIdle State = iota
	StateMeasureRequested
	StateMeasuring
	StateArranged
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMeasureRequested:
		return "measure_requested"
	case StateMeasuring:
		return "measuring"
	case StateArranged:
		return "arranged"
	default:
		return "unknown"
	}
}

// Range is a half-open index range [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r Range) Len() int { return r.End - r.Start }

// Contains reports whether index lies in the range.
func (r Range) Contains(index int) bool { return index >= r.Start && index < r.End }

// Config tunes an Engine.
type Config struct {
	Sizing       Sizing
	OffsetPolicy OffsetPolicy
	// Deferred makes public operations only invalidate; the host then calls
	// Layout once per frame.
	Deferred    bool
	ScrollOwner ScrollOwner
	// OnFailure receives non-fatal visual creation failures.
	OnFailure func(index int, err error)
	Logger    *slog.Logger
}

// Engine is the virtualized grid orchestrator. It is not safe for concurrent
// use; all calls must come from the host's UI goroutine.
type Engine struct {
	cfg      Config
	source   DataSource
	factory  VisualFactory
	scroller *Scroller
	pool     *Pool
	log      *slog.Logger

	viewport   Size
	metrics    Metrics
	hasMetrics bool
	rng        Range
	slots      []Slot

	state   State
	pending bool
	passes  uint64
}

// New wires an engine over source and factory.
func New(source DataSource, factory VisualFactory, cfg Config) *Engine {
	l := cfg.Logger
	if l == nil {
		l = applog.WithComponent("gridlayout")
	}
	e := &Engine{
		cfg:      cfg,
		source:   source,
		factory:  factory,
		scroller: NewScroller(cfg.ScrollOwner),
		pool:     NewPool(factory),
		log:      l,
	}
	e.pool.OnFailure(func(index int, err error) {
		e.log.Warn("visual create failed", slog.Int("index", index), slog.Any("err", err))
		if e.cfg.OnFailure != nil {
			e.cfg.OnFailure(index, err)
		}
	})
	return e
}

// SetSizing replaces the nominal item size and schedules a pass.
func (e *Engine) SetSizing(s Sizing) {
	e.cfg.Sizing = s
	e.trigger()
}

// SetScrollOwner replaces the scroll owner.
func (e *Engine) SetScrollOwner(o ScrollOwner) { e.scroller.SetOwner(o) }

// Resize records a new viewport size and schedules a pass.
func (e *Engine) Resize(sz Size) {
	e.viewport = sanitizeSize(sz)
	e.trigger()
}

// SetOffset scrolls to v (clamped) and reports whether the offset changed.
func (e *Engine) SetOffset(v float64) bool {
	if !e.scroller.SetOffset(v) {
		return false
	}
	e.trigger()
	return true
}

// LineUp scrolls up by LineStepSize.
func (e *Engine) LineUp() bool { return e.step(e.scroller.LineStep, Backward) }

// LineDown scrolls down by LineStepSize.
func (e *Engine) LineDown() bool { return e.step(e.scroller.LineStep, Forward) }

// PageUp scrolls up by one viewport height.
func (e *Engine) PageUp() bool { return e.step(e.scroller.PageStep, Backward) }

// PageDown scrolls down by one viewport height.
func (e *Engine) PageDown() bool { return e.step(e.scroller.PageStep, Forward) }

func (e *Engine) step(fn func(Direction) bool, dir Direction) bool {
	if !fn(dir) {
		return false
	}
	e.trigger()
	return true
}

// NotifyItemsChanged must be called after the data source changed. Under
// OffsetPolicyReset the offset returns to 0.
func (e *Engine) NotifyItemsChanged() {
	if e.cfg.OffsetPolicy == OffsetPolicyReset {
		e.scroller.SetOffset(0)
	}
	e.trigger()
}

// ScrollToIndex makes the row containing index the first visible row. It
// returns false when index is out of range or the geometry is degenerate.
func (e *Engine) ScrollToIndex(index int) bool {
	count := e.itemCount()
	if index < 0 || index >= count {
		return false
	}
	m, ok := Compute(e.viewport.Width, e.cfg.Sizing, count)
	if !ok {
		return false
	}
	e.scroller.SetExtent(Size{Width: e.viewport.Width, Height: m.ExtentHeight})
	e.scroller.SetViewport(e.viewport)
	e.scroller.SetOffset(float64(m.RowOf(index)) * m.ItemHeight)
	e.trigger()
	return true
}

// Invalidate requests a pass without running it. Requests made while a pass
// is running coalesce into one follow-up pass.
func (e *Engine) Invalidate() {
	if e.state == StateMeasuring {
		e.pending = true
		return
	}
	e.state = StateMeasureRequested
}

// NeedsLayout reports whether a pass has been requested but not yet run.
func (e *Engine) NeedsLayout() bool { return e.state == StateMeasureRequested }

// Layout runs the requested Measure and Arrange pass. It is a no-op when no
// pass is pending and re-entrant calls made from factory callbacks only mark
// a follow-up pass.
func (e *Engine) Layout() {
	switch e.state {
	case StateMeasuring:
		e.pending = true
		return
	case StateMeasureRequested:
	default:
		return
	}
	for n := 0; ; n++ {
		e.state = StateMeasuring
		e.pending = false
		if e.measure() {
			e.arrange()
		}
		e.passes++
		e.state = StateArranged
		if !e.pending {
			break
		}
		if n+1 >= maxCoalescedPasses {
			e.log.Warn("layout did not settle", slog.Int("passes", n+1))
			e.pending = false
			break
		}
	}
	e.state = StateIdle
}

func (e *Engine) trigger() {
	e.Invalidate()
	if !e.cfg.Deferred {
		e.Layout()
	}
}

func (e *Engine) itemCount() int {
	if e.source == nil {
		return 0
	}
	n := e.source.ItemCount()
	if n < 0 {
		return 0
	}
	return n
}

func (e *Engine) measure() bool {
	count := e.itemCount()
	m, ok := Compute(e.viewport.Width, e.cfg.Sizing, count)
	if !ok {
		e.log.Debug("measure skipped: degenerate geometry", slog.Float64("width", e.viewport.Width))
		if count == 0 {
			// an empty source has no extent whatever the geometry
			e.scroller.SetExtent(Size{Width: e.viewport.Width})
		}
		// previous metrics stay, but indices the source no longer has must go
		if e.rng.End > count {
			end := count
			start := min(e.rng.Start, end)
			e.rng = Range{Start: start, End: end}
			e.slots = e.pool.Sync(start, end, count)
		}
		return false
	}
	e.metrics, e.hasMetrics = m, true
	e.scroller.SetExtent(Size{Width: e.viewport.Width, Height: m.ExtentHeight})
	e.scroller.SetViewport(e.viewport)

	if count == 0 {
		e.rng = Range{}
		e.slots = e.pool.Sync(0, 0, 0)
		return true
	}
	off := e.scroller.Offset()
	// row math stays in float64 until it is bounded by the row count
	firstRow := int(min(math.Floor(off/m.ItemHeight), float64(m.Rows)))
	span := int(min(math.Ceil(e.viewport.Height/m.ItemHeight)+OverscanRows, float64(m.Rows-firstRow+OverscanRows)))
	start := firstRow * m.Columns
	if start > count-1 {
		start = count - 1
	}
	if start < 0 {
		start = 0
	}
	end := start + span*m.Columns
	if end > count {
		end = count
	}
	e.rng = Range{Start: start, End: end}
	e.slots = e.pool.Sync(start, end, count)
	for _, s := range e.slots {
		if !s.Failed {
			e.factory.Measure(s.Handle, m.ItemWidth, m.ItemHeight)
		}
	}
	e.log.Debug("measured",
		slog.Int("items", count),
		slog.Int("cols", m.Columns),
		slog.Int("start", start),
		slog.Int("end", end),
		slog.Float64("offset", off))
	return true
}

func (e *Engine) arrange() {
	off := e.scroller.Offset()
	for _, s := range e.slots {
		if s.Failed {
			continue
		}
		r := e.metrics.CellRect(s.Index)
		r.Y -= off
		e.factory.Place(s.Handle, r)
	}
}

// Close evicts every realized slot.
func (e *Engine) Close() {
	e.slots = e.pool.Sync(0, 0, 0)
	e.rng = Range{}
}

// Metrics returns the metrics of the last successful measure.
func (e *Engine) Metrics() (Metrics, bool) { return e.metrics, e.hasMetrics }

// Range returns the realized range of the last pass.
func (e *Engine) Range() Range { return e.rng }

// Offset returns the current scroll offset.
func (e *Engine) Offset() float64 { return e.scroller.Offset() }

// ScrollState returns the current scroll state.
func (e *Engine) ScrollState() ScrollState { return e.scroller.State() }

// Viewport returns the last viewport passed to Resize.
func (e *Engine) Viewport() Size { return e.viewport }

// State returns the layout cycle state.
func (e *Engine) State() State { return e.state }

// Passes returns how many layout passes ran since creation.
func (e *Engine) Passes() uint64 { return e.passes }

// Slots returns the slots of the last pass ordered by index.
func (e *Engine) Slots() []Slot { return append([]Slot(nil), e.slots...) }

// Live reports whether a realization serial is still in the pool.
func (e *Engine) Live(serial uint64) bool { return e.pool.Live(serial) }

// Lookup returns the realized slot for index, if any.
func (e *Engine) Lookup(index int) (Slot, bool) { return e.pool.Lookup(index) }

// IndexAt maps a viewport-space point to an item index. It returns -1 for
// points left of or above the grid, right of the last column or past the last
// item. The index need not be realized.
func (e *Engine) IndexAt(x, y float64) int {
	if !e.hasMetrics || x < 0 || y < 0 {
		return -1
	}
	m := e.metrics
	col := int(math.Floor(x / m.ItemWidth))
	if col >= m.Columns {
		return -1
	}
	row := int(math.Floor((y + e.scroller.Offset()) / m.ItemHeight))
	idx := row*m.Columns + col
	if idx >= e.itemCount() {
		return -1
	}
	return idx
}
