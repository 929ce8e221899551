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

import "math"

// LineStepSize is the fixed offset delta of a single line step.
const LineStepSize = 16.0

// offsetEpsilon is the tolerance under which two offsets are considered equal.
const offsetEpsilon = 1e-6

// Direction of a step operation.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// ScrollState is a snapshot of the scroller.
type ScrollState struct {
	Offset   float64
	Viewport Size
	Extent   Size
}

// MaxOffset returns the largest valid offset for the state.
func (s ScrollState) MaxOffset() float64 {
	return math.Max(0, s.Extent.Height-s.Viewport.Height)
}

// ScrollOwner is notified whenever the clamped offset or the extent changes,
// so a host scrollbar can follow.
type ScrollOwner interface {
	ScrollInvalidated(ScrollState)
}

// ScrollOwnerFunc adapts a function to ScrollOwner.
type ScrollOwnerFunc func(ScrollState)

func (f ScrollOwnerFunc) ScrollInvalidated(s ScrollState) { f(s) }

// Scroller owns the vertical scroll offset and keeps it within
// [0, max(0, extent.Height-viewport.Height)] after every mutation.
type Scroller struct {
	state ScrollState
	owner ScrollOwner
}

// NewScroller returns a scroller at offset 0. owner may be nil.
func NewScroller(owner ScrollOwner) *Scroller {
	return &Scroller{owner: owner}
}

// SetOwner replaces the scroll owner.
func (s *Scroller) SetOwner(owner ScrollOwner) { s.owner = owner }

// State returns the current scroll state.
func (s *Scroller) State() ScrollState { return s.state }

// Offset returns the current offset.
func (s *Scroller) Offset() float64 { return s.state.Offset }

// SetViewport stores the viewport size and re-clamps the offset.
func (s *Scroller) SetViewport(sz Size) {
	s.state.Viewport = sanitizeSize(sz)
	if s.reclamp() {
		s.notify()
	}
}

// SetExtent stores the extent size and re-clamps the offset. The owner is
// notified when either the extent or the offset changed.
func (s *Scroller) SetExtent(sz Size) {
	sz = sanitizeSize(sz)
	changed := !nearlyEqual(sz.Height, s.state.Extent.Height) || !nearlyEqual(sz.Width, s.state.Extent.Width)
	s.state.Extent = sz
	if s.reclamp() || changed {
		s.notify()
	}
}

// SetOffset clamps v into the valid range and reports whether the stored
// offset changed.
func (s *Scroller) SetOffset(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	v = clamp(v, 0, s.state.MaxOffset())
	if nearlyEqual(v, s.state.Offset) {
		return false
	}
	s.state.Offset = v
	s.notify()
	return true
}

// LineStep moves the offset by LineStepSize in dir.
func (s *Scroller) LineStep(dir Direction) bool {
	return s.SetOffset(s.state.Offset + float64(dir)*LineStepSize)
}

// PageStep moves the offset by one viewport height in dir.
func (s *Scroller) PageStep(dir Direction) bool {
	return s.SetOffset(s.state.Offset + float64(dir)*s.state.Viewport.Height)
}

func (s *Scroller) reclamp() bool {
	v := clamp(s.state.Offset, 0, s.state.MaxOffset())
	if v == s.state.Offset {
		return false
	}
	s.state.Offset = v
	return true
}

func (s *Scroller) notify() {
	if s.owner != nil {
		s.owner.ScrollInvalidated(s.state)
	}
}

func sanitizeSize(sz Size) Size {
	if sz.Width < 0 || math.IsNaN(sz.Width) || math.IsInf(sz.Width, 0) {
		sz.Width = 0
	}
	if sz.Height < 0 || math.IsNaN(sz.Height) || math.IsInf(sz.Height, 0) {
		sz.Height = 0
	}
	return sz
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nearlyEqual(a, b float64) bool { return math.Abs(a-b) <= offsetEpsilon }
