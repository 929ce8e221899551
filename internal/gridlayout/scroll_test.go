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
	"math"
	"math/rand"
	"testing"
)

func TestScrollerClampsOffset(t *testing.T) {
	s := NewScroller(nil)
	s.SetViewport(Size{Width: 100, Height: 300})
	s.SetExtent(Size{Width: 100, Height: 1000})

	if !s.SetOffset(450) || s.Offset() != 450 {
		t.Fatalf("offset = %v, want 450", s.Offset())
	}
	if !s.SetOffset(5000) || s.Offset() != 700 {
		t.Fatalf("offset = %v, want 700", s.Offset())
	}
	if s.SetOffset(700 + 1e-9) {
		t.Fatalf("sub-epsilon change counted as a change")
	}
	if !s.SetOffset(-20) || s.Offset() != 0 {
		t.Fatalf("offset = %v, want 0", s.Offset())
	}
}

func TestScrollerReclampsOnShrink(t *testing.T) {
	var notified []ScrollState
	s := NewScroller(ScrollOwnerFunc(func(st ScrollState) { notified = append(notified, st) }))
	s.SetViewport(Size{Width: 100, Height: 200})
	s.SetExtent(Size{Width: 100, Height: 2000})
	s.SetOffset(1800)

	notified = nil
	s.SetExtent(Size{Width: 100, Height: 500})
	if s.Offset() != 300 {
		t.Fatalf("offset = %v, want 300", s.Offset())
	}
	if len(notified) != 1 || notified[0].Offset != 300 {
		t.Fatalf("notifications = %+v", notified)
	}

	s.SetExtent(Size{Width: 100, Height: 0})
	if s.Offset() != 0 {
		t.Fatalf("offset = %v, want 0", s.Offset())
	}
}

func TestScrollerSteps(t *testing.T) {
	s := NewScroller(nil)
	s.SetViewport(Size{Width: 100, Height: 250})
	s.SetExtent(Size{Width: 100, Height: 1000})

	steps := []struct {
		op   func() bool
		want float64
	}{
		{func() bool { return s.LineStep(Forward) }, LineStepSize},
		{func() bool { return s.PageStep(Forward) }, LineStepSize + 250},
		{func() bool { return s.PageStep(Forward) }, LineStepSize + 500},
		{func() bool { return s.PageStep(Forward) }, 750},
		{func() bool { return s.PageStep(Backward) }, 500},
		{func() bool { return s.LineStep(Backward) }, 484},
	}
	for i, st := range steps {
		st.op()
		if s.Offset() != st.want {
			t.Fatalf("step %d: offset = %v, want %v", i, s.Offset(), st.want)
		}
	}
	s.SetOffset(750)
	if s.LineStep(Forward) {
		t.Fatalf("line step past the end reported a change")
	}
}

func TestScrollerNotifiesOnlyOnChange(t *testing.T) {
	calls := 0
	s := NewScroller(ScrollOwnerFunc(func(ScrollState) { calls++ }))
	s.SetViewport(Size{Width: 100, Height: 100})
	s.SetExtent(Size{Width: 100, Height: 400})
	calls = 0
	s.SetOffset(50)
	s.SetOffset(50)
	s.SetExtent(Size{Width: 100, Height: 400})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestScrollerRejectsNonFiniteSizes(t *testing.T) {
	s := NewScroller(nil)
	s.SetViewport(Size{Width: math.Inf(1), Height: math.Inf(1)})
	if v := s.State().Viewport; v.Width != 0 || v.Height != 0 {
		t.Fatalf("viewport = %+v, want zero", v)
	}
	s.SetExtent(Size{Width: 100, Height: math.Inf(1)})
	if st := s.State(); st.Extent.Height != 0 || st.MaxOffset() != 0 {
		t.Fatalf("state = %+v, want an empty extent", st)
	}
}

func TestScrollerInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewScroller(nil)
	check := func(op string) {
		st := s.State()
		hi := max(st.Extent.Height-st.Viewport.Height, 0)
		if st.Offset < 0 || st.Offset > hi {
			t.Fatalf("after %s offset %v outside [0,%v]", op, st.Offset, hi)
		}
	}
	for range 2000 {
		switch rng.Intn(5) {
		case 0:
			s.SetViewport(Size{Width: 100, Height: rng.Float64() * 800})
			check("viewport")
		case 1:
			s.SetExtent(Size{Width: 100, Height: rng.Float64() * 5000})
			check("extent")
		case 2:
			s.SetOffset(rng.Float64()*6000 - 500)
			check("offset")
		case 3:
			s.LineStep(Direction(rng.Intn(2)*2 - 1))
			check("line")
		default:
			s.PageStep(Direction(rng.Intn(2)*2 - 1))
			check("page")
		}
	}
}
