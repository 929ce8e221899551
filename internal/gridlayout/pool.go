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
	"errors"
	"sort"
)

// ErrNilHandle is reported when a VisualFactory returns neither a handle nor an error.
var ErrNilHandle = errors.New("visual factory returned nil handle")

// Handle is an opaque visual owned by the host. The engine never inspects it.
type Handle any

// VisualFactory creates and manipulates host visuals on behalf of the pool.
type VisualFactory interface {
	// Create returns a new visual bound to index. A nil handle or an error
	// marks the slot as failed.
	Create(index int) (Handle, error)
	// Recycle rebinds an existing visual after the realized range moved while
	// index stayed inside it.
	Recycle(h Handle, index int)
	// Destroy releases a visual whose index left the realized range.
	Destroy(h Handle)
	Measure(h Handle, width, height float64)
	Place(h Handle, r Rect)
}

// Slot is a realized visual bound to one data index.
type Slot struct {
	Index          int
	Handle         Handle
	IsNewlyCreated bool
	// Failed marks a placeholder for an index the factory could not realize.
	Failed bool
	// Serial identifies this realization. It is never reused by the pool, so
	// asynchronous fillers can drop results for evicted slots.
	Serial uint64
}

// Pool owns the realized slots of one grid and keeps them equal to the
// contiguous range requested by Sync.
type Pool struct {
	factory   VisualFactory
	onFailure func(index int, err error)

	slots  map[int]*Slot
	live   map[uint64]int
	start  int
	synced bool
	serial uint64
}

// NewPool returns an empty pool realizing visuals through factory.
func NewPool(factory VisualFactory) *Pool {
	return &Pool{
		factory: factory,
		slots:   make(map[int]*Slot),
		live:    make(map[uint64]int),
	}
}

// OnFailure installs a hook called for every index whose visual could not be created.
func (p *Pool) OnFailure(fn func(index int, err error)) { p.onFailure = fn }

// Len returns the number of realized slots, failed placeholders included.
func (p *Pool) Len() int { return len(p.slots) }

// Lookup returns the slot realized for index.
func (p *Pool) Lookup(index int) (Slot, bool) {
	s, ok := p.slots[index]
	if !ok {
		return Slot{}, false
	}
	return *s, true
}

// Live reports whether the realization identified by serial is still in the pool.
func (p *Pool) Live(serial uint64) bool {
	_, ok := p.live[serial]
	return ok
}

// Sync realizes exactly the indices in [start, end) ∩ [0, itemCount) and
// returns their slots ordered by index. Existing slots inside the range are
// reused in place; slots outside it are destroyed.
func (p *Pool) Sync(start, end, itemCount int) []Slot {
	if itemCount <= 0 || start >= end {
		p.evictOutside(0, 0)
		p.start, p.synced = 0, false
		return nil
	}
	maxStart := itemCount - 1
	if start > maxStart {
		start = maxStart
	}
	if start < 0 {
		start = 0
	}
	if end > itemCount {
		end = itemCount
	}
	if end < start {
		end = start
	}
	moved := p.synced && p.start != start

	out := make([]Slot, 0, end-start)
	for i := start; i < end; i++ {
		if s, ok := p.slots[i]; ok {
			s.IsNewlyCreated = false
			if moved && !s.Failed {
				p.factory.Recycle(s.Handle, i)
			}
			out = append(out, *s)
			continue
		}
		out = append(out, *p.realize(i))
	}
	p.evictOutside(start, end)
	p.start, p.synced = start, true
	return out
}

func (p *Pool) realize(index int) *Slot {
	p.serial++
	s := &Slot{Index: index, IsNewlyCreated: true, Serial: p.serial}
	h, err := p.factory.Create(index)
	if err == nil && h == nil {
		err = ErrNilHandle
	}
	if err != nil {
		s.Failed = true
		if p.onFailure != nil {
			p.onFailure(index, err)
		}
	} else {
		s.Handle = h
	}
	p.slots[index] = s
	p.live[s.Serial] = index
	return s
}

func (p *Pool) evictOutside(start, end int) {
	if len(p.slots) == 0 {
		return
	}
	var victims []int
	for idx := range p.slots {
		if idx < start || idx >= end {
			victims = append(victims, idx)
		}
	}
	sort.Ints(victims)
	for _, idx := range victims {
		s := p.slots[idx]
		if !s.Failed {
			p.factory.Destroy(s.Handle)
		}
		delete(p.live, s.Serial)
		delete(p.slots, idx)
	}
}
