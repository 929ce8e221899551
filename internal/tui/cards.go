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
	"errors"
	"sort"

	"mangashelf/internal/gridlayout"
	"mangashelf/internal/library"
)

// rowUnits is the number of engine units per terminal row. With 4-row cards
// that makes one card row 16 units, so LineUp/LineDown step a whole row.
const rowUnits = 4

const (
	cardCols = 26
	cardRows = 4
)

var errGone = errors.New("item no longer in catalog")

// card is the realized visual of one catalog index.
type card struct {
	index int
	item  library.Item
	rect  gridlayout.Rect
}

// cardFactory realizes cards from the catalog. It only copies item data; all
// drawing happens in View.
type cardFactory struct {
	catalog *library.Catalog
	live    map[*card]struct{}
	created int
}

func newCardFactory(c *library.Catalog) *cardFactory {
	return &cardFactory{catalog: c, live: map[*card]struct{}{}}
}

func (f *cardFactory) Create(index int) (gridlayout.Handle, error) {
	it, ok := f.catalog.At(index)
	if !ok {
		return nil, errGone
	}
	c := &card{index: index, item: it}
	f.live[c] = struct{}{}
	f.created++
	return c, nil
}

func (f *cardFactory) Recycle(h gridlayout.Handle, index int) {
	c := h.(*card)
	c.index = index
	if it, ok := f.catalog.At(index); ok {
		c.item = it
	}
}

func (f *cardFactory) Destroy(h gridlayout.Handle) { delete(f.live, h.(*card)) }

func (f *cardFactory) Measure(gridlayout.Handle, float64, float64) {}

func (f *cardFactory) Place(h gridlayout.Handle, r gridlayout.Rect) { h.(*card).rect = r }

// refresh rebinds every live card to the catalog, used after a metadata edit
// that kept the item count.
func (f *cardFactory) refresh() {
	for c := range f.live {
		if it, ok := f.catalog.At(c.index); ok {
			c.item = it
		}
	}
}

// placed returns the live cards ordered by row then column.
func placed(slots []gridlayout.Slot) []*card {
	out := make([]*card, 0, len(slots))
	for _, s := range slots {
		if s.Failed {
			continue
		}
		out = append(out, s.Handle.(*card))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].rect.Y != out[j].rect.Y {
			return out[i].rect.Y < out[j].rect.Y
		}
		return out[i].rect.X < out[j].rect.X
	})
	return out
}
