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

import "errors"

type fakeVisual struct {
	id       int
	index    int
	rect     Rect
	measured Size
	placed   bool
}

// fakeFactory records every factory call so tests can assert on realization churn.
type fakeFactory struct {
	nextID    int
	created   []int
	destroyed []int
	recycled  []int
	placed    map[int]Rect
	fail      map[int]bool
	onCreate  func(index int)
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{placed: map[int]Rect{}, fail: map[int]bool{}}
}

func (f *fakeFactory) Create(index int) (Handle, error) {
	if f.onCreate != nil {
		f.onCreate(index)
	}
	if f.fail[index] {
		return nil, errors.New("decode failed")
	}
	f.nextID++
	f.created = append(f.created, index)
	return &fakeVisual{id: f.nextID, index: index}, nil
}

func (f *fakeFactory) Recycle(h Handle, index int) {
	h.(*fakeVisual).index = index
	f.recycled = append(f.recycled, index)
}

func (f *fakeFactory) Destroy(h Handle) {
	f.destroyed = append(f.destroyed, h.(*fakeVisual).index)
}

func (f *fakeFactory) Measure(h Handle, w, hgt float64) {
	h.(*fakeVisual).measured = Size{Width: w, Height: hgt}
}

func (f *fakeFactory) Place(h Handle, r Rect) {
	v := h.(*fakeVisual)
	v.rect = r
	v.placed = true
	f.placed[v.index] = r
}

func (f *fakeFactory) reset() {
	f.created, f.destroyed, f.recycled = nil, nil, nil
	f.placed = map[int]Rect{}
}

type countSource struct{ n int }

func (c *countSource) ItemCount() int { return c.n }
