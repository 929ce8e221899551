/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package library

import (
	"sync"

	"mangashelf/internal/metadata"
)

// Item is an entry with its user metadata.
type Item struct {
	Entry Entry
	Meta  metadata.BookMetadata
}

// Effective returns the metadata used for searching and display: the stored
// metadata with the entry title filled in when none was set.
func (it Item) Effective() metadata.BookMetadata {
	m := it.Meta
	if m.Title == "" {
		m.Title = it.Entry.Title
	}
	return m
}

// Catalog is the ordered, filterable item collection. Index i refers to the
// i-th item of the current filtered view, which is what the grid engine is
// virtualized over. It is safe for concurrent use; listeners run on the
// goroutine that made the change, outside the lock.
type Catalog struct {
	mu        sync.RWMutex
	all       []Item
	byPath    map[string]int
	view      []int
	criteria  metadata.Criteria
	listeners map[int]func()
	nextID    int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byPath: map[string]int{}, listeners: map[int]func(){}}
}

// ItemCount returns the number of items in the filtered view.
func (c *Catalog) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.view)
}

// Total returns the number of items ignoring the filter.
func (c *Catalog) Total() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.all)
}

// At returns the item at view index i.
func (c *Catalog) At(i int) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.view) {
		return Item{}, false
	}
	return c.all[c.view[i]], true
}

// Items returns a copy of the filtered view.
func (c *Catalog) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, len(c.view))
	for i, k := range c.view {
		out[i] = c.all[k]
	}
	return out
}

// IndexOf returns the view index of path, or -1.
func (c *Catalog) IndexOf(path string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.byPath[path]
	if !ok {
		return -1
	}
	for i, v := range c.view {
		if v == k {
			return i
		}
	}
	return -1
}

// Replace swaps the whole collection, keeping the current filter.
func (c *Catalog) Replace(items []Item) {
	c.mu.Lock()
	c.all = append([]Item(nil), items...)
	c.byPath = make(map[string]int, len(items))
	for i, it := range c.all {
		c.byPath[it.Entry.Path] = i
	}
	c.refilterLocked()
	c.mu.Unlock()
	c.notify()
}

// ReplaceEntries builds items from entries and a metadata map keyed by path.
func (c *Catalog) ReplaceEntries(entries []Entry, meta map[string]metadata.BookMetadata) {
	items := make([]Item, len(entries))
	for i, e := range entries {
		items[i] = Item{Entry: e, Meta: meta[e.Path]}
	}
	c.Replace(items)
}

// SetMetadata updates the metadata of path and reports whether it exists.
func (c *Catalog) SetMetadata(path string, m metadata.BookMetadata) bool {
	c.mu.Lock()
	k, ok := c.byPath[path]
	if ok {
		c.all[k].Meta = m.Normalized()
		c.refilterLocked()
	}
	c.mu.Unlock()
	if ok {
		c.notify()
	}
	return ok
}

// Filter applies cr to the view.
func (c *Catalog) Filter(cr metadata.Criteria) {
	c.mu.Lock()
	c.criteria = cr
	c.refilterLocked()
	c.mu.Unlock()
	c.notify()
}

// Criteria returns the active filter.
func (c *Catalog) Criteria() metadata.Criteria {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.criteria
}

// OnChange registers fn to run after every change of the view and returns a
// function that unregisters it.
func (c *Catalog) OnChange(fn func()) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Catalog) refilterLocked() {
	c.view = c.view[:0]
	empty := c.criteria.Empty()
	for i, it := range c.all {
		if empty || c.criteria.Match(it.Effective()) {
			c.view = append(c.view, i)
		}
	}
}

func (c *Catalog) notify() {
	c.mu.RLock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
