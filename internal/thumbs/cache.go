/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package thumbs

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache stores generated thumbnails by book key and width. A miss is
// reported as nil data with a nil error. storage.DB implements it.
type Cache interface {
	GetPreview(ctx context.Context, key string, width int) ([]byte, error)
	PutPreview(ctx context.Context, key string, width int, data []byte) error
}

type memKey struct {
	key   string
	width int
}

// MemoryCache is a bounded in-process Cache, used when no database is open
// and in front of one as a first-level cache.
type MemoryCache struct {
	c    *lru.Cache[memKey, []byte]
	next Cache
}

// NewMemoryCache keeps up to entries thumbnails. next, when non-nil, is
// consulted on a miss and written through on Put.
func NewMemoryCache(entries int, next Cache) (*MemoryCache, error) {
	if entries <= 0 {
		entries = 512
	}
	c, err := lru.New[memKey, []byte](entries)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{c: c, next: next}, nil
}

func (m *MemoryCache) GetPreview(ctx context.Context, key string, width int) ([]byte, error) {
	k := memKey{key, width}
	if b, ok := m.c.Get(k); ok {
		return b, nil
	}
	if m.next == nil {
		return nil, nil
	}
	b, err := m.next.GetPreview(ctx, key, width)
	if err != nil || b == nil {
		return nil, err
	}
	m.c.Add(k, b)
	return b, nil
}

func (m *MemoryCache) PutPreview(ctx context.Context, key string, width int, data []byte) error {
	m.c.Add(memKey{key, width}, data)
	if m.next != nil {
		return m.next.PutPreview(ctx, key, width, data)
	}
	return nil
}

// Len returns the number of thumbnails held in memory.
func (m *MemoryCache) Len() int { return m.c.Len() }
