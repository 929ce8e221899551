/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"

	"mangashelf/internal/library"
)

// rarBook lists members once and re-opens the stream per page; RAR members
// are only reachable sequentially.
type rarBook struct {
	path  string
	pages []string
}

func openRAR(path string) (*rarBook, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open rar: %w", err)
	}
	defer r.Close()
	b := &rarBook{path: path}
	for {
		h, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rar entry: %w", err)
		}
		if h.IsDir || !isPage(h.Name) {
			continue
		}
		b.pages = append(b.pages, h.Name)
	}
	library.SortNatural(b.pages)
	return b, nil
}

func (b *rarBook) Path() string    { return b.path }
func (b *rarBook) Format() Format  { return FormatRAR }
func (b *rarBook) Pages() []string { return b.pages }
func (b *rarBook) Close() error    { return nil }

func (b *rarBook) ReadPage(i int) ([]byte, error) {
	if err := checkIndex(i, len(b.pages)); err != nil {
		return nil, err
	}
	r, err := rardecode.OpenReader(b.path)
	if err != nil {
		return nil, fmt.Errorf("open rar: %w", err)
	}
	defer r.Close()
	want := b.pages[i]
	for {
		h, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s vanished from archive: %w", want, ErrPageRange)
		}
		if err != nil {
			return nil, fmt.Errorf("read rar entry: %w", err)
		}
		if h.Name != want {
			continue
		}
		data, err := limitedRead(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", want, err)
		}
		return data, nil
	}
}
