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
	"fmt"

	"github.com/bodgit/sevenzip"

	"mangashelf/internal/library"
)

type sevenBook struct {
	path  string
	r     *sevenzip.ReadCloser
	files map[string]*sevenzip.File
	pages []string
}

func open7z(path string) (*sevenBook, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open 7z: %w", err)
	}
	b := &sevenBook{path: path, r: r, files: map[string]*sevenzip.File{}}
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isPage(f.Name) {
			continue
		}
		b.files[f.Name] = f
		b.pages = append(b.pages, f.Name)
	}
	library.SortNatural(b.pages)
	return b, nil
}

func (b *sevenBook) Path() string    { return b.path }
func (b *sevenBook) Format() Format  { return Format7z }
func (b *sevenBook) Pages() []string { return b.pages }
func (b *sevenBook) Close() error    { return b.r.Close() }

func (b *sevenBook) ReadPage(i int) ([]byte, error) {
	if err := checkIndex(i, len(b.pages)); err != nil {
		return nil, err
	}
	rc, err := b.files[b.pages[i]].Open()
	if err != nil {
		return nil, fmt.Errorf("open %s in archive: %w", b.pages[i], err)
	}
	defer rc.Close()
	data, err := limitedRead(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.pages[i], err)
	}
	return data, nil
}
