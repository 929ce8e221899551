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
	"os"
	"path/filepath"

	"mangashelf/internal/library"
)

type folderBook struct {
	path  string
	pages []string
}

func openFolder(path string) (*folderBook, error) {
	des, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}
	b := &folderBook{path: path}
	for _, de := range des {
		if !de.IsDir() && isPage(de.Name()) {
			b.pages = append(b.pages, de.Name())
		}
	}
	library.SortNatural(b.pages)
	return b, nil
}

func (b *folderBook) Path() string    { return b.path }
func (b *folderBook) Format() Format  { return FormatFolder }
func (b *folderBook) Pages() []string { return b.pages }
func (b *folderBook) Close() error    { return nil }

func (b *folderBook) ReadPage(i int) ([]byte, error) {
	if err := checkIndex(i, len(b.pages)); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(b.path, b.pages[i]))
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	return limitedRead(f)
}

type imageBook struct{ path string }

func (b *imageBook) Path() string    { return b.path }
func (b *imageBook) Format() Format  { return FormatImage }
func (b *imageBook) Pages() []string { return []string{filepath.Base(b.path)} }
func (b *imageBook) Close() error    { return nil }

func (b *imageBook) ReadPage(i int) ([]byte, error) {
	if err := checkIndex(i, 1); err != nil {
		return nil, err
	}
	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return limitedRead(f)
}
