/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package archive exposes books stored as folders, zip/cbz, 7z/cb7, rar/cbr
// or single images as an ordered list of image pages.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mangashelf/internal/library"
)

var (
	// ErrUnsupportedFormat is returned for files that cannot be paged.
	ErrUnsupportedFormat = errors.New("unsupported book format")
	// ErrNoPages is returned when a book contains no images.
	ErrNoPages = errors.New("book has no pages")
	// ErrPageTooLarge is returned when a page exceeds MaxPageSize.
	ErrPageTooLarge = errors.New("page exceeds maximum size")
	// ErrPageRange is returned for page indices outside the book.
	ErrPageRange = errors.New("page index out of range")
)

// MaxPageSize caps a single decoded page read.
const MaxPageSize = 64 << 20

var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06}
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21}
	magicPDF    = []byte("%PDF")
)

// Format is a detected container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatFolder
	FormatZIP
	Format7z
	FormatRAR
	FormatImage
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatFolder:
		return "folder"
	case FormatZIP:
		return "zip"
	case Format7z:
		return "7z"
	case FormatRAR:
		return "rar"
	case FormatImage:
		return "image"
	case FormatPDF:
		return "pdf"
	}
	return "unknown"
}

// Book is an open, paged book. Implementations are not safe for concurrent
// use; open one Book per goroutine.
type Book interface {
	Path() string
	Format() Format
	// Pages lists page names in natural order.
	Pages() []string
	// ReadPage returns the raw image bytes of page i.
	ReadPage(i int) ([]byte, error)
	Close() error
}

// Open detects the format of path and opens it.
func Open(path string) (Book, error) {
	format, err := Detect(path)
	if err != nil {
		return nil, err
	}
	var b Book
	switch format {
	case FormatFolder:
		b, err = openFolder(path)
	case FormatZIP:
		b, err = openZIP(path)
	case Format7z:
		b, err = open7z(path)
	case FormatRAR:
		b, err = openRAR(path)
	case FormatImage:
		b = &imageBook{path: path}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	if len(b.Pages()) == 0 {
		_ = b.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoPages, path)
	}
	return b, nil
}

// Cover returns the first page of the book at path and its name.
func Cover(path string) ([]byte, string, error) {
	b, err := Open(path)
	if err != nil {
		return nil, "", err
	}
	defer b.Close()
	data, err := b.ReadPage(0)
	if err != nil {
		return nil, "", err
	}
	return data, b.Pages()[0], nil
}

// Detect determines the format from magic bytes, falling back to the extension.
func Detect(path string) (Format, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("stat book: %w", err)
	}
	if st.IsDir() {
		return FormatFolder, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("open book: %w", err)
	}
	defer f.Close()
	header := make([]byte, 16)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("read header: %w", err)
	}
	return detectFormat(header[:n], path), nil
}

func detectFormat(header []byte, path string) Format {
	switch {
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return FormatZIP
	case bytes.HasPrefix(header, magicRAR):
		return FormatRAR
	case bytes.HasPrefix(header, magic7z):
		return Format7z
	case bytes.HasPrefix(header, magicPDF):
		return FormatPDF
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".cbz", ".epub":
		return FormatZIP
	case ".7z", ".cb7":
		return Format7z
	case ".rar", ".cbr":
		return FormatRAR
	case ".pdf":
		return FormatPDF
	}
	if library.IsImage(path) {
		return FormatImage
	}
	return FormatUnknown
}

// isPage reports whether an archive member is a displayable page.
func isPage(name string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(name), "/") {
		if strings.HasPrefix(seg, ".") || seg == "__MACOSX" {
			return false
		}
	}
	return library.IsImage(name)
}

func limitedRead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPageSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPageSize {
		return nil, ErrPageTooLarge
	}
	return data, nil
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %d of %d", ErrPageRange, i, n)
	}
	return nil
}
