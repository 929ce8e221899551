/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"mangashelf/internal/archive"
	"mangashelf/internal/metadata"
	"mangashelf/internal/reader"
)

func readZipEntry(t *testing.T, zr *zip.ReadCloser, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(b)
	}
	t.Fatalf("missing entry %s", name)
	return ""
}

func TestPackEPUB(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "My Book")
	writePageFolder(t, src, 3)
	book, err := archive.Open(src)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer book.Close()

	res, err := PackEPUB(book, filepath.Join(root, "out"), PackOptions{
		Meta:      metadata.BookMetadata{Title: "Tom & Jerry", Author: "Someone"},
		Direction: reader.RTL,
	})
	if err != nil {
		t.Fatalf("pack epub: %v", err)
	}
	if !strings.HasSuffix(res.Path, ".epub") || res.Pages != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	zr, err := zip.OpenReader(res.Path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	if zr.File[0].Name != "mimetype" || zr.File[0].Method != zip.Store {
		t.Fatalf("mimetype must be the first stored entry, got %s", zr.File[0].Name)
	}
	if got := readZipEntry(t, zr, "mimetype"); got != "application/epub+zip" {
		t.Fatalf("mimetype = %q", got)
	}
	opf := readZipEntry(t, zr, "OEBPS/content.opf")
	for _, want := range []string{
		"Tom &amp; Jerry",
		"page-progression-direction=\"rtl\"",
		"pre-paginated",
		"<dc:language>ja</dc:language>",
		"image/png",
	} {
		if !strings.Contains(opf, want) {
			t.Fatalf("content.opf missing %q:\n%s", want, opf)
		}
	}
	_ = readZipEntry(t, zr, "OEBPS/images/page-1.png")
	_ = readZipEntry(t, zr, "OEBPS/page-3.xhtml")
	nav := readZipEntry(t, zr, "OEBPS/nav.xhtml")
	if strings.Count(nav, "<li>") != 3 {
		t.Fatalf("nav should list 3 pages:\n%s", nav)
	}
}
