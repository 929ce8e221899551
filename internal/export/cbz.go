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
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mangashelf/internal/archive"
	"mangashelf/internal/metadata"
	"mangashelf/internal/reader"
)

// ErrExists is returned when the output file exists and Overwrite is unset.
var ErrExists = errors.New("output exists")

// PackOptions controls CBZ and EPUB packing.
type PackOptions struct {
	Meta      metadata.BookMetadata
	Direction reader.Direction
	// Series and Number land in ComicInfo.xml and the EPUB series metadata.
	Series    string
	Number    int
	Language  string
	Overwrite bool
}

// Result describes a written package.
type Result struct {
	Path  string
	Pages int
	Bytes int64
}

// PackFolderCBZ packs the images of an image folder book into a CBZ at outPath.
func PackFolderCBZ(dir, outPath string, opt PackOptions) (Result, error) {
	book, err := archive.Open(dir)
	if err != nil {
		return Result{}, err
	}
	defer book.Close()
	if book.Format() != archive.FormatFolder {
		return Result{}, fmt.Errorf("%s is not an image folder", dir)
	}
	if opt.Meta.Title == "" {
		opt.Meta.Title = filepath.Base(dir)
	}
	return PackCBZ(book, outPath, opt)
}

// PackCBZ copies the pages of book in reading order into a CBZ (ZIP) archive
// and adds a ComicInfo.xml manifest for reader compatibility.
func PackCBZ(book archive.Book, outPath string, opt PackOptions) (Result, error) {
	if !strings.HasSuffix(strings.ToLower(outPath), ".cbz") {
		outPath += ".cbz"
	}
	pages := book.Pages()
	if len(pages) == 0 {
		return Result{}, archive.ErrNoPages
	}
	out, err := createPackage(outPath, opt.Overwrite)
	if err != nil {
		return Result{}, err
	}
	pad := padWidth(len(pages))
	for i, name := range pages {
		data, err := book.ReadPage(i)
		if err != nil {
			out.abort()
			return Result{}, fmt.Errorf("read page %s: %w", name, err)
		}
		entry := fmt.Sprintf("%0*d%s", pad, i+1, strings.ToLower(filepath.Ext(name)))
		// images are already compressed
		if err := addStoredZipFile(out.zw, entry, data); err != nil {
			out.abort()
			return Result{}, fmt.Errorf("zip add image: %w", err)
		}
	}
	manifest, err := buildComicInfoXML(opt, len(pages))
	if err != nil {
		out.abort()
		return Result{}, fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(out.zw, "ComicInfo.xml", []byte(manifest)); err != nil {
		out.abort()
		return Result{}, fmt.Errorf("zip add manifest: %w", err)
	}
	size, err := out.commit()
	if err != nil {
		return Result{}, err
	}
	return Result{Path: outPath, Pages: len(pages), Bytes: size}, nil
}

// pkgFile is a zip written to a temporary file and renamed into place.
type pkgFile struct {
	f    *os.File
	zw   *zip.Writer
	dest string
}

func createPackage(outPath string, overwrite bool) (*pkgFile, error) {
	if _, err := os.Stat(outPath); err == nil && !overwrite {
		return nil, fmt.Errorf("%w: %s", ErrExists, outPath)
	}
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(outPath)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create package: %w", err)
	}
	return &pkgFile{f: f, zw: zip.NewWriter(f), dest: outPath}, nil
}

func (p *pkgFile) abort() {
	_ = p.zw.Close()
	_ = p.f.Close()
	_ = os.Remove(p.f.Name())
}

func (p *pkgFile) commit() (int64, error) {
	if err := p.zw.Close(); err != nil {
		p.abort()
		return 0, fmt.Errorf("close zip: %w", err)
	}
	if err := p.f.Sync(); err != nil {
		p.abort()
		return 0, fmt.Errorf("sync package: %w", err)
	}
	st, err := p.f.Stat()
	if err != nil {
		p.abort()
		return 0, err
	}
	if err := p.f.Close(); err != nil {
		_ = os.Remove(p.f.Name())
		return 0, fmt.Errorf("close package: %w", err)
	}
	if err := os.Rename(p.f.Name(), p.dest); err != nil {
		_ = os.Remove(p.f.Name())
		return 0, fmt.Errorf("rename package: %w", err)
	}
	return st.Size(), nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// addStoredZipFile writes an entry with STORE method (no compression), required for EPUB mimetype.
func addStoredZipFile(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	hdr.Modified = time.Now()
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func padWidth(n int) int {
	switch {
	case n >= 1000:
		return 4
	case n >= 100:
		return 3
	case n >= 10:
		return 2
	default:
		return 1
	}
}

func buildComicInfoXML(opt PackOptions, pageCount int) (string, error) {
	m := opt.Meta
	series := opt.Series
	if series == "" {
		series = m.Title
	}
	manga := "Yes"
	if opt.Direction == reader.RTL {
		manga = "YesAndRightToLeft"
	}
	buf := &bytes.Buffer{}
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(buf, format, args...)
	}
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<ComicInfo xmlns:xsi=\"http://www.w3.org/2001/XMLSchema-instance\">\n")
	wf("  <Series>%s</Series>\n", xmlEsc(series))
	wf("  <Title>%s</Title>\n", xmlEsc(m.Title))
	if opt.Number > 0 {
		wf("  <Number>%d</Number>\n", opt.Number)
	}
	wf("  <PageCount>%d</PageCount>\n", pageCount)
	if m.Author != "" {
		wf("  <Writer>%s</Writer>\n", xmlEsc(m.Author))
	}
	if m.Publisher != "" {
		wf("  <Publisher>%s</Publisher>\n", xmlEsc(m.Publisher))
	}
	if m.Category != metadata.CategoryNone {
		wf("  <Genre>%s</Genre>\n", xmlEsc(string(m.Category)))
	}
	if len(m.Tags) > 0 {
		wf("  <Tags>%s</Tags>\n", xmlEsc(strings.Join(m.Tags, ",")))
	}
	if opt.Language != "" {
		wf("  <LanguageISO>%s</LanguageISO>\n", xmlEsc(opt.Language))
	}
	wf("  <Manga>%s</Manga>\n", manga)
	wf("</ComicInfo>\n")
	if werr != nil {
		return "", fmt.Errorf("build xml: %w", werr)
	}
	return buf.String(), nil
}

func xmlEsc(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
