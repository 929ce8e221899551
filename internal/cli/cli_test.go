/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/internal/config"
	"mangashelf/internal/metadata"
	"mangashelf/internal/remote"
)

type memStore struct{ m map[string]string }

func (s *memStore) Get(service, key string) (string, error) { return s.m[service+"/"+key], nil }
func (s *memStore) Set(service, key, value string) error {
	s.m[service+"/"+key] = value
	return nil
}
func (s *memStore) Delete(service, key string) error {
	delete(s.m, service+"/"+key)
	return nil
}

// isolate points config and data at fresh temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvConfigDir, t.TempDir())
	data := t.TempDir()
	t.Setenv(config.EnvDataDir, data)
	t.Setenv(config.EnvLibraryRoot, "")
	t.Setenv(config.EnvRemoteEnabled, "")
	t.Cleanup(config.SetTokenStore(&memStore{m: map[string]string{}}))
	return data
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := New(&out, &errOut).Execute(context.Background(), args)
	return out.String(), errOut.String(), err
}

func writeZipBook(t *testing.T, path string, pages int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for i := range pages {
		w, err := zw.Create("pages/" + string(rune('a'+i)) + ".png")
		require.NoError(t, err)
		img := image.NewRGBA(image.Rect(0, 0, 20, 30))
		img.Set(1, 1, color.RGBA{R: 200, A: 255})
		require.NoError(t, png.Encode(w, img))
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func listJSON(t *testing.T, args ...string) []listedBook {
	t.Helper()
	out, _, err := run(t, append([]string{"list", "--json"}, args...)...)
	require.NoError(t, err)
	var books []listedBook
	require.NoError(t, json.Unmarshal([]byte(out), &books))
	return books
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mangashelf "))
}

func TestScanThenList(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeZipBook(t, filepath.Join(root, "series", "vol10.cbz"), 1)
	writeZipBook(t, filepath.Join(root, "series", "vol2.cbz"), 1)
	writeZipBook(t, filepath.Join(root, "alpha.zip"), 2)

	out, _, err := run(t, "scan", root)
	require.NoError(t, err)
	assert.Contains(t, out, "3 books in ")

	books := listJSON(t)
	require.Len(t, books, 3)
	assert.Equal(t, []string{"alpha", "vol2", "vol10"}, []string{books[0].Title, books[1].Title, books[2].Title})
	assert.Equal(t, "archive", books[0].Kind)

	table, _, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, table, "TITLE")
	assert.Contains(t, table, "3 of 3 books")

	// the root is remembered for a rescan without arguments
	out, _, err = run(t, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "3 books in ")
}

func TestScanWithoutRootFails(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "scan")
	require.Error(t, err)
}

func TestMetaEditAndQuery(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	book := filepath.Join(root, "b.cbz")
	writeZipBook(t, book, 1)
	writeZipBook(t, filepath.Join(root, "c.cbz"), 1)
	_, _, err := run(t, "scan", root)
	require.NoError(t, err)

	out, _, err := run(t, "meta", book, "--title", "Blue Sky", "--author", "Mori", "--tag", "drama", "--tag", "School")
	require.NoError(t, err)
	var m metadata.BookMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "Blue Sky", m.Title)
	assert.Equal(t, "Mori", m.Author)
	assert.Len(t, m.Tags, 2)

	books := listJSON(t, "--query", "mori")
	require.Len(t, books, 1)
	assert.Equal(t, "Blue Sky", books[0].Title)

	books = listJSON(t, "--query", "drama")
	require.Len(t, books, 1)

	_, _, err = run(t, "meta", book, "--clear")
	require.NoError(t, err)
	assert.Empty(t, listJSON(t, "--query", "mori"))
}

func TestPackBookAndBatch(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	book := filepath.Join(root, "one.cbz")
	writeZipBook(t, book, 3)

	dst := filepath.Join(t.TempDir(), "one.epub")
	out, _, err := run(t, "pack", book, dst, "--format", "epub")
	require.NoError(t, err)
	assert.Contains(t, out, "3 pages")
	_, err = os.Stat(dst)
	require.NoError(t, err)

	_, _, err = run(t, "pack", book, dst, "--format", "epub")
	require.Error(t, err, "existing output without --overwrite")

	_, _, err = run(t, "pack", book, "--format", "pdf")
	require.Error(t, err)

	_, _, err = run(t, "scan", root)
	require.NoError(t, err)
	outDir := t.TempDir()
	out, errOut, err := run(t, "pack", "--all", "--preset", "all", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 written, 0 skipped, 0 failed")
	assert.Contains(t, errOut, "[1/1] one.cbz")
	_, err = os.Stat(filepath.Join(outDir, "cbz", "one.cbz"))
	require.NoError(t, err)

	_, _, err = run(t, "pack", "--all", book)
	require.Error(t, err)
}

func TestCatalogPDF(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeZipBook(t, filepath.Join(root, "a.cbz"), 1)
	writeZipBook(t, filepath.Join(root, "b.cbz"), 1)
	_, _, err := run(t, "scan", root)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "shelf.pdf")
	out, _, err := run(t, "catalog", dst, "--title", "My shelf")
	require.NoError(t, err)
	assert.Contains(t, out, "2 books on 1 pages")
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestImportMetadata(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	book := filepath.Join(root, "x.cbz")
	writeZipBook(t, book, 1)
	_, _, err := run(t, "scan", root)
	require.NoError(t, err)

	doc := map[string]any{
		"metadata": map[string]any{
			book: map[string]any{"title": "Imported", "author": "Someone", "tags": []string{"a"}},
		},
		"progress": map[string]int{book: 4},
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(file, b, 0o644))

	out, _, err := run(t, "import-metadata", file)
	require.NoError(t, err)
	assert.Contains(t, out, "1 books and 1 reading positions")

	books := listJSON(t)
	require.Len(t, books, 1)
	assert.Equal(t, "Imported", books[0].Title)
	assert.Equal(t, 4, books[0].Page)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"metadata": 3}`), 0o644))
	_, _, err = run(t, "import-metadata", bad)
	require.ErrorIs(t, err, metadata.ErrInvalidDocument)
}

func TestSyncNotConfigured(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "sync")
	require.ErrorIs(t, err, remote.ErrNotConfigured)
}

func TestScrapeArgs(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "scrape")
	require.Error(t, err)
	_, _, err = run(t, "scrape", "--id", "RJ01234567", "a.zip", "b.zip")
	require.Error(t, err)

	// no ID in the name and no --id: the book fails without a request
	root := t.TempDir()
	book := filepath.Join(root, "plain.cbz")
	writeZipBook(t, book, 1)
	_, errOut, err := run(t, "scrape", book)
	require.Error(t, err)
	assert.Contains(t, errOut, "no product ID")
}

func TestMergeScrapedKeepsStoredValues(t *testing.T) {
	cur := metadata.BookMetadata{Title: "Mine", Tags: []string{"kept"}}
	found := metadata.BookMetadata{Title: "Store title", Author: "Circle", Publisher: "Pub", Category: metadata.CategoryManga, Tags: []string{"x", "y"}}
	got := mergeScraped(cur, found)
	assert.Equal(t, "Mine", got.Title)
	assert.Equal(t, "Circle", got.Author)
	assert.Equal(t, "Pub", got.Publisher)
	assert.Equal(t, metadata.CategoryManga, got.Category)
	assert.Equal(t, []string{"kept"}, got.Tags)
}

func TestUnknownCommand(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "frobnicate")
	require.Error(t, err)
}
