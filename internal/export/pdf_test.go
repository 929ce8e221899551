/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestCatalogPDF(t *testing.T) {
	thumb := jpegThumb(t)
	var items []CatalogItem
	for i := range 40 {
		items = append(items, CatalogItem{
			Key:      fmt.Sprintf("book-%d", i),
			Title:    fmt.Sprintf("A rather long title for book number %d that must be clipped", i),
			Subtitle: "Author",
		})
	}
	src := func(key string) ([]byte, error) {
		switch key {
		case "book-3":
			return nil, errors.New("boom")
		case "book-4":
			return []byte("not a jpeg"), nil
		case "book-5":
			return nil, nil
		}
		return thumb, nil
	}
	out := filepath.Join(t.TempDir(), "catalog")
	res, err := CatalogPDF(items, src, out, CatalogOptions{Title: "Shelf"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if res.Path != out+".pdf" || res.Bytes <= 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	// A4 with 104pt items fits 5 columns and 4 rows
	if res.Pages != 2 {
		t.Fatalf("pages = %d, want 2", res.Pages)
	}
	b, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF")) {
		t.Fatalf("not a pdf")
	}

	if _, err := CatalogPDF(items, src, out, CatalogOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("want ErrExists, got %v", err)
	}
}

func TestCatalogPDF_Empty(t *testing.T) {
	res, err := CatalogPDF(nil, nil, filepath.Join(t.TempDir(), "empty.pdf"), CatalogOptions{})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if res.Pages != 1 {
		t.Fatalf("pages = %d", res.Pages)
	}
}

func TestCatalogPDF_PageTooSmall(t *testing.T) {
	_, err := CatalogPDF([]CatalogItem{{Key: "a"}}, nil, filepath.Join(t.TempDir(), "x.pdf"),
		CatalogOptions{PageWidth: 100, PageHeight: 100, Margin: 10, ItemWidth: 60})
	if err == nil {
		t.Fatalf("expected error for a page smaller than one item")
	}
}
