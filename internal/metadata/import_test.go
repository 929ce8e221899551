/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package metadata

import (
	"errors"
	"strings"
	"testing"
)

func TestImportJSONValid(t *testing.T) {
	doc, err := ImportJSON(strings.NewReader(`{
		"progress": {"/m/a.cbz": 12},
		"preferences": {"viewMode": "double", "readingDirection": "rtl"},
		"mangaRootPath": "/m",
		"metadata": {"/m/a.cbz": {"title": " A ", "author": "X", "tags": ["t", "T", ""]}}
	}`))
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if doc.Progress["/m/a.cbz"] != 12 || doc.RootPath != "/m" || doc.Preferences.ViewMode != "double" {
		t.Fatalf("decoded doc mismatch: %#v", doc)
	}
	m := doc.Metadata["/m/a.cbz"]
	if m.Title != "A" || len(m.Tags) != 1 {
		t.Fatalf("metadata not normalized: %#v", m)
	}
}

func TestImportJSONRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"negative page":  `{"progress": {"/a": -1}}`,
		"missing tags":   `{"metadata": {"/a": {"title": "x"}}}`,
		"bad view mode":  `{"preferences": {"viewMode": "triple"}}`,
		"tags not array": `{"metadata": {"/a": {"tags": "x"}}}`,
		"not json":       `{"progress":`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ImportJSON(strings.NewReader(in))
			if !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("want ErrInvalidDocument, got %v", err)
			}
		})
	}
}
