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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when an import document fails schema validation.
var ErrInvalidDocument = errors.New("invalid metadata document")

// legacySchema describes the settings store exported by the previous desktop
// application: metadata and progress keyed by absolute file path.
const legacySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "metadata": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "title":     {"type": "string"},
          "author":    {"type": "string"},
          "publisher": {"type": "string"},
          "category":  {"type": "string"},
          "tags":      {"type": "array", "items": {"type": "string"}}
        },
        "required": ["tags"]
      }
    },
    "progress": {
      "type": "object",
      "additionalProperties": {"type": "integer", "minimum": 0}
    },
    "preferences": {
      "type": "object",
      "properties": {
        "viewMode":         {"enum": ["single", "double"]},
        "readingDirection": {"enum": ["ltr", "rtl"]}
      }
    },
    "mangaRootPath": {"type": "string"}
  }
}`

// Preferences are reader defaults carried by a legacy document.
type Preferences struct {
	ViewMode         string `json:"viewMode"`
	ReadingDirection string `json:"readingDirection"`
}

// Document is a validated import document.
type Document struct {
	Metadata    map[string]BookMetadata `json:"metadata"`
	Progress    map[string]int          `json:"progress"`
	Preferences Preferences             `json:"preferences"`
	RootPath    string                  `json:"mangaRootPath"`
}

var schemaLoader = gojsonschema.NewStringLoader(legacySchema)

// ImportJSON validates and decodes a legacy metadata document. Validation
// failures wrap ErrInvalidDocument and list every violation.
func ImportJSON(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	for k, m := range doc.Metadata {
		doc.Metadata[k] = m.Normalized()
	}
	return doc, nil
}
