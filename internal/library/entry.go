/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package library discovers books under a library root and keeps the ordered,
// filterable catalog the cover grid is virtualized over.
package library

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an entry by how its pages are read.
type Kind string

const (
	KindArchive Kind = "archive"
	KindPDF     Kind = "pdf"
	KindEPUB    Kind = "epub"
	KindImage   Kind = "image"
	KindFolder  Kind = "folder"
)

var (
	archiveExts = map[string]bool{".zip": true, ".cbz": true, ".7z": true, ".cb7": true, ".rar": true, ".cbr": true}
	imageExts   = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".bmp": true, ".avif": true}
)

// IsImage reports whether name has a known image extension.
func IsImage(name string) bool { return imageExts[strings.ToLower(filepath.Ext(name))] }

// IsArchive reports whether name has a known archive extension.
func IsArchive(name string) bool { return archiveExts[strings.ToLower(filepath.Ext(name))] }

// KindOf maps a file name to its kind; ok is false for unsupported files.
func KindOf(name string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case archiveExts[ext]:
		return KindArchive, true
	case ext == ".pdf":
		return KindPDF, true
	case ext == ".epub":
		return KindEPUB, true
	case imageExts[ext]:
		return KindImage, true
	}
	return "", false
}

// Entry is one book in the library.
type Entry struct {
	// ID is stable for a given path across scans.
	ID      string
	Path    string
	Title   string
	Kind    Kind
	Size    int64
	ModTime time.Time
}

// EntryID derives the stable entry ID for path.
func EntryID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(path))).String()
}

// TitleOf derives a display title from a path: the base name without
// extension for files, the folder name for folders.
func TitleOf(path string, kind Kind) string {
	base := filepath.Base(path)
	if kind == KindFolder {
		return base
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
