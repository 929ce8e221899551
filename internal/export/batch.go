/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"mangashelf/internal/archive"
	"mangashelf/internal/library"
	applog "mangashelf/internal/log"
	"mangashelf/internal/reader"
)

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetReader packs CBZ for comic reader apps.
	PresetReader PresetName = "reader"
	// PresetEbook packs fixed-layout EPUB for e-book readers.
	PresetEbook PresetName = "ebook"
	// PresetAll packs both.
	PresetAll PresetName = "all"
)

// ParsePreset maps a preset name; unknown names are an error.
func ParsePreset(s string) (PresetName, error) {
	switch p := PresetName(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetReader, PresetEbook, PresetAll:
		return p, nil
	case "":
		return PresetReader, nil
	}
	return "", fmt.Errorf("unknown preset: %s", s)
}

// BatchOptions controls packing many books at once.
//
// Outputs go to OutDir/<format>/<title>.<ext>. Formats overrides the preset
// defaults when set (allowed: cbz, epub).
type BatchOptions struct {
	Preset    PresetName
	Formats   []string
	OutDir    string
	Direction reader.Direction
	Language  string
	Overwrite bool
	// Progress, when set, is called after each book with the 1-based count.
	Progress func(done, total int, path string)
	Logger   *slog.Logger
}

// BatchReport summarizes a PackBatch run.
type BatchReport struct {
	Written []Result
	// Skipped holds books that exist already or have no packable pages.
	Skipped []string
	Failed  map[string]error
}

// PackBatch packs every item with the formats selected by opt. A failing
// book is recorded and the batch goes on; only a canceled context or a bad
// option aborts it.
func PackBatch(ctx context.Context, items []library.Item, opt BatchOptions) (BatchReport, error) {
	rep := BatchReport{Failed: map[string]error{}}
	if opt.OutDir == "" {
		return rep, errors.New("batch: output directory is required")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	for i := range formats {
		formats[i] = strings.ToLower(strings.TrimSpace(formats[i]))
		if formats[i] != "cbz" && formats[i] != "epub" {
			return rep, fmt.Errorf("unknown format: %s", formats[i])
		}
	}
	l := opt.Logger
	if l == nil {
		l = applog.WithComponent("export")
	}
	l = applog.WithOperation(l, "pack_batch")

	names := map[string]int{}
	for n, it := range items {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		meta := it.Effective()
		base := outputName(meta.Title, names)
		for _, f := range formats {
			out := filepath.Join(opt.OutDir, f, base+"."+f)
			res, err := packOne(it.Entry.Path, f, out, PackOptions{
				Meta:      meta,
				Direction: opt.Direction,
				Language:  opt.Language,
				Overwrite: opt.Overwrite,
			})
			switch {
			case err == nil:
				rep.Written = append(rep.Written, res)
			case errors.Is(err, ErrExists), errors.Is(err, archive.ErrNoPages), errors.Is(err, archive.ErrUnsupportedFormat):
				rep.Skipped = append(rep.Skipped, out)
				l.Debug("skipped", slog.String("path", it.Entry.Path), slog.String("reason", err.Error()))
			default:
				rep.Failed[it.Entry.Path] = err
				l.WarnContext(ctx, "pack failed", slog.String("path", it.Entry.Path), slog.String("format", f), slog.Any("err", err))
			}
		}
		if opt.Progress != nil {
			opt.Progress(n+1, len(items), it.Entry.Path)
		}
	}
	l.InfoContext(ctx, "batch done",
		slog.Int("written", len(rep.Written)),
		slog.Int("skipped", len(rep.Skipped)),
		slog.Int("failed", len(rep.Failed)))
	return rep, nil
}

func packOne(src, format, out string, opt PackOptions) (Result, error) {
	book, err := archive.Open(src)
	if err != nil {
		return Result{}, err
	}
	defer book.Close()
	if format == "epub" {
		return PackEPUB(book, out, opt)
	}
	return PackCBZ(book, out, opt)
}

// outputName turns a title into a file name that is unique within one batch.
func outputName(title string, seen map[string]int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, ". ")
	if name == "" {
		name = "book"
	}
	key := strings.ToLower(name)
	seen[key]++
	if n := seen[key]; n > 1 {
		name = fmt.Sprintf("%s (%d)", name, n)
	}
	return name
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetEbook:
		return []string{"epub"}
	case PresetAll:
		return []string{"cbz", "epub"}
	default:
		return []string{"cbz"}
	}
}
