/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "mangashelf/internal/log"
)

// ErrNotDir is returned when the library root is missing or not a directory.
var ErrNotDir = errors.New("library root is not a directory")

// ThumbnailDirName is skipped while scanning; it holds generated covers.
const ThumbnailDirName = "thumbnail"

// ScanOptions tunes Scan.
type ScanOptions struct {
	// Exclude drops these paths and everything below them.
	Exclude []string
	// LeafFolders reports each deepest folder that directly holds images as
	// one book instead of listing the images.
	LeafFolders bool
}

// ScanResult is the outcome of one scan run.
type ScanResult struct {
	ID       string
	Root     string
	Entries  []Entry
	Skipped  int
	Duration time.Duration
}

type dirInfo struct {
	images    bool
	hasLeaf   bool
	size      int64
	mod       time.Time
	imageList []string
}

// Scan walks root and returns the books it finds in natural title order.
// Unreadable subdirectories are logged and skipped; cancellation of ctx
// aborts the walk.
func Scan(ctx context.Context, root string, opts ScanOptions) (ScanResult, error) {
	start := time.Now()
	res := ScanResult{ID: uuid.NewString(), Root: root}
	l := applog.WithOperation(applog.WithComponent("library"), "scan").With(
		slog.String("root", root), slog.String("scan_id", res.ID))

	st, err := os.Stat(root)
	if err != nil || !st.IsDir() {
		return res, fmt.Errorf("%w: %s", ErrNotDir, root)
	}
	excluded := make(map[string]bool, len(opts.Exclude))
	for _, p := range opts.Exclude {
		if p = strings.TrimSpace(p); p != "" {
			excluded[filepath.Clean(p)] = true
		}
	}

	dirs := map[string]*dirInfo{}
	var files []Entry
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			l.WarnContext(ctx, "scan skip", slog.String("path", path), slog.Any("err", err))
			res.Skipped++
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if excluded[filepath.Clean(path)] {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && (d.Name() == ThumbnailDirName || strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			dirs[path] = &dirInfo{}
			return nil
		}
		kind, ok := KindOf(d.Name())
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			res.Skipped++
			return nil
		}
		if kind == KindImage {
			if isSidecarCover(path) {
				return nil
			}
			if di := dirs[filepath.Dir(path)]; di != nil {
				di.images = true
				di.size += info.Size()
				if info.ModTime().After(di.mod) {
					di.mod = info.ModTime()
				}
			}
			if opts.LeafFolders {
				return nil
			}
		}
		files = append(files, Entry{
			ID:      EntryID(path),
			Path:    path,
			Title:   TitleOf(path, kind),
			Kind:    kind,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("scan %s: %w", root, walkErr)
	}

	if opts.LeafFolders {
		files = append(files, leafFolders(root, dirs)...)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Title != files[j].Title {
			return NaturalLess(files[i].Title, files[j].Title)
		}
		return NaturalLess(files[i].Path, files[j].Path)
	})
	res.Entries = files
	res.Duration = time.Since(start)
	l.InfoContext(ctx, "scan complete", slog.Int("entries", len(files)), slog.Int("skipped", res.Skipped), slog.Duration("took", res.Duration))
	return res, nil
}

// leafFolders returns folder entries for directories that hold images and
// have no such descendant. Deepest directories are resolved first so the
// flag propagates upwards.
func leafFolders(root string, dirs map[string]*dirInfo) []Entry {
	paths := make([]string, 0, len(dirs))
	for p := range dirs {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return len(paths[i]) > len(paths[j]) })
	var out []Entry
	for _, p := range paths {
		di := dirs[p]
		if di.images && !di.hasLeaf && p != root {
			out = append(out, Entry{
				ID:      EntryID(p),
				Path:    p,
				Title:   TitleOf(p, KindFolder),
				Kind:    KindFolder,
				Size:    di.size,
				ModTime: di.mod,
			})
		}
		if (di.images || di.hasLeaf) && p != root {
			if parent := dirs[filepath.Dir(p)]; parent != nil {
				parent.hasLeaf = true
			}
		}
	}
	return out
}

// isSidecarCover reports whether an image sits next to an archive with the same base name.
func isSidecarCover(path string) bool {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for ext := range archiveExts {
		if _, err := os.Stat(base + ext); err == nil {
			return true
		}
	}
	return false
}
