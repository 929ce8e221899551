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
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mangashelf/internal/archive"
	"mangashelf/internal/export"
	"mangashelf/internal/reader"
	"mangashelf/internal/thumbs"
)

func (c *CLI) packCommand() *cobra.Command {
	var (
		format    string
		rtl       bool
		overwrite bool
		all       bool
		preset    string
		outDir    string
		query     string
		language  string
	)
	cmd := &cobra.Command{
		Use:   "pack [book] [out]",
		Short: "Repack a book (or the whole library with --all) as CBZ or EPUB",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := reader.LTR
			if rtl {
				dir = reader.RTL
			}
			if all {
				if len(args) > 0 {
					return errors.New("--all takes no book argument")
				}
				return c.packAll(cmd.Context(), preset, outDir, query, dir, language, overwrite)
			}
			if len(args) == 0 {
				return errors.New("a book path is required (or --all)")
			}
			return c.packBook(cmd.Context(), args, format, dir, language, overwrite)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "cbz", "output format: cbz or epub")
	f.BoolVar(&rtl, "rtl", true, "right-to-left page progression")
	f.BoolVar(&overwrite, "overwrite", false, "replace existing output files")
	f.BoolVar(&all, "all", false, "pack every book of the library")
	f.StringVar(&preset, "preset", "reader", "batch preset: reader, ebook or all")
	f.StringVarP(&outDir, "out", "o", "export", "batch output directory")
	f.StringVarP(&query, "query", "q", "", "batch: only books whose title, author or tag contains this")
	f.StringVar(&language, "lang", "ja", "content language")
	return cmd
}

func (c *CLI) packBook(ctx context.Context, args []string, format string, dir reader.Direction, lang string, overwrite bool) error {
	src, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format != "cbz" && format != "epub" {
		return fmt.Errorf("unknown format: %s", format)
	}
	out := strings.TrimSuffix(src, filepath.Ext(src)) + "." + format
	if len(args) == 2 {
		out = args[1]
	}
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	meta, _, err := s.DB.GetMetadata(ctx, src)
	if err != nil {
		return err
	}
	book, err := archive.Open(src)
	if err != nil {
		return err
	}
	defer book.Close()
	opt := export.PackOptions{Meta: meta, Direction: dir, Language: lang, Overwrite: overwrite}
	var res export.Result
	if format == "epub" {
		res, err = export.PackEPUB(book, out, opt)
	} else {
		res, err = export.PackCBZ(book, out, opt)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "%s: %d pages, %d bytes\n", res.Path, res.Pages, res.Bytes)
	return err
}

func (c *CLI) packAll(ctx context.Context, preset, outDir, query string, dir reader.Direction, lang string, overwrite bool) error {
	p, err := export.ParsePreset(preset)
	if err != nil {
		return err
	}
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	rep, err := export.PackBatch(ctx, filtered(s, query), export.BatchOptions{
		Preset:    p,
		OutDir:    outDir,
		Direction: dir,
		Language:  lang,
		Overwrite: overwrite,
		Progress: func(done, total int, path string) {
			fmt.Fprintf(c.errOut, "[%d/%d] %s\n", done, total, filepath.Base(path))
		},
	})
	if err != nil {
		return err
	}
	for path, ferr := range rep.Failed {
		fmt.Fprintf(c.errOut, "failed: %s: %v\n", path, ferr)
	}
	_, err = fmt.Fprintf(c.out, "%d written, %d skipped, %d failed\n", len(rep.Written), len(rep.Skipped), len(rep.Failed))
	if err == nil && len(rep.Failed) > 0 {
		err = fmt.Errorf("%d books failed", len(rep.Failed))
	}
	return err
}

func (c *CLI) catalogCommand() *cobra.Command {
	var (
		title     string
		query     string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "catalog <out.pdf>",
		Short: "Print the library as a PDF contact sheet of covers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			items := filtered(s, query)
			cat := make([]export.CatalogItem, 0, len(items))
			for _, it := range items {
				m := it.Effective()
				cat = append(cat, export.CatalogItem{Key: it.Entry.Path, Title: m.Title, Subtitle: m.Author})
			}
			width := c.cfg.Thumbs.Width
			load := thumbs.CoverLoader(width)
			res, err := export.CatalogPDF(cat, func(key string) ([]byte, error) {
				return s.DB.GetOrCreatePreview(ctx, key, width, func(ctx context.Context) ([]byte, error) {
					raw, err := load(ctx, key)
					if err != nil {
						return nil, err
					}
					return thumbs.Generate(raw, width)
				})
			}, args[0], export.CatalogOptions{Title: title, Overwrite: overwrite})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "%s: %d books on %d pages\n", res.Path, len(cat), res.Pages)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "MangaShelf", "page header")
	f.StringVarP(&query, "query", "q", "", "only books whose title, author or tag contains this")
	f.BoolVar(&overwrite, "overwrite", false, "replace an existing file")
	return cmd
}
