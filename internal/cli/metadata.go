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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mangashelf/internal/metadata"
	"mangashelf/internal/shelf"
)

func (c *CLI) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-metadata <file.json>",
		Short: "Import a metadata and progress document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			doc, err := metadata.ImportJSON(f)
			if err != nil {
				return err
			}
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			n, err := s.DB.ImportDocument(ctx, doc)
			if err != nil {
				return fmt.Errorf("import after %d books: %w", n, err)
			}
			if err := s.Load(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "imported metadata of %d books and %d reading positions\n", n, len(doc.Progress))
			return err
		},
	}
}

func (c *CLI) scrapeCommand() *cobra.Command {
	var (
		id      string
		dryRun  bool
		missing bool
	)
	cmd := &cobra.Command{
		Use:   "scrape [book...]",
		Short: "Fill book metadata from the store page of its product ID",
		Long: "scrape reads the product ID (e.g. RJ01234567) from each book's file name, " +
			"fetches the product page and stores title, author, publisher and tags.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if id != "" && len(args) != 1 {
				return errors.New("--id needs exactly one book")
			}
			if !missing && len(args) == 0 {
				return errors.New("name at least one book or use --missing")
			}
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			paths := make([]string, 0, len(args))
			for _, a := range args {
				p, err := filepath.Abs(a)
				if err != nil {
					return err
				}
				paths = append(paths, p)
			}
			if missing {
				for _, it := range s.Catalog.Items() {
					if it.Meta.IsZero() {
						paths = append(paths, it.Entry.Path)
					}
				}
			}
			sc := metadata.NewScraper(c.cfg.Metadata.BaseURL, c.cfg.Metadata.Timeout())
			var failed int
			for _, p := range paths {
				if err := c.scrapeOne(ctx, s, sc, p, id, dryRun); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed++
					c.log.Warn("scrape failed", slog.String("path", p), slog.Any("err", err))
					fmt.Fprintf(c.errOut, "%s: %v\n", filepath.Base(p), err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d books failed", failed, len(paths))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "product ID to use instead of the one in the file name")
	f.BoolVar(&dryRun, "dry-run", false, "print the metadata without storing it")
	f.BoolVar(&missing, "missing", false, "scrape every book without stored metadata")
	return cmd
}

func (c *CLI) scrapeOne(ctx context.Context, s *shelf.Shelf, sc *metadata.Scraper, path, id string, dryRun bool) error {
	if id == "" {
		var ok bool
		if id, ok = metadata.ProductID(filepath.Base(path)); !ok {
			return errors.New("no product ID in the file name")
		}
	}
	found, err := sc.Lookup(ctx, id)
	if err != nil {
		return err
	}
	cur, _, err := s.DB.GetMetadata(ctx, path)
	if err != nil {
		return err
	}
	m := mergeScraped(cur, found)
	if !dryRun {
		if err := s.SetMetadata(ctx, path, m); err != nil {
			return err
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "%s %s %s\n", id, filepath.Base(path), b)
	return err
}

// mergeScraped fills the empty fields of cur from found; stored values win.
func mergeScraped(cur, found metadata.BookMetadata) metadata.BookMetadata {
	if cur.Title == "" {
		cur.Title = found.Title
	}
	if cur.Author == "" {
		cur.Author = found.Author
	}
	if cur.Publisher == "" {
		cur.Publisher = found.Publisher
	}
	if cur.Category == metadata.CategoryNone {
		cur.Category = found.Category
	}
	if len(cur.Tags) == 0 {
		cur.Tags = found.Tags
	}
	return cur.Normalized()
}
