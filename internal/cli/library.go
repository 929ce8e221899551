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
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"mangashelf/internal/metadata"
)

func (c *CLI) scanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [root]",
		Short: "Scan the library folder and store the entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			res, err := s.Rescan(cmd.Context(), root)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "%d books in %s (%d files skipped, %s)\n",
				len(res.Entries), res.Root, res.Skipped, res.Duration.Round(1e6))
			return err
		},
	}
}

type listedBook struct {
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	Kind      string   `json:"kind"`
	Author    string   `json:"author,omitempty"`
	Publisher string   `json:"publisher,omitempty"`
	Category  string   `json:"category,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Page      int      `json:"page,omitempty"`
	Pages     int      `json:"pages,omitempty"`
}

func (c *CLI) listCommand() *cobra.Command {
	var query string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the books of the last scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			items := filtered(s, query)
			books := make([]listedBook, 0, len(items))
			for _, it := range items {
				m := it.Effective()
				b := listedBook{
					Path:      it.Entry.Path,
					Title:     m.Title,
					Kind:      string(it.Entry.Kind),
					Author:    m.Author,
					Publisher: m.Publisher,
					Category:  string(m.Category),
					Tags:      m.Tags,
				}
				b.Page, b.Pages, _ = s.ProgressOf(ctx, it.Entry.Path)
				books = append(books, b)
			}
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(books)
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("#", "TITLE", "AUTHOR", "KIND", "PROGRESS", "FILE")
			for i, b := range books {
				progress := ""
				if b.Pages > 0 {
					progress = fmt.Sprintf("%d/%d", b.Page+1, b.Pages)
				}
				t.Row(strconv.Itoa(i+1), b.Title, b.Author, b.Kind, progress, filepath.Base(b.Path))
			}
			_, err = fmt.Fprintf(c.out, "%s\n%d of %d books\n", t.Render(), len(books), s.Catalog.Total())
			return err
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "only books whose title, author or tag contains this")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *CLI) metaCommand() *cobra.Command {
	var m metadata.BookMetadata
	var category string
	var clear bool
	cmd := &cobra.Command{
		Use:   "meta <book>",
		Short: "Show or edit the metadata of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			cur, _, err := s.DB.GetMetadata(ctx, path)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			changed := clear
			if clear {
				cur = metadata.BookMetadata{}
			}
			if f.Changed("title") {
				cur.Title, changed = m.Title, true
			}
			if f.Changed("author") {
				cur.Author, changed = m.Author, true
			}
			if f.Changed("publisher") {
				cur.Publisher, changed = m.Publisher, true
			}
			if f.Changed("category") {
				cur.Category, changed = metadata.ParseCategory(category), true
			}
			if f.Changed("tag") {
				cur.Tags, changed = m.Tags, true
			}
			if changed {
				if err := s.SetMetadata(ctx, path, cur); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(cur.Normalized())
		},
	}
	f := cmd.Flags()
	f.StringVar(&m.Title, "title", "", "set the title")
	f.StringVar(&m.Author, "author", "", "set the author")
	f.StringVar(&m.Publisher, "publisher", "", "set the publisher")
	f.StringVar(&category, "category", "", "set the category")
	f.StringSliceVar(&m.Tags, "tag", nil, "set the tags (repeatable)")
	f.BoolVar(&clear, "clear", false, "remove all metadata first")
	return cmd
}
