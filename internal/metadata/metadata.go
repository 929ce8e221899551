/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package metadata holds per-book descriptive metadata, the search criteria
// evaluated against it, legacy JSON import and a product-page scraper.
package metadata

import (
	"strings"
)

// Category classifies a book. The zero value means uncategorized.
type Category string

const (
	CategoryNone      Category = ""
	CategoryManga     Category = "manga"
	CategoryNovel     Category = "novel"
	CategoryReference Category = "reference"
	CategoryOther     Category = "other"
	// CategoryUncategorized is accepted on input and matches books without a category.
	CategoryUncategorized Category = "uncategorized"
)

// Categories lists the selectable categories in display order.
var Categories = []Category{CategoryManga, CategoryNovel, CategoryReference, CategoryOther, CategoryUncategorized}

// ParseCategory maps free text onto a known category, or CategoryNone.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range Categories {
		if c == k {
			if k == CategoryUncategorized {
				return CategoryNone
			}
			return k
		}
	}
	return CategoryNone
}

// BookMetadata is user-editable metadata keyed by the book path.
type BookMetadata struct {
	Title     string   `json:"title" yaml:"title"`
	Author    string   `json:"author,omitempty" yaml:"author,omitempty"`
	Publisher string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Category  Category `json:"category,omitempty" yaml:"category,omitempty"`
	Tags      []string `json:"tags" yaml:"tags"`
}

// Normalized returns a copy with trimmed fields and deduplicated, non-empty tags.
func (m BookMetadata) Normalized() BookMetadata {
	out := BookMetadata{
		Title:     strings.TrimSpace(m.Title),
		Author:    strings.TrimSpace(m.Author),
		Publisher: strings.TrimSpace(m.Publisher),
		Category:  ParseCategory(string(m.Category)),
	}
	seen := map[string]bool{}
	for _, t := range m.Tags {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" || seen[k] {
			continue
		}
		seen[k] = true
		out.Tags = append(out.Tags, t)
	}
	return out
}

// IsZero reports whether no field carries information.
func (m BookMetadata) IsZero() bool {
	return m.Title == "" && m.Author == "" && m.Publisher == "" && m.Category == CategoryNone && len(m.Tags) == 0
}

// Mode combines the individual criteria.
type Mode string

const (
	ModeAnd Mode = "AND"
	ModeOr  Mode = "OR"
)

// Criteria is a book search. Text fields match case-insensitive substrings,
// Category matches exactly (CategoryUncategorized matches books without one).
// Under ModeAnd every tag must be present; under ModeOr any one suffices.
type Criteria struct {
	Title     string
	Author    string
	Publisher string
	Category  Category
	Tags      []string
	Mode      Mode
}

// Empty reports whether the criteria select everything.
func (c Criteria) Empty() bool {
	return norm(c.Title) == "" && norm(c.Author) == "" && norm(c.Publisher) == "" &&
		c.Category == CategoryNone && len(normTags(c.Tags)) == 0
}

// Match evaluates c against m.
func (c Criteria) Match(m BookMetadata) bool {
	title, author, publisher := norm(c.Title), norm(c.Author), norm(c.Publisher)
	want := normTags(c.Tags)
	have := normTags(m.Tags)

	hasTitle, hasAuthor, hasPublisher := title != "", author != "", publisher != ""
	hasCategory, hasTags := c.Category != CategoryNone, len(want) > 0

	okTitle := !hasTitle || strings.Contains(norm(m.Title), title)
	okAuthor := !hasAuthor || strings.Contains(norm(m.Author), author)
	okPublisher := !hasPublisher || strings.Contains(norm(m.Publisher), publisher)
	okCategory := !hasCategory || categoryMatches(c.Category, m.Category)

	if c.Mode != ModeOr {
		okTags := true
		for t := range want {
			if !have[t] {
				okTags = false
				break
			}
		}
		return okTitle && okAuthor && okPublisher && okCategory && okTags
	}

	if !hasTitle && !hasAuthor && !hasPublisher && !hasCategory && !hasTags {
		return true
	}
	anyTag := false
	for t := range want {
		if have[t] {
			anyTag = true
			break
		}
	}
	return (hasTitle && okTitle) || (hasAuthor && okAuthor) || (hasPublisher && okPublisher) ||
		(hasCategory && okCategory) || (hasTags && anyTag)
}

func categoryMatches(want, got Category) bool {
	if want == CategoryUncategorized {
		return got == CategoryNone || got == CategoryUncategorized
	}
	return want == got
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func normTags(tags []string) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t = norm(t); t != "" {
			out[t] = true
		}
	}
	return out
}
