/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package reader implements page navigation for single and double page
// views and ties an open book to its persisted reading position.
package reader

import "strings"

// ViewMode is the number of pages shown at once.
type ViewMode string

const (
	ViewSingle ViewMode = "single"
	ViewDouble ViewMode = "double"
)

// ParseViewMode maps text onto a view mode, defaulting to ViewSingle.
func ParseViewMode(s string) ViewMode {
	if strings.EqualFold(strings.TrimSpace(s), string(ViewDouble)) {
		return ViewDouble
	}
	return ViewSingle
}

// Direction is the reading direction.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// ParseDirection maps text onto a direction, defaulting to RTL.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(LTR)) {
		return LTR
	}
	return RTL
}

// DisplayPages returns the page indices shown for current, in left-to-right
// screen order. In double view the cover stands alone and spreads pair an odd
// page with the following even page; a trailing odd page stands alone. Out of
// range pages show nothing.
func DisplayPages(current int, mode ViewMode, total int, dir Direction) []int {
	if current < 0 || current >= total {
		return nil
	}
	if mode != ViewDouble {
		return []int{current}
	}
	if current == 0 {
		return []int{0}
	}
	first := SpreadStart(current, mode)
	if first+1 >= total {
		return []int{first}
	}
	if dir == RTL {
		return []int{first + 1, first}
	}
	return []int{first, first + 1}
}

// SpreadStart returns the first page of the spread holding page.
func SpreadStart(page int, mode ViewMode) int {
	if mode != ViewDouble || page <= 0 || page%2 == 1 {
		return max(page, 0)
	}
	return page - 1
}

// Next returns the page after the spread holding current. Past the last page
// it wraps to the cover.
func Next(current int, mode ViewMode, total int) int {
	if total <= 0 || current >= total-1 {
		return 0
	}
	if mode != ViewDouble {
		return current + 1
	}
	if current <= 0 {
		return 1
	}
	next := SpreadStart(current, mode) + 2
	if next > total-1 {
		// the spread already showed the last page
		return 0
	}
	return next
}

// Prev returns the first page of the spread before the one holding current.
// It stays on the cover.
func Prev(current int, mode ViewMode) int {
	if current <= 0 {
		return 0
	}
	if mode != ViewDouble {
		return current - 1
	}
	start := SpreadStart(current, mode)
	if start <= 1 {
		return 0
	}
	return start - 2
}
