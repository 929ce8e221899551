/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gridlayout

import "math"

const (
	// DefaultColumnsDivisor derives the item width from the viewport width when
	// Sizing.ItemWidth is unset: itemWidth = viewportWidth / DefaultColumnsDivisor.
	DefaultColumnsDivisor = 5.0
	// DefaultAspectRatio derives the item height from the item width when
	// Sizing.ItemHeight is unset (portrait cover).
	DefaultAspectRatio = 1.35
	// maxColumns bounds the column count for vanishing item widths.
	maxColumns = float64(1 << 30)
)

// Size is a width/height pair in host units (pixels, terminal cells, points).
type Size struct {
	Width  float64
	Height float64
}

// Rect is a placement rectangle in viewport space.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Sizing holds the nominal item size. Zero or negative fields fall back to
// the defaults derived from the viewport width.
type Sizing struct {
	ItemWidth  float64 `yaml:"item_width"`
	ItemHeight float64 `yaml:"item_height"`
}

// Metrics is the derived grid geometry for one measure pass.
type Metrics struct {
	Columns      int
	ItemWidth    float64
	ItemHeight   float64
	Rows         int
	ExtentHeight float64
}

// Compute derives grid metrics from the viewport width, the nominal sizing and
// the item count. It reports false for degenerate geometry (non-positive or
// non-finite widths), in which case the returned Metrics must be ignored.
func Compute(viewportWidth float64, sizing Sizing, itemCount int) (Metrics, bool) {
	if !finitePositive(viewportWidth) {
		return Metrics{}, false
	}
	w := sizing.ItemWidth
	if w <= 0 || math.IsNaN(w) {
		w = viewportWidth / DefaultColumnsDivisor
	}
	if !finitePositive(w) {
		return Metrics{}, false
	}
	h := sizing.ItemHeight
	if h <= 0 || math.IsNaN(h) {
		h = w * DefaultAspectRatio
	}
	if !finitePositive(h) {
		return Metrics{}, false
	}
	cols := int(min(math.Floor(viewportWidth/w), maxColumns))
	if cols < 1 {
		cols = 1
	}
	if itemCount < 0 {
		itemCount = 0
	}
	rows := 0
	if itemCount > 0 {
		rows = (itemCount + cols - 1) / cols
	}
	return Metrics{
		Columns:      cols,
		ItemWidth:    w,
		ItemHeight:   h,
		Rows:         rows,
		ExtentHeight: float64(rows) * h,
	}, true
}

// RowOf returns the zero-based row containing index.
func (m Metrics) RowOf(index int) int {
	if m.Columns < 1 || index < 0 {
		return 0
	}
	return index / m.Columns
}

// CellRect returns the document-space rectangle of index (offset not applied).
func (m Metrics) CellRect(index int) Rect {
	cols := m.Columns
	if cols < 1 {
		cols = 1
	}
	row := index / cols
	col := index % cols
	return Rect{
		X:      float64(col) * m.ItemWidth,
		Y:      float64(row) * m.ItemHeight,
		Width:  m.ItemWidth,
		Height: m.ItemHeight,
	}
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
