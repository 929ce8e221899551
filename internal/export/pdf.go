/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"mangashelf/internal/gridlayout"
)

// CatalogItem is one cell of a contact sheet.
type CatalogItem struct {
	// Key identifies the book for the thumbnail source.
	Key      string
	Title    string
	Subtitle string
}

// ThumbSource returns the JPEG thumbnail of key, or nil data when there is none.
type ThumbSource func(key string) ([]byte, error)

// CatalogOptions controls contact sheet export. Units are points (pt).
type CatalogOptions struct {
	PageWidth     float64
	PageHeight    float64
	Margin        float64
	ItemWidth     float64
	CaptionHeight float64
	Title         string
	Overwrite     bool
}

func (o *CatalogOptions) defaults() {
	if o.PageWidth <= 0 || o.PageHeight <= 0 {
		// A4
		o.PageWidth, o.PageHeight = 595, 842
	}
	if o.Margin <= 0 {
		o.Margin = 36
	}
	if o.ItemWidth <= 0 {
		o.ItemWidth = 104
	}
	if o.CaptionHeight <= 0 {
		o.CaptionHeight = 22
	}
}

const (
	headerHeight = 24
	cellPad      = 4
)

// CatalogPDF writes a contact sheet of items: covers in a grid laid out with
// the same metrics the cover grid uses, titles below each cover. Items
// without a thumbnail get a grey box.
func CatalogPDF(items []CatalogItem, thumbs ThumbSource, outPath string, opt CatalogOptions) (Result, error) {
	opt.defaults()
	if !strings.HasSuffix(strings.ToLower(outPath), ".pdf") {
		outPath += ".pdf"
	}
	if _, err := os.Stat(outPath); err == nil && !opt.Overwrite {
		return Result{}, fmt.Errorf("%w: %s", ErrExists, outPath)
	}
	contentW := opt.PageWidth - 2*opt.Margin
	contentH := opt.PageHeight - 2*opt.Margin - headerHeight
	coverH := opt.ItemWidth * gridlayout.DefaultAspectRatio
	m, ok := gridlayout.Compute(contentW, gridlayout.Sizing{ItemWidth: opt.ItemWidth, ItemHeight: coverH + opt.CaptionHeight}, len(items))
	if !ok || contentH < m.ItemHeight {
		return Result{}, fmt.Errorf("page %gx%g pt too small for %g pt items", opt.PageWidth, opt.PageHeight, opt.ItemWidth)
	}
	perPage := int(math.Floor(contentH/m.ItemHeight)) * m.Columns
	// center the grid horizontally
	left := opt.Margin + (contentW-float64(m.Columns)*m.ItemWidth)/2
	top := opt.Margin + headerHeight

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: opt.PageWidth, Ht: opt.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	title := opt.Title
	if title == "" {
		title = "MangaShelf catalog"
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor("MangaShelf", false)
	// core fonts are cp1252; unmappable runes print as '?'
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pages := 0
	if len(items) > 0 {
		pages = (len(items) + perPage - 1) / perPage
	}

	imgOpt := gofpdf.ImageOptions{ImageType: "JPG"}
	for i, it := range items {
		local := i % perPage
		if local == 0 {
			pdf.AddPage()
			pdf.SetFont("Helvetica", "B", 12)
			pdf.SetTextColor(0, 0, 0)
			pdf.Text(opt.Margin, opt.Margin+12, tr(title))
			pdf.SetFont("Helvetica", "", 8)
			pdf.Text(opt.PageWidth-opt.Margin-40, opt.Margin+12, fmt.Sprintf("%d / %d", pdf.PageNo(), pages))
		}
		r := m.CellRect(local)
		x := left + r.X + cellPad
		y := top + r.Y + cellPad
		boxW := m.ItemWidth - 2*cellPad
		boxH := coverH - 2*cellPad

		var data []byte
		if thumbs != nil {
			var err error
			if data, err = thumbs(it.Key); err != nil {
				data = nil
			}
		}
		placed := false
		if len(data) > 0 {
			name := fmt.Sprintf("cover-%d", i)
			info := pdf.RegisterImageOptionsReader(name, imgOpt, bytes.NewReader(data))
			if pdf.Err() {
				// a broken thumbnail must not fail the sheet
				pdf.ClearError()
			} else if info != nil && info.Width() > 0 && info.Height() > 0 {
				w, h := fit(info.Width(), info.Height(), boxW, boxH)
				pdf.ImageOptions(name, x+(boxW-w)/2, y+(boxH-h), w, h, false, imgOpt, 0, "")
				placed = true
			}
		}
		if !placed {
			pdf.SetFillColor(200, 200, 204)
			pdf.Rect(x, y, boxW, boxH, "F")
		}

		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 7)
		pdf.Text(x, y+boxH+9, clip(pdf, tr(it.Title), boxW))
		if it.Subtitle != "" {
			pdf.SetTextColor(90, 90, 90)
			pdf.Text(x, y+boxH+17, clip(pdf, tr(it.Subtitle), boxW))
		}
	}
	if len(items) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Text(opt.Margin, opt.Margin+12, tr(title))
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return Result{}, fmt.Errorf("write pdf: %w", err)
	}
	st, err := os.Stat(outPath)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: outPath, Pages: max(pages, 1), Bytes: st.Size()}, nil
}

// fit scales w x h to fit inside maxW x maxH keeping the aspect ratio.
func fit(w, h, maxW, maxH float64) (float64, float64) {
	s := math.Min(maxW/w, maxH/h)
	return w * s, h * s
}

// clip shortens s with an ellipsis until it fits width at the current font.
func clip(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
