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
	"path/filepath"
	"strings"
	"time"

	"mangashelf/internal/archive"
	"mangashelf/internal/library"
	"mangashelf/internal/reader"
)

var imageMediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".avif": "image/avif",
}

// PackEPUB writes the pages of book as an EPUB 3 fixed-layout package, one
// page image per spine item, the first page marked as the cover.
func PackEPUB(book archive.Book, outPath string, opt PackOptions) (Result, error) {
	if !strings.HasSuffix(strings.ToLower(outPath), ".epub") {
		outPath += ".epub"
	}
	pages := book.Pages()
	if len(pages) == 0 {
		return Result{}, archive.ErrNoPages
	}
	if opt.Language == "" {
		opt.Language = "ja"
	}
	title := opt.Meta.Title
	if title == "" {
		title = library.TitleOf(book.Path(), library.KindArchive)
	}

	out, err := createPackage(outPath, opt.Overwrite)
	if err != nil {
		return Result{}, err
	}
	fail := func(err error) (Result, error) {
		out.abort()
		return Result{}, err
	}

	// mimetype first, uncompressed
	if err := addStoredZipFile(out.zw, "mimetype", []byte("application/epub+zip")); err != nil {
		return fail(fmt.Errorf("write mimetype: %w", err))
	}
	containerXML := "" +
		"<?xml version=\"1.0\" encoding=\"utf-8\"?>\n" +
		"<container version=\"1.0\" xmlns=\"urn:oasis:names:tc:opendocument:xmlns:container\">\n" +
		"  <rootfiles>\n" +
		"    <rootfile full-path=\"OEBPS/content.opf\" media-type=\"application/oebps-package+xml\"/>\n" +
		"  </rootfiles>\n" +
		"</container>\n"
	if err := addZipFile(out.zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		return fail(fmt.Errorf("write container.xml: %w", err))
	}
	css := "html, body, .page { margin:0; padding:0; width:100%; height:100%; }\n" +
		"img { width:100%; height:100%; object-fit:contain; }\n" +
		"body { background:black; }\n"
	if err := addZipFile(out.zw, "OEBPS/styles/epub.css", []byte(css)); err != nil {
		return fail(fmt.Errorf("write css: %w", err))
	}

	pad := padWidth(len(pages))
	type item struct{ img, mediaType string }
	items := make([]item, 0, len(pages))
	nav := &bytes.Buffer{}
	nav.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	nav.WriteString("<html xmlns=\"http://www.w3.org/1999/xhtml\" xmlns:epub=\"http://www.idpf.org/2007/ops\">\n<head><title>Table of Contents</title></head>\n<body>\n")
	nav.WriteString("<nav epub:type=\"toc\" id=\"toc\"><ol>\n")
	for i, name := range pages {
		ext := strings.ToLower(filepath.Ext(name))
		mt, ok := imageMediaTypes[ext]
		if !ok {
			return fail(fmt.Errorf("page %s: %w", name, archive.ErrUnsupportedFormat))
		}
		data, err := book.ReadPage(i)
		if err != nil {
			return fail(fmt.Errorf("read page %s: %w", name, err))
		}
		img := fmt.Sprintf("images/page-%0*d%s", pad, i+1, ext)
		if err := addStoredZipFile(out.zw, "OEBPS/"+img, data); err != nil {
			return fail(fmt.Errorf("zip add image: %w", err))
		}
		pageXHTML := fmt.Sprintf("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"+
			"<html xmlns=\"http://www.w3.org/1999/xhtml\">\n<head>\n"+
			"<meta charset=\"utf-8\"/>\n"+
			"<meta name=\"viewport\" content=\"width=device-width, height=device-height\"/>\n"+
			"<title>Page %d</title>\n"+
			"<link rel=\"stylesheet\" type=\"text/css\" href=\"styles/epub.css\"/>\n"+
			"</head>\n<body>\n<div class=\"page\"><img src=\"%s\" alt=\"Page %d\"/></div>\n"+
			"</body>\n</html>\n", i+1, img, i+1)
		if err := addZipFile(out.zw, fmt.Sprintf("OEBPS/page-%0*d.xhtml", pad, i+1), []byte(pageXHTML)); err != nil {
			return fail(fmt.Errorf("write page xhtml: %w", err))
		}
		fmt.Fprintf(nav, "<li><a href=\"page-%0*d.xhtml\">Page %d</a></li>\n", pad, i+1, i+1)
		items = append(items, item{img: img, mediaType: mt})
	}
	nav.WriteString("</ol></nav>\n</body>\n</html>\n")
	if err := addZipFile(out.zw, "OEBPS/nav.xhtml", nav.Bytes()); err != nil {
		return fail(fmt.Errorf("write nav.xhtml: %w", err))
	}

	ppd := "ltr"
	if opt.Direction == reader.RTL {
		ppd = "rtl"
	}
	mod := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	uid := "urn:uuid:" + library.EntryID(book.Path())

	opf := &bytes.Buffer{}
	opf.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	opf.WriteString("<package version=\"3.0\" unique-identifier=\"pub-id\" xmlns=\"http://www.idpf.org/2007/opf\">\n")
	opf.WriteString("  <metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\" xmlns:opf=\"http://www.idpf.org/2007/opf\">\n")
	fmt.Fprintf(opf, "    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", uid)
	fmt.Fprintf(opf, "    <dc:title>%s</dc:title>\n", xmlEsc(title))
	fmt.Fprintf(opf, "    <dc:language>%s</dc:language>\n", xmlEsc(opt.Language))
	if a := strings.TrimSpace(opt.Meta.Author); a != "" {
		fmt.Fprintf(opf, "    <dc:creator>%s</dc:creator>\n", xmlEsc(a))
	}
	if p := strings.TrimSpace(opt.Meta.Publisher); p != "" {
		fmt.Fprintf(opf, "    <dc:publisher>%s</dc:publisher>\n", xmlEsc(p))
	}
	for _, tag := range opt.Meta.Tags {
		fmt.Fprintf(opf, "    <dc:subject>%s</dc:subject>\n", xmlEsc(tag))
	}
	if opt.Series != "" {
		opf.WriteString("    <meta property=\"belongs-to-collection\" id=\"series\">" + xmlEsc(opt.Series) + "</meta>\n")
		if opt.Number > 0 {
			fmt.Fprintf(opf, "    <meta refines=\"#series\" property=\"group-position\">%d</meta>\n", opt.Number)
		}
	}
	fmt.Fprintf(opf, "    <meta property=\"dcterms:modified\">%s</meta>\n", mod)
	opf.WriteString("    <meta property=\"rendition:layout\">pre-paginated</meta>\n")
	opf.WriteString("    <meta property=\"rendition:orientation\">auto</meta>\n")
	opf.WriteString("    <meta property=\"rendition:spread\">auto</meta>\n")
	opf.WriteString("  </metadata>\n")
	opf.WriteString("  <manifest>\n")
	opf.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	opf.WriteString("    <item id=\"css\" href=\"styles/epub.css\" media-type=\"text/css\"/>\n")
	for i, it := range items {
		props := ""
		if i == 0 {
			props = " properties=\"cover-image\""
		}
		fmt.Fprintf(opf, "    <item id=\"img-%0*d\" href=\"%s\" media-type=\"%s\"%s/>\n", pad, i+1, it.img, it.mediaType, props)
		fmt.Fprintf(opf, "    <item id=\"page-%0*d\" href=\"page-%0*d.xhtml\" media-type=\"application/xhtml+xml\"/>\n", pad, i+1, pad, i+1)
	}
	opf.WriteString("  </manifest>\n")
	fmt.Fprintf(opf, "  <spine page-progression-direction=\"%s\">\n", ppd)
	for i := range items {
		fmt.Fprintf(opf, "    <itemref idref=\"page-%0*d\"/>\n", pad, i+1)
	}
	opf.WriteString("  </spine>\n")
	opf.WriteString("</package>\n")
	if err := addZipFile(out.zw, "OEBPS/content.opf", opf.Bytes()); err != nil {
		return fail(fmt.Errorf("write content.opf: %w", err))
	}

	size, err := out.commit()
	if err != nil {
		return Result{}, err
	}
	return Result{Path: outPath, Pages: len(pages), Bytes: size}, nil
}
