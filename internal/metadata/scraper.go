/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	applog "mangashelf/internal/log"
)

// ErrNotFound is returned when no product matches the requested ID.
var ErrNotFound = errors.New("product not found")

var productIDRe = regexp.MustCompile(`(?i)(?:^|[^a-z])((?:rj|re|bj|vj)\d{6,8})(?:\D|$)`)

// ProductID extracts a store product ID (e.g. RJ01235121) from a file or folder name.
func ProductID(name string) (string, bool) {
	m := productIDRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// Scraper looks up product pages on a DLsite-like store.
type Scraper struct {
	BaseURL    string
	Client     *http.Client
	MaxElapsed time.Duration
	log        *slog.Logger
}

// NewScraper returns a scraper for baseURL using timeout per request.
func NewScraper(baseURL string, timeout time.Duration) *Scraper {
	return &Scraper{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     &http.Client{Timeout: timeout},
		MaxElapsed: 20 * time.Second,
		log:        applog.WithComponent("scraper"),
	}
}

// Lookup fetches the product page for id and extracts metadata. When the
// direct page is missing it falls back to the keyword search.
func (s *Scraper) Lookup(ctx context.Context, id string) (BookMetadata, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !productIDRe.MatchString(id) {
		return BookMetadata{}, fmt.Errorf("malformed product id %q", id)
	}
	l := applog.WithOperation(s.log, "lookup").With(slog.String("id", id))

	doc, err := s.fetch(ctx, s.BaseURL+"/maniax/work/=/product_id/"+id+".html")
	if errors.Is(err, ErrNotFound) {
		l.Debug("product page missing, trying search")
		href, serr := s.search(ctx, id)
		if serr != nil {
			return BookMetadata{}, serr
		}
		doc, err = s.fetch(ctx, href)
	}
	if err != nil {
		return BookMetadata{}, err
	}
	meta := parseProduct(doc)
	if meta.Title == "" {
		return BookMetadata{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	l.Info("product scraped", slog.String("title", meta.Title), slog.Int("tags", len(meta.Tags)))
	return meta, nil
}

func (s *Scraper) search(ctx context.Context, id string) (string, error) {
	doc, err := s.fetch(ctx, s.BaseURL+"/maniax/fsr/=/language/jp/keyword/"+url.PathEscape(id))
	if err != nil {
		return "", err
	}
	var href string
	doc.Find(`a[href*="/product_id/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if strings.Contains(strings.ToUpper(h), id) {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if strings.HasPrefix(href, "/") {
		href = s.BaseURL + href
	}
	return href, nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("invalid URL %q: %w", rawURL, err))
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		req.Header.Set("Accept-Language", "ja,en;q=0.8")
		// age gate
		req.AddCookie(&http.Cookie{Name: "adultchecked", Value: "1"})

		resp, err := s.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode))
		}
		const maxBytes = 4 << 20
		d, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBytes))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("parse HTML: %w", err))
		}
		doc = d
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = s.MaxElapsed
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		s.log.Warn("scrape retry", slog.Any("err", err), slog.Duration("next", next))
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func parseProduct(doc *goquery.Document) BookMetadata {
	text := func(sel string) string {
		return strings.Join(strings.Fields(doc.Find(sel).First().Text()), " ")
	}
	m := BookMetadata{
		Title:  text("#work_name"),
		Author: text("span.maker_name a"),
	}
	if m.Title == "" {
		m.Title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	}
	doc.Find("#work_outline tr").Each(func(_ int, tr *goquery.Selection) {
		head := strings.TrimSpace(tr.Find("th").Text())
		val := strings.Join(strings.Fields(tr.Find("td").Text()), " ")
		switch head {
		case "作者", "著者", "Author":
			if val != "" {
				m.Author = val
			}
		case "出版社名", "Publisher":
			m.Publisher = val
		}
	})
	doc.Find("div.main_genre a").Each(func(_ int, a *goquery.Selection) {
		if t := strings.TrimSpace(a.Text()); t != "" {
			m.Tags = append(m.Tags, t)
		}
	})
	return m.Normalized()
}
