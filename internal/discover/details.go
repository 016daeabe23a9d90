// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-intake/pkg/types"
)

// Fetcher retrieves a document body. *download.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resolver scrapes a paper's own page for its arXiv link, code repository
// and abstract.
type Resolver struct {
	fetcher Fetcher
}

// NewResolver creates a Resolver that fetches pages with f.
func NewResolver(f Fetcher) *Resolver {
	return &Resolver{fetcher: f}
}

// Resolve fetches ref's source page and parses it. Missing fields are left
// empty; only a fetch or parse failure is an error.
func (r *Resolver) Resolve(ctx context.Context, ref types.PaperReference) (types.PaperDetails, error) {
	page, err := r.fetcher.Fetch(ctx, ref.SourceURL)
	if err != nil {
		return types.PaperDetails{}, fmt.Errorf("fetching details for %s: %w", ref.Key, err)
	}
	d, err := ParseDetails(bytes.NewReader(page))
	if err != nil {
		return types.PaperDetails{}, fmt.Errorf("parsing details for %s: %w", ref.Key, err)
	}
	return d, nil
}

// ParseDetails extracts the first arXiv link, the first GitHub link, and
// the abstract from a paper page.
func ParseDetails(r io.Reader) (types.PaperDetails, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return types.PaperDetails{}, err
	}

	var d types.PaperDetails

	doc.Find(`a[href*="arxiv.org/abs"], a[href*="arxiv.org/pdf"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		d.ArxivURL = href
		d.PDFURL = strings.Replace(href, "/abs/", "/pdf/", 1)
		return false
	})

	if href, ok := doc.Find(`a[href*="github.com"]`).First().Attr("href"); ok {
		d.RepoURL = href
	}

	d.Abstract = findAbstract(doc)
	return d, nil
}

// findAbstract tries, in order: an element whose class mentions
// "abstract", the paragraph after an "Abstract" heading, and the page's
// og:description.
func findAbstract(doc *goquery.Document) string {
	if t := cleanText(doc.Find(`div[class*="abstract"], p[class*="abstract"]`).First().Text()); t != "" {
		return t
	}

	var abstract string
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !strings.EqualFold(cleanText(h.Text()), "abstract") {
			return true
		}
		abstract = cleanText(h.NextAllFiltered("p, div").First().Text())
		return abstract == ""
	})
	if abstract != "" {
		return abstract
	}

	if content, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		return cleanText(content)
	}
	return ""
}
