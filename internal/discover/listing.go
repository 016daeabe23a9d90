// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-intake/pkg/types"
)

// ParseListing extracts paper references from a month listing page, in page
// order. Links without a usable title are ignored, and a paper linked
// several times (thumbnail, title, comments) yields one reference.
func ParseListing(r io.Reader, month string, cfg types.DiscoveryConfig) ([]types.PaperReference, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing listing HTML: %w", err)
	}

	base, err := url.Parse(cfg.SiteBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing site base URL %q: %w", cfg.SiteBaseURL, err)
	}

	var refs []types.PaperReference
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !listingLinkPattern.MatchString(href) {
			return
		}
		link, err := base.Parse(href)
		if err != nil {
			return
		}
		link.RawQuery = ""
		link.Fragment = ""
		sourceURL := link.String()

		id := PaperID(sourceURL)
		if id == "" || seen[id] {
			return
		}

		title := linkTitle(a)
		if len(title) < cfg.MinTitleLength {
			return
		}
		seen[id] = true

		refs = append(refs, types.PaperReference{
			Key:       Key(sourceURL, title),
			Title:     title,
			SourceURL: sourceURL,
			PDFURL:    PDFURL(cfg.PDFBaseURL, id),
			Month:     month,
			Position:  len(refs),
		})
	})

	return refs, nil
}

// linkTitle is the anchor text, or the first heading of its parent when the
// anchor wraps only an image.
func linkTitle(a *goquery.Selection) string {
	if t := cleanText(a.Text()); t != "" {
		return t
	}
	return cleanText(a.Parent().Find("h1, h2, h3, h4").First().Text())
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
