// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const maxSlugLen = 80

// paperPathPattern matches a paper page path: "/papers/2511.01234".
// Listing pages ("/papers/month/2025-11") have an extra segment and
// do not match.
var paperPathPattern = regexp.MustCompile(`^/papers/([^/]+)/?$`)

// listingLinkPattern selects listing anchors that point at an arXiv-id
// paper page, with or without a fragment ("#community").
var listingLinkPattern = regexp.MustCompile(`/papers/\d{4}\.\d{4,5}`)

// arxivVersion strips a trailing version: "2511.01234v2" -> "2511.01234".
var arxivVersion = regexp.MustCompile(`^(\d{4}\.\d{4,5})v\d+$`)

// safeID limits ids used as keys to filesystem-safe characters.
var safeID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// PaperID returns the paper id segment of a paper page URL, version
// suffix removed, or "" when the URL is not a paper page.
func PaperID(sourceURL string) string {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return ""
	}
	m := paperPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	id := m[1]
	if v := arxivVersion.FindStringSubmatch(id); v != nil {
		id = v[1]
	}
	if !safeID.MatchString(id) || strings.Trim(id, ".") == "" {
		return ""
	}
	return id
}

// Key derives the stable identity of a paper. The page id wins; a title
// slug is used when the URL carries no id, and a URL hash when the title
// has nothing sluggable either. Titles never change an id-based key.
func Key(sourceURL, title string) string {
	if id := PaperID(sourceURL); id != "" {
		return id
	}
	if s := Slugify(title); s != "" {
		return s
	}
	return urlHashSlug(sourceURL)
}

// Slugify lowercases s and joins its alphanumeric runs with hyphens,
// truncated to 80 characters.
func Slugify(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// PDFURL returns the download URL for a paper id.
func PDFURL(pdfBase, id string) string {
	if id == "" {
		return ""
	}
	if !strings.HasSuffix(pdfBase, "/") {
		pdfBase += "/"
	}
	return pdfBase + id
}

func urlHashSlug(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("url-%x", h[:8])
}

// ParseMonth validates a YYYY-MM month string and returns it normalised.
func ParseMonth(s string) (string, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return t.Format("2006-01"), nil
}

// CurrentMonth returns the YYYY-MM month containing now.
func CurrentMonth(now time.Time) string {
	return now.Format("2006-01")
}
