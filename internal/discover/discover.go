// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover finds the papers listed for a month on the aggregation
// site and resolves per-paper details from their pages.
package discover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/paper-intake/pkg/types"
)

// Discoverer lists the papers of a month.
type Discoverer struct {
	renderer Renderer
	cfg      types.DiscoveryConfig
	w        io.Writer
}

// New creates a Discoverer. Progress lines and hints go to w.
func New(r Renderer, cfg types.DiscoveryConfig, w io.Writer) *Discoverer {
	if w == nil {
		w = io.Discard
	}
	return &Discoverer{renderer: r, cfg: cfg, w: w}
}

// ListingURL expands the listing template for month.
func ListingURL(template, month string) string {
	return strings.ReplaceAll(template, "{month}", month)
}

// Discover fetches and parses the listing for month. An empty result is not
// an error; a failed fetch is.
func (d *Discoverer) Discover(ctx context.Context, month string) ([]types.PaperReference, error) {
	url := ListingURL(d.cfg.ListingURL, month)
	fmt.Fprintf(d.w, "fetching listing: %s\n", url)

	page, err := d.renderer.Render(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching listing for %s: %w", month, err)
	}

	refs, err := ParseListing(bytes.NewReader(page), month, d.cfg)
	if err != nil {
		return nil, fmt.Errorf("listing for %s: %w", month, err)
	}

	if len(refs) == 0 {
		fmt.Fprintf(d.w, "  warning: no paper links found on %s\n", url)
		if !d.cfg.UseBrowser {
			fmt.Fprintf(d.w, "  the page may need script execution; try --use-browser\n")
		}
	}
	fmt.Fprintf(d.w, "found %d papers\n", len(refs))
	return refs, nil
}
