// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/paper-intake/internal/container"
)

// Renderer returns the HTML of a page. Listings that build their content
// with scripts need the BrowserRenderer; everything else uses HTTP.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// HTTPRenderer returns the server's HTML as-is.
type HTTPRenderer struct {
	Fetcher Fetcher
}

// Render fetches url.
func (h HTTPRenderer) Render(ctx context.Context, url string) ([]byte, error) {
	return h.Fetcher.Fetch(ctx, url)
}

// browserArgs are passed to the headless Chromium entrypoint before the URL.
var browserArgs = []string{
	"--no-sandbox",
	"--headless",
	"--disable-gpu",
	"--virtual-time-budget=10000",
	"--dump-dom",
}

// browserTimeout bounds a page render, including container start-up.
var browserTimeout = 90 * time.Second

// BrowserRenderer runs a headless Chromium container and returns the DOM
// after scripts have executed.
type BrowserRenderer struct {
	Runtime container.Runtime
	Image   string
}

// NewBrowserRenderer verifies that image is present in rt.
func NewBrowserRenderer(rt container.Runtime, image string) (*BrowserRenderer, error) {
	if image == "" {
		return nil, errors.New("browser rendering needs discovery.browser_image")
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("browser image not available in %s: %w", rt.Name(), err)
	}
	return &BrowserRenderer{Runtime: rt, Image: image}, nil
}

// Render dumps the rendered DOM of url.
func (b *BrowserRenderer) Render(ctx context.Context, url string) ([]byte, error) {
	var out bytes.Buffer
	spec := container.RunSpec{
		Image:   b.Image,
		Flags:   []string{"--shm-size=1g"},
		Args:    append(append([]string{}, browserArgs...), url),
		Stdout:  &out,
		Timeout: browserTimeout,
	}
	if err := b.Runtime.Run(ctx, spec); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", url, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("rendering %s: browser produced empty output", url)
	}
	return out.Bytes(), nil
}
