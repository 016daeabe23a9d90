// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pdiddy/paper-intake/internal/container"
	"github.com/pdiddy/paper-intake/internal/convert"
	"github.com/pdiddy/paper-intake/internal/discover"
	"github.com/pdiddy/paper-intake/internal/download"
	"github.com/pdiddy/paper-intake/internal/index"
	"github.com/pdiddy/paper-intake/internal/tracker"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// openStore loads the tracker. Corruption is reported with a hint, since
// nothing can be processed until the file is repaired or moved aside.
func openStore() (*tracker.FileStore, error) {
	path := cfg.Storage.Path(cfg.Storage.TrackerFile)
	store, err := tracker.Open(path)
	if err != nil {
		if errors.Is(err, tracker.ErrStoreCorruption) {
			return nil, fmt.Errorf("%w (repair or move the file aside to start over)", err)
		}
		return nil, err
	}
	return store, nil
}

// newDiscoverer builds the listing discoverer, rendering pages in a browser
// container when useBrowser is set.
func newDiscoverer(fetcher *download.Fetcher, useBrowser bool, w io.Writer) (*discover.Discoverer, error) {
	dc := cfg.Discovery
	dc.UseBrowser = dc.UseBrowser || useBrowser

	var r discover.Renderer = discover.HTTPRenderer{Fetcher: fetcher}
	if dc.UseBrowser {
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, fmt.Errorf("browser rendering: %w", err)
		}
		br, err := discover.NewBrowserRenderer(rt, dc.BrowserImage)
		if err != nil {
			return nil, err
		}
		r = br
	}
	return discover.New(r, dc, w), nil
}

// newPageFetcher fetches HTML pages with the shared retry settings.
func newPageFetcher(opts ...download.Option) *download.Fetcher {
	opts = append(opts, download.WithAccept("text/html,application/xhtml+xml"))
	return download.New(cfg.Download, cfg.HTTP, opts...)
}

// newExtractor selects the PDF text backend. Only markitdown needs a
// container runtime.
func newExtractor() (convert.Extractor, error) {
	var rt container.Runtime
	if cfg.Extraction.Backend == types.BackendMarkitdown {
		r, err := container.DetectRuntime()
		if err != nil {
			return nil, fmt.Errorf("markitdown extraction: %w", err)
		}
		rt = r
	}
	return convert.New(cfg.Extraction, rt)
}

// newMaintainer returns the index maintainer with the catalog attached when
// it can be opened. The caller closes the catalog.
func newMaintainer() *index.Maintainer {
	m := &index.Maintainer{
		Path: cfg.Storage.Path(cfg.Storage.IndexFile),
		Resolve: func(rel string) string {
			return filepath.Join(cfg.Storage.BaseDir, filepath.FromSlash(rel))
		},
		Log: logger,
	}
	if cfg.Storage.CatalogFile == "" {
		return m
	}
	c, err := index.OpenCatalog(cfg.Storage.Path(cfg.Storage.CatalogFile))
	if err != nil {
		logger.Warn().Err(err).Msg("catalog unavailable; continuing without search")
		return m
	}
	m.Catalog = c
	return m
}

func closeMaintainer(m *index.Maintainer) {
	if m.Catalog != nil {
		if err := m.Catalog.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing catalog")
		}
	}
}
