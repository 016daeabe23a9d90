// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index derives the human-readable paper index, and the optional
// full-text catalog, from tracker records. Both are rebuildable from the
// tracker alone.
package index

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-intake/internal/fsutil"
	"github.com/pdiddy/paper-intake/internal/tracker"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// Maintainer keeps the index file, and the catalog when one is attached,
// in step with the tracker.
type Maintainer struct {
	// Path is the index file location.
	Path string

	// Catalog is optional. Its failures are logged, never returned.
	Catalog *Catalog

	// Resolve maps a record's artifact path to a readable file path.
	// Nil leaves paths as they are.
	Resolve func(rel string) string

	Log zerolog.Logger
}

// Build returns the Index for records: complete records only, months most
// recent first, entries in listing order.
func Build(records []types.PaperRecord) types.Index {
	var complete []types.PaperRecord
	for _, r := range records {
		if r.Status == types.StatusComplete {
			complete = append(complete, r)
		}
	}
	tracker.SortRecords(complete)

	var ix types.Index
	for _, r := range complete {
		if n := len(ix.Months); n == 0 || ix.Months[n-1].Month != r.Month {
			ix.Months = append(ix.Months, types.IndexMonth{Month: r.Month})
		}
		m := &ix.Months[len(ix.Months)-1]
		m.Entries = append(m.Entries, types.IndexEntry{
			Key:          r.Key,
			Title:        r.Title,
			ArtifactPath: r.ArtifactPath,
			Relevance:    r.Relevance,
			Degraded:     r.Degraded,
			Position:     r.Position,
		})
		if r.CompletedAt != nil && r.CompletedAt.After(ix.UpdatedAt) {
			ix.UpdatedAt = *r.CompletedAt
		}
	}
	return ix
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"title": func(s string) string { return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s) },
}).Parse(`# AI Papers Index

{{if .UpdatedAt.IsZero}}Last updated: never{{else}}Last updated: {{.UpdatedAt.UTC.Format "2006-01-02 15:04"}} UTC{{end}}

Total papers: {{.Len}}

## Papers by Month
{{range .Months}}
### {{.Month}}

{{range .Entries}}- [{{title .Title}}]({{.ArtifactPath}}){{if .Relevance}} (relevance: {{.Relevance}}){{end}}{{if .Degraded}} (no text){{end}}
{{end}}{{end}}`))

// Render formats ix as Markdown. Output depends only on ix.
func Render(ix types.Index) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, ix); err != nil {
		return nil, fmt.Errorf("rendering index: %w", err)
	}
	return buf.Bytes(), nil
}

// Reconcile rebuilds the index from records and writes it when its bytes
// changed, then syncs the catalog. Progress goes to w.
func (m *Maintainer) Reconcile(ctx context.Context, records []types.PaperRecord, w io.Writer) (types.Index, error) {
	ix := Build(records)
	data, err := Render(ix)
	if err != nil {
		return ix, err
	}

	written, err := fsutil.WriteFileIfChanged(m.Path, data)
	if err != nil {
		return ix, fmt.Errorf("writing index: %w", err)
	}
	if written {
		fmt.Fprintf(w, "index updated: %s (%d papers)\n", m.Path, ix.Len())
	} else {
		fmt.Fprintf(w, "index unchanged: %s (%d papers)\n", m.Path, ix.Len())
	}

	if m.Catalog != nil {
		sum, err := m.Catalog.Sync(ctx, records, m.resolve)
		if err != nil {
			m.Log.Warn().Err(err).Msg("catalog sync failed")
		} else {
			m.Log.Debug().Int("indexed", sum.Indexed).Int("skipped", sum.Skipped).
				Int("removed", sum.Removed).Int("failed", sum.Failed).Msg("catalog synced")
		}
	}
	return ix, nil
}

func (m *Maintainer) resolve(rel string) string {
	if m.Resolve == nil {
		return rel
	}
	return m.Resolve(rel)
}

// Keys lists the entry keys of ix in order.
func Keys(ix types.Index) []string {
	var keys []string
	for _, mo := range ix.Months {
		for _, e := range mo.Entries {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// Months lists the distinct months of records, most recent first.
func Months(records []types.PaperRecord) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range records {
		if !seen[r.Month] {
			seen[r.Month] = true
			out = append(out, r.Month)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}
