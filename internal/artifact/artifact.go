// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact writes the per-paper outputs: the downloaded PDF and a
// Markdown document combining metadata, analysis, and extracted text.
// Files live under <papers_dir>/<month>/ and are always replaced whole.
package artifact

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/paper-intake/internal/fsutil"
	"github.com/pdiddy/paper-intake/pkg/types"
)

const defaultTextChars = 50000

// Writer places artifacts under a papers directory. Paths it returns are
// relative to BaseDir and slash-separated so they can be linked from the
// index.
type Writer struct {
	BaseDir   string
	PapersDir string

	// TextChars caps the embedded full text. Zero means 50000.
	TextChars int
}

// NewWriter builds a Writer from the storage configuration.
func NewWriter(cfg types.StorageConfig) *Writer {
	return &Writer{
		BaseDir:   cfg.BaseDir,
		PapersDir: cfg.Path(cfg.PapersDir),
		TextChars: cfg.ArtifactTextChars,
	}
}

// Abs resolves a path returned by the Writer against BaseDir.
func (w *Writer) Abs(rel string) string {
	p := filepath.FromSlash(rel)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.BaseDir, p)
}

func (w *Writer) file(month, key, ext string) string {
	return filepath.Join(w.PapersDir, month, key+ext)
}

func (w *Writer) rel(abs string) string {
	r, err := filepath.Rel(w.BaseDir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(r)
}

// WritePDF stores the raw PDF bytes as <month>/<key>.pdf.
func (w *Writer) WritePDF(month, key string, data []byte) (string, error) {
	path := w.file(month, key, ".pdf")
	if err := fsutil.WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing PDF for %s: %w", key, err)
	}
	return w.rel(path), nil
}

// Write renders the Markdown artifact for rec as <month>/<key>.md.
func (w *Writer) Write(rec types.PaperRecord, ref types.PaperReference, ext types.Extraction, det types.PaperDetails, an types.Analysis) (string, error) {
	data, err := w.Render(rec, ref, ext, det, an)
	if err != nil {
		return "", fmt.Errorf("rendering artifact for %s: %w", rec.Key, err)
	}
	path := w.file(rec.Month, rec.Key, ".md")
	if err := fsutil.WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing artifact for %s: %w", rec.Key, err)
	}
	return w.rel(path), nil
}

// Render produces the artifact bytes without touching the disk. The same
// inputs always give the same bytes.
func (w *Writer) Render(rec types.PaperRecord, ref types.PaperReference, ext types.Extraction, det types.PaperDetails, an types.Analysis) ([]byte, error) {
	limit := w.TextChars
	if limit <= 0 {
		limit = defaultTextChars
	}
	text, cut := types.Truncate(ext.Text, limit)

	pdfURL := ref.PDFURL
	if det.PDFURL != "" {
		pdfURL = det.PDFURL
	}
	repo := ref.RepoURL
	if det.RepoURL != "" {
		repo = det.RepoURL
	}

	var buf bytes.Buffer
	err := artifactTmpl.Execute(&buf, artifactData{
		Title:       rec.Title,
		Key:         rec.Key,
		Month:       rec.Month,
		SourceURL:   ref.SourceURL,
		PDFURL:      pdfURL,
		PDFFile:     rec.Key + ".pdf",
		ArxivURL:    det.ArxivURL,
		RepoURL:     repo,
		Processed:   processedAt(rec).UTC().Format("2006-01-02"),
		Abstract:    strings.TrimSpace(det.Abstract),
		Analysis:    an,
		Degraded:    ext.Degraded,
		Note:        ext.Note,
		Text:        text,
		Truncated:   cut,
		TextLimit:   limit,
		SourceLabel: sourceLabel(an.Source),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// processedAt is the latest stage timestamp on the record, so a rerun of
// the same attempt renders the same date.
func processedAt(rec types.PaperRecord) time.Time {
	for _, t := range []*time.Time{rec.CompletedAt, rec.AnalyzedAt, rec.ExtractedAt, rec.DownloadedAt} {
		if t != nil {
			return *t
		}
	}
	return rec.DiscoveredAt
}

func sourceLabel(s types.AnalysisSource) string {
	switch s {
	case types.SourceClaude:
		return "Claude"
	case types.SourceOpenAI:
		return "OpenAI"
	case types.SourceFallback:
		return "local fallback (no analysis service)"
	}
	return string(s)
}

type artifactData struct {
	Title, Key, Month          string
	SourceURL, PDFURL, PDFFile string
	ArxivURL, RepoURL          string
	Processed                  string
	Abstract                   string
	Analysis                   types.Analysis
	Degraded                   bool
	Note                       string
	Text                       string
	Truncated                  bool
	TextLimit                  int
	SourceLabel                string
}

// cell makes s safe inside a Markdown table cell.
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func displayName(name string) string {
	return types.Category{Name: name}.DisplayName()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

var artifactTmpl = template.Must(template.New("artifact").Funcs(template.FuncMap{
	"cell":        cell,
	"displayName": displayName,
	"orNA":        orNA,
}).Parse(`# {{.Title}}

## Metadata
- **Source**: {{.SourceURL}}
- **PDF**: [{{.PDFFile}}](./{{.PDFFile}}) ({{.PDFURL}})
- **arXiv**: {{orNA .ArxivURL}}
- **Repository**: {{orNA .RepoURL}}
- **Month**: {{.Month}}
- **Key**: {{.Key}}
- **Processed**: {{.Processed}}

## Abstract
{{if .Abstract}}{{.Abstract}}{{else}}No abstract available.{{end}}

## Summary
{{.Analysis.Summary}}

## Business Relevance

| Category | Level | Rationale |
|---|---|---|
{{range .Analysis.Relevance}}| {{displayName .Category}} | {{.Level}} | {{cell .Rationale}} |
{{end}}
## Startup Opportunities
{{if .Analysis.Opportunities}}{{range .Analysis.Opportunities}}- {{.}}
{{end}}{{else}}None identified.
{{end}}
## Overall Value
**{{.Analysis.Overall.Level}}**{{if .Analysis.Overall.Rationale}}: {{.Analysis.Overall.Rationale}}{{end}}

_Assessment by {{.SourceLabel}}._

---

## Full Paper Text
{{if .Degraded}}
> No extractable text: {{orNA .Note}}
{{else}}
<details>
<summary>Click to expand full extracted text</summary>

{{.Text}}
{{if .Truncated}}
[... truncated at {{.TextLimit}} characters ...]
{{end}}
</details>
{{end}}`))
