// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"context"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/pdiddy/paper-intake/pkg/types"
)

const (
	defaultSummarySentences = 3

	noTextSummary     = "No abstract or extractable text was available for this paper."
	fallbackRationale = "Not assessed: no analysis service was available."
)

// FallbackAnalyzer builds a minimal assessment without any remote service.
// The summary is the opening sentences of the abstract, or of the text when
// there is no abstract. Every level is Unscored.
type FallbackAnalyzer struct {
	// Sentences is the summary length. Zero means 3.
	Sentences int
}

// Analyze never fails.
func (f *FallbackAnalyzer) Analyze(_ context.Context, in Input, categories []types.Category) (types.Analysis, error) {
	a := types.Analysis{
		Summary:       f.summary(in),
		Opportunities: []string{},
		Overall:       types.Assessment{Level: types.LevelUnscored, Rationale: fallbackRationale},
		Source:        types.SourceFallback,
	}
	for _, c := range categories {
		a.Relevance = append(a.Relevance, types.CategoryScore{
			Category:  c.Name,
			Level:     types.LevelUnscored,
			Rationale: fallbackRationale,
		})
	}
	return a, nil
}

func (f *FallbackAnalyzer) summary(in Input) string {
	n := f.Sentences
	if n <= 0 {
		n = defaultSummarySentences
	}
	if s := leadSentences(in.Abstract, n); s != "" {
		return s
	}
	if !in.Degraded {
		if s := leadSentences(in.Text, n); s != "" {
			return s
		}
	}
	return noTextSummary
}

// leadSentences returns the first n sentences of text joined by spaces.
func leadSentences(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	// Segmentation only needs a bounded prefix.
	sample, _ := types.Truncate(text, 4000)

	doc, err := prose.NewDocument(sample,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return sample
	}
	var out []string
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
		if len(out) == n {
			break
		}
	}
	if len(out) == 0 {
		return sample
	}
	return strings.Join(out, " ")
}
