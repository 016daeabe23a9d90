// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// RelevanceLevel grades how relevant a paper is to a category.
type RelevanceLevel string

const (
	LevelHigh     RelevanceLevel = "High"
	LevelMedium   RelevanceLevel = "Medium"
	LevelLow      RelevanceLevel = "Low"
	LevelNone     RelevanceLevel = "None"
	LevelUnscored RelevanceLevel = "Unscored"
)

// ParseLevel maps a free-form level ("high", " Medium ") to a known level.
// The second return is false for anything unrecognised.
func ParseLevel(s string) (RelevanceLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return LevelHigh, true
	case "medium":
		return LevelMedium, true
	case "low":
		return LevelLow, true
	case "none":
		return LevelNone, true
	case "unscored":
		return LevelUnscored, true
	}
	return "", false
}

// Category is a named assessment dimension with a description that is
// handed to the analysis service.
type Category struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Description string `json:"description" yaml:"description" mapstructure:"description" validate:"required"`
}

// DisplayName turns "demand_generation" into "Demand Generation".
func (c Category) DisplayName() string {
	parts := strings.FieldsFunc(c.Name, func(r rune) bool { return r == '_' || r == '-' })
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// CategoryScore is the relevance of one paper to one category.
type CategoryScore struct {
	Category  string         `json:"category" yaml:"category"`
	Level     RelevanceLevel `json:"level" yaml:"level"`
	Rationale string         `json:"rationale" yaml:"rationale"`
}

// Assessment is a level with its explanation.
type Assessment struct {
	Level     RelevanceLevel `json:"level" yaml:"level"`
	Rationale string         `json:"rationale" yaml:"rationale"`
}

// AnalysisSource records which analyzer produced an Analysis.
type AnalysisSource string

const (
	SourceClaude   AnalysisSource = "claude"
	SourceOpenAI   AnalysisSource = "openai"
	SourceFallback AnalysisSource = "fallback"
)

// Analysis is the structured assessment of one paper. It is embedded in the
// artifact and never persisted on its own.
type Analysis struct {
	Summary       string          `json:"summary" yaml:"summary"`
	Relevance     []CategoryScore `json:"relevance" yaml:"relevance"`
	Opportunities []string        `json:"opportunities" yaml:"opportunities"`
	Overall       Assessment      `json:"overall" yaml:"overall"`
	Source        AnalysisSource  `json:"source" yaml:"source"`
}

// Score returns the score for category, if present.
func (a Analysis) Score(category string) (CategoryScore, bool) {
	for _, s := range a.Relevance {
		if s.Category == category {
			return s, true
		}
	}
	return CategoryScore{}, false
}
