// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze produces a structured assessment of a paper: a short
// summary, a relevance level per business category, startup
// opportunities, and an overall value. A remote language-model service
// does the work when one is configured; otherwise, or when the service
// fails, a local fallback produces a minimal assessment.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-intake/internal/secrets"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// ErrAnalysisUnavailable is wrapped by every service failure: transport
// errors, non-200 replies, and responses that do not validate.
var ErrAnalysisUnavailable = errors.New("analysis service unavailable")

// Input is what the analyzer sees of a paper.
type Input struct {
	Title    string
	Abstract string

	// Text is the extracted text, or the degraded marker.
	Text     string
	Degraded bool
}

// Analyzer assesses one paper against categories.
type Analyzer interface {
	Analyze(ctx context.Context, in Input, categories []types.Category) (types.Analysis, error)
}

// Backend sends a rendered prompt to a language-model service and returns
// the raw text of its reply. Implementations: ClaudeBackend, OpenAIBackend.
type Backend interface {
	Source() types.AnalysisSource
	Complete(ctx context.Context, prompt string) (string, error)
}

// ServiceAnalyzer asks a Backend for the assessment and validates the
// reply. Any failure is logged and answered by Fallback instead.
type ServiceAnalyzer struct {
	Backend      Backend
	Fallback     *FallbackAnalyzer
	MaxTextChars int
	Log          zerolog.Logger
}

// Analyze never returns a service error: failures fall back locally.
func (s *ServiceAnalyzer) Analyze(ctx context.Context, in Input, categories []types.Category) (types.Analysis, error) {
	a, err := s.ask(ctx, in, categories)
	if err == nil {
		return a, nil
	}
	if ctx.Err() != nil {
		return types.Analysis{}, ctx.Err()
	}
	s.Log.Warn().Err(err).Str("title", in.Title).Str("backend", string(s.Backend.Source())).
		Msg("analysis service failed; using fallback")
	return s.fallback().Analyze(ctx, in, categories)
}

func (s *ServiceAnalyzer) ask(ctx context.Context, in Input, categories []types.Category) (types.Analysis, error) {
	prompt, err := renderPrompt(in, categories, s.MaxTextChars)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("rendering prompt: %w", err)
	}
	raw, err := s.Backend.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrAnalysisUnavailable) {
			return types.Analysis{}, err
		}
		return types.Analysis{}, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	a, err := parseResponse(raw, categories)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	a.Source = s.Backend.Source()
	return a, nil
}

func (s *ServiceAnalyzer) fallback() *FallbackAnalyzer {
	if s.Fallback == nil {
		return &FallbackAnalyzer{}
	}
	return s.Fallback
}

// serviceResponse is the JSON shape the prompt asks for.
type serviceResponse struct {
	Summary   string `json:"summary"`
	Relevance []struct {
		Category  string `json:"category"`
		Level     string `json:"level"`
		Rationale string `json:"rationale"`
	} `json:"relevance"`
	Opportunities []string `json:"opportunities"`
	Overall       struct {
		Level     string `json:"level"`
		Rationale string `json:"rationale"`
	} `json:"overall"`
}

// parseResponse decodes and validates a service reply. Scores come back in
// category order; categories the service skipped are Unscored, and
// categories it invented are dropped.
func parseResponse(raw string, categories []types.Category) (types.Analysis, error) {
	body, err := jsonObject(raw)
	if err != nil {
		return types.Analysis{}, err
	}
	var r serviceResponse
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return types.Analysis{}, fmt.Errorf("parsing response JSON: %w", err)
	}

	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		return types.Analysis{}, errors.New("response has an empty summary")
	}

	scored := make(map[string]types.CategoryScore, len(r.Relevance))
	for _, rel := range r.Relevance {
		lvl, ok := types.ParseLevel(rel.Level)
		if !ok {
			return types.Analysis{}, fmt.Errorf("category %q has unknown level %q", rel.Category, rel.Level)
		}
		scored[categoryKey(rel.Category)] = types.CategoryScore{
			Level:     lvl,
			Rationale: strings.TrimSpace(rel.Rationale),
		}
	}

	a := types.Analysis{Summary: summary}
	for _, c := range categories {
		s, ok := scored[categoryKey(c.Name)]
		if !ok {
			s, ok = scored[categoryKey(c.DisplayName())]
		}
		if !ok {
			s = types.CategoryScore{Level: types.LevelUnscored, Rationale: "Not assessed by the analysis service."}
		}
		s.Category = c.Name
		a.Relevance = append(a.Relevance, s)
	}

	for _, o := range r.Opportunities {
		if o = strings.TrimSpace(o); o != "" {
			a.Opportunities = append(a.Opportunities, o)
		}
	}

	a.Overall = types.Assessment{Level: types.LevelUnscored, Rationale: strings.TrimSpace(r.Overall.Rationale)}
	if strings.TrimSpace(r.Overall.Level) != "" {
		lvl, ok := types.ParseLevel(r.Overall.Level)
		if !ok {
			return types.Analysis{}, fmt.Errorf("overall has unknown level %q", r.Overall.Level)
		}
		a.Overall.Level = lvl
	}
	return a, nil
}

// jsonObject cuts the outermost {...} out of raw, which tolerates code
// fences and chatter around the object.
func jsonObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", errors.New("response contains no JSON object")
	}
	return raw[start : end+1], nil
}

func categoryKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// New picks the analyzer for cfg. A service provider without a resolvable
// API key, or provider "none", gives the local fallback. Service calls are
// bounded by httpCfg.Timeout.
func New(cfg types.AnalysisConfig, httpCfg types.HTTPConfig, keys map[string]string, log zerolog.Logger) Analyzer {
	fb := &FallbackAnalyzer{Sentences: cfg.SummarySentences}
	client := &http.Client{Timeout: httpCfg.Timeout}

	var backend Backend
	switch cfg.Provider {
	case "anthropic":
		if key := secrets.Lookup(keys, cfg.APIKey, "ANTHROPIC_API_KEY", secrets.AnthropicAPIKey); key != "" {
			backend = &ClaudeBackend{APIKey: key, Model: cfg.Model, MaxTokens: cfg.MaxTokens, URL: cfg.BaseURL, Client: client}
		}
	case "openai":
		if key := secrets.Lookup(keys, cfg.APIKey, "OPENAI_API_KEY", secrets.OpenAIAPIKey); key != "" {
			model := cfg.Model
			if strings.HasPrefix(model, "claude-") {
				// The default model names a Claude model.
				model = ""
			}
			backend = NewOpenAIBackend(key, model, cfg.BaseURL, cfg.MaxTokens, client)
		}
	}

	if backend == nil {
		log.Info().Str("provider", cfg.Provider).Msg("no analysis service configured; using local fallback")
		return fb
	}
	return &ServiceAnalyzer{
		Backend:      backend,
		Fallback:     fb,
		MaxTextChars: cfg.MaxTextChars,
		Log:          log,
	}
}
