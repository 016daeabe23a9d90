// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
}

// DiscoveryConfig holds settings for listing discovery.
type DiscoveryConfig struct {
	// ListingURL is the month listing page; "{month}" is replaced by YYYY-MM.
	ListingURL string `json:"listing_url" yaml:"listing_url" mapstructure:"listing_url" validate:"required,contains={month}"`

	// SiteBaseURL resolves relative paper links found on the listing.
	SiteBaseURL string `json:"site_base_url" yaml:"site_base_url" mapstructure:"site_base_url" validate:"required,url"`

	// PDFBaseURL is prefixed to the paper id to form the PDF URL.
	PDFBaseURL string `json:"pdf_base_url" yaml:"pdf_base_url" mapstructure:"pdf_base_url" validate:"required,url"`

	// UseBrowser renders pages in a headless browser container instead of
	// a plain HTTP GET, for listings that need script execution.
	UseBrowser bool `json:"use_browser" yaml:"use_browser" mapstructure:"use_browser"`

	// BrowserImage is the container image used when UseBrowser is set.
	BrowserImage string `json:"browser_image" yaml:"browser_image" mapstructure:"browser_image"`

	// MinTitleLength drops listing links whose title is shorter (default 10).
	MinTitleLength int `json:"min_title_length" yaml:"min_title_length" mapstructure:"min_title_length" validate:"gte=0"`

	// ResolveDetails fetches each paper's page for abstract and links.
	ResolveDetails bool `json:"resolve_details" yaml:"resolve_details" mapstructure:"resolve_details"`
}

// DownloadConfig holds settings for PDF fetching.
type DownloadConfig struct {
	// RateDelay is the minimum spacing between papers' network fetches.
	RateDelay time.Duration `json:"rate_delay" yaml:"rate_delay" mapstructure:"rate_delay" validate:"gte=0"`

	// MaxAttempts bounds the number of tries per request (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1,lte=10"`

	// RetryBaseDelay is the first backoff; it doubles per attempt.
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" mapstructure:"retry_base_delay" validate:"gte=0"`

	// MaxBytes caps a single PDF download.
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes" validate:"gt=0"`
}

// ExtractionBackend identifies the PDF-to-text tool.
type ExtractionBackend string

const (
	BackendNative     ExtractionBackend = "native"
	BackendMarkitdown ExtractionBackend = "markitdown"
)

// ExtractionConfig holds settings for the text extraction stage.
type ExtractionConfig struct {
	// Backend selects the extractor: native or markitdown.
	Backend ExtractionBackend `json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=native markitdown"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider is "anthropic", "openai", or "none".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider" validate:"oneof=anthropic openai none"`

	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (proxies, tests).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// AnalysisConfig holds settings for the analysis stage.
type AnalysisConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// MaxTextChars caps the text sample sent to the service (default 10000).
	MaxTextChars int `json:"max_text_chars" yaml:"max_text_chars" mapstructure:"max_text_chars" validate:"gt=0"`

	// MaxTokens caps the service response (default 2000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"gt=0"`

	// SummarySentences is the fallback summary length (default 3).
	SummarySentences int `json:"summary_sentences" yaml:"summary_sentences" mapstructure:"summary_sentences" validate:"gt=0"`
}

// StorageConfig locates the persisted state.
type StorageConfig struct {
	BaseDir     string `json:"base_dir" yaml:"base_dir" mapstructure:"base_dir" validate:"required"`
	PapersDir   string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir" validate:"required"`
	TrackerFile string `json:"tracker_file" yaml:"tracker_file" mapstructure:"tracker_file" validate:"required"`
	IndexFile   string `json:"index_file" yaml:"index_file" mapstructure:"index_file" validate:"required"`
	CatalogFile string `json:"catalog_file" yaml:"catalog_file" mapstructure:"catalog_file"`

	// ArtifactTextChars caps the full text embedded in artifacts (default 50000).
	ArtifactTextChars int `json:"artifact_text_chars" yaml:"artifact_text_chars" mapstructure:"artifact_text_chars" validate:"gt=0"`
}

// Path resolves name against BaseDir unless it is absolute.
func (s StorageConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.BaseDir, name)
}

// LoggingConfig controls the diagnostic logger.
type LoggingConfig struct {
	// Level is trace, debug, info, warn, or error.
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error"`

	// Format is console or json.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=console json"`
}

// MetricsConfig controls the run metrics output.
type MetricsConfig struct {
	// Textfile is written in Prometheus text format after each run when set.
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// IntakeConfig groups all stage configurations for the pipeline.
type IntakeConfig struct {
	HTTP       HTTPConfig       `json:"http" yaml:"http" mapstructure:"http"`
	Discovery  DiscoveryConfig  `json:"discovery" yaml:"discovery" mapstructure:"discovery"`
	Download   DownloadConfig   `json:"download" yaml:"download" mapstructure:"download"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Analysis   AnalysisConfig   `json:"analysis" yaml:"analysis" mapstructure:"analysis"`
	Storage    StorageConfig    `json:"storage" yaml:"storage" mapstructure:"storage"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Categories []Category       `json:"categories" yaml:"categories" mapstructure:"categories" validate:"required,min=1,dive"`
}

// DefaultCategories are the business areas papers are assessed against.
func DefaultCategories() []Category {
	return []Category{
		{Name: "sales", Description: "Relevant for sales teams, sales automation, lead scoring, pipeline management"},
		{Name: "demand_generation", Description: "Relevant for marketing, demand gen, lead generation, campaign optimization"},
		{Name: "customer_success", Description: "Relevant for CS teams, retention, expansion, health scoring, usage analytics"},
		{Name: "customer_support", Description: "Relevant for support teams, ticket automation, chatbots, help desk optimization"},
		{Name: "solution_partners", Description: "Relevant for partner enablement, integration opportunities, platform extensions"},
	}
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() IntakeConfig {
	return IntakeConfig{
		HTTP: HTTPConfig{
			Timeout:   60 * time.Second,
			UserAgent: "paper-intake/0.1",
		},
		Discovery: DiscoveryConfig{
			ListingURL:     "https://huggingface.co/papers/month/{month}",
			SiteBaseURL:    "https://huggingface.co",
			PDFBaseURL:     "https://arxiv.org/pdf/",
			BrowserImage:   "zenika/alpine-chrome:latest",
			MinTitleLength: 10,
			ResolveDetails: true,
		},
		Download: DownloadConfig{
			RateDelay:      2 * time.Second,
			MaxAttempts:    3,
			RetryBaseDelay: time.Second,
			MaxBytes:       100 * 1024 * 1024,
		},
		Extraction: ExtractionConfig{
			Backend: BackendNative,
		},
		Analysis: AnalysisConfig{
			AIConfig: AIConfig{
				Provider: "anthropic",
				Model:    "claude-haiku-4-5-20251001",
			},
			MaxTextChars:     10000,
			MaxTokens:        2000,
			SummarySentences: 3,
		},
		Storage: StorageConfig{
			BaseDir:           ".",
			PapersDir:         "papers",
			TrackerFile:       "papers_tracker.yaml",
			IndexFile:         "papers_index.md",
			CatalogFile:       "papers_catalog.db",
			ArtifactTextChars: 50000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Categories: DefaultCategories(),
	}
}

var validate = validator.New()

// Validate checks field constraints and reports every violation as a
// single readable error.
func (c IntakeConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
