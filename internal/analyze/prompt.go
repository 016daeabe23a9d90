// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/paper-intake/internal/httputil"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// analysisPromptTmpl asks for the assessment as a single JSON object.
var analysisPromptTmpl = template.Must(template.New("analysis").Parse(`You are assessing a research paper for its business value. Read the paper below and produce a structured assessment.

Paper title: {{.Title}}

Abstract:
{{if .Abstract}}{{.Abstract}}{{else}}(not available){{end}}

Text sample:
{{if .Degraded}}(the PDF had no extractable text; rely on the title and abstract){{else}}{{.Text}}{{if .Truncated}}
[... text truncated ...]{{end}}{{end}}

Assess the paper against each of these business categories:
{{range .Categories}}- {{.Name}} ({{.DisplayName}}): {{.Description}}
{{end}}
Respond with a JSON object with these fields:
- summary: a 2-3 sentence summary of the paper's key contribution
- relevance: an array with one element per category above, each with "category" (the category name exactly as given), "level" (one of "High", "Medium", "Low", "None"), and "rationale" (one or two sentences)
- opportunities: an array of 3 to 5 concrete startup or product opportunities, each one sentence
- overall: an object with "level" (one of "High", "Medium", "Low", "None") and "rationale" giving the paper's overall business value

Do not include any text outside the JSON object.

Example response:
{"summary": "The paper introduces ...", "relevance": [{"category": "sales", "level": "Medium", "rationale": "..."}], "opportunities": ["..."], "overall": {"level": "Medium", "rationale": "..."}}
`))

type promptData struct {
	Title      string
	Abstract   string
	Text       string
	Truncated  bool
	Degraded   bool
	Categories []types.Category
}

// renderPrompt fills the template. Text is cut to maxChars runes.
func renderPrompt(in Input, categories []types.Category, maxChars int) (string, error) {
	text, cut := types.Truncate(strings.TrimSpace(in.Text), maxChars)
	var buf bytes.Buffer
	err := analysisPromptTmpl.Execute(&buf, promptData{
		Title:      in.Title,
		Abstract:   strings.TrimSpace(in.Abstract),
		Text:       text,
		Truncated:  cut,
		Degraded:   in.Degraded,
		Categories: categories,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// claudeRetryDelay is the base backoff between Claude API attempts. Tests
// override this to avoid real sleeps.
var claudeRetryDelay = 2 * time.Second

// defaultClient serves backends built without a client.
var defaultClient = &http.Client{Timeout: 60 * time.Second}

const (
	defaultClaudeModel = "claude-haiku-4-5-20251001"
	defaultMaxTokens   = 2000
	claudeMaxAttempts  = 2
)

// ClaudeBackend calls the Claude Messages API.
type ClaudeBackend struct {
	APIKey    string
	Model     string
	MaxTokens int

	// URL overrides claudeAPIURL when set.
	URL string

	// Client defaults to a client with a 60s timeout.
	Client *http.Client
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Source implements Backend.
func (c *ClaudeBackend) Source() types.AnalysisSource { return types.SourceClaude }

// Complete sends prompt as a single user message and returns the first
// text block of the reply. 429 and 5xx replies are retried once.
func (c *ClaudeBackend) Complete(ctx context.Context, prompt string) (string, error) {
	model := c.Model
	if model == "" {
		model = defaultClaudeModel
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	bodyBytes, err := json.Marshal(claudeRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.URL
	if url == "" {
		url = claudeAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = defaultClient
	}

	resp, _, err := httputil.Do(ctx, client, req, httputil.Policy{
		MaxAttempts: claudeMaxAttempts,
		Delay:       httputil.Exponential(claudeRetryDelay),
	})
	if err != nil {
		return "", fmt.Errorf("%w: calling Claude API: %v", ErrAnalysisUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: Claude API returned %d: %s", ErrAnalysisUnavailable, resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("%w: decoding Claude response: %v", ErrAnalysisUnavailable, err)
	}
	for _, block := range cResp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", errors.Join(ErrAnalysisUnavailable, errors.New("no text content in Claude API response"))
}
