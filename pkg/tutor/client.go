// Package tutor talks to the generative model that backs the study
// features. It speaks the Gemini generateContent protocol: one user turn in,
// the first candidate's text out.
package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/feynmind/pkg/debug"
	"github.com/rhuss/feynmind/pkg/observability"
)

const (
	// DefaultBaseURL is the public Gemini endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gemini-1.5-flash"

	// DefaultTimeout bounds a single generateContent call.
	DefaultTimeout = 60 * time.Second
)

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, e.g. https://generativelanguage.googleapis.com.
	// A full ".../models/<model>:generateContent" URL is accepted as well.
	BaseURL string

	APIKey  string
	Model   string
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client performs generateContent requests.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewClient creates a Client. It returns ErrNotConfigured when no base URL
// is given.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid tutor backend URL: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   endpointFor(base, model),
		apiKey:     cfg.APIKey,
		model:      model,
	}, nil
}

// endpointFor builds the generateContent URL for model unless base already
// names one.
func endpointFor(base, model string) string {
	if strings.HasSuffix(base, ":generateContent") {
		return base
	}
	if !strings.Contains(base, "/v1") {
		base += "/v1beta"
	}
	return base + "/models/" + url.PathEscape(model) + ":generateContent"
}

// Model returns the model name sent to the backend.
func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt as a single user turn and returns the text of the
// first candidate with markdown code fences removed.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := c.generate(ctx, prompt)

	observability.TutorRequestsTotal.WithLabelValues(c.model, statusLabel(err)).Inc()
	observability.TutorLatency.WithLabelValues(c.model).Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Warn("tutor backend call failed", "model", c.model, "error", err.Error())
		return "", err
	}
	debug.Log("tutor", "tutor response",
		"model", c.model,
		"duration", time.Since(start).String(),
		"chars", len(text),
	)
	debug.Trace("tutor", "tutor answer", "text", text)
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	debug.Log("tutor", "tutor request",
		"model", c.model,
		"url", c.endpoint,
		"prompt", debug.Truncate(prompt, 200),
	)
	debug.Trace("tutor", "tutor prompt", "prompt", prompt)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", mapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", mapHTTPError(httpResp)
	}

	var genResp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("%w: failed to parse backend response: %s", ErrUpstream, err.Error())
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	text := StripCodeFences(genResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// StripCodeFences removes markdown code fences (``` and ```json) and
// surrounding whitespace.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
