// Package completion asks an OpenAI-compatible chat completions service for
// closure lines when the parser finds none.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize limits the response body read from the service.
const maxResponseSize = 1 << 20

// ErrNotConfigured is returned when no endpoint or API key is set.
var ErrNotConfigured = errors.New("completion service not configured")

const systemPrompt = `You are an extractor. Given NOTAM text, output ONLY valid JSON in exactly this shape:
{"segments":["<AWY> <FROM>-<TO> FLnnn-FLnnn", "..."]}
If nothing found, return {"segments":[]} and nothing else.`

// Config holds the endpoint settings.
type Config struct {
	URL       string // Base URL; /chat/completions is appended.
	Model     string
	APIKey    string
	MaxTokens int
}

// Client calls the completion service. It implements engine.Fallback.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a client for cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 800
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the client in the fallback chain.
func (c *Client) Name() string { return "completion" }

// Configured reports whether the client has an endpoint and key.
func (c *Client) Configured() bool {
	return c.cfg.URL != "" && c.cfg.APIKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Extract asks the service for closure lines. Output that is not the
// requested JSON is parsed leniently; see ParseSegments.
func (c *Client) Extract(ctx context.Context, text string) ([]string, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	requestID := uuid.New().String()
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "NOTAM:\n" + text + "\n\nReturn only JSON as described."},
		},
		Temperature: 0,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, buildURL(c.cfg.URL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug("sending completion request", "request_id", requestID, "model", c.cfg.Model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion service status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, nil
	}

	segments := ParseSegments(chat.Choices[0].Message.Content)
	c.logger.Debug("completion response", "request_id", requestID, "segments", len(segments))
	return segments, nil
}

// buildURL appends /chat/completions to the base URL unless it is already there.
func buildURL(base string) string {
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
