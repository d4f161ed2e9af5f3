// Package ai talks to an OpenAI-compatible chat-completions endpoint (Groq
// in the default configuration).
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrProviderUnavailable means no provider credential is configured. It is a
// configuration error, checked at bootstrap, and is never retried.
var ErrProviderUnavailable = errors.New("llm provider unavailable: no api key configured")

// ProviderError is a transient provider failure: timeout, rate limit or a
// malformed response. It is surfaced to the caller without retry; the caller
// decides whether the turn is retried.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return "llm provider error: " + e.Message
}

type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type Client struct {
	cfg        ChatConfig
	httpClient *http.Client
}

// NewClient builds a completion client. It fails fast when no credential is
// configured so a misconfigured process dies at startup, not mid-turn.
func NewClient(cfg ChatConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrProviderUnavailable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends the prompt as a single user-role turn and returns the
// model's trimmed reply. Expiry of the bounded timeout and provider failures
// all surface as *ProviderError; nothing is retried here.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Message: "read response failed: " + err.Error()}
	}
	if resp.StatusCode >= 300 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "empty choices in response"}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
