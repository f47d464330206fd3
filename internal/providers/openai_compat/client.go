package openai_compat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"querydesk/internal/providers"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Params     providers.Params
	HTTPClient *http.Client
}

// Client talks to any endpoint that speaks the OpenAI chat-completions API
// with bearer authentication.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 600 * time.Second}
	}
	if cfg.Params == (providers.Params{}) {
		cfg.Params = providers.DefaultParams()
	}
	return &Client{cfg: cfg}
}

var _ providers.Completer = (*Client)(nil)

func (c *Client) Complete(ctx context.Context, query string) (string, error) {
	body, endpointURL, err := c.buildPayload(query)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.cfg.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &providers.StatusError{StatusCode: resp.StatusCode}
	}
	return providers.ParseChatCompletion(respBody)
}

func (c *Client) buildPayload(query string) ([]byte, string, error) {
	endpointURL, err := c.buildEndpointURL()
	if err != nil {
		return nil, "", err
	}
	b, err := json.Marshal(providers.NewChatCompletionRequest(c.cfg.Model, c.cfg.Params, query))
	if err != nil {
		return nil, "", fmt.Errorf("marshal chat completion payload: %w", err)
	}
	return b, endpointURL, nil
}

func (c *Client) buildEndpointURL() (string, error) {
	base := strings.TrimSpace(c.cfg.BaseURL)
	if base == "" {
		return "", fmt.Errorf("base url is empty")
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base, nil
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/chat/completions"
	return u.String(), nil
}
