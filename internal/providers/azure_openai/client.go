package azure_openai

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

const defaultAPIVersion = "2024-05-01-preview"

type Config struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Params     providers.Params
	HTTPClient *http.Client
}

// Client calls an Azure OpenAI chat-completions deployment. It makes exactly
// one request per query.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 600 * time.Second}
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Params == (providers.Params{}) {
		cfg.Params = providers.DefaultParams()
	}
	return &Client{cfg: cfg}
}

var _ providers.Completer = (*Client)(nil)

func (c *Client) Complete(ctx context.Context, query string) (string, error) {
	endpointURL, err := c.endpointURL()
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(providers.NewChatCompletionRequest("", c.cfg.Params, query))
	if err != nil {
		return "", fmt.Errorf("marshal chat completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

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

func (c *Client) endpointURL() (string, error) {
	base := strings.TrimSpace(c.cfg.Endpoint)
	if base == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	if strings.TrimSpace(c.cfg.Deployment) == "" {
		return "", fmt.Errorf("deployment is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/openai/deployments/" + c.cfg.Deployment + "/chat/completions"
	q := u.Query()
	q.Set("api-version", c.cfg.APIVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
