// Package letta is a small HTTP client for the Letta agent platform: it
// provisions agents from templates, deletes them, and streams agent
// messages.
package letta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/haasonsaas/agentbridge/internal/backoff"
)

// CloudBaseURL is used when only a project is configured.
const CloudBaseURL = "https://api.letta.com"

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 8 << 10

// Config configures a Client.
type Config struct {
	APIKey string
	// BaseURL of a self-hosted or cloud server. A trailing slash is ignored.
	BaseURL string
	// Project selects a Letta Cloud project. When BaseURL is empty and a
	// project is set, CloudBaseURL is used.
	Project string
	// Timeout bounds provisioning requests. Streaming requests are bounded
	// by their context instead. Default 30s.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
	// Retry paces retries of provisioning calls. Zero uses
	// backoff.DefaultPolicy.
	Retry backoff.Policy
	// MaxAttempts bounds provisioning attempts. Default 3.
	MaxAttempts int
}

// Client talks to the Letta REST API.
type Client struct {
	baseURL   string
	apiKey    string
	project   string
	timeout   time.Duration
	userAgent string
	http      *http.Client
	logger    *slog.Logger

	retry       backoff.Policy
	maxAttempts int
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigError{Message: "letta api key is required"}
	}
	base, err := ResolveBaseURL(cfg.BaseURL, cfg.Project)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "agentbridge"
	}
	if cfg.Retry == (backoff.Policy{}) {
		cfg.Retry = backoff.DefaultPolicy()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Client{
		baseURL:   base,
		apiKey:    cfg.APIKey,
		project:   cfg.Project,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		http:      cfg.HTTPClient,
		logger:    cfg.Logger.With("component", "letta"),

		retry:       cfg.Retry,
		maxAttempts: cfg.MaxAttempts,
	}, nil
}

// ResolveBaseURL picks the API root: an explicit base URL wins, a project
// alone implies Letta Cloud, and neither is a configuration error.
func ResolveBaseURL(baseURL, project string) (string, error) {
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", &ConfigError{Message: fmt.Sprintf("invalid letta base url %q", baseURL)}
		}
		return strings.TrimRight(baseURL, "/"), nil
	}
	if strings.TrimSpace(project) != "" {
		return CloudBaseURL, nil
	}
	return "", &ConfigError{Message: "either LETTA_BASE_URL or LETTA_PROJECT must be set"}
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.project != "" {
		req.Header.Set("X-Project", c.project)
	}
	return req, nil
}

// do sends req and returns the response when it is 2xx. Any other status is
// drained into an *APIError and the body is closed.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		c.logger.Debug("failed to read error body", "status", resp.StatusCode, "error", readErr)
	}
	return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
}

// escapePath encodes every "/"-separated segment on its own, so template
// names like "project/template:v1" keep their separators.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
