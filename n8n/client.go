// Package n8n is a typed client for the n8n public REST API (v1). It
// covers the operations the MCP tools map onto: credentials, tags,
// variables, executions, and workflow activation.
package n8n

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
)

const (
	apiKeyHeader = "X-N8N-API-KEY"
	apiBasePath  = "/api/v1"
)

// APIError is a non-2xx reply from the n8n API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("n8n API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("n8n API error: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to one n8n instance.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New constructs a client for the given instance base URL and API key.
// The public API prefix (/api/v1) is appended unless already present.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid n8n URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("n8n URL must use http or https, got %q", u.Scheme)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("n8n API key is required")
	}
	if !strings.HasSuffix(u.Path, apiBasePath) {
		u.Path += apiBasePath
	}
	c := &Client{
		baseURL:    u,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromContext constructs a client from an instance context.
func NewFromContext(ictx *InstanceContext, opts ...Option) (*Client, error) {
	if err := ictx.Validate(); err != nil {
		return nil, err
	}
	return New(ictx.BaseURL, ictx.APIKey, opts...)
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// do issues a JSON request against the API and decodes the reply into out
// (which may be nil for empty replies).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.baseURL
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeAPIError(res)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(res *http.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}
	var envelope struct {
		Message string `json:"message"`
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, 8*1024))
	if err == nil && json.Unmarshal(b, &envelope) == nil {
		apiErr.Message = envelope.Message
	}
	return apiErr
}

// List is the n8n API's paginated collection envelope.
type List[T any] struct {
	Data       []T    `json:"data"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ListOptions are the common pagination parameters.
type ListOptions struct {
	Limit  int
	Cursor string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", o.Limit))
	}
	if o.Cursor != "" {
		q.Set("cursor", o.Cursor)
	}
	return q
}
