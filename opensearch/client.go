package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultTimeout     = 30 * time.Second
	contentTypeJSON    = "application/json"
	contentTypeNDJSON  = "application/x-ndjson"
	maxErrorBodyLength = 4096
)

// ClusterConfig describes how to reach one cluster.
type ClusterConfig struct {
	Name      string
	URL       string
	Username  string
	Password  string
	NoAuth    bool
	SSLVerify bool
	Timeout   time.Duration
	Retry     RetryPolicy
}

// Error is a non-2xx response from OpenSearch.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if reason := gjson.Get(msg, "error.reason"); reason.Exists() {
		msg = reason.String()
	}
	return fmt.Sprintf("opensearch: status %d: %s", e.Status, msg)
}

// Request is one REST call.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// Client is a REST client bound to one cluster. It is safe for concurrent use.
type Client struct {
	cfg     ClusterConfig
	baseURL *url.URL
	http    *http.Client
}

// NewClient validates cfg and returns a client backed by the shared pool.
func NewClient(cfg ClusterConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, fmt.Errorf("opensearch: cluster %q has no url", cfg.Name)
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("opensearch: cluster %q url: %w", cfg.Name, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("opensearch: cluster %q url must be http or https, got %q", cfg.Name, raw)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Retry = normalizeRetryPolicy(cfg.Retry)
	return &Client{
		cfg:     cfg,
		baseURL: base,
		http:    sharedClientPool.client(cfg.Timeout, !cfg.SSLVerify),
	}, nil
}

// Name returns the configured cluster name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Do executes req with the client's retry policy and returns the raw body.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	body, _, err := invokeWithRetry(ctx, c.cfg.Retry, func(ctx context.Context, _ int) ([]byte, error) {
		return c.once(ctx, req)
	})
	return body, err
}

func (c *Client) once(ctx context.Context, req Request) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.resolve(req.Path, req.Query)

	var reader io.Reader
	if req.Body != nil {
		reader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("opensearch: build request: %w", err)
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	if req.Body != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = contentTypeJSON
		}
		httpReq.Header.Set("Content-Type", contentType)
	}
	if !c.cfg.NoAuth && c.cfg.Username != "" {
		httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("opensearch: %s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("opensearch: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if len(respBody) > maxErrorBodyLength {
			respBody = respBody[:maxErrorBodyLength]
		}
		return nil, &Error{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Get issues a GET and returns the body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// PostJSON encodes body as JSON and issues a POST.
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, body any) ([]byte, error) {
	req := Request{Method: http.MethodPost, Path: path, Query: query}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("opensearch: encode request body: %w", err)
		}
		req.Body = data
	}
	return c.Do(ctx, req)
}

// Version returns the cluster's version.number from the root endpoint.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.Get(ctx, "/", nil)
	if err != nil {
		return "", err
	}
	number := gjson.GetBytes(body, "version.number")
	if !number.Exists() || number.String() == "" {
		return "", errors.New("opensearch: root response has no version.number")
	}
	return number.String(), nil
}
