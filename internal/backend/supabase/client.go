// Package supabase talks to a hosted Supabase project: GoTrue for
// authentication and PostgREST for the habits tables.
package supabase

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

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
)

const (
	authPath = "/auth/v1"
	restPath = "/rest/v1"
)

var (
	ErrMissingURL     = errors.New("supabase url is required")
	ErrMissingAnonKey = errors.New("supabase anon key is required")
)

// Options configures a Client
type Options struct {
	URL     string
	AnonKey string
	// Storage persists the session between runs. Defaults to memory.
	Storage    backend.SessionStorage
	HTTPClient *http.Client
}

// Client implements backend.Client against a Supabase project
type Client struct {
	baseURL    *url.URL
	anonKey    string
	httpClient *http.Client
	auth       *backend.AuthState
	now        func() time.Time
}

var _ backend.Client = (*Client)(nil)

// New creates a client. It does not contact the server.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, ErrMissingURL
	}
	if strings.TrimSpace(opts.AnonKey) == "" {
		return nil, ErrMissingAnonKey
	}
	u, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid supabase url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid supabase url %q: scheme must be http or https", opts.URL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.RequestTimeout}
	}

	c := &Client{
		baseURL:    u,
		anonKey:    opts.AnonKey,
		httpClient: httpClient,
		now:        time.Now,
	}
	c.auth = backend.NewAuthState(opts.Storage, c.refreshSession)
	return c, nil
}

// ProjectRef returns the project subdomain, used to key stored sessions.
func ProjectRef(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := u.Hostname()
	if ref, _, ok := strings.Cut(host, "."); ok {
		return ref
	}
	return host
}

// Ping checks that the auth service answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: authPath + "/health"}, nil)
}

// Close releases idle connections and ends every auth subscription.
func (c *Client) Close() error {
	c.auth.Close()
	c.httpClient.CloseIdleConnections()
	return nil
}

type request struct {
	method string
	path   string
	query  url.Values
	token  string
	prefer string
	body   any
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + r.path
	if r.query != nil {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	token := r.token
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("Backend request failed", "method", r.method, "path", r.path, "error", err)
		return backend.NetworkError(err)
	}
	defer resp.Body.Close()

	logger.Debug("Backend request", "method", r.method, "path", r.path, "status", resp.StatusCode, "latency", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return backend.NetworkError(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(r.path, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", r.path, err)
	}
	return nil
}
