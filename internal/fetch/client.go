// Package fetch is the authenticated HTTP adapter shared by the equipment
// feed and the reservation watcher. It carries the stored bearer token and,
// on an authorization failure, performs exactly one token refresh before
// retrying the original request.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"gym-status-client/internal/token"
)

var (
	// ErrSessionExpired means the refresh token was rejected. The caller must
	// clear credentials and drop to an unauthenticated state.
	ErrSessionExpired = errors.New("fetch: session expired")

	// ErrNoCredentials means no token pair is stored. Callers are expected to
	// skip authenticated calls entirely in that case.
	ErrNoCredentials = errors.New("fetch: no stored credentials")
)

const refreshPath = "/api/token/refresh/"

// Client issues authenticated requests against the reservation backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     token.Store
}

// NewClient creates the adapter. proxy may be empty.
func NewClient(baseURL, proxy string, tokens token.Store) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			log.Printf("Warning: invalid proxy URL %q: %v. Requests will not use a proxy.", proxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Access returns the currently stored access token.
func (c *Client) Access() (string, error) {
	pair, err := c.tokens.Get()
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return "", ErrNoCredentials
		}
		return "", err
	}
	return pair.Access, nil
}

// DoJSON marshals payload (may be nil) and performs an authenticated request.
func (c *Client) DoJSON(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = data
	}
	return c.Do(ctx, method, path, body, "application/json", nil)
}

// Do performs an authenticated request. The body is a byte slice rather than
// a reader so the single 401-triggered retry can replay it. On a 401 with a
// refresh token present, the access token is refreshed once, persisted, and
// the request retried; a failed refresh returns ErrSessionExpired.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, contentType string, header map[string]string) (*http.Response, error) {
	pair, err := c.tokens.Get()
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}

	resp, err := c.send(ctx, method, path, body, contentType, header, pair.Access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drainAndClose(resp)

	if pair.Refresh == "" {
		return nil, ErrSessionExpired
	}

	access, err := c.refresh(ctx, pair.Refresh)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, body, contentType, header, access)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, contentType string, header map[string]string, access string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	return resp, nil
}

// refresh trades the refresh token for a new access token and persists it.
// Any failure here, network errors included, maps to ErrSessionExpired.
func (c *Client) refresh(ctx context.Context, refreshToken string) (string, error) {
	payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", fmt.Errorf("failed to marshal refresh payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: refresh request failed: %v", ErrSessionExpired, err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: refresh returned status %d", ErrSessionExpired, resp.StatusCode)
	}

	var result struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: failed to decode refresh response: %v", ErrSessionExpired, err)
	}
	if result.Access == "" {
		return "", fmt.Errorf("%w: refresh response carried no access token", ErrSessionExpired)
	}

	if err := c.tokens.SetAccess(result.Access); err != nil {
		return "", fmt.Errorf("failed to persist refreshed access token: %w", err)
	}
	return result.Access, nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
