// Package api is the HTTP client of the remote auth and task endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// envelope is the common part of every response body.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client is a thin HTTP client for the todopro server. Every call is a
// single POST with a JSON body; nothing is retried.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// bodyToken also sends the bearer token as a "token" body field, for
	// proxies that strip the Authorization header.
	bodyToken bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithBodyToken enables sending the token in the request body as well.
func WithBodyToken() Option {
	return func(c *Client) { c.bodyToken = true }
}

// NewClient creates a client for the server rooted at baseURL
// (e.g. https://tasks.example.com).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// post sends body to path and decodes a successful response into result.
// A response with success=false becomes an AuthError carrying the server
// message, whatever its status code.
func (c *Client) post(
	ctx context.Context,
	path string,
	bearer string,
	body interface{},
	result interface{},
) error {
	data, err := c.encodeBody(body, bearer)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: path, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return &TransportError{
			Op:  path,
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return &TransportError{
			Op:  path,
			Err: fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err),
		}
	}

	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &AuthError{Status: resp.StatusCode, Message: msg}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return &TransportError{Op: path, Err: fmt.Errorf("unmarshaling response: %w", err)}
	}
	return nil
}

func (c *Client) encodeBody(body interface{}, bearer string) ([]byte, error) {
	if body == nil {
		body = struct{}{}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	if !c.bodyToken || bearer == "" {
		return data, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("adding body token: %w", err)
	}
	tok, _ := json.Marshal(bearer)
	fields["token"] = tok
	return json.Marshal(fields)
}
