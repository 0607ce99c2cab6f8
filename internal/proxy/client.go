// Package proxy talks to an OpenAI-compatible chat completions API
// (OpenRouter by default, or any server exposing the same endpoints).
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	defaultTimeout   = 60 * time.Second
	streamingTimeout = 300 * time.Second
	maxRetries       = 3
	initialBackoff   = 500 * time.Millisecond
)

// Options configures a Client. Empty fields take defaults.
type Options struct {
	APIKey  string
	BaseURL string
	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string
	Title   string
}

// Client is a chat completions client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	referer    string
	title      string
}

// New creates a client.
func New(opts Options) *Client {
	c := &Client{
		apiKey:  opts.APIKey,
		baseURL: DefaultBaseURL,
		// Per-request deadlines come from the context; a client-wide
		// timeout would cut long streams.
		httpClient: &http.Client{},
		referer:    opts.Referer,
		title:      opts.Title,
	}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if c.title == "" {
		c.title = "designdays"
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// StatusError is a non-200 reply from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Code == http.StatusTooManyRequests {
		return fmt.Sprintf("rate limited (HTTP %d)", e.Code)
	}
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func isRateLimit(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// Chat sends a chat completion request and returns the response body. For
// streaming requests the body carries SSE events. The caller closes it.
// HTTP 429 replies are retried with exponential backoff; nothing else is.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	timeout := defaultTimeout
	if req.Stream {
		timeout = streamingTimeout
	}

	var lastErr error
	for attempt := range maxRetries {
		rc, err := c.doChat(ctx, body, timeout)
		if err == nil {
			return rc, nil
		}
		if !isRateLimit(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) doChat(ctx context.Context, body []byte, timeout time.Duration) (io.ReadCloser, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelOnClose wraps a ReadCloser and cancels a context on Close.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// ListModels returns the models the API offers.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var list ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding models: %w", err)
	}

	if list.Data == nil {
		return []Model{}, nil
	}
	return list.Data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	req.Header.Set("X-Title", c.title)
}
