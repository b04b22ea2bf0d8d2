// Package http provides a fluent, retry-aware HTTP client for outgoing API
// calls (payment providers).
//
// Usage:
//
//	c := http.NewClient("https://api.paystack.co", nil)
//	resp, err := c.Post("/transaction/initialize").
//	    Bearer(secret).
//	    Body(map[string]any{"email": email, "amount": 22097}).
//	    Retry(3, time.Second).
//	    Send(ctx)
//
//	var out initResponse
//	err = resp.JSON(&out)
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	gohttp "net/http"
	"strings"
	"time"

	"github.com/shashiranjanraj/cartsync/pkg/logger"
)

// defaultTransport is the connection-pooled transport shared by clients
// created without their own *http.Client.
var defaultTransport = &gohttp.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 20,
	IdleConnTimeout:     90 * time.Second,
}

// Client issues requests relative to a base URL.
type Client struct {
	base string
	hc   *gohttp.Client
}

// NewClient returns a client for base. hc may be nil; tests pass
// httptest.Server.Client().
func NewClient(base string, hc *gohttp.Client) *Client {
	if hc == nil {
		hc = &gohttp.Client{Transport: defaultTransport}
	}
	return &Client{base: strings.TrimRight(base, "/"), hc: hc}
}

func (c *Client) Get(path string) *Request  { return c.newRequest(gohttp.MethodGet, path) }
func (c *Client) Post(path string) *Request { return c.newRequest(gohttp.MethodPost, path) }

func (c *Client) newRequest(method, path string) *Request {
	return &Request{
		client:    c,
		method:    method,
		url:       c.base + "/" + strings.TrimLeft(path, "/"),
		headers:   map[string]string{"Accept": "application/json"},
		timeout:   30 * time.Second,
		retries:   1,
		retryWait: 500 * time.Millisecond,
	}
}

// Request is a fluent HTTP request builder.
type Request struct {
	client    *Client
	method    string
	url       string
	headers   map[string]string
	body      interface{}
	timeout   time.Duration
	retries   int
	retryWait time.Duration
}

// Header adds a single header to the request.
func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value
	return r
}

// Bearer sets the Authorization: Bearer <token> header.
func (r *Request) Bearer(token string) *Request {
	return r.Header("Authorization", "Bearer "+token)
}

// Body sets the request body; v is marshalled to JSON.
func (r *Request) Body(v interface{}) *Request {
	r.body = v
	return r
}

// Timeout sets the per-attempt timeout.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry configures automatic retries on transport errors and 5xx responses.
// n is total attempts (1 = no retry), wait is the initial backoff (doubles each attempt).
func (r *Request) Retry(n int, wait time.Duration) *Request {
	if n < 1 {
		n = 1
	}
	r.retries = n
	r.retryWait = wait
	return r
}

// Send executes the request. A non-2xx response is returned without error;
// call Throw to turn it into one. Backoff waits end early when ctx is done.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= r.retries; attempt++ {
		resp, err := r.do(ctx)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err == nil {
			lastErr = resp.Throw()
			if attempt == r.retries {
				return resp, nil
			}
		} else {
			lastErr = err
		}
		if ctx.Err() != nil || attempt == r.retries {
			break
		}

		backoff := time.Duration(float64(r.retryWait) * math.Pow(2, float64(attempt-1)))
		logger.WithCtx(ctx).Warn("http: request failed, retrying",
			"url", r.url, "attempt", attempt, "backoff", backoff, "error", lastErr)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, ctx.Err())
		}
	}

	return nil, fmt.Errorf("http: all %d attempts failed for %s %s: %w", r.retries, r.method, r.url, lastErr)
}

func (r *Request) do(ctx context.Context) (*Response, error) {
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("http: marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Raw: raw}, nil
}

// Response wraps the HTTP response with convenience methods.
type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON unmarshals the response body into dest.
func (r *Response) JSON(dest interface{}) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}

// StatusError is returned by Throw for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http: request failed with status %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err is a StatusError with code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Throw returns a *StatusError if the response status is not 2xx.
func (r *Response) Throw() error {
	if !r.OK() {
		return &StatusError{Code: r.StatusCode, Body: string(r.Raw)}
	}
	return nil
}
