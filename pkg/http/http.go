// Package http is a small fluent client for outgoing calls such as chat
// webhooks.
//
//	resp, err := http.Post(webhookURL).
//	    WithContext(ctx).
//	    Body(map[string]any{"text": "New Order: ORD-1"}).
//	    Timeout(5 * time.Second).
//	    Send()
//	if err == nil {
//	    err = resp.Throw()
//	}
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	gohttp "net/http"
	"time"

	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

// maxResponseBody caps how much of a response is buffered.
const maxResponseBody = 1 << 20

var defaultTransport = &gohttp.Transport{
	Proxy:               gohttp.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 20,
	IdleConnTimeout:     90 * time.Second,
}

// DefaultClient is the pooled client used when a Request has none set.
var DefaultClient = &gohttp.Client{Transport: defaultTransport}

// Request is a fluent HTTP request builder.
type Request struct {
	method    string
	url       string
	headers   map[string]string
	body      interface{}
	timeout   time.Duration
	retries   int
	retryWait time.Duration
	ctx       context.Context
	client    *gohttp.Client
}

// Get starts a GET request.
func Get(url string) *Request { return newRequest(gohttp.MethodGet, url) }

// Post starts a POST request.
func Post(url string) *Request { return newRequest(gohttp.MethodPost, url) }

// Put starts a PUT request.
func Put(url string) *Request { return newRequest(gohttp.MethodPut, url) }

// Delete starts a DELETE request.
func Delete(url string) *Request { return newRequest(gohttp.MethodDelete, url) }

func newRequest(method, url string) *Request {
	return &Request{
		method:    method,
		url:       url,
		headers:   map[string]string{"Accept": "application/json"},
		timeout:   10 * time.Second,
		retries:   1,
		retryWait: 500 * time.Millisecond,
		ctx:       context.Background(),
		client:    DefaultClient,
	}
}

// Header adds a single header.
func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value
	return r
}

// Body sets the request body. Strings and byte slices are sent raw; anything
// else is encoded as JSON.
func (r *Request) Body(v interface{}) *Request {
	r.body = v
	return r
}

// Timeout sets the per-attempt timeout.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry sets the total number of attempts (1 = no retry) and the initial
// backoff, which doubles after each failed attempt. Only transport errors
// are retried; any HTTP status counts as a response.
func (r *Request) Retry(n int, wait time.Duration) *Request {
	if n < 1 {
		n = 1
	}
	r.retries = n
	r.retryWait = wait
	return r
}

// WithContext bounds every attempt and backoff by ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// Client sends through c instead of DefaultClient. Nil is ignored.
func (r *Request) Client(c *gohttp.Client) *Request {
	if c != nil {
		r.client = c
	}
	return r
}

// Send executes the request.
func (r *Request) Send() (*Response, error) {
	var lastErr error
	backoff := r.retryWait

	for attempt := 1; attempt <= r.retries; attempt++ {
		resp, err := r.do()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == r.retries {
			break
		}

		logger.WithCtx(r.ctx).Warn("http: request failed, retrying",
			"url", r.url, "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-r.ctx.Done():
			return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, r.ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("http: %s %s failed after %d attempt(s): %w", r.method, r.url, r.retries, lastErr)
}

func (r *Request) do() (*Response, error) {
	body, ct, err := r.buildBody()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Raw: raw}, nil
}

func (r *Request) buildBody() (io.Reader, string, error) {
	switch v := r.body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return bytes.NewBufferString(v), "text/plain", nil
	case []byte:
		return bytes.NewReader(v), "application/octet-stream", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("http: marshal body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON unmarshals the body into dest.
func (r *Response) JSON(dest interface{}) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Raw) }

// StatusError is returned by Throw for a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http: status %d: %s", e.Code, e.Body)
}

// ClientError reports a 4xx status, which retrying will not fix.
func (e *StatusError) ClientError() bool { return e.Code >= 400 && e.Code < 500 }

// Throw returns a *StatusError unless the status is 2xx.
func (r *Response) Throw() error {
	if r.OK() {
		return nil
	}
	return &StatusError{Code: r.StatusCode, Body: string(r.Raw)}
}
