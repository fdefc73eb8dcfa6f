package testkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockTransport implements http.RoundTripper. Outgoing requests are matched
// against the installed MockSteps in order and answered without touching the
// network. Unmatched requests fail, so a test never leaks real traffic.
//
//	mt := testkit.NewMockTransport(testkit.MockStep{MatchURL: "https://hooks.slack.com/"})
//	client := mt.Client()
//	// ... exercise code that posts with client ...
//	assert.Empty(t, mt.Uncalled())
type MockTransport struct {
	mu      sync.Mutex
	entries []*mockEntry
	calls   []Call
}

// Call records one intercepted request.
type Call struct {
	Method string
	URL    string
	Body   []byte
}

type mockEntry struct {
	step  MockStep
	count int
}

// NewMockTransport installs steps; more can be added with Install.
func NewMockTransport(steps ...MockStep) *MockTransport {
	mt := &MockTransport{}
	mt.Install(steps...)
	return mt
}

// Install replaces the active steps and forgets previous calls.
func (mt *MockTransport) Install(steps ...MockStep) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.entries = mt.entries[:0]
	mt.calls = nil
	for _, s := range steps {
		mt.entries = append(mt.entries, &mockEntry{step: s})
	}
}

// Client returns an *http.Client that sends through mt.
func (mt *MockTransport) Client() *http.Client {
	return &http.Client{Transport: mt}
}

// RoundTrip answers req from the first matching step.
func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.calls = append(mt.calls, Call{Method: req.Method, URL: req.URL.String(), Body: body})

	for _, e := range mt.entries {
		if !matches(req, e.step) {
			continue
		}
		e.count++
		return buildResponse(req, e.step), nil
	}
	return nil, fmt.Errorf("testkit: unexpected outgoing %s %s: no matching mock step", req.Method, req.URL)
}

// Calls returns every intercepted request so far.
func (mt *MockTransport) Calls() []Call {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]Call(nil), mt.calls...)
}

// Uncalled lists the steps that have not matched any request yet.
func (mt *MockTransport) Uncalled() []MockStep {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var out []MockStep
	for _, e := range mt.entries {
		if e.count == 0 {
			out = append(out, e.step)
		}
	}
	return out
}

func matches(req *http.Request, s MockStep) bool {
	if s.MatchMethod != "" && !strings.EqualFold(s.MatchMethod, req.Method) {
		return false
	}
	return s.MatchURL == "" || strings.HasPrefix(req.URL.String(), s.MatchURL)
}

func buildResponse(req *http.Request, s MockStep) *http.Response {
	code := s.StatusCode
	if code == 0 {
		code = http.StatusOK
	}

	header := make(http.Header)
	if len(s.Body) > 0 {
		header.Set("Content-Type", "application/json")
	}

	return &http.Response{
		StatusCode:    code,
		Status:        fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
		Request:       req,
	}
}
