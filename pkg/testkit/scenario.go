// Package testkit drives REST API tests from JSON scenario files.
//
// A scenario file holds an ordered list of steps run against one handler.
// Each step fires a request, checks the status code and, optionally, that the
// response contains an expected JSON subset. Values captured from one
// response are substituted as {{name}} into later URLs and bodies, so a file
// can place an order and then move it through its lifecycle:
//
//	testdata/
//	  order_lifecycle.json    ← scenario file
//	  place_order_req.json    ← request body referenced by a step
//
// Outgoing HTTP made by the code under test (webhooks, push services) can be
// answered by a MockTransport built from the file's outbound mocks.
//
//	func TestAPI(t *testing.T) {
//	    mt := testkit.NewMockTransport()
//	    handler := buildApp(mt.Client()).Handler()
//	    testkit.RunDir(t, handler, "testdata", mt)
//	}
package testkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is one scenario file: steps run in order, sharing captured values.
type File struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	Steps []Step `json:"steps"`

	// Outbound lists canned answers for outgoing HTTP calls. Every entry must
	// be hit at least once before the file finishes.
	Outbound []MockStep `json:"outbound"`

	dir string
}

// Step is a single request/response check.
type Step struct {
	Name string `json:"name"`

	// Request
	RequestMethod   string            `json:"requestMethod"` // GET, POST, PUT, DELETE; default GET
	RequestURL      string            `json:"requestUrl"`    // e.g. /api/orders/{{orderId}}
	RequestBody     json.RawMessage   `json:"requestBody"`
	RequestFileName string            `json:"requestFileName"` // relative to the scenario file
	Headers         map[string]string `json:"headers"`

	// Response assertions
	ExpectedCode     int             `json:"expectedCode"`
	ExpectedBody     json.RawMessage `json:"expectedBody"` // JSON subset the response must contain
	ResponseFileName string          `json:"responseFileName"`

	// Capture maps a variable name to a dotted path into the response,
	// e.g. {"orderId": "data.id"}.
	Capture map[string]string `json:"capture"`
}

// MockStep describes one intercepted outgoing call.
type MockStep struct {
	// MatchURL is a prefix of the outgoing URL. Empty matches anything.
	MatchURL string `json:"matchUrl"`
	// MatchMethod restricts the step to one HTTP method when set.
	MatchMethod string `json:"matchMethod"`

	StatusCode int             `json:"statusCode"` // default 200
	Body       json.RawMessage `json:"body"`
}

// LoadFile reads and validates a scenario file.
func LoadFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}

	f.dir = filepath.Dir(abs)
	return &f, nil
}

func (f *File) validate() error {
	if len(f.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i := range f.Steps {
		s := &f.Steps[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("step_%d", i+1)
		}
		if s.RequestURL == "" {
			return fmt.Errorf("steps[%d].requestUrl is required", i)
		}
		if s.ExpectedCode == 0 {
			return fmt.Errorf("steps[%d].expectedCode is required", i)
		}
		if s.RequestMethod == "" {
			s.RequestMethod = "GET"
		}
		if len(s.RequestBody) > 0 && s.RequestFileName != "" {
			return fmt.Errorf("steps[%d]: requestBody and requestFileName are exclusive", i)
		}
	}
	return nil
}

// path resolves name relative to the scenario file's directory.
func (f *File) path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.dir, name)
}

// LoadDir loads every *.json file directly in dir, sorted by name. Files
// referenced as request or response bodies should live in a subdirectory or
// use a different extension.
func LoadDir(dir string) ([]*File, []error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(entries) == 0 {
		return nil, []error{fmt.Errorf("testkit: no scenario files found in %q", dir)}
	}
	sort.Strings(entries)

	var (
		files []*File
		errs  []error
	)
	for _, path := range entries {
		f, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, f)
	}
	return files, errs
}
