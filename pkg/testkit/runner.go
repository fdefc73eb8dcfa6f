package testkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

// OutboundWait bounds how long a file waits for its outbound mocks to be hit.
// Deliveries often run on background workers after the response is written.
var OutboundWait = 3 * time.Second

// Run executes one scenario file against handler as a subtest. mt may be nil
// when the file declares no outbound mocks.
//
// Lifecycle per file:
//  1. Load the file and install its outbound mocks on mt.
//  2. For each step: substitute captured values, fire the request, assert the
//     status code and body subset, capture values for later steps.
//  3. Wait for every outbound mock to have been called.
func Run(t *testing.T, handler http.Handler, path string, mt *MockTransport) {
	t.Helper()

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("%v", err)
	}
	t.Run(f.Name, func(t *testing.T) {
		runFile(t, handler, f, mt)
	})
}

// RunDir runs every *.json file in dir as its own subtest, in name order.
// Files that fail to load are reported as test failures.
func RunDir(t *testing.T, handler http.Handler, dir string, mt *MockTransport) {
	t.Helper()

	files, errs := LoadDir(dir)
	for _, err := range errs {
		t.Errorf("%v", err)
	}
	for _, f := range files {
		f := f
		t.Run(f.Name, func(t *testing.T) {
			runFile(t, handler, f, mt)
		})
	}
}

func runFile(t *testing.T, handler http.Handler, f *File, mt *MockTransport) {
	t.Helper()

	if len(f.Outbound) > 0 {
		if mt == nil {
			t.Fatalf("[%s] declares outbound mocks but no MockTransport was given", f.Name)
		}
		mt.Install(f.Outbound...)
	}

	vars := map[string]string{}
	for _, step := range f.Steps {
		if !runStep(t, handler, f, step, vars) {
			return
		}
	}

	if mt != nil && len(f.Outbound) > 0 {
		deadline := time.Now().Add(OutboundWait)
		for len(mt.Uncalled()) > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		for _, s := range mt.Uncalled() {
			t.Errorf("[%s] outbound mock %s %q was never called", f.Name, s.MatchMethod, s.MatchURL)
		}
	}
}

// runStep reports whether later steps can still run.
func runStep(t *testing.T, handler http.Handler, f *File, step Step, vars map[string]string) bool {
	t.Helper()

	var reqBody io.Reader
	switch {
	case len(step.RequestBody) > 0:
		reqBody = strings.NewReader(expand(string(step.RequestBody), vars))
	case step.RequestFileName != "":
		data, err := os.ReadFile(f.path(step.RequestFileName))
		if err != nil {
			t.Errorf("[%s] read request file: %v", step.Name, err)
			return false
		}
		reqBody = strings.NewReader(expand(string(data), vars))
	}

	req := httptest.NewRequest(strings.ToUpper(step.RequestMethod), expand(step.RequestURL, vars), reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range step.Headers {
		req.Header.Set(k, expand(v, vars))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	body := rec.Body.Bytes()

	AssertStatusCode(t, step, rec.Code, body)

	if len(step.ExpectedBody) > 0 {
		AssertJSONSubset(t, step.Name, []byte(expand(string(step.ExpectedBody), vars)), body)
	}
	if step.ResponseFileName != "" {
		expected, err := os.ReadFile(f.path(step.ResponseFileName))
		if err != nil {
			t.Errorf("[%s] read response file: %v", step.Name, err)
		} else {
			AssertJSONSubset(t, step.Name, []byte(expand(string(expected), vars)), body)
		}
	}

	if len(step.Capture) == 0 {
		return true
	}
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Errorf("[%s] capture: response is not JSON: %v", step.Name, err)
		return false
	}
	for name, path := range step.Capture {
		v, ok := Lookup(decoded, path)
		if !ok {
			t.Errorf("[%s] capture %q: path %q not found", step.Name, name, path)
			return false
		}
		vars[name] = fmt.Sprint(v)
	}
	return true
}

// expand replaces {{name}} with captured values. Unknown names are left as is.
func expand(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// DumpFile prints a human-readable summary of f. Useful while writing
// scenarios.
func DumpFile(w io.Writer, f *File) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Scenario: %s (%s)\n", f.Name, f.dir)
	for i, s := range f.Steps {
		fmt.Fprintf(&buf, "  %d. %s %s → %d\n", i+1, s.RequestMethod, s.RequestURL, s.ExpectedCode)
	}
	for _, m := range f.Outbound {
		fmt.Fprintf(&buf, "  outbound: %s %s → %d\n", m.MatchMethod, m.MatchURL, m.StatusCode)
	}
	_, _ = w.Write(buf.Bytes())
}
