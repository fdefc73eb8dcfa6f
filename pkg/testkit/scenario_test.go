package testkit_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderdesk/pkg/testkit"
)

// notesHandler is a tiny stateful API: POST /notes stores a note and pings a
// webhook through client, GET /notes/{id} reads it back.
func notesHandler(client *http.Client) http.Handler {
	var (
		mu    sync.Mutex
		notes = map[string]string{}
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/notes":
			var in struct {
				Text string `json:"text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Text == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"status":400,"message":"text is required"}`))
				return
			}
			mu.Lock()
			id := "N-" + string(rune('0'+len(notes)+1))
			notes[id] = in.Text
			mu.Unlock()

			if client != nil {
				go func() {
					resp, err := client.Post("https://hooks.example.com/notes", "application/json", bytes.NewReader([]byte(`{}`)))
					if err == nil {
						resp.Body.Close()
					}
				}()
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": 201, "data": map[string]string{"id": id, "text": in.Text}})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/notes/"):
			mu.Lock()
			text, ok := notes[strings.TrimPrefix(r.URL.Path, "/notes/")]
			mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status":404,"message":"not found"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": 200, "data": map[string]string{"text": text}})

		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":404}`))
		}
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunDirWithCaptureAndOutbound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bodies/note.json", `{"text": "extra chutney"}`)
	writeFile(t, dir, "01_notes.json", `{
		"name": "note lifecycle",
		"outbound": [{"matchUrl": "https://hooks.example.com/", "matchMethod": "POST"}],
		"steps": [
			{
				"name": "create",
				"requestMethod": "POST",
				"requestUrl": "/notes",
				"requestFileName": "bodies/note.json",
				"expectedCode": 201,
				"expectedBody": {"data": {"text": "extra chutney"}},
				"capture": {"noteId": "data.id"}
			},
			{
				"name": "read back",
				"requestUrl": "/notes/{{noteId}}",
				"expectedCode": 200,
				"expectedBody": {"status": 200, "data": {"text": "extra chutney"}}
			}
		]
	}`)
	writeFile(t, dir, "02_missing.json", `{
		"steps": [
			{"requestMethod": "POST", "requestUrl": "/notes", "requestBody": {}, "expectedCode": 400},
			{"requestUrl": "/notes/N-9", "expectedCode": 404, "expectedBody": {"message": "not found"}}
		]
	}`)

	mt := testkit.NewMockTransport()
	testkit.RunDir(t, notesHandler(mt.Client()), dir, mt)

	calls := mt.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.JSONEq(t, `{}`, string(calls[0].Body))
}

func TestLoadFileValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := testkit.LoadFile(writeFile(t, dir, "empty.json", `{"name": "x"}`))
	assert.ErrorContains(t, err, "at least one step")

	_, err = testkit.LoadFile(writeFile(t, dir, "nourl.json", `{"steps": [{"expectedCode": 200}]}`))
	assert.ErrorContains(t, err, "requestUrl")

	_, err = testkit.LoadFile(writeFile(t, dir, "nocode.json", `{"steps": [{"requestUrl": "/"}]}`))
	assert.ErrorContains(t, err, "expectedCode")

	f, err := testkit.LoadFile(writeFile(t, dir, "defaults.json", `{"steps": [{"requestUrl": "/", "expectedCode": 200}]}`))
	require.NoError(t, err)
	assert.Equal(t, "defaults", f.Name)
	assert.Equal(t, "GET", f.Steps[0].RequestMethod)
	assert.Equal(t, "step_1", f.Steps[0].Name)

	var out bytes.Buffer
	testkit.DumpFile(&out, f)
	assert.Contains(t, out.String(), "GET / → 200")
}

func TestDiffJSONIsSubset(t *testing.T) {
	var exp, act interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"data": {"status": "received", "items": [{"qty": 2}]}}`), &exp))
	require.NoError(t, json.Unmarshal([]byte(`{"status": 201, "data": {"id": "ORD-1", "status": "received", "items": [{"name": "Dosa", "qty": 2}]}}`), &act))
	assert.Empty(t, testkit.DiffJSON("", exp, act))

	require.NoError(t, json.Unmarshal([]byte(`{"data": {"status": "delivered"}}`), &exp))
	diffs := testkit.DiffJSON("", exp, act)
	require.Len(t, diffs, 1)
	assert.Contains(t, diffs[0], "data.status")
}

func TestLookup(t *testing.T) {
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"data": {"items": [{"name": "Dosa"}]}}`), &v))

	got, ok := testkit.Lookup(v, "data.items.0.name")
	assert.True(t, ok)
	assert.Equal(t, "Dosa", got)

	_, ok = testkit.Lookup(v, "data.items.3.name")
	assert.False(t, ok)
}

func TestMockTransportRejectsUnmatched(t *testing.T) {
	mt := testkit.NewMockTransport(testkit.MockStep{MatchURL: "https://push.example.com/", StatusCode: http.StatusGone})

	resp, err := mt.Client().Post("https://push.example.com/sub/1", "application/octet-stream", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	_, err = mt.Client().Get("https://elsewhere.example.com/")
	assert.Error(t, err)
	assert.Empty(t, mt.Uncalled())
	assert.Len(t, mt.Calls(), 2)
}
