package http_test

import (
	"context"
	"encoding/json"
	"errors"
	gohttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xhttp "github.com/shashiranjanraj/orderdesk/pkg/http"
	"github.com/shashiranjanraj/orderdesk/pkg/testkit"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		assert.Equal(t, gohttp.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["text"]})
	}))
	defer srv.Close()

	resp, err := xhttp.Post(srv.URL).
		Header("X-Test", "yes").
		Body(map[string]string{"text": "hello"}).
		Send()
	require.NoError(t, err)
	require.NoError(t, resp.Throw())

	var out map[string]string
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "hello", out["echo"])
}

func TestThrowReturnsStatusError(t *testing.T) {
	mt := testkit.NewMockTransport(testkit.MockStep{StatusCode: gohttp.StatusForbidden, Body: json.RawMessage(`"invalid_token"`)})

	resp, err := xhttp.Get("https://hooks.example.com/x").Client(mt.Client()).Send()
	require.NoError(t, err)
	assert.False(t, resp.OK())

	var se *xhttp.StatusError
	require.True(t, errors.As(resp.Throw(), &se))
	assert.Equal(t, gohttp.StatusForbidden, se.Code)
	assert.True(t, se.ClientError())
	assert.Contains(t, se.Error(), "invalid_token")
}

func TestRetryOnTransportError(t *testing.T) {
	mt := testkit.NewMockTransport() // every call fails: no steps

	_, err := xhttp.Post("https://hooks.example.com/x").
		Client(mt.Client()).
		Retry(3, time.Millisecond).
		Send()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempt")
	assert.Len(t, mt.Calls(), 3)
}

func TestRetryStopsWhenContextDone(t *testing.T) {
	mt := testkit.NewMockTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := xhttp.Post("https://hooks.example.com/x").
		WithContext(ctx).
		Client(mt.Client()).
		Retry(5, time.Hour).
		Send()
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
