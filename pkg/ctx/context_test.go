package ctx_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderdesk/pkg/auth"
	appctx "github.com/shashiranjanraj/orderdesk/pkg/ctx"
)

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.Success(map[string]int{"id": 1})
		assert.Equal(t, http.StatusOK, c.WrittenStatus())
	})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, 200, env.Status)
	assert.JSONEq(t, `{"id":1}`, string(env.Data))
}

func TestParam(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/orders/{id}", appctx.Wrap(func(c *appctx.Context) {
		c.Success(c.Param("id"))
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-1", nil))
	assert.JSONEq(t, `"ORD-1"`, string(decode(t, rec).Data))
}

func TestBindJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"preparing"}`))
		appctx.Wrap(func(c *appctx.Context) {
			var in struct {
				Status string `json:"status"`
			}
			require.True(t, c.BindJSON(&in))
			assert.Equal(t, "preparing", in.Status)
			c.Message(http.StatusOK, "ok")
		})(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":`))
		appctx.Wrap(func(c *appctx.Context) {
			var in struct{}
			assert.False(t, c.BindJSON(&in))
		})(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec).Message, "invalid JSON")
	})
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(c *appctx.Context)
		code int
		msg  string
	}{
		{"not found", func(c *appctx.Context) { c.NotFound("Order not found") }, 404, "Order not found"},
		{"unauthorized", func(c *appctx.Context) { c.Unauthorized("nope") }, 401, "nope"},
		{"internal", func(c *appctx.Context) { c.InternalError(errors.New("disk on fire")) }, 500, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			appctx.Wrap(tt.fn)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, decode(t, rec).Message)
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.ValidationError(map[string]string{"customer.name": "The customer.name field is required."})
	})(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Errors, "customer.name")
}

func TestClaims(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{StaffID: "staff"}))

	appctx.Wrap(func(c *appctx.Context) {
		claims, ok := c.Claims()
		require.True(t, ok)
		assert.Equal(t, "staff", claims.StaffID)
		c.Success(nil)
	})(httptest.NewRecorder(), req)
}
