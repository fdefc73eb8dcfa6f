package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderdesk/pkg/auth"
	"github.com/shashiranjanraj/orderdesk/pkg/middleware"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRecovery_ReturnsGeneric500(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestCORS_Preflight(t *testing.T) {
	h := middleware.CORS(middleware.DefaultCORSOptions())(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5500")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLimiter(t *testing.T) {
	l := middleware.NewLimiter(2, time.Minute)
	h := l.Middleware(ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestStaffAuth(t *testing.T) {
	token, err := auth.GenerateToken("staff", "Manager")
	require.NoError(t, err)

	var sawClaims bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawClaims = auth.ClaimsFromCtx(r.Context())
	})

	cases := []struct {
		name     string
		required bool
		header   string
		code     int
		claims   bool
	}{
		{"optional without token", false, "", http.StatusOK, false},
		{"required without token", true, "", http.StatusUnauthorized, false},
		{"required with token", true, "Bearer " + token, http.StatusOK, true},
		{"bad token", false, "Bearer nope", http.StatusUnauthorized, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sawClaims = false
			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			middleware.StaffAuth(tc.required)(inner).ServeHTTP(rec, req)

			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.claims, sawClaims)
		})
	}
}
