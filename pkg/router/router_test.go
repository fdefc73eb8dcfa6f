package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderdesk/pkg/router"
)

func TestGroupMountsWithPrefixAndMiddleware(t *testing.T) {
	r := router.New()

	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Group", "api")
			next.ServeHTTP(w, req)
		})
	}

	api := r.Group("/api", tag)
	api.Put("/orders/{id}/status", "orders.status", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(chi.URLParam(req, "id")))
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/orders/ORD-1/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ORD-1", rec.Body.String())
	assert.Equal(t, "api", rec.Header().Get("X-Group"))
}

func TestURLAndRoutes(t *testing.T) {
	r := router.New()
	r.Get("/api/orders/{id}", "orders.show", func(http.ResponseWriter, *http.Request) {})
	r.Post("/api/orders", "orders.store", func(http.ResponseWriter, *http.Request) {})

	url, err := r.URL("orders.show", map[string]string{"id": "ORD-9"})
	require.NoError(t, err)
	assert.Equal(t, "/api/orders/ORD-9", url)

	_, err = r.URL("orders.show", nil)
	assert.Error(t, err)

	routes := r.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "/api/orders", routes[0].Path)
	assert.Equal(t, http.MethodPost, routes[0].Method)
}
