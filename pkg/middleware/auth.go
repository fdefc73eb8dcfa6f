package middleware

import (
	"net/http"
	"strings"

	"github.com/shashiranjanraj/orderdesk/pkg/auth"
	"github.com/shashiranjanraj/orderdesk/pkg/response"
)

// StaffAuth validates a Bearer token and stores its claims in the context.
// With required=false a missing token passes through; a malformed or expired
// one is always rejected.
func StaffAuth(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if required {
					response.Unauthorized(w, "Unauthorized")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ValidateToken(token)
			if err != nil {
				response.Unauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// Browsers cannot set headers on WebSocket / EventSource handshakes.
	return r.URL.Query().Get("token")
}
