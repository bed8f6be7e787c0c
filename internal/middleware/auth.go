package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/leanbalancer/admindash/internal/config"
)

// Auth returns middleware that requires an admin key for /admin/ paths.
// Every other path passes through untouched.
func Auth(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !isAdminPath(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				WriteError(w, http.StatusUnauthorized, "authentication_error", "Invalid or missing API key")
				return
			}
			if !validKey(key, cfg.AdminKeys) {
				WriteError(w, http.StatusForbidden, "authorization_error", "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAdminPath(path string) bool {
	return path == "/admin" || strings.HasPrefix(path, "/admin/")
}

func validKey(key string, keys []string) bool {
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func extractAPIKey(r *http.Request) string {
	// Check Authorization: Bearer <key>
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Check X-API-Key header
	return r.Header.Get("X-API-Key")
}
