package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/stepimport/internal/config"
	"github.com/JonMunkholm/stepimport/internal/core"
)

// AnonymousPrincipal is recorded on requests when API keys are not required.
const AnonymousPrincipal = "anonymous"

// APIKeyAuth returns middleware that resolves the X-API-Key header to a
// principal and records it on the request context.
// If RequireAPIKey is false, every request runs as AnonymousPrincipal.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := cfg.KeyPrincipals()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				ctx := core.ContextWithPrincipal(r.Context(), AnonymousPrincipal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			principal, ok := lookupKey(apiKey, keys)
			if !ok {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			ctx := core.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// lookupKey finds the principal owning key. Every configured key is compared
// in constant time so the response time does not depend on which one matches.
func lookupKey(key string, keys map[string]string) (string, bool) {
	var principal string
	found := 0
	for candidate, name := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(candidate)) == 1 {
			principal = name
			found = 1
		}
	}
	return principal, found == 1
}
