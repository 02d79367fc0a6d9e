package httpserver

import (
	"net/http"
	"strings"

	"github.com/fdg312/nutriplan/internal/config"
)

const (
	corsAllowMethods = "GET,POST,DELETE,OPTIONS"
	corsAllowHeaders = "Authorization,Content-Type"
	// PDF and CSV exports name the file in Content-Disposition.
	corsExposeHeaders = "Content-Disposition"
)

// CORSMiddleware returns an http.Handler that adds CORS headers for the
// configured origins. "*" in CORS_ALLOWED_ORIGINS allows any origin but is
// never combined with credentials.
func CORSMiddleware(cfg *config.Config, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(cfg.CORSAllowedOrigins))
	wildcard := false
	for _, o := range cfg.CORSAllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
			continue
		}
		allowed[o] = true
	}
	isAllowed := func(origin string) bool {
		return origin != "" && (wildcard || allowed[origin])
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		ok := isAllowed(origin)

		if ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
			w.Header().Add("Vary", "Origin")

			if cfg.CORSAllowCredentials && !wildcard {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		// Preflight never reaches the router; a disallowed origin gets 204
		// without CORS headers and the browser blocks it.
		if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
			if ok {
				w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
