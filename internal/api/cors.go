package api

import (
	"net/http"
)

// originAllowed reports whether origin is in the configured CORS list.
func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.CORSAllowedOrigins {
		if o == origin || o == "*" {
			return true
		}
	}
	return false
}

// CORSMiddleware sets credentialed CORS headers for allowed origins and
// answers preflight requests. Requests from other origins pass through
// without CORS headers.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !s.originAllowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
