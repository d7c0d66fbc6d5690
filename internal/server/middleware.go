package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tams/internal/auth"
)

const (
	corsAllowMethods = "GET, HEAD, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type, X-Confirm, X-Request-ID"
	corsMaxAge       = "600"
)

// withAuth rejects requests without valid credentials when auth is
// required. The liveness probe and CORS preflights are always allowed.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.requireAuth || r.URL.Path == "/health" || isPreflight(r) {
			next.ServeHTTP(w, r)
			return
		}
		if s.gate == nil || !s.gate.Configured() {
			s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(fmt.Errorf("authentication required but no credentials are configured")))
			return
		}

		principal, err := s.gate.Authenticate(r)
		if err != nil {
			message := "invalid credentials"
			if errors.Is(err, auth.ErrMissingCredentials) {
				message = "authentication required"
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="tams"`)
			s.writeErrorReq(w, r, http.StatusUnauthorized, makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized, errors.New(message)))
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithPrincipal(r.Context(), principal)))
	})
}

// withCORS answers preflights and decorates responses for allowed origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !s.originAllowed(origin) {
			if isPreflight(r) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		if s.allowAnyOrigin() {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Expose-Headers", "X-Request-ID")

		if isPreflight(r) {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) allowAnyOrigin() bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" {
			return true
		}
	}
	return false
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}
