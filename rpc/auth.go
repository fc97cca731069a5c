package rpc

import (
	"net/http"
	"strings"
)

// authenticator enforces bearer-token authentication on mutating routes.
// Requests must present one of the configured API tokens.
type authenticator struct {
	tokens map[string]struct{}
}

func newAuthenticator(tokens []string) *authenticator {
	set := make(map[string]struct{})
	for _, token := range tokens {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return &authenticator{tokens: set}
}

func (a *authenticator) enabled() bool {
	return a != nil && len(a.tokens) > 0
}

// middleware rejects requests that lack a configured bearer token. When no
// tokens are configured every mutating request is rejected, never silently
// allowed.
func (a *authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "bearer token required")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if !a.enabled() {
			writeError(w, http.StatusUnauthorized, "no api tokens configured")
			return
		}
		if _, ok := a.tokens[token]; !ok {
			writeError(w, http.StatusUnauthorized, "invalid api token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
