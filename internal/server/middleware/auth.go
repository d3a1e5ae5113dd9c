package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alanyoungcy/lottobet/internal/crypto"
	"github.com/alanyoungcy/lottobet/internal/domain"
)

type memberKey struct{}

// WithMember returns a copy of ctx carrying m.
func WithMember(ctx context.Context, m domain.Member) context.Context {
	return context.WithValue(ctx, memberKey{}, m)
}

// MemberFrom returns the member attached by RequireMember.
func MemberFrom(ctx context.Context) (domain.Member, bool) {
	m, ok := ctx.Value(memberKey{}).(domain.Member)
	return m, ok
}

// RequireMember resolves the bearer token into a domain.Member and rejects
// requests without one. The owner id is an HMAC of the token under pepper,
// so the token itself is never persisted. WebSocket clients, which cannot
// set headers from a browser, may pass the token as ?token=.
func RequireMember(pepper string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeUnauthorized(w, "missing member token")
				return
			}
			m := domain.Member{Token: token, Owner: crypto.OwnerID(pepper, token)}
			next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), m)))
		})
	}
}

// APIKey guards the whole API with a static X-API-Key header. An empty key
// disables the check.
func APIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || r.URL.Path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if key == "" {
				writeUnauthorized(w, "missing api key")
				return
			}
			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				writeUnauthorized(w, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if r.Method == http.MethodGet && r.URL.Path == "/ws" {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

// writeError sends {"error": msg} without pulling in the handler package.
func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
