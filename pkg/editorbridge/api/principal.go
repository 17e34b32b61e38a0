package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"
)

// Anonymous is the principal of requests that carry no identity.
const Anonymous = "anonymous"

// PrincipalHeader names the caller when no JWT verifier is configured.
const PrincipalHeader = "X-Principal"

type contextKey string

const (
	principalKey contextKey = "principal"
	accessKey    contextKey = "access"
)

// accessRecord lets middleware running before principal resolution see the
// principal once the inner handlers have resolved it.
type accessRecord struct {
	principal string
}

// WithPrincipal stores the caller name in ctx.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	if rec, ok := ctx.Value(accessKey).(*accessRecord); ok {
		rec.principal = principal
	}
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFrom returns the caller name stored by the principal middleware.
func PrincipalFrom(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey).(string); ok && p != "" {
		return p
	}
	return Anonymous
}

// HeaderPrincipal trusts the X-Principal header, for deployments behind an
// authenticating proxy.
func HeaderPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimSpace(r.Header.Get(PrincipalHeader))
		if p == "" {
			p = Anonymous
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// JWTPrincipal verifies a bearer token with ja and uses its "sub" claim as the
// principal. Requests without a valid token are rejected with 401.
func JWTPrincipal(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	verify := jwtauth.Verifier(ja)
	return func(next http.Handler) http.Handler {
		return verify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				unauthorized(w, r)
				return
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				unauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), sub)))
		}))
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"Authentication required"}}`))
}
