package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/mk-uidev/flavorforge/internal/domain/auth"
)

// APIKeyHeader carries the admin API key.
const APIKeyHeader = "api_key"

type principalKey struct{}

// principalFrom returns the principal resolved for the request, or Anonymous
// when the middleware did not run.
func principalFrom(ctx context.Context) auth.Principal {
	if p, ok := ctx.Value(principalKey{}).(auth.Principal); ok {
		return p
	}
	return auth.Anonymous
}

// principalMiddleware resolves the caller identity once per request. An admin
// API key or a customer bearer token that is present but invalid fails the
// request outright; absent credentials resolve to Anonymous and leave the
// authorization decision to each handler.
func (h *Handler) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.Anonymous

		if key := r.Header.Get(APIKeyHeader); key != "" {
			info, err := h.verifier.Verify(r.Context(), key)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			p = auth.AdminPrincipal(info.Name)
		} else if raw := bearerToken(r); raw != "" {
			claims, err := h.tokens.Verify(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			p = auth.CustomerPrincipal(claims.CustomerID)
		}

		ctx := context.WithValue(r.Context(), principalKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return v[len(prefix):]
	}
	return ""
}
