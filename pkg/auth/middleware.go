package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/agubarev/handbook/pkg/role"
	"go.uber.org/zap"
)

type contextKey int

const (
	ckClaims contextKey = iota
)

// WithClaims returns a context carrying verified claims
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, ckClaims, claims)
}

// ClaimsFromContext returns the claims of the request being served
func ClaimsFromContext(ctx context.Context) (Claims, error) {
	claims, ok := ctx.Value(ckClaims).(Claims)
	if !ok {
		return claims, ErrNoActor
	}

	return claims, nil
}

// ActorFromContext returns the actor of the request being served
func ActorFromContext(ctx context.Context) (role.Actor, error) {
	claims, err := ClaimsFromContext(ctx)
	if err != nil {
		return role.Actor{}, err
	}

	return claims.Actor(), nil
}

// BearerToken extracts the token of the authorization header
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrNoAuthorization
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrUnsupportedAuthorization
	}

	return strings.TrimSpace(parts[1]), nil
}

// Middleware validates the authorization header and adds
// the verified claims to the context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := a.Parse(token)
		if err != nil {
			a.Logger().Debug("rejected bearer token", zap.Error(err))
			http.Error(w, ErrInvalidAccessToken.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}
