package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/result-system/apiserver/internal/apperr"
	"github.com/result-system/apiserver/types"
)

// AccessVerifier checks access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (types.AuthorizedUser, error)
}

// RequireAuth verifies the bearer access token and stores the principal in
// the request context. Requests without a valid token get 401 and never
// reach next.
func RequireAuth(verifier AccessVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, r, log, apperr.Unauthenticated(err))
				return
			}

			principal, err := verifier.VerifyAccess(tokenString)
			if err != nil {
				writeError(w, r, log, apperr.Unauthenticated(err))
				return
			}

			ctx := context.WithValue(r.Context(), contextPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles lets the request through only when the authenticated
// principal has one of roles. It must run after RequireAuth.
func RequireRoles(log *zap.Logger, roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok || !hasRole(principal.Role, roles) {
				writeError(w, r, log, apperr.Forbidden())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(role types.Role, roles []types.Role) bool {
	for _, allowed := range roles {
		if role == allowed {
			return true
		}
	}
	return false
}

// PrincipalFromContext returns the user authenticated by RequireAuth.
func PrincipalFromContext(ctx context.Context) (types.AuthorizedUser, bool) {
	principal, ok := ctx.Value(contextPrincipalKey).(types.AuthorizedUser)
	return principal, ok
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		auth = auth[7:]
	}
	token := strings.TrimSpace(auth)
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
