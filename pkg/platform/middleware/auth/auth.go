// Package auth guards staff routes. It validates bearer tokens through
// an injected validator and stamps the acting staff ID into the request
// context; it never parses tokens itself.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/platform/httputil"
	"labcert/pkg/requestcontext"
)

// Claims is what the middleware needs from a validated token.
type Claims struct {
	UserID string
	Name   string
	Role   string
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

type roleKey struct{}

// Role retrieves the authenticated staff role from the context.
func Role(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRole injects a role into the context. Exposed for handler tests.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RequireAuth rejects requests without a valid bearer token and stamps
// actor ID and role into the context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access, missing bearer token",
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, derrors.New(derrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, derrors.New(derrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			actor, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, malformed subject",
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, derrors.New(derrors.CodeUnauthorized, "invalid token claims"))
				return
			}

			ctx = requestcontext.WithActorID(ctx, actor)
			ctx = WithRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SharedTokenVerifier checks the shared operations token presented in
// the X-Admin-Token header.
type SharedTokenVerifier interface {
	Enabled() bool
	Verify(token string) error
}

// RequireAdmin guards administrative routes. Requests carrying a valid
// X-Admin-Token pass with the given role directly; everything else goes
// through the regular bearer-token chain and must hold the role.
func RequireAdmin(validator TokenValidator, shared SharedTokenVerifier, role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		viaBearer := RequireAuth(validator, logger)(RequireRole(role, logger)(next))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := r.Header.Get("X-Admin-Token")
			if shared != nil && shared.Enabled() && token != "" {
				if err := shared.Verify(token); err != nil {
					logger.WarnContext(ctx, "unauthorized access, invalid admin token",
						"request_id", requestcontext.RequestID(ctx))
					httputil.WriteError(w, derrors.New(derrors.CodeUnauthorized, "invalid admin token"))
					return
				}
				next.ServeHTTP(w, r.WithContext(WithRole(ctx, role)))
				return
			}

			viaBearer.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects authenticated requests whose role does not match.
// Apply after RequireAuth.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if Role(ctx) != role {
				logger.WarnContext(ctx, "forbidden access",
					"required_role", role,
					"actor", requestcontext.ActorID(ctx).String(),
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, derrors.New(derrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
