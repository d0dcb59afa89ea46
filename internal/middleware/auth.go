package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"equiviz/internal/domain"
)

type identityContextKey struct{}

// TokenVerifier validates a bearer token and resolves the identity it
// was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// Authenticator requires a valid Authorization bearer token and puts
// the resolved identity into the request context.
func Authenticator(verifier TokenVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized,
					"UNAUTHORIZED", "Authentication required", GetReqID(ctx))
				return
			}

			identity, err := verifier.Verify(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "token rejected",
					"error", err.Error(),
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Invalid or expired token", GetReqID(ctx))
				return
			}

			ctx = context.WithValue(ctx, identityContextKey{}, *identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(domain.Identity)
	return identity, ok
}

// WithIdentity returns a context carrying the given identity. Intended
// for tests that exercise handlers below the Authenticator.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
