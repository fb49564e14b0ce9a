package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dostvardhan/drivegate/auth"
)

// TokenVerifier validates a bearer token and extracts the caller identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Authorizer decides whether a verified identity may use the gateway.
type Authorizer interface {
	IsAuthorized(id auth.Identity) bool
}

// identityKey is the context key for the verified caller identity.
type identityKey struct{}

// IdentityFromContext retrieves the verified identity set by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// AuthMiddleware enforces bearer-token authentication and the allow-list
// policy. Authorization is evaluated only after verification so nothing
// leaks to unauthenticated callers. Failure responses carry generic
// messages; the verification detail goes to the log.
func AuthMiddleware(verifier TokenVerifier, policy Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Bearer token required")
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				slog.Info("token rejected", "path", r.URL.Path, "err", err)
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}

			if !policy.IsAuthorized(identity) {
				slog.Info("identity not on allow list", "subject", identity.Subject)
				WriteError(w, http.StatusForbidden, "forbidden", "Access denied")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}
