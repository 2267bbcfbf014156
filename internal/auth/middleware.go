package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// RoleResolver reads a user's current role names from the store.
type RoleResolver interface {
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
}

// Authenticator resolves the Bearer token on incoming requests and attaches
// the caller's identity to the request context. Role names are read from
// postgres on every request rather than captured at login, so role changes
// apply to the next request the user makes.
type Authenticator struct {
	logger   *slog.Logger
	tokens   *shared.TokenManager
	resolver RoleResolver
}

// NewAuthenticator builds an Authenticator.
func NewAuthenticator(logger *slog.Logger, tokens *shared.TokenManager, resolver RoleResolver) *Authenticator {
	return &Authenticator{logger: logger, tokens: tokens, resolver: resolver}
}

// Middleware attaches the identity for valid tokens and passes requests
// without one through untouched. Route guards decide whether an identity
// is required.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := a.tokens.Resolve(r.Context(), token)
		if err != nil {
			// Invalid token behaves like no token; guards return 401.
			next.ServeHTTP(w, r)
			return
		}
		roles, err := a.resolver.RolesForUser(r.Context(), userID)
		if err != nil {
			a.logger.Error("resolve roles", slog.Int64("user_id", userID), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		identity := &shared.Identity{UserID: userID, Roles: roles}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
