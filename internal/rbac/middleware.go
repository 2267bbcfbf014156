package rbac

import (
	"fmt"
	"net/http"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// RequireRole gates a route subtree behind a role. Requests without an
// authenticated identity get 401, authenticated callers missing the role
// get 403. The check runs before any handler touches the request body.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.RespondError(w, fmt.Errorf("authentication required: %w", shared.ErrUnauthenticated))
				return
			}
			if !shared.Authorize(identity.Roles, role) {
				httpx.RespondError(w, fmt.Errorf("role %q required: %w", role, shared.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is the gate applied to every management route.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(shared.RoleAdmin)(next)
}
