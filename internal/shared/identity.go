package shared

import "context"

// Roles recognised by the API. Role gating happens in middleware; the
// ledger engine trusts the resolved identity it receives.
const (
	RoleAdmin      = "Admin"
	RoleSuperAdmin = "Super_Admin"
	RoleViewer     = "Viewer"
)

// Identity is the already-authenticated caller.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the identity may mutate fund requests.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin || i.Role == RoleSuperAdmin
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
