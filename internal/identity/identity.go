// Package identity carries the authenticated identity consumed by the sync
// engine. Authentication itself (token issuance, sessions) is an external
// collaborator; this package only defines the shape the engine reads.
package identity

import "context"

// Role is the coarse access role of the current user
type Role string

const (
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
)

// IsValid reports whether the role is a known value
func (r Role) IsValid() bool {
	switch r {
	case RoleTechnician, RoleAdmin, RoleDispatcher:
		return true
	}
	return false
}

// UserContext holds the authenticated user information used to scope
// queries and attribute mutations. An empty OrganizationID means the
// process operates against the fixed local demo dataset.
type UserContext struct {
	UserID         string
	DisplayName    string
	Role           Role
	OrganizationID string
}

// IsTechnician reports whether the user only sees orders assigned to them
func (u *UserContext) IsTechnician() bool {
	return u.Role == RoleTechnician
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}
