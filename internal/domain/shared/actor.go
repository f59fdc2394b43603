package shared

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the coarse authorization role supplied by authentication
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// ParseRole normalizes a role claim. Unknown roles become staff.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleStaff
	}
}

// Actor identifies who performs an operation. It is passed explicitly through
// every mutating call.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// NewActor creates an actor
func NewActor(id uuid.UUID, role Role) Actor {
	return Actor{ID: id, Role: role}
}

// IsPrivileged reports whether the actor may bypass edit locks and run
// admin-only operations
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleAdmin
}

// Validate checks that the actor is usable for a mutation
func (a Actor) Validate() error {
	if a.ID == uuid.Nil {
		return NewDomainError(CodeUnauthorized, "Actor is required")
	}
	return nil
}

// RequireAdmin fails with FORBIDDEN unless the actor is an admin
func (a Actor) RequireAdmin(action string) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !a.IsPrivileged() {
		return ErrForbidden.WithDetail("action", action).WithDetail("role", string(a.Role))
	}
	return nil
}
