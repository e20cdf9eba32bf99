package domain

import "fmt"

// Role classifies what a principal may do. Roles are supplied by the
// identity provider; the service never stores or issues them.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleTrial    Role = "trial"
)

// ParseRole validates a role string from an external source.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleEmployee, RoleTrial:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Principal is the authenticated actor threaded through every mutating
// call. There is no ambient session state; authorization decisions read
// only from this value and the record being mutated.
type Principal struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanManagePlans reports whether the principal may create plans.
func (p Principal) CanManagePlans() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}
