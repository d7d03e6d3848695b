package auth

import "errors"

var ErrInvalidRole = errors.New("invalid role")

// Role is the platform role of an authenticated user.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleHost, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor is the already-authenticated caller of an engine operation.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
