package carevault

import "strings"

// Role is the function a user performs. The set is closed: any value other than the
// three constants below is an unknown role and is denied everything.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleReceptionist Role = "receptionist"
)

// ParseRole trims s into a Role. Matching is exact: "Admin" is not RoleAdmin, and
// any unrecognized value fails closed wherever it is used.
func ParseRole(s string) Role {
	return Role(strings.TrimSpace(s))
}

// Known reports whether r is one of the defined roles.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleReceptionist:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated caller a disclosure or operation is made for.
type Principal struct {
	UserID int64
	Role   Role
}
