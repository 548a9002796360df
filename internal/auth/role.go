package auth

import "fmt"

// Role is the closed set of user roles. Role strings in storage and tokens
// always match one of the constants below.
type Role string

const (
	// RoleAdmin manages tenants and sees everything.
	RoleAdmin Role = "ADMIN"
	// RoleBrandUser operates the inbox of exactly one brand.
	RoleBrandUser Role = "BRAND_USER"
)

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleBrandUser
}

// ParseRole converts a stored role string into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}
