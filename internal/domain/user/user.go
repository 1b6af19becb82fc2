// Package user defines the authenticated principal and its roles.
package user

import "errors"

// Role represents the authorization level of a user within a tenant.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ValidRoles is the set of all valid user roles.
var ValidRoles = map[Role]bool{
	RoleAdmin:  true,
	RoleMember: true,
	RoleViewer: true,
}

// User is the principal resolved from a bearer token. Identities are issued
// by the backend auth service; Studio never stores credentials.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenant_id"`
}

// DisplayName returns the name, falling back to the email address.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Validate checks that the principal carries the fields every request needs.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("subject is required")
	}
	if u.TenantID == "" {
		return errors.New("tenant is required")
	}
	if !ValidRoles[u.Role] {
		return errors.New("invalid role: must be admin, member, or viewer")
	}
	return nil
}

// ParseRole maps a claim value to a Role. Unknown values become RoleMember.
func ParseRole(s string) Role {
	r := Role(s)
	if ValidRoles[r] {
		return r
	}
	return RoleMember
}
