package admin

import (
	"github.com/google/uuid"
)

// Role represents admin role. Admin accounts live in the admin portal; this
// service only trusts the role carried in a signed token.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleSupport    Role = "support"
)

func (r Role) Valid() bool {
	_, ok := RolePermissions[r]
	return ok
}

// HasPermission checks if role grants perm
func (r Role) HasPermission(perm Permission) bool {
	for _, p := range RolePermissions[r] {
		if p == perm {
			return true
		}
	}
	return false
}

// Principal is the authenticated admin of a request
type Principal struct {
	AdminID uuid.UUID `json:"admin_id"`
	Email   string    `json:"email"`
	Role    Role      `json:"role"`
}
