package rbac

import "strings"

// Role names a position in the clinic's authority hierarchy. Role values are
// stored and transmitted as uppercase strings.
type Role string

const (
	RoleStaff       Role = "STAFF"
	RoleDoctor      Role = "DOCTOR"
	RoleClinicAdmin Role = "CLINIC_ADMIN"
	RoleAdmin       Role = "ADMIN"
	RoleOwner       Role = "OWNER"

	// RoleSuperAdmin identifies platform operators. It is out-of-band: no rank
	// in the tenant hierarchy, no tenant permissions, and never assignable to a
	// tenant member.
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// roleRanks orders the tenant hierarchy. SUPER_ADMIN is deliberately absent so
// that every rank comparison involving it fails closed.
var roleRanks = map[Role]int{
	RoleOwner:       5,
	RoleAdmin:       4,
	RoleClinicAdmin: 3,
	RoleDoctor:      2,
	RoleStaff:       1,
}

// tenantRoles lists the ranked roles in ascending order of authority.
var tenantRoles = []Role{RoleStaff, RoleDoctor, RoleClinicAdmin, RoleAdmin, RoleOwner}

// Rank returns the role's position in the tenant hierarchy, or 0 for roles
// outside it (unknown values and SUPER_ADMIN).
func Rank(role Role) int {
	return roleRanks[role]
}

// IsAtLeast reports whether role sits at or above threshold in the tenant
// hierarchy. It is false whenever either side is unranked.
func IsAtLeast(role, threshold Role) bool {
	r, ok := roleRanks[role]
	if !ok {
		return false
	}
	t, ok := roleRanks[threshold]
	if !ok {
		return false
	}
	return r >= t
}

// TenantRoles returns the ranked roles in ascending order of authority.
func TenantRoles() []Role {
	out := make([]Role, len(tenantRoles))
	copy(out, tenantRoles)
	return out
}

// ParseRole maps untyped wire input to a Role constant. Input is trimmed and
// uppercased first so claims produced by other systems still resolve. Anything
// else reports false and must be treated as holding no permissions.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleStaff, RoleDoctor, RoleClinicAdmin, RoleAdmin, RoleOwner, RoleSuperAdmin:
		return r, true
	default:
		return "", false
	}
}
