package rbac

import "sort"

// Permission tiers. Each ranked role is granted the union of its own tier and
// every tier below it, so the accumulation invariant (a higher role always
// holds everything a lower role holds) is structural rather than asserted.

// staffTier covers front-desk work: reading records and running the
// appointment book.
var staffTier = []Permission{
	PermissionPatientsView,
	PermissionAppointmentsView,
	PermissionAppointmentsCreate,
	PermissionAppointmentsUpdate,
	PermissionDoctorsView,
}

// doctorTier adds clinical charting and lab-case handling.
var doctorTier = []Permission{
	PermissionPatientsUpdate,
	PermissionDentalChartsView,
	PermissionDentalChartsUpdate,
	PermissionLabworkView,
	PermissionLabworkCreate,
	PermissionLabworkUpdate,
}

// clinicAdminTier adds day-to-day clinic operations.
var clinicAdminTier = []Permission{
	PermissionAppointmentsDelete,
	PermissionLabworkDelete,
	PermissionExpensesView,
	PermissionExpensesCreate,
	PermissionExpensesUpdate,
	PermissionReportsView,
}

// adminTier adds record lifecycle, staff management, and invoicing.
var adminTier = []Permission{
	PermissionPatientsCreate,
	PermissionPatientsDelete,
	PermissionDoctorsCreate,
	PermissionDoctorsUpdate,
	PermissionDoctorsDelete,
	PermissionUsersView,
	PermissionUsersCreate,
	PermissionUsersUpdate,
	PermissionUsersDelete,
	PermissionExpensesDelete,
	PermissionInvoicesView,
	PermissionInvoicesCreate,
	PermissionInvoicesUpdate,
	PermissionReportsExport,
}

// ownerTier is exclusive: no other role ever holds these.
var ownerTier = []Permission{
	PermissionTenantUpdate,
	PermissionTenantDelete,
	PermissionBillingManage,
	PermissionUsersPromoteOwner,
}

// permissionSet merges permission groups into a hash set for O(1) membership.
func permissionSet(groups ...[]Permission) map[Permission]struct{} {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	set := make(map[Permission]struct{}, total)
	for _, g := range groups {
		for _, p := range g {
			set[p] = struct{}{}
		}
	}
	return set
}

// Registry is the immutable role-to-permission table. Build it with New and
// query it through the predicate methods; the underlying sets are never
// exposed or mutated, so a single Registry is safe for concurrent use without
// locking.
type Registry struct {
	grants map[Role]map[Permission]struct{}
}

// New builds the registry from the permission tiers. The constructor is pure:
// no I/O, no configuration, same table every time.
func New() *Registry {
	return &Registry{grants: map[Role]map[Permission]struct{}{
		RoleStaff:       permissionSet(staffTier),
		RoleDoctor:      permissionSet(staffTier, doctorTier),
		RoleClinicAdmin: permissionSet(staffTier, doctorTier, clinicAdminTier),
		RoleAdmin:       permissionSet(staffTier, doctorTier, clinicAdminTier, adminTier),
		RoleOwner:       permissionSet(staffTier, doctorTier, clinicAdminTier, adminTier, ownerTier),
	}}
}

// HasPermission reports whether role holds perm. Roles absent from the table,
// including SUPER_ADMIN and anything unrecognized, hold the empty set.
func (r *Registry) HasPermission(role Role, perm Permission) bool {
	_, ok := r.grants[role][perm]
	return ok
}

// HasAnyPermission reports whether role holds at least one of perms. An empty
// list is false: "any of none" is never satisfied.
func (r *Registry) HasAnyPermission(role Role, perms ...Permission) bool {
	grants := r.grants[role]
	for _, p := range perms {
		if _, ok := grants[p]; ok {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether role holds every one of perms. An empty
// list is true: "all of none" is vacuously satisfied.
func (r *Registry) HasAllPermissions(role Role, perms ...Permission) bool {
	grants := r.grants[role]
	for _, p := range perms {
		if _, ok := grants[p]; !ok {
			return false
		}
	}
	return true
}

// PermissionsFor returns the role's permissions sorted by wire value. The
// result is a fresh slice; mutating it cannot reach the table.
func (r *Registry) PermissionsFor(role Role) []Permission {
	grants := r.grants[role]
	out := make([]Permission, 0, len(grants))
	for p := range grants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// defaultRegistry is the process-wide table, built once before first use and
// never replaced.
var defaultRegistry = New()

// HasPermission queries the process-wide registry.
func HasPermission(role Role, perm Permission) bool {
	return defaultRegistry.HasPermission(role, perm)
}

// HasAnyPermission queries the process-wide registry.
func HasAnyPermission(role Role, perms ...Permission) bool {
	return defaultRegistry.HasAnyPermission(role, perms...)
}

// HasAllPermissions queries the process-wide registry.
func HasAllPermissions(role Role, perms ...Permission) bool {
	return defaultRegistry.HasAllPermissions(role, perms...)
}

// PermissionsFor queries the process-wide registry.
func PermissionsFor(role Role) []Permission {
	return defaultRegistry.PermissionsFor(role)
}
