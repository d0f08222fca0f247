// Package rbac implements the role-based access-control core for the practice
// management platform: a closed set of permissions, the tenant role hierarchy,
// an immutable role-to-permission registry, and the relationship rules that
// govern role assignment between members.
//
// Everything in this package is a pure function over tables built once at
// process start. Predicates never fail and never panic; any role or permission
// value the tables do not recognize is treated as granting nothing.
package rbac

// Permission names one allowed action on one resource, in "resource:action"
// form. Permissions are compile-time constants; they have no runtime lifecycle.
type Permission string

const (
	// Patient records.
	PermissionPatientsView   Permission = "patients:view"
	PermissionPatientsCreate Permission = "patients:create"
	PermissionPatientsUpdate Permission = "patients:update"
	PermissionPatientsDelete Permission = "patients:delete"

	// Appointment book.
	PermissionAppointmentsView   Permission = "appointments:view"
	PermissionAppointmentsCreate Permission = "appointments:create"
	PermissionAppointmentsUpdate Permission = "appointments:update"
	PermissionAppointmentsDelete Permission = "appointments:delete"

	// Doctor directory.
	PermissionDoctorsView   Permission = "doctors:view"
	PermissionDoctorsCreate Permission = "doctors:create"
	PermissionDoctorsUpdate Permission = "doctors:update"
	PermissionDoctorsDelete Permission = "doctors:delete"

	// Dental charting.
	PermissionDentalChartsView   Permission = "dental-charts:view"
	PermissionDentalChartsUpdate Permission = "dental-charts:update"

	// Lab work tracking.
	PermissionLabworkView   Permission = "labwork:view"
	PermissionLabworkCreate Permission = "labwork:create"
	PermissionLabworkUpdate Permission = "labwork:update"
	PermissionLabworkDelete Permission = "labwork:delete"

	// Clinic expenses.
	PermissionExpensesView   Permission = "expenses:view"
	PermissionExpensesCreate Permission = "expenses:create"
	PermissionExpensesUpdate Permission = "expenses:update"
	PermissionExpensesDelete Permission = "expenses:delete"

	// Patient invoicing.
	PermissionInvoicesView   Permission = "invoices:view"
	PermissionInvoicesCreate Permission = "invoices:create"
	PermissionInvoicesUpdate Permission = "invoices:update"

	// Practice reports.
	PermissionReportsView   Permission = "reports:view"
	PermissionReportsExport Permission = "reports:export"

	// Staff accounts within the tenant.
	PermissionUsersView         Permission = "users:view"
	PermissionUsersCreate       Permission = "users:create"
	PermissionUsersUpdate       Permission = "users:update"
	PermissionUsersDelete       Permission = "users:delete"
	PermissionUsersPromoteOwner Permission = "users:promote-owner"

	// Tenant lifecycle and subscription billing. These sit in the
	// owner-exclusive tier together with users:promote-owner.
	PermissionTenantUpdate  Permission = "tenant:update"
	PermissionTenantDelete  Permission = "tenant:delete"
	PermissionBillingManage Permission = "billing:manage"
)

// allPermissions is the full catalog, grouped by resource. Order here is the
// declaration order above, not the sorted wire order.
var allPermissions = []Permission{
	PermissionPatientsView, PermissionPatientsCreate, PermissionPatientsUpdate, PermissionPatientsDelete,
	PermissionAppointmentsView, PermissionAppointmentsCreate, PermissionAppointmentsUpdate, PermissionAppointmentsDelete,
	PermissionDoctorsView, PermissionDoctorsCreate, PermissionDoctorsUpdate, PermissionDoctorsDelete,
	PermissionDentalChartsView, PermissionDentalChartsUpdate,
	PermissionLabworkView, PermissionLabworkCreate, PermissionLabworkUpdate, PermissionLabworkDelete,
	PermissionExpensesView, PermissionExpensesCreate, PermissionExpensesUpdate, PermissionExpensesDelete,
	PermissionInvoicesView, PermissionInvoicesCreate, PermissionInvoicesUpdate,
	PermissionReportsView, PermissionReportsExport,
	PermissionUsersView, PermissionUsersCreate, PermissionUsersUpdate, PermissionUsersDelete, PermissionUsersPromoteOwner,
	PermissionTenantUpdate, PermissionTenantDelete, PermissionBillingManage,
}

var permissionIndex = permissionSet(allPermissions)

// AllPermissions returns a copy of the full permission catalog in declaration
// order.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// ParsePermission maps a wire value to its Permission constant. It returns
// false for anything outside the catalog; callers must treat such input as
// granting nothing.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(s)
	if _, ok := permissionIndex[p]; !ok {
		return "", false
	}
	return p, true
}
