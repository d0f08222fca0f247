package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/rbac"
)

// Echo-context keys recording the outcome of an authorization check so the
// audit middleware can log what was decided and why.
const (
	AuthzDecisionKey    = "authz_decision"
	AuthzPermissionsKey = "authz_permissions"
)

// recordCheck stores the checked permissions and the decision on the echo
// context for the audit trail.
func recordCheck(c echo.Context, granted bool, perms ...rbac.Permission) {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	c.Set(AuthzPermissionsKey, names)
	if granted {
		c.Set(AuthzDecisionKey, "granted")
	} else {
		c.Set(AuthzDecisionKey, "denied")
	}
}

// RequirePermission admits only callers whose role holds perm. There is no
// bypass role: unknown values and SUPER_ADMIN are denied like everyone else.
func RequirePermission(perm rbac.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			granted := rbac.HasPermission(role, perm)
			recordCheck(c, granted, perm)
			if !granted {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("required permission: %s", perm))
			}
			return next(c)
		}
	}
}

// RequireAnyPermission admits callers holding at least one of perms. With no
// permissions listed it denies everyone: "any of none" is never satisfied.
func RequireAnyPermission(perms ...rbac.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			granted := rbac.HasAnyPermission(role, perms...)
			recordCheck(c, granted, perms...)
			if !granted {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("required one of: %s", joinPermissions(perms)))
			}
			return next(c)
		}
	}
}

// RequireAllPermissions admits callers holding every one of perms.
func RequireAllPermissions(perms ...rbac.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			granted := rbac.HasAllPermissions(role, perms...)
			recordCheck(c, granted, perms...)
			if !granted {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("required permissions: %s", joinPermissions(perms)))
			}
			return next(c)
		}
	}
}

// RequireAtLeast admits callers whose role sits at or above threshold in the
// tenant hierarchy. Unranked roles are always denied.
func RequireAtLeast(threshold rbac.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			granted := rbac.IsAtLeast(role, threshold)
			recordCheck(c, granted)
			if !granted {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("required role: %s or higher", threshold))
			}
			return next(c)
		}
	}
}

func joinPermissions(perms []rbac.Permission) string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
