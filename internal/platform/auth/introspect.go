package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/rbac"
)

// PermissionProfile is the caller's effective authorization state, served to
// the front end so it can decide what to render. Rendering decisions are
// presentation only; the route middleware still enforces every check.
type PermissionProfile struct {
	UserID          string            `json:"user_id"`
	TenantID        string            `json:"tenant_id"`
	Role            rbac.Role         `json:"role"`
	Rank            int               `json:"rank"`
	Permissions     []rbac.Permission `json:"permissions"`
	AssignableRoles []rbac.Role       `json:"assignable_roles"`
}

// IntrospectionHandler serves permission profiles for authenticated callers.
type IntrospectionHandler struct{}

func NewIntrospectionHandler() *IntrospectionHandler {
	return &IntrospectionHandler{}
}

// RegisterRoutes mounts the introspection endpoint. Any authenticated caller
// may read their own profile; an unknown role simply comes back empty.
func (h *IntrospectionHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/me/permissions", h.MyPermissions)
}

func (h *IntrospectionHandler) MyPermissions(c echo.Context) error {
	ctx := c.Request().Context()
	role := RoleFromContext(ctx)

	profile := PermissionProfile{
		UserID:          UserIDFromContext(ctx),
		TenantID:        TenantFromContext(ctx),
		Role:            role,
		Rank:            rbac.Rank(role),
		Permissions:     rbac.PermissionsFor(role),
		AssignableRoles: rbac.AssignableRoles(role),
	}
	if profile.AssignableRoles == nil {
		profile.AssignableRoles = []rbac.Role{}
	}

	return c.JSON(http.StatusOK, profile)
}
