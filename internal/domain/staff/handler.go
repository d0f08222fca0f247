package staff

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/middleware"
	"github.com/clinicore/clinicore/internal/platform/rbac"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints - any role holding users:view
	readGroup := api.Group("", auth.RequirePermission(rbac.PermissionUsersView))
	readGroup.GET("/staff", h.ListMembers)
	readGroup.GET("/staff/:id", h.GetMember)

	// Write endpoints carry their own permission each; the role and removal
	// routes are additionally policy-checked in the service.
	api.POST("/staff", h.CreateMember, auth.RequirePermission(rbac.PermissionUsersCreate))
	api.PATCH("/staff/:id", h.UpdateMember, auth.RequirePermission(rbac.PermissionUsersUpdate))
	api.PUT("/staff/:id/role", h.ChangeMemberRole, auth.RequirePermission(rbac.PermissionUsersUpdate))
	api.DELETE("/staff/:id", h.RemoveMember, auth.RequirePermission(rbac.PermissionUsersDelete))
}

type createMemberRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) CreateMember(c echo.Context) error {
	var req createMemberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role, ok := rbac.ParseRole(req.Role)
	if !ok {
		return memberError(fmt.Errorf("%w: %q", rbac.ErrRoleNotAssignable, req.Role))
	}

	m := &Member{
		TenantID:  auth.TenantFromContext(c.Request().Context()),
		Email:     req.Email,
		FirstName: middleware.SanitizeString(req.FirstName),
		LastName:  middleware.SanitizeString(req.LastName),
		Role:      role,
	}
	if err := h.svc.Create(c.Request().Context(), actorFromContext(c), m); err != nil {
		return memberError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMember(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), actorFromContext(c), id)
	if err != nil {
		return memberError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMembers(c echo.Context) error {
	pg := pagination.FromContext(c)
	members, total, err := h.svc.List(c.Request().Context(), actorFromContext(c), pg.Limit, pg.Offset)
	if err != nil {
		return memberError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(members, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateMember(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var params UpdateParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if params.FirstName != nil {
		*params.FirstName = middleware.SanitizeString(*params.FirstName)
	}
	if params.LastName != nil {
		*params.LastName = middleware.SanitizeString(*params.LastName)
	}

	m, err := h.svc.Update(c.Request().Context(), actorFromContext(c), id, params)
	if err != nil {
		return memberError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ChangeMemberRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req changeRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role, ok := rbac.ParseRole(req.Role)
	if !ok {
		return memberError(fmt.Errorf("%w: %q", rbac.ErrRoleNotAssignable, req.Role))
	}

	m, err := h.svc.ChangeRole(c.Request().Context(), actorFromContext(c), id, role)
	if err != nil {
		return memberError(err)
	}
	return c.JSON(http.StatusOK, m)
}

// RemoveMember deactivates a member, or deletes the row outright when the
// request asks for ?hard=true. Both paths run the same removal policy.
func (h *Handler) RemoveMember(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	actor := actorFromContext(c)
	if c.QueryParam("hard") == "true" {
		err = h.svc.Remove(c.Request().Context(), actor, id)
	} else {
		err = h.svc.Deactivate(c.Request().Context(), actor, id)
	}
	if err != nil {
		return memberError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// actorFromContext rebuilds the acting member from the authenticated request.
// A subject that is not a UUID leaves the ID zero, which never matches a
// stored member.
func actorFromContext(c echo.Context) Actor {
	ctx := c.Request().Context()
	id, _ := uuid.Parse(auth.UserIDFromContext(ctx))
	return Actor{ID: id, Role: auth.RoleFromContext(ctx)}
}

// memberError translates service errors into HTTP errors. Rank violations map
// to 403 alongside missing permissions; the remaining policy rules are 422s
// because the caller's permissions were fine but the particular target is
// protected.
func memberError(err error) error {
	switch {
	case errors.Is(err, ErrMemberNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateEmail):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrPermissionDenied), errors.Is(err, rbac.ErrRankTooLow):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, rbac.ErrSelfRemoval),
		errors.Is(err, rbac.ErrOwnerProtected),
		errors.Is(err, rbac.ErrOwnerRoleRestricted),
		errors.Is(err, rbac.ErrRoleNotAssignable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrMissingName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
