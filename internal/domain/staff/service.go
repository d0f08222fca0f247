package staff

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/rbac"
)

// Common errors returned by the staff directory API. Policy violations keep
// their rbac sentinels so handlers can tell a denied permission from a
// protected target.
var (
	ErrMemberNotFound = errors.New("staff member not found")
	ErrDuplicateEmail = errors.New("a member with this email already exists")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrMissingName    = errors.New("first_name and last_name are required")
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// Actor is the authenticated member an operation runs on behalf of. The zero
// value carries no permissions and is denied everywhere.
type Actor struct {
	ID   uuid.UUID
	Role rbac.Role
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new member with an initial role. The actor needs
// users:create, and granting OWNER additionally requires users:promote-owner.
func (s *Service) Create(ctx context.Context, actor Actor, m *Member) error {
	if !rbac.HasPermission(actor.Role, rbac.PermissionUsersCreate) {
		return rbac.ErrPermissionDenied
	}
	if m.FirstName == "" || m.LastName == "" {
		return ErrMissingName
	}

	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	if !emailPattern.MatchString(m.Email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, m.Email)
	}
	if rbac.Rank(m.Role) == 0 {
		return fmt.Errorf("%w: %q", rbac.ErrRoleNotAssignable, m.Role)
	}
	if m.Role == rbac.RoleOwner && !rbac.HasPermission(actor.Role, rbac.PermissionUsersPromoteOwner) {
		return rbac.ErrOwnerRoleRestricted
	}

	// Friendly duplicate check; the unique index still backstops races.
	if _, err := s.repo.GetByEmail(ctx, m.Email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrMemberNotFound) {
		return err
	}

	m.Active = true
	return s.repo.Create(ctx, m)
}

// Get returns a single member. The actor needs users:view.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Member, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermissionUsersView) {
		return nil, rbac.ErrPermissionDenied
	}
	return s.repo.GetByID(ctx, id)
}

// List returns a page of members with the unpaged total.
func (s *Service) List(ctx context.Context, actor Actor, limit, offset int) ([]*Member, int, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermissionUsersView) {
		return nil, 0, rbac.ErrPermissionDenied
	}
	return s.repo.List(ctx, limit, offset)
}

// UpdateParams carries the profile fields a PATCH may change. Nil leaves a
// field untouched; role changes go through ChangeRole instead.
type UpdateParams struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// Update changes a member's profile fields. The actor needs users:update.
func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, params UpdateParams) (*Member, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermissionUsersUpdate) {
		return nil, rbac.ErrPermissionDenied
	}

	var updated *Member
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if params.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*params.Email))
			if !emailPattern.MatchString(email) {
				return fmt.Errorf("%w: %q", ErrInvalidEmail, *params.Email)
			}
			m.Email = email
		}
		if params.FirstName != nil {
			if *params.FirstName == "" {
				return ErrMissingName
			}
			m.FirstName = *params.FirstName
		}
		if params.LastName != nil {
			if *params.LastName == "" {
				return ErrMissingName
			}
			m.LastName = *params.LastName
		}

		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeRole moves a member to a new role. All authority rules live in
// rbac.CanAssignRole; this method only loads the target and persists the
// outcome.
func (s *Service) ChangeRole(ctx context.Context, actor Actor, id uuid.UUID, newRole rbac.Role) (*Member, error) {
	var updated *Member
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := rbac.CanAssignRole(actor.Role, m.Role, newRole); err != nil {
			return err
		}
		if err := s.repo.UpdateRole(ctx, id, newRole); err != nil {
			return err
		}
		m.Role = newRole
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Deactivate soft-removes a member: the row stays for the audit trail but the
// member can no longer sign in. Gated by rbac.CanRemoveUser.
func (s *Service) Deactivate(ctx context.Context, actor Actor, id uuid.UUID) error {
	return s.repo.InTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := rbac.CanRemoveUser(actor.ID, actor.Role, m.ID, m.Role); err != nil {
			return err
		}
		return s.repo.SetActive(ctx, id, false)
	})
}

// Remove hard-deletes a member's row. Gated by rbac.CanRemoveUser.
func (s *Service) Remove(ctx context.Context, actor Actor, id uuid.UUID) error {
	return s.repo.InTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := rbac.CanRemoveUser(actor.ID, actor.Role, m.ID, m.Role); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
}
