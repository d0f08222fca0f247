package staff

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/rbac"
)

type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	Update(ctx context.Context, m *Member) error
	UpdateRole(ctx context.Context, id uuid.UUID, role rbac.Role) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Member, int, error)

	// InTx runs fn inside a single transaction so read-check-write sequences
	// in the service see a consistent row.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
