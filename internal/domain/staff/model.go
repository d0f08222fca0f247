package staff

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/rbac"
)

// Member maps to the staff_members table. Every member holds exactly one
// ranked role within their practice; the permission registry derives
// everything else from it.
type Member struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Role      rbac.Role `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
