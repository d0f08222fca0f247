package staff

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/rbac"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const memberCols = `id, tenant_id, email, first_name, last_name, role, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff_members (id, tenant_id, email, first_name, last_name, role, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		m.ID, m.TenantID, m.Email, m.FirstName, m.LastName, string(m.Role), m.Active,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	return scanMember(r.conn(ctx).QueryRow(ctx,
		`SELECT `+memberCols+` FROM staff_members WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Member, error) {
	return scanMember(r.conn(ctx).QueryRow(ctx,
		`SELECT `+memberCols+` FROM staff_members WHERE email = $1`, email))
}

func (r *repoPG) Update(ctx context.Context, m *Member) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff_members
		SET email=$2, first_name=$3, last_name=$4, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Email, m.FirstName, m.LastName,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *repoPG) UpdateRole(ctx context.Context, id uuid.UUID, role rbac.Role) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE staff_members SET role=$2, updated_at=NOW() WHERE id = $1`,
		id, string(role),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE staff_members SET active=$2, updated_at=NOW() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM staff_members WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Member, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff_members`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+memberCols+` FROM staff_members ORDER BY last_name, first_name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMemberRows(rows)
		if err != nil {
			return nil, 0, err
		}
		members = append(members, m)
	}
	return members, total, rows.Err()
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.TenantID, &m.Email, &m.FirstName, &m.LastName,
		&m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMemberRows(rows pgx.Rows) (*Member, error) {
	var m Member
	err := rows.Scan(&m.ID, &m.TenantID, &m.Email, &m.FirstName, &m.LastName,
		&m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
