package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-vault/custodia/internal/shared"
)

// ErrInvalidGrant indicates a grant with a blank role or principal.
var ErrInvalidGrant = errors.New("roles: role and principal required")

// Service is the postgres-backed Registry.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Grant adds the principal to the role's member set. Granting an
// already-held role is a no-op.
func (s *Service) Grant(ctx context.Context, role Role, principal shared.Principal) error {
	if role == "" || !principal.Valid() {
		return ErrInvalidGrant
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO role_grants (role, principal_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		string(role), principal.String())
	return err
}

// HasRole reports whether the principal holds the role. Unknown principals
// simply yield false.
func (s *Service) HasRole(ctx context.Context, role Role, principal shared.Principal) (bool, error) {
	if role == "" || !principal.Valid() {
		return false, nil
	}
	var held bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_grants WHERE role = $1 AND principal_id = $2)`,
		string(role), principal.String()).Scan(&held)
	if err != nil {
		return false, err
	}
	return held, nil
}

// Members lists principals holding the role, ordered by grant time.
func (s *Service) Members(ctx context.Context, role Role) ([]Grant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, principal_id, created_at FROM role_grants WHERE role = $1 ORDER BY created_at`,
		string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		var principal string
		if err := rows.Scan(&g.Role, &principal, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.Principal = shared.Principal(principal)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
