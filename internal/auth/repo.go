package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-vault/custodia/internal/shared"
)

// Repository loads and stores principal accounts.
type Repository interface {
	FindByPrincipal(ctx context.Context, principal shared.Principal) (*Account, error)
	CreateAccount(ctx context.Context, account Account) error
}

// PGRepository is the postgres-backed Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByPrincipal loads the account for a principal ID.
func (r *PGRepository) FindByPrincipal(ctx context.Context, principal shared.Principal) (*Account, error) {
	var account Account
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, api_key_hash, is_active, created_at FROM principals WHERE id = $1`,
		principal.String()).Scan(&id, &account.Name, &account.APIKeyHash, &account.IsActive, &account.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	account.Principal = shared.Principal(id)
	return &account, nil
}

// CreateAccount inserts a new principal account. Existing accounts are left
// untouched so seeding is idempotent.
func (r *PGRepository) CreateAccount(ctx context.Context, account Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO principals (id, name, api_key_hash, is_active) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		account.Principal.String(), account.Name, account.APIKeyHash, account.IsActive)
	return err
}
