package vault

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-vault/custodia/internal/ledger"
	"github.com/custodia-vault/custodia/internal/platform/db"
	"github.com/custodia-vault/custodia/internal/shared"
)

// Repository persists the vault and its ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. GetVaultForUpdate takes
// the row lock that serialises the check-and-decrement.
type TxRepository interface {
	GetVaultForUpdate(ctx context.Context) (Vault, error)
	SetBalance(ctx context.Context, balance int64) error
	InsertEntry(ctx context.Context, entry ledger.Entry) error
	EnsureVault(ctx context.Context, initialBalance int64) (bool, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("vault repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetBalance reads the current balance outside any transaction.
func (r *Repository) GetBalance(ctx context.Context) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM vaults WHERE id = $1`, DefaultVaultID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return balance, err
}

// RecentEntries returns the newest ledger entries first.
func (r *Repository) RecentEntries(ctx context.Context, limit int) ([]ledger.Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, direction, counterparty, amount, occurred_at FROM ledger_entries
		 WHERE vault_id = $1 ORDER BY occurred_at DESC, id DESC LIMIT $2`,
		DefaultVaultID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var counterparty string
		if err := rows.Scan(&e.ID, &e.Direction, &counterparty, &e.Amount, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Counterparty = shared.Principal(counterparty)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ConservationSnapshot reads the balance and the per-direction ledger
// sums in one statement, so both sides of the conservation equation come
// from the same snapshot even while deposits commit concurrently.
func (r *Repository) ConservationSnapshot(ctx context.Context) (balance, in, out int64, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT v.balance,
		        COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'IN'), 0),
		        COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'OUT'), 0)
		 FROM vaults v
		 LEFT JOIN ledger_entries e ON e.vault_id = v.id
		 WHERE v.id = $1
		 GROUP BY v.balance`, DefaultVaultID).Scan(&balance, &in, &out)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, 0, nil
	}
	return balance, in, out, err
}

func (r *txRepository) GetVaultForUpdate(ctx context.Context) (Vault, error) {
	var v Vault
	err := r.tx.QueryRow(ctx,
		`SELECT id, balance, created_at, updated_at FROM vaults WHERE id = $1 FOR UPDATE`,
		DefaultVaultID).Scan(&v.ID, &v.Balance, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vault{}, shared.ErrNotFound
	}
	return v, err
}

func (r *txRepository) SetBalance(ctx context.Context, balance int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE vaults SET balance = $2, updated_at = NOW() WHERE id = $1`,
		DefaultVaultID, balance)
	if err != nil {
		// Backstop for the schema-level CHECK (balance >= 0); the service
		// guard rejects before this can trip.
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.ConstraintName == "vaults_balance_check" {
			return ErrInsufficientFunds
		}
		return err
	}
	return nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry ledger.Entry) error {
	id := entry.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := r.tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, vault_id, direction, counterparty, amount, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, DefaultVaultID, string(entry.Direction), entry.Counterparty.String(), entry.Amount, entry.OccurredAt)
	return err
}

// EnsureVault creates the vault row when missing. Returns true when the row
// was created by this call.
func (r *txRepository) EnsureVault(ctx context.Context, initialBalance int64) (bool, error) {
	tag, err := r.tx.Exec(ctx,
		`INSERT INTO vaults (id, balance) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		DefaultVaultID, initialBalance)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
