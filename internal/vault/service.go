package vault

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-vault/custodia/internal/ledger"
	"github.com/custodia-vault/custodia/internal/roles"
	"github.com/custodia-vault/custodia/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context) (int64, error)
	RecentEntries(ctx context.Context, limit int) ([]ledger.Entry, error)
}

// RegistryPort answers role membership for the withdrawal guard.
type RegistryPort interface {
	HasRole(ctx context.Context, role roles.Role, principal shared.Principal) (bool, error)
}

// AuditPort records vault events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort caches the current balance between mutations.
type CachePort interface {
	GetBalance(ctx context.Context) (int64, bool)
	SetBalance(ctx context.Context, balance int64)
	Invalidate(ctx context.Context)
}

// Service enforces the role-gated withdrawal guard: role check, sufficiency
// check, committed decrement, then the external transfer. The decrement is
// committed under the vault row lock before the sink runs, so a reentrant
// call from inside the sink always observes the reduced balance.
type Service struct {
	repo     RepositoryPort
	registry RegistryPort
	sink     ledger.Sink
	audit    AuditPort
	cache    CachePort
	logger   *slog.Logger
	balances singleflight.Group
	now      func() time.Time
}

// NewService constructs the vault service.
func NewService(repo RepositoryPort, registry RegistryPort, sink ledger.Sink, audit AuditPort, cache CachePort, logger *slog.Logger) *Service {
	if sink == nil {
		sink = ledger.NoopSink{}
	}
	return &Service{
		repo:     repo,
		registry: registry,
		sink:     sink,
		audit:    audit,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Deposit increases the balance by amount. No authorization is required;
// the caller is recorded as the entry counterparty.
func (s *Service) Deposit(ctx context.Context, caller shared.Principal, amount int64) (int64, error) {
	if amount < 0 {
		return 0, InvalidAmountError{Amount: amount}
	}
	var balance int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetVaultForUpdate(ctx)
		if err != nil {
			return err
		}
		balance = v.Balance + amount
		if err := tx.SetBalance(ctx, balance); err != nil {
			return err
		}
		if amount == 0 {
			return nil
		}
		return tx.InsertEntry(ctx, ledger.Entry{
			Direction:    ledger.DirectionIn,
			Counterparty: caller,
			Amount:       amount,
			OccurredAt:   s.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	s.record(ctx, caller, "vault.deposit", map[string]any{"amount": amount, "balance": balance})
	return balance, nil
}

// Withdraw moves amount from the vault to recipient. Only principals
// holding the administrator role may withdraw, and only up to the current
// balance. On success the decrement is committed before the external
// transfer is initiated.
func (s *Service) Withdraw(ctx context.Context, caller, recipient shared.Principal, amount int64) (int64, error) {
	if amount < 0 {
		return 0, InvalidAmountError{Amount: amount}
	}
	if !recipient.Valid() {
		return 0, ErrInvalidRecipient
	}

	held, err := s.registry.HasRole(ctx, roles.RoleAdministrator, caller)
	if err != nil {
		return 0, fmt.Errorf("vault: role check: %w", err)
	}
	if !held {
		s.record(ctx, caller, "vault.withdraw.denied", map[string]any{"amount": amount})
		return 0, UnauthorizedError{Caller: caller}
	}

	var balance int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetVaultForUpdate(ctx)
		if err != nil {
			return err
		}
		if amount > v.Balance {
			return InsufficientFundsError{Balance: v.Balance, Requested: amount}
		}
		balance = v.Balance - amount
		if err := tx.SetBalance(ctx, balance); err != nil {
			return err
		}
		if amount == 0 {
			return nil
		}
		return tx.InsertEntry(ctx, ledger.Entry{
			Direction:    ledger.DirectionOut,
			Counterparty: recipient,
			Amount:       amount,
			OccurredAt:   s.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	s.record(ctx, caller, "vault.withdraw", map[string]any{
		"amount":    amount,
		"balance":   balance,
		"recipient": recipient.String(),
	})

	// The accounting above is committed; a sink that reenters Withdraw sees
	// the reduced balance. A transfer failure is surfaced to the caller but
	// does not roll back custody accounting.
	if amount > 0 {
		if err := s.sink.Transfer(ctx, recipient, amount); err != nil {
			if s.logger != nil {
				s.logger.Error("outbound transfer failed",
					slog.String("recipient", recipient.String()),
					slog.Int64("amount", amount),
					slog.Any("error", err))
			}
			return balance, fmt.Errorf("vault: transfer: %w", err)
		}
	}
	return balance, nil
}

// Balance returns the current balance. Reads are coalesced and served from
// cache between mutations.
func (s *Service) Balance(ctx context.Context) (int64, error) {
	if s.cache != nil {
		if balance, ok := s.cache.GetBalance(ctx); ok {
			return balance, nil
		}
	}
	value, err, _ := s.balances.Do(strconv.FormatInt(DefaultVaultID, 10), func() (any, error) {
		balance, err := s.repo.GetBalance(ctx)
		if err != nil {
			return int64(0), err
		}
		if s.cache != nil {
			s.cache.SetBalance(ctx, balance)
		}
		return balance, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(int64), nil
}

// Statement returns the most recent ledger entries, newest first.
func (s *Service) Statement(ctx context.Context, limit int) ([]ledger.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.RecentEntries(ctx, limit)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

// record writes an audit entry. Audit failures are logged, never surfaced.
func (s *Service) record(ctx context.Context, actor shared.Principal, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "vault",
		EntityID: strconv.FormatInt(DefaultVaultID, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
