package vault

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-vault/custodia/internal/ledger"
	"github.com/custodia-vault/custodia/internal/roles"
	"github.com/custodia-vault/custodia/internal/shared"
)

// ErrAdminRequired indicates bootstrap ran without an administrator.
var ErrAdminRequired = errors.New("vault: administrator principal required")

// BootstrapConfig carries the initialization inputs: the one administrator
// grant and the optional initial funding.
type BootstrapConfig struct {
	Administrator  shared.Principal
	InitialFunding int64
}

// Bootstrap initialises the system: it creates the vault row with the
// initial funding and grants the administrator role to the configured
// principal. Both steps are idempotent, so restarts are safe; the grant is
// the only one ever issued by the system itself.
func Bootstrap(ctx context.Context, repo RepositoryPort, registry roles.Registry, cfg BootstrapConfig) error {
	if !cfg.Administrator.Valid() {
		return ErrAdminRequired
	}
	if cfg.InitialFunding < 0 {
		return InvalidAmountError{Amount: cfg.InitialFunding}
	}

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.EnsureVault(ctx, cfg.InitialFunding)
		if err != nil {
			return err
		}
		if created && cfg.InitialFunding > 0 {
			return tx.InsertEntry(ctx, ledger.Entry{
				Direction:    ledger.DirectionIn,
				Counterparty: cfg.Administrator,
				Amount:       cfg.InitialFunding,
				OccurredAt:   time.Now(),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := registry.Grant(ctx, roles.RoleAdministrator, cfg.Administrator); err != nil {
		return err
	}

	// Startup must not proceed with an empty administrator set, or every
	// withdrawal would be unreachable.
	admins, err := registry.Members(ctx, roles.RoleAdministrator)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		return ErrAdminRequired
	}
	return nil
}
