package roles

import (
	"context"
	"time"

	"github.com/custodia-vault/custodia/internal/shared"
)

// Role names a permission grouping. Roles are opaque identifiers; the
// registry never interprets them.
type Role string

// RoleAdministrator controls withdrawals from the vault.
const RoleAdministrator Role = "administrator"

// Grant ties a principal to a role.
type Grant struct {
	Role      Role
	Principal shared.Principal
	CreatedAt time.Time
}

// Registry answers role membership queries and accepts grants. Grants are
// idempotent; membership queries never fail for unknown principals.
type Registry interface {
	Grant(ctx context.Context, role Role, principal shared.Principal) error
	HasRole(ctx context.Context, role Role, principal shared.Principal) (bool, error)
	Members(ctx context.Context, role Role) ([]Grant, error)
}
