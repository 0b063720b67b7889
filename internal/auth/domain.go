package auth

import (
	"time"

	"github.com/custodia-vault/custodia/internal/shared"
)

// Account maps a principal to its API credential.
type Account struct {
	Principal  shared.Principal
	Name       string
	APIKeyHash string
	IsActive   bool
	CreatedAt  time.Time
}
