package vault

import (
	"errors"
	"fmt"
	"time"

	"github.com/custodia-vault/custodia/internal/shared"
)

// DefaultVaultID identifies the single vault instance this service
// custodies. The schema allows more; the API exposes one.
const DefaultVaultID int64 = 1

// Vault holds a pooled balance of value units. The balance is mutated only
// through Service.Deposit and Service.Withdraw and never goes negative.
type Vault struct {
	ID        int64     `json:"id" db:"id"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

var (
	// ErrUnauthorized indicates the caller lacks the administrator role.
	ErrUnauthorized = errors.New("vault: unauthorized")
	// ErrInsufficientFunds indicates the requested amount exceeds the balance.
	ErrInsufficientFunds = errors.New("vault: insufficient funds")
	// ErrInvalidAmount indicates a negative amount.
	ErrInvalidAmount = errors.New("vault: invalid amount")
	// ErrInvalidRecipient indicates a blank recipient principal.
	ErrInvalidRecipient = errors.New("vault: invalid recipient")
)

// UnauthorizedError reports a withdrawal attempt by a non-administrator.
type UnauthorizedError struct {
	Caller shared.Principal
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("vault: principal %q is not an administrator", e.Caller)
}

// Unwrap makes the error match ErrUnauthorized.
func (e UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// InsufficientFundsError reports a withdrawal exceeding the balance. It
// carries both values so the caller can retry with a smaller amount.
type InsufficientFundsError struct {
	Balance   int64
	Requested int64
}

func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf("vault: balance %d short of requested %d", e.Balance, e.Requested)
}

// Unwrap makes the error match ErrInsufficientFunds.
func (e InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InvalidAmountError reports a negative amount.
type InvalidAmountError struct {
	Amount int64
}

func (e InvalidAmountError) Error() string {
	return fmt.Sprintf("vault: amount %d must be non-negative", e.Amount)
}

// Unwrap makes the error match ErrInvalidAmount.
func (e InvalidAmountError) Unwrap() error { return ErrInvalidAmount }
