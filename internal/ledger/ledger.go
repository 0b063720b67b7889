package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-vault/custodia/internal/shared"
)

// Direction classifies a ledger entry relative to the vault.
type Direction string

const (
	// DirectionIn records value entering the vault.
	DirectionIn Direction = "IN"
	// DirectionOut records value leaving the vault.
	DirectionOut Direction = "OUT"
)

// Entry is one movement of value into or out of the vault. Entries are
// append-only; the stored balance must always equal the entry sum.
type Entry struct {
	ID           uuid.UUID
	Direction    Direction
	Counterparty shared.Principal
	Amount       int64
	OccurredAt   time.Time
}

// Sink is the external value transfer capability. Transfer is invoked only
// after the withdrawal has been committed to the vault's accounting, so a
// sink that calls back into the vault observes the reduced balance.
type Sink interface {
	Transfer(ctx context.Context, recipient shared.Principal, amount int64) error
}

// LogSink acknowledges transfers in the log. It stands in for a real
// custody integration (bank rails, chain client) behind the Sink port.
type LogSink struct {
	Logger *slog.Logger
}

// Transfer logs the outbound movement.
func (s LogSink) Transfer(ctx context.Context, recipient shared.Principal, amount int64) error {
	if s.Logger != nil {
		s.Logger.Info("outbound transfer",
			slog.String("recipient", recipient.String()),
			slog.Int64("amount", amount))
	}
	return nil
}

// NoopSink discards transfers. Used where custody is tracked elsewhere.
type NoopSink struct{}

// Transfer does nothing.
func (NoopSink) Transfer(ctx context.Context, recipient shared.Principal, amount int64) error {
	return nil
}
