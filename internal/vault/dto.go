package vault

import "time"

// Amounts are not range-checked at the boundary; the service owns that
// rule and reports violations as the invalid_amount error kind.
type DepositRequest struct {
	Amount int64 `json:"amount"`
}

type WithdrawRequest struct {
	Recipient string `json:"recipient" validate:"required"`
	Amount    int64  `json:"amount"`
}

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type EntryResponse struct {
	ID            string    `json:"id"`
	Direction     string    `json:"direction"`
	Counterparty  string    `json:"counterparty"`
	Amount        int64     `json:"amount"`
	AmountDisplay string    `json:"amount_display"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type StatementResponse struct {
	Entries []EntryResponse `json:"entries"`
}

// ErrorBody is the JSON error envelope. Kind is one of "unauthorized",
// "insufficient_funds", "invalid_amount", "invalid_request" or "internal".
type ErrorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Caller    string `json:"caller,omitempty"`
	Balance   *int64 `json:"balance,omitempty"`
	Requested *int64 `json:"requested,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
