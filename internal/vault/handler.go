package vault

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/custodia-vault/custodia/internal/ledger"
	"github.com/custodia-vault/custodia/internal/shared"
)

// MetricsPort counts vault operations for the /metrics endpoint.
type MetricsPort interface {
	RecordDeposit(amount int64)
	RecordWithdrawal(amount int64)
	RecordRejection(reason string)
}

// Handler exposes the vault over JSON HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	metrics   MetricsPort
	printer   *message.Printer
}

// NewHandler constructs the vault HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, metrics MetricsPort) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		metrics:   metrics,
		printer:   message.NewPrinter(language.English),
	}
}

// Deposit handles POST /api/vault/deposit.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller := shared.PrincipalFromContext(r.Context())

	var req DepositRequest
	if !h.decode(w, r, &req) {
		return
	}

	balance, err := h.service.Deposit(r.Context(), caller, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordDeposit(req.Amount)
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

// Withdraw handles POST /api/vault/withdraw.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller := shared.PrincipalFromContext(r.Context())

	var req WithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}

	balance, err := h.service.Withdraw(r.Context(), caller, shared.Principal(req.Recipient), req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordWithdrawal(req.Amount)
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

// Balance handles GET /api/vault/balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

// Statement handles GET /api/vault/statement.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := h.service.Statement(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := StatementResponse{Entries: make([]EntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, h.toEntryResponse(e))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) toEntryResponse(e ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:            e.ID.String(),
		Direction:     string(e.Direction),
		Counterparty:  e.Counterparty.String(),
		Amount:        e.Amount,
		AmountDisplay: h.printer.Sprintf("%d", e.Amount),
		OccurredAt:    e.OccurredAt,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Kind:    "invalid_request",
			Message: "malformed JSON body",
		}})
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Kind:    "invalid_request",
			Message: err.Error(),
		}})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var unauthorized UnauthorizedError
	if errors.As(err, &unauthorized) {
		h.reject("unauthorized")
		h.writeJSON(w, http.StatusForbidden, ErrorResponse{Error: ErrorBody{
			Kind:    "unauthorized",
			Message: unauthorized.Error(),
			Caller:  unauthorized.Caller.String(),
		}})
		return
	}
	var insufficient InsufficientFundsError
	if errors.As(err, &insufficient) {
		h.reject("insufficient_funds")
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: ErrorBody{
			Kind:      "insufficient_funds",
			Message:   insufficient.Error(),
			Balance:   &insufficient.Balance,
			Requested: &insufficient.Requested,
		}})
		return
	}
	if errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrInvalidRecipient) {
		h.reject("invalid_amount")
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Kind:    "invalid_amount",
			Message: err.Error(),
		}})
		return
	}
	if h.logger != nil {
		h.logger.Error("vault operation failed", slog.Any("error", err))
	}
	h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
		Kind:    "internal",
		Message: http.StatusText(http.StatusInternalServerError),
	}})
}

func (h *Handler) reject(reason string) {
	if h.metrics != nil {
		h.metrics.RecordRejection(reason)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.logger != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}
