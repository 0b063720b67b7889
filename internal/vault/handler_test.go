package vault_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/custodia-vault/custodia/internal/ledger"
	"github.com/custodia-vault/custodia/internal/roles"
	"github.com/custodia-vault/custodia/internal/shared"
	"github.com/custodia-vault/custodia/internal/vault"
	_ "github.com/custodia-vault/custodia/testing"
)

// memoryRepo is a minimal RepositoryPort for handler tests.
type memoryRepo struct {
	vault   vault.Vault
	entries []ledger.Entry
}

type memoryTx struct{ repo *memoryRepo }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, vault.TxRepository) error) error {
	snapshot := r.vault
	entriesLen := len(r.entries)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.vault = snapshot
		r.entries = r.entries[:entriesLen]
		return err
	}
	return nil
}

func (r *memoryRepo) GetBalance(ctx context.Context) (int64, error) {
	return r.vault.Balance, nil
}

func (r *memoryRepo) RecentEntries(ctx context.Context, limit int) ([]ledger.Entry, error) {
	entries := append([]ledger.Entry(nil), r.entries...)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (tx *memoryTx) GetVaultForUpdate(ctx context.Context) (vault.Vault, error) {
	return tx.repo.vault, nil
}

func (tx *memoryTx) SetBalance(ctx context.Context, balance int64) error {
	tx.repo.vault.Balance = balance
	return nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry ledger.Entry) error {
	tx.repo.entries = append(tx.repo.entries, entry)
	return nil
}

func (tx *memoryTx) EnsureVault(ctx context.Context, initialBalance int64) (bool, error) {
	return false, nil
}

// principalFromHeader stands in for the API-key middleware.
func principalFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := shared.Principal(r.Header.Get("X-Test-Principal"))
		if !p.Valid() {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}

func newTestRouter(t *testing.T, balance int64) http.Handler {
	t.Helper()
	repo := &memoryRepo{vault: vault.Vault{ID: vault.DefaultVaultID, Balance: balance}}
	registry := roles.NewMemoryRegistry()
	require.NoError(t, registry.Grant(context.Background(), roles.RoleAdministrator, shared.Principal("alice")))

	svc := vault.NewService(repo, registry, ledger.NoopSink{}, nil, nil, nil)
	handler := vault.NewHandler(nil, svc, nil)

	r := chi.NewRouter()
	r.Route("/api/vault", func(r chi.Router) {
		handler.MountRoutes(r, principalFromHeader)
	})
	return r
}

func postJSON(t *testing.T, router http.Handler, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set("X-Test-Principal", principal)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDepositEndpoint(t *testing.T) {
	router := newTestRouter(t, 0)

	rec := postJSON(t, router, "/api/vault/deposit", "bob", vault.DepositRequest{Amount: 100})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp vault.BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(100), resp.Balance)
}

func TestDepositEndpointRejectsNegative(t *testing.T) {
	router := newTestRouter(t, 0)

	rec := postJSON(t, router, "/api/vault/deposit", "bob", map[string]any{"amount": -5})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp vault.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invalid_amount", resp.Error.Kind)
}

func TestWithdrawEndpointRejectsNegativeAmount(t *testing.T) {
	router := newTestRouter(t, 100)

	rec := postJSON(t, router, "/api/vault/withdraw", "alice", vault.WithdrawRequest{Recipient: "carol", Amount: -5})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp vault.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invalid_amount", resp.Error.Kind)
}

func TestWithdrawEndpoint(t *testing.T) {
	router := newTestRouter(t, 100)

	rec := postJSON(t, router, "/api/vault/withdraw", "alice", vault.WithdrawRequest{Recipient: "carol", Amount: 40})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp vault.BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(60), resp.Balance)
}

func TestWithdrawEndpointUnauthorized(t *testing.T) {
	router := newTestRouter(t, 100)

	rec := postJSON(t, router, "/api/vault/withdraw", "bob", vault.WithdrawRequest{Recipient: "carol", Amount: 10})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp vault.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "unauthorized", resp.Error.Kind)
	require.Equal(t, "bob", resp.Error.Caller)
}

func TestWithdrawEndpointInsufficientFunds(t *testing.T) {
	router := newTestRouter(t, 60)

	rec := postJSON(t, router, "/api/vault/withdraw", "alice", vault.WithdrawRequest{Recipient: "carol", Amount: 1000})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp vault.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "insufficient_funds", resp.Error.Kind)
	require.NotNil(t, resp.Error.Balance)
	require.Equal(t, int64(60), *resp.Error.Balance)
	require.NotNil(t, resp.Error.Requested)
	require.Equal(t, int64(1000), *resp.Error.Requested)
}

func TestWithdrawEndpointRequiresPrincipal(t *testing.T) {
	router := newTestRouter(t, 60)

	rec := postJSON(t, router, "/api/vault/withdraw", "", vault.WithdrawRequest{Recipient: "carol", Amount: 10})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBalanceEndpointIsPublic(t *testing.T) {
	router := newTestRouter(t, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/vault/balance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp vault.BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(42), resp.Balance)
}

func TestStatementEndpoint(t *testing.T) {
	router := newTestRouter(t, 0)

	rec := postJSON(t, router, "/api/vault/deposit", "bob", vault.DepositRequest{Amount: 1250})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/vault/statement", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)

	var resp vault.StatementResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	require.Equal(t, "IN", resp.Entries[0].Direction)
	require.Equal(t, int64(1250), resp.Entries[0].Amount)
	require.Equal(t, "1,250", resp.Entries[0].AmountDisplay)
}
