package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-vault/custodia/internal/shared"
)

type stubRepo struct {
	accounts map[shared.Principal]*Account
}

func newStubRepo() *stubRepo {
	return &stubRepo{accounts: make(map[shared.Principal]*Account)}
}

func (r *stubRepo) FindByPrincipal(ctx context.Context, principal shared.Principal) (*Account, error) {
	account, ok := r.accounts[principal]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (r *stubRepo) CreateAccount(ctx context.Context, account Account) error {
	if _, ok := r.accounts[account.Principal]; !ok {
		r.accounts[account.Principal] = &account
	}
	return nil
}

func seedAccount(t *testing.T, repo *stubRepo, principal shared.Principal, secret string, active bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	repo.accounts[principal] = &Account{
		Principal:  principal,
		Name:       string(principal),
		APIKeyHash: string(hash),
		IsActive:   active,
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo()
	seedAccount(t, repo, "alice", "s3cret", true)
	svc := NewService(repo)

	principal, err := svc.Authenticate(ctx, "alice:s3cret")
	require.NoError(t, err)
	require.Equal(t, shared.Principal("alice"), principal)
}

func TestAuthenticateRejections(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo()
	seedAccount(t, repo, "alice", "s3cret", true)
	seedAccount(t, repo, "mallory", "pw", false)
	svc := NewService(repo)

	cases := map[string]string{
		"wrong secret":     "alice:nope",
		"unknown account":  "eve:whatever",
		"inactive account": "mallory:pw",
		"missing secret":   "alice",
		"empty key":        "",
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, key)
			require.ErrorIs(t, err, shared.ErrInvalidCredentials)
		})
	}
}

func TestRegisterMintsWorkingKey(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo()
	svc := NewService(repo)

	principal, key, err := svc.Register(ctx, "service account")
	require.NoError(t, err)
	require.True(t, principal.Valid())

	resolved, err := svc.Authenticate(ctx, key)
	require.NoError(t, err)
	require.Equal(t, principal, resolved)
}

func TestRequirePrincipalMiddleware(t *testing.T) {
	repo := newStubRepo()
	seedAccount(t, repo, "alice", "s3cret", true)
	mw := Middleware{Service: NewService(repo)}

	var seen shared.Principal
	handler := mw.RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer alice:s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, shared.Principal("alice"), seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer alice:wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
