package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-vault/custodia/internal/shared"
)

// Service wraps API-key authentication rules. Keys have the form
// "<principal-id>:<secret>"; only the bcrypt hash of the secret is stored.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate resolves a presented API key to its principal.
func (s *Service) Authenticate(ctx context.Context, key string) (shared.Principal, error) {
	id, secret, found := strings.Cut(key, ":")
	if !found || id == "" || secret == "" {
		return "", shared.ErrInvalidCredentials
	}
	account, err := s.repo.FindByPrincipal(ctx, shared.Principal(id))
	if err != nil {
		return "", shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.APIKeyHash), []byte(secret)); err != nil {
		return "", shared.ErrInvalidCredentials
	}
	return account.Principal, nil
}

// Register mints a new principal account and returns its plaintext API key.
// The key is shown exactly once; only the hash is persisted.
func (s *Service) Register(ctx context.Context, name string) (shared.Principal, string, error) {
	principal := shared.Principal(uuid.NewString())
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	err = s.repo.CreateAccount(ctx, Account{
		Principal:  principal,
		Name:       name,
		APIKeyHash: string(hash),
		IsActive:   true,
	})
	if err != nil {
		return "", "", err
	}
	return principal, fmt.Sprintf("%s:%s", principal, secret), nil
}
