package roles

import (
	"context"
	"sync"

	"github.com/custodia-vault/custodia/internal/shared"
)

// MemoryRegistry is an in-process Registry. It backs tests and embedded
// deployments that have no database.
type MemoryRegistry struct {
	mu     sync.RWMutex
	grants map[Role]map[shared.Principal]struct{}
}

// NewMemoryRegistry constructs an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{grants: make(map[Role]map[shared.Principal]struct{})}
}

// Grant adds the principal to the role's member set.
func (m *MemoryRegistry) Grant(ctx context.Context, role Role, principal shared.Principal) error {
	if role == "" || !principal.Valid() {
		return ErrInvalidGrant
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.grants[role]
	if !ok {
		members = make(map[shared.Principal]struct{})
		m.grants[role] = members
	}
	members[principal] = struct{}{}
	return nil
}

// HasRole reports whether the principal holds the role.
func (m *MemoryRegistry) HasRole(ctx context.Context, role Role, principal shared.Principal) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, held := m.grants[role][principal]
	return held, nil
}

// Members lists the principals holding the role, in no particular order.
func (m *MemoryRegistry) Members(ctx context.Context, role Role) ([]Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	grants := make([]Grant, 0, len(m.grants[role]))
	for principal := range m.grants[role] {
		grants = append(grants, Grant{Role: role, Principal: principal})
	}
	return grants, nil
}
