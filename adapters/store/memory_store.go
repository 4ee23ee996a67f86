package store

import (
	"context"
	"strings"
	"sync"

	"github.com/warden-auth/warden/core"
	"github.com/warden-auth/warden/ports"
)

// MemoryStore is an in-memory implementation of the AccountStore
// interface, used in development and tests
type MemoryStore struct {
	byUUID     map[string]*core.Account
	byUsername map[string]string
	byEmail    map[string]string
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory account store
func NewMemoryStore() ports.AccountStore {
	return &MemoryStore{
		byUUID:     make(map[string]*core.Account),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// FindAccount resolves identifier as email, username or uuid
func (s *MemoryStore) FindAccount(ctx context.Context, identifier string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := strings.ToLower(identifier)
	if uuid, ok := s.byEmail[key]; ok {
		return cloneAccount(s.byUUID[uuid]), nil
	}
	if uuid, ok := s.byUsername[key]; ok {
		return cloneAccount(s.byUUID[uuid]), nil
	}
	if account, ok := s.byUUID[identifier]; ok {
		return cloneAccount(account), nil
	}
	return nil, core.AccountNotFound()
}

// CreateAccount inserts a new account
func (s *MemoryStore) CreateAccount(ctx context.Context, account *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(account.Username)
	email := strings.ToLower(account.Email)
	if _, ok := s.byUsername[username]; ok {
		return core.AccountExists()
	}
	if _, ok := s.byEmail[email]; ok {
		return core.AccountExists()
	}

	s.byUUID[account.UUID] = cloneAccount(account)
	s.byUsername[username] = account.UUID
	s.byEmail[email] = account.UUID
	return nil
}

// AppendCredential attaches a verified passkey credential to an account
func (s *MemoryStore) AppendCredential(ctx context.Context, uuid string, credential core.FidoCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byUUID[uuid]
	if !ok {
		return core.AccountNotFound()
	}
	account.Credentials = append(account.Credentials, credential)
	return nil
}

// UpdateCredentialSignCount records the counter observed during a
// successful assertion
func (s *MemoryStore) UpdateCredentialSignCount(ctx context.Context, uuid string, credentialID string, signCount uint32, backupState bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byUUID[uuid]
	if !ok {
		return core.AccountNotFound()
	}
	for i := range account.Credentials {
		if account.Credentials[i].CredentialID == credentialID {
			account.Credentials[i].SignCount = signCount
			account.Credentials[i].BackupState = backupState
			return nil
		}
	}
	return core.AccountNotFound()
}

func cloneAccount(account *core.Account) *core.Account {
	clone := *account
	clone.Credentials = append([]core.FidoCredential(nil), account.Credentials...)
	return &clone
}
