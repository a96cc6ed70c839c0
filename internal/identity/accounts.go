package identity

import (
	"context"
	"sync"
	"time"
)

// Account is a registered login.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AccountStore persists accounts keyed by normalised email.
type AccountStore interface {
	// Create stores a new account. It returns ErrAlreadyExists when the email
	// is taken.
	Create(ctx context.Context, acc Account) error
	// ByEmail returns ErrAccountNotFound when no account has the email.
	ByEmail(ctx context.Context, email string) (Account, error)
}

// MemoryAccountStore is an in-memory AccountStore.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryAccountStore creates an empty in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]Account)}
}

func (s *MemoryAccountStore) Create(_ context.Context, acc Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acc.Email]; ok {
		return ErrAlreadyExists
	}
	s.accounts[acc.Email] = acc
	return nil
}

func (s *MemoryAccountStore) ByEmail(_ context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[email]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}
