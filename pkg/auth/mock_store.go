package auth

import "sync"

// MemoryStore is an in-process CredentialStore with injectable failures
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account

	// injected failures
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]Account)}
}

// Store saves a copy of account
func (m *MemoryStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = *account
	return nil
}

// Retrieve returns a copy of the stored account
func (m *MemoryStore) Retrieve(username string) (*Account, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns copies of all accounts
func (m *MemoryStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		acc := account
		accounts = append(accounts, &acc)
	}
	return accounts, nil
}

// Delete removes an account
func (m *MemoryStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if username == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

// Exists reports whether username is stored
func (m *MemoryStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[username]
	return ok
}

// Count returns the number of stored accounts
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
