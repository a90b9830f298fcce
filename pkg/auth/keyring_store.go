package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringPrefix = "instagram_"

// indexKey holds the JSON list of stored usernames; go-keyring cannot
// enumerate entries itself.
const indexKey = "index"

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring-based store after probing that the
// keychain is usable.
func NewKeyringStore() (*KeyringStore, error) {
	return newKeyringStore(appName)
}

func newKeyringStore(service string) (*KeyringStore, error) {
	const testKey = "test_availability"
	if err := keyring.Set(service, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(service, testKey)

	return &KeyringStore{service: service}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := keyring.Set(k.service, keyringPrefix+account.Username, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	names := k.index()
	for _, n := range names {
		if n == account.Username {
			return nil
		}
	}
	return k.writeIndex(append(names, account.Username))
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(k.service, keyringPrefix+username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List returns the accounts recorded in the keychain index
func (k *KeyringStore) List() ([]*Account, error) {
	var accounts []*Account
	for _, name := range k.index() {
		if account, err := k.Retrieve(name); err == nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	if err := keyring.Delete(k.service, keyringPrefix+username); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	names := k.index()
	kept := names[:0]
	for _, n := range names {
		if n != username {
			kept = append(kept, n)
		}
	}
	return k.writeIndex(kept)
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(username string) bool {
	if username == "" {
		return false
	}
	_, err := keyring.Get(k.service, keyringPrefix+username)
	return err == nil
}

func (k *KeyringStore) index() []string {
	data, err := keyring.Get(k.service, indexKey)
	if err != nil {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil
	}
	return names
}

func (k *KeyringStore) writeIndex(names []string) error {
	if len(names) == 0 {
		if err := keyring.Delete(k.service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return keyring.Set(k.service, indexKey, string(data))
}
