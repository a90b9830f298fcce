package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore reads a single read-only session from environment
// variables. The INSTAGRAM_* names are accepted for existing deployments.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func env(names ...string) string {
	for _, name := range names {
		if v := strings.Trim(strings.TrimSpace(os.Getenv(name)), `"'`); v != "" {
			return v
		}
	}
	return ""
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve builds an account from environment variables. A username given
// in the environment must match the requested one.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	sessionID := env("IGRELAY_SESSION_ID", "INSTAGRAM_SESSIONID")
	csrfToken := env("IGRELAY_CSRF_TOKEN", "INSTAGRAM_CSRFTOKEN")
	if sessionID == "" || csrfToken == "" {
		return nil, ErrCredentialsNotFound
	}

	envUser := env("IGRELAY_INSTAGRAM_USERNAME", "INSTAGRAM_USERNAME")
	switch {
	case username == "" && envUser == "":
		username = "default"
	case username == "":
		username = envUser
	case envUser != "" && envUser != username:
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     username,
		SessionID:    sessionID,
		DSUserID:     env("IGRELAY_DS_USER_ID", "INSTAGRAM_DS_USER_ID"),
		CSRFToken:    csrfToken,
		RUR:          env("IGRELAY_RUR", "INSTAGRAM_RUR"),
		MID:          env("IGRELAY_MID", "INSTAGRAM_MID"),
		UserAgent:    env("IGRELAY_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
