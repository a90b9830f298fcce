package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	// PassphraseEnv overrides the generated passphrase file
	PassphraseEnv = "IGRELAY_PASSPHRASE"
)

// EncryptedFileStore keeps all accounts in one AES-GCM encrypted file. The
// key is derived with PBKDF2 from a passphrase and a per-file salt.
type EncryptedFileStore struct {
	fs         afero.Fs
	path       string
	passphrase string
	mu         sync.RWMutex
}

// fileFormat is the on-disk envelope
type fileFormat struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// vault is the decrypted content
type vault struct {
	salt     []byte
	accounts map[string]Account
}

// NewEncryptedFileStore opens the store at path on the OS filesystem. The
// passphrase comes from IGRELAY_PASSPHRASE or a generated .passphrase file
// next to the store.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	fs := afero.NewOsFs()
	passphrase, err := loadPassphrase(fs, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return NewEncryptedFileStoreFs(fs, path, passphrase)
}

// NewEncryptedFileStoreFs opens the store at path on fs with an explicit passphrase
func NewEncryptedFileStoreFs(fs afero.Fs, path, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return &EncryptedFileStore{fs: fs, path: path, passphrase: passphrase}, nil
}

// Store saves credentials to the encrypted file
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load()
	if err != nil {
		return err
	}
	v.accounts[account.Username] = *account
	return e.save(v)
}

// Retrieve gets credentials from the encrypted file
func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if err != nil {
		return nil, err
	}
	account, ok := v.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns all stored accounts
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(v.accounts))
	for _, account := range v.accounts {
		acc := account
		accounts = append(accounts, &acc)
	}
	return accounts, nil
}

// Delete removes credentials from the encrypted file. The file is removed
// with the last account.
func (e *EncryptedFileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load()
	if err != nil {
		return err
	}
	if _, ok := v.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(v.accounts, username)

	if len(v.accounts) == 0 {
		return e.fs.Remove(e.path)
	}
	return e.save(v)
}

// Exists checks if credentials exist
func (e *EncryptedFileStore) Exists(username string) bool {
	account, err := e.Retrieve(username)
	return err == nil && account != nil
}

// load reads and decrypts the file. A missing file is an empty vault.
func (e *EncryptedFileStore) load() (*vault, error) {
	content, err := afero.ReadFile(e.fs, e.path)
	if errors.Is(err, os.ErrNotExist) {
		return &vault{accounts: make(map[string]Account)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var file fileFormat
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(file.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plain, err := decrypt(sealed, e.key(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials (wrong passphrase?): %w", err)
	}

	accounts := make(map[string]Account)
	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	return &vault{salt: salt, accounts: accounts}, nil
}

// save encrypts and atomically replaces the file
func (e *EncryptedFileStore) save(v *vault) error {
	if len(v.salt) == 0 {
		v.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, v.salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(v.accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}
	sealed, err := encrypt(plain, e.key(v.salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt data: %w", err)
	}

	content, err := json.MarshalIndent(fileFormat{
		Salt:      base64.StdEncoding.EncodeToString(v.salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Version:   1,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal file data: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := afero.WriteFile(e.fs, tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return e.fs.Rename(tmp, e.path)
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// loadPassphrase returns IGRELAY_PASSPHRASE or the content of dir/.passphrase,
// generating the file on first use.
func loadPassphrase(fs afero.Fs, dir string) (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	if err := fs.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	file := filepath.Join(dir, ".passphrase")
	if content, err := afero.ReadFile(fs, file); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)

	if err := afero.WriteFile(fs, file, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

// encrypt seals plaintext with AES-GCM, prefixing the nonce
func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt opens a nonce-prefixed AES-GCM ciphertext
func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
