package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"igrepost/pkg/config"
	"igrepost/pkg/instagram"
)

// AppName names the keyring service and the per-user config directory.
const AppName = "igrepost"

// Account holds the session cookies of the Instagram account the bot posts from.
type Account struct {
	Username     string    `json:"username"`
	SessionID    string    `json:"session_id"`
	CSRFToken    string    `json:"csrf_token"`
	DSUserID     string    `json:"ds_user_id,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Session converts the account into the cookie set the Instagram client sends.
func (a *Account) Session(appID string) instagram.Session {
	return instagram.Session{
		SessionID: a.SessionID,
		CSRFToken: a.CSRFToken,
		DSUserID:  a.DSUserID,
		UserAgent: a.UserAgent,
		AppID:     appID,
	}
}

// Validate reports the missing cookies of a.
func (a *Account) Validate() error {
	var errs []error
	if instagram.NormalizeUsername(a.Username) == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if a.SessionID == "" {
		errs = append(errs, errors.New("session ID is required"))
	}
	if a.CSRFToken == "" {
		errs = append(errs, errors.New("CSRF token is required"))
	}
	return errors.Join(errs...)
}

// CredentialStore persists accounts keyed by username.
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(username string) (*Account, error)
	List() ([]*Account, error)
	Delete(username string) error
	Exists(username string) bool
}

// Manager tries its stores in order: system keychain, encrypted file, environment.
type Manager struct {
	stores []CredentialStore
}

// NewManager builds the default store chain rooted at configDir. An empty
// configDir selects the per-user config directory.
func NewManager(configDir string) (*Manager, error) {
	if configDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		configDir = dir
	}

	var stores []CredentialStore
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	fileStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fileStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores uses the given stores in order.
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store normalizes the username and saves account in the first store that accepts it.
func (m *Manager) Store(account *Account) error {
	if account == nil {
		return ErrInvalidCredentials
	}
	account.Username = instagram.NormalizeUsername(account.Username)
	if err := account.Validate(); err != nil {
		return err
	}
	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns the account from the first store that has it.
func (m *Manager) Retrieve(username string) (*Account, error) {
	username = instagram.NormalizeUsername(username)
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
}

// RetrieveDefault prefers environment credentials, then the most recently stored account.
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrCredentialsNotFound
	}
	latest := accounts[0]
	for _, a := range accounts[1:] {
		if a.LastModified.After(latest.LastModified) {
			latest = a
		}
	}
	return latest, nil
}

// List merges the accounts of every store, keeping the newest copy of each
// username, sorted by username.
func (m *Manager) List() ([]*Account, error) {
	byName := make(map[string]*Account)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, a := range accounts {
			if existing, ok := byName[a.Username]; !ok || a.LastModified.After(existing.LastModified) {
				byName[a.Username] = a
			}
		}
	}

	result := make([]*Account, 0, len(byName))
	for _, a := range byName {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

// Delete removes username from every store that holds it.
func (m *Manager) Delete(username string) error {
	username = instagram.NormalizeUsername(username)
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
	}
	return nil
}

// Resolve picks the session the bot runs with. Cookies given in cfg win;
// otherwise the stored account for cfg.Username, or the default account.
// Fields left empty on the stored account are filled from cfg.
func Resolve(cfg config.InstagramConfig, m *Manager) (*Account, error) {
	if cfg.SessionID != "" && cfg.CSRFToken != "" {
		return &Account{
			Username:  instagram.NormalizeUsername(cfg.Username),
			SessionID: cfg.SessionID,
			CSRFToken: cfg.CSRFToken,
			DSUserID:  cfg.DSUserID,
			UserAgent: cfg.UserAgent,
		}, nil
	}
	if m == nil {
		return nil, ErrCredentialsNotFound
	}

	var (
		account *Account
		err     error
	)
	if cfg.Username != "" {
		account, err = m.Retrieve(cfg.Username)
	} else {
		account, err = m.RetrieveDefault()
	}
	if err != nil {
		return nil, err
	}

	if account.DSUserID == "" {
		account.DSUserID = cfg.DSUserID
	}
	if account.UserAgent == "" {
		account.UserAgent = cfg.UserAgent
	}
	return account, nil
}

// ConfigDir returns the per-user config directory, creating it with 0700.
func ConfigDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", AppName)
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), AppName)
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, AppName)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", AppName)
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// SanitizeAccount returns a copy of account with the cookies masked.
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	masked := *account
	masked.SessionID = maskString(account.SessionID)
	masked.CSRFToken = maskString(account.CSRFToken)
	return &masked
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", 8)
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
