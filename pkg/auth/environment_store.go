package auth

import (
	"context"

	"github.com/sethvargo/go-envconfig"

	"igrepost/pkg/instagram"
)

// envSession is the session read from the same variables the bot's
// config overlay uses.
type envSession struct {
	Username  string `env:"IG_USERNAME"`
	SessionID string `env:"IG_SESSION_ID"`
	CSRFToken string `env:"IG_CSRF_TOKEN"`
	DSUserID  string `env:"IG_DS_USER_ID"`
	UserAgent string `env:"IG_USER_AGENT"`
}

// EnvironmentStore is a read-only store over IG_* environment variables.
type EnvironmentStore struct {
	lookuper envconfig.Lookuper
}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{lookuper: envconfig.OsLookuper()}
}

// NewEnvironmentStoreWithLookuper reads variables from l instead of the process environment.
func NewEnvironmentStoreWithLookuper(l envconfig.Lookuper) *EnvironmentStore {
	return &EnvironmentStore{lookuper: l}
}

func (e *EnvironmentStore) Store(*Account) error {
	return ErrStoreUnavailable
}

// Retrieve matches any username when IG_USERNAME is unset; an empty
// username returns whatever is configured.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	var env envSession
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &env,
		Lookuper: e.lookuper,
	}); err != nil {
		return nil, err
	}
	if env.SessionID == "" || env.CSRFToken == "" {
		return nil, ErrCredentialsNotFound
	}

	name := instagram.NormalizeUsername(env.Username)
	want := instagram.NormalizeUsername(username)
	switch {
	case name == "" && want == "":
		name = "default"
	case name == "":
		name = want
	case want != "" && want != name:
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:  name,
		SessionID: env.SessionID,
		CSRFToken: env.CSRFToken,
		DSUserID:  env.DSUserID,
		UserAgent: env.UserAgent,
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
