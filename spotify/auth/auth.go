package auth

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cvdub/mr-rippah/spotify/fs"
)

const (
	clientID      = "65b708073fc0480ea92a077233ca87bd"
	scopes        = "playlist-read-private playlist-read-collaborative user-library-read streaming"
	tokenFileName = "token.json"
)

var baseURL = "https://accounts.spotify.com/api"

var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrTokenRefreshInProgress = errors.New("another auth token refresh is in progress")
	ErrLoginLinkExpired       = errors.New("login link has expired")
	ErrLoginInProgress        = errors.New("another login flow is in progress")
)

type Auth struct {
	credsDir    string
	authFile    fs.AuthFile
	loginSem    chan struct{}
	refreshSem  chan struct{}
	credentials atomic.Pointer[Credentials]
}

func (a *Auth) Credentials() *Credentials {
	return a.credentials.Load()
}

type Credentials struct {
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

func (c *Credentials) IsExpired() bool {
	return c.Token == "" || !c.ExpiresAt.After(time.Now())
}

func New(dir string) (*Auth, error) {
	authFile := fs.AuthFileFrom(dir, tokenFileName)

	content, err := authFile.Read()
	if nil != err && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read auth file: %w", err)
	}

	creds := &Credentials{
		Token:        "",
		RefreshToken: "",
		ExpiresAt:    time.Time{},
	}
	if content != nil {
		creds = &Credentials{
			Token:        content.Token,
			RefreshToken: content.RefreshToken,
			ExpiresAt:    time.Unix(content.ExpiresAt, 0),
		}
	}

	a := &Auth{
		loginSem:    make(chan struct{}, 1),
		refreshSem:  make(chan struct{}, 1),
		credentials: atomic.Pointer[Credentials]{},
		credsDir:    dir,
		authFile:    authFile,
	}
	a.credentials.Store(creds)

	return a, nil
}

// Clear drops the stored credentials and removes the credentials file. The
// next operation that needs a token fails with ErrUnauthorized until a login
// flow completes.
func (a *Auth) Clear() error {
	a.credentials.Store(&Credentials{
		Token:        "",
		RefreshToken: "",
		ExpiresAt:    time.Time{},
	})

	if err := a.authFile.Remove(); nil != err {
		return fmt.Errorf("failed to remove auth file: %w", err)
	}

	return nil
}

func (a *Auth) store(creds *Credentials) error {
	a.credentials.Store(creds)

	content := fs.AuthFileContent{
		Token:        creds.Token,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    creds.ExpiresAt.Unix(),
	}
	if err := a.authFile.Write(content); nil != err {
		return fmt.Errorf("failed to write auth file: %w", err)
	}

	return nil
}
