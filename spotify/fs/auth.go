package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

type AuthFile string

func AuthFileFrom(dir, filename string) AuthFile {
	return AuthFile(filepath.Join(dir, filename))
}

type AuthFileContent struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

func (f AuthFile) Read() (c *AuthFileContent, err error) {
	file, err := os.OpenFile(f.path(), os.O_RDONLY, 0o0600)
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}

		return nil, fmt.Errorf("failed to open credentials file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close credentials file: %v", closeErr))
		}
	}()

	dec := json.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); nil != err {
		return nil, fmt.Errorf("failed to decode credentials file contents: %v", err)
	}

	return c, nil
}

func (f AuthFile) Write(c AuthFileContent) (err error) {
	if err := os.MkdirAll(filepath.Dir(f.path()), 0o700); nil != err {
		return fmt.Errorf("failed to create credentials directory: %v", err)
	}

	file, err := os.OpenFile(f.path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_SYNC, 0o0600)
	if nil != err {
		return fmt.Errorf("failed to open credentials file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close credentials file: %v", closeErr))
		}
	}()

	if err := json.NewEncoder(file).Encode(c); nil != err {
		return fmt.Errorf("failed to encode credentials file: %v", err)
	}

	return nil
}

func (f AuthFile) Remove() error {
	if err := os.Remove(f.path()); nil != err && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials file: %v", err)
	}

	return nil
}

func (f AuthFile) path() string {
	return string(f)
}
