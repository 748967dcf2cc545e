package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/cvdub/mr-rippah/redact"
)

// RefreshToken exchanges the stored refresh token for a fresh access token
// and persists the result. Only one refresh runs at a time.
func (a *Auth) RefreshToken(ctx context.Context, logger zerolog.Logger) error {
	select {
	case a.refreshSem <- struct{}{}:
		defer func() { <-a.refreshSem }()
	default:
		return ErrTokenRefreshInProgress
	}

	newCreds, err := a.refreshToken(ctx, logger)
	if nil != err {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	logger.
		Debug().
		Str("token", redact.String(newCreds.Token)).
		Time("expires_at", newCreds.ExpiresAt).
		Msg("Refreshed access token")

	if err := a.store(newCreds); nil != err {
		logger.Error().Err(err).Msg("Failed to write credentials to file")

		return fmt.Errorf("failed to store refreshed credentials: %v", err)
	}

	return nil
}

func (a *Auth) refreshToken(ctx context.Context, logger zerolog.Logger) (creds *Credentials, err error) {
	existingCreds := a.credentials.Load()
	if existingCreds.RefreshToken == "" {
		return nil, ErrUnauthorized
	}

	reqURL, err := url.JoinPath(baseURL, "/token")
	if nil != err {
		return nil, fmt.Errorf("failed to create token URL: %v", err)
	}

	refreshToken := existingCreds.RefreshToken

	reqParams := make(url.Values, 3)
	reqParams.Add("client_id", clientID)
	reqParams.Add("grant_type", "refresh_token")
	reqParams.Add("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		reqURL,
		strings.NewReader(reqParams.Encode()),
	)
	if nil != err {
		return nil, fmt.Errorf("failed to create refresh token request: %w", err)
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Accept", "application/json")

	client := http.Client{Timeout: 5 * time.Second} //nolint:exhaustruct
	resp, err := client.Do(req)
	if nil != err {
		return nil, fmt.Errorf("failed to issue refresh token request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close response body: %v", closeErr))
		}
	}()

	switch code := resp.StatusCode; code {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized:
		respBytes, err := io.ReadAll(resp.Body)
		if nil != err {
			return nil, fmt.Errorf("failed to read %d response body: %w", code, err)
		}

		var respBody struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if err := json.Unmarshal(respBytes, &respBody); nil != err {
			return nil, fmt.Errorf("failed to decode %d response body: %v", code, err)
		}

		if respBody.Error == "invalid_grant" {
			return nil, ErrUnauthorized
		}

		logger.Error().Int("status_code", code).Bytes("response_body", respBytes).Msg("Unexpected error response")

		return nil, fmt.Errorf("received unknown %d response with body: %s", code, string(respBytes))
	default:
		respBytes, err := io.ReadAll(resp.Body)
		if nil != err {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		logger.Error().Int("status_code", code).Bytes("response_body", respBytes).Msg("Unexpected response status code")

		return nil, fmt.Errorf("unexpected status code %d with body: %s", code, string(respBytes))
	}

	respBytes, err := io.ReadAll(resp.Body)
	if nil != err {
		return nil, fmt.Errorf("failed to read 200 response body: %w", err)
	}

	var respBody struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		return nil, fmt.Errorf("failed to decode 200 response body: %v", err)
	}

	if respBody.RefreshToken == "" {
		respBody.RefreshToken = refreshToken
	}

	return &Credentials{
		Token:        respBody.AccessToken,
		RefreshToken: respBody.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(respBody.ExpiresIn) * time.Second).UTC(),
	}, nil
}
