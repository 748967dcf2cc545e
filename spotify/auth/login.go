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

	"github.com/cvdub/mr-rippah/result"
)

type LoginLink struct {
	URL       string
	UserCode  string
	ExpiresIn time.Duration
}

// InitiateLoginFlow starts a device authorization flow. The returned link is
// shown to the user, and the channel yields the credentials once the device
// is approved, or the terminal error if the link expires first.
func (a *Auth) InitiateLoginFlow(
	ctx context.Context,
) (*LoginLink, <-chan result.Of[Credentials], error) {
	select {
	case a.loginSem <- struct{}{}:
		link, wait, err := a.initiateLoginFlow(ctx)
		if nil != err {
			<-a.loginSem

			return nil, nil, fmt.Errorf("failed to initiate login flow: %v", err)
		}

		return link, wait, nil
	default:
		return nil, nil, ErrLoginInProgress
	}
}

func (a *Auth) initiateLoginFlow(
	ctx context.Context,
) (*LoginLink, <-chan result.Of[Credentials], error) {
	res, err := issueDeviceAuthorizationRequest(ctx)
	if nil != err {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, (time.Duration(res.ExpiresIn)+1)*time.Second)
	ticker := time.NewTicker(time.Duration(res.Interval) * time.Second)
	// Buffered so the final send never blocks when the caller has stopped
	// waiting, letting the goroutine exit and release the login semaphore.
	done := make(chan result.Of[Credentials], 1)

	go func() {
		defer func() { <-a.loginSem }()
		defer close(done)
		defer ticker.Stop()
		defer cancel()
	waitloop:
		for {
			select {
			case <-ctx.Done():
				err := ctx.Err()
				if errors.Is(err, context.DeadlineExceeded) {
					done <- result.Err[Credentials](ErrLoginLinkExpired)

					return
				}
				done <- result.Err[Credentials](err)

				return
			case <-ticker.C:
				creds, err := res.poll(ctx)
				if nil != err {
					switch {
					case errors.Is(ctx.Err(), context.Canceled):
						done <- result.Err[Credentials](context.Canceled)

						return
					case errors.Is(err, errAuthorizationPending):
						continue waitloop
					case errors.Is(err, errSlowDown):
						ticker.Reset(time.Duration(res.Interval+5) * time.Second)

						continue waitloop
					default:
						done <- result.Err[Credentials](err)

						return
					}
				}
				if err := a.store(creds); nil != err {
					done <- result.Err[Credentials](err)

					return
				}
				done <- result.Ok(creds)

				return
			}
		}
	}()

	return &LoginLink{
		URL:       res.URL,
		UserCode:  res.UserCode,
		ExpiresIn: time.Duration(res.ExpiresIn) * time.Second,
	}, done, nil
}

var (
	errAuthorizationPending = errors.New("device authorization is pending")
	errSlowDown             = errors.New("polling too fast")
)

type deviceAuthorizationResponse struct {
	URL        string
	UserCode   string
	DeviceCode string
	ExpiresIn  int
	Interval   int
}

func issueDeviceAuthorizationRequest(ctx context.Context) (out *deviceAuthorizationResponse, err error) {
	reqURL, err := url.JoinPath(baseURL, "/device/code")
	if nil != err {
		return nil, fmt.Errorf("failed to create device authorization URL: %v", err)
	}

	reqParams := make(url.Values, 2)
	reqParams.Add("client_id", clientID)
	reqParams.Add("scope", scopes)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		reqURL,
		strings.NewReader(reqParams.Encode()),
	)
	if nil != err {
		return nil, fmt.Errorf("failed to create device authorization request: %v", err)
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	client := http.Client{Timeout: 5 * time.Second} //nolint:exhaustruct
	resp, err := client.Do(req)
	if nil != err {
		return nil, fmt.Errorf("failed to issue device authorization request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close response body: %v", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if nil != err {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	var respBody struct {
		DeviceCode              string `json:"device_code"`
		UserCode                string `json:"user_code"`
		VerificationURI         string `json:"verification_uri"`
		VerificationURIComplete string `json:"verification_uri_complete"`
		ExpiresIn               int    `json:"expires_in"`
		Interval                int    `json:"interval"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	authorizationURL := respBody.VerificationURIComplete
	if authorizationURL == "" {
		authorizationURL = respBody.VerificationURI
	}

	if respBody.Interval == 0 {
		respBody.Interval = 5
	}

	return &deviceAuthorizationResponse{
		URL:        authorizationURL,
		UserCode:   respBody.UserCode,
		DeviceCode: respBody.DeviceCode,
		ExpiresIn:  respBody.ExpiresIn,
		Interval:   respBody.Interval,
	}, nil
}

func (r *deviceAuthorizationResponse) poll(ctx context.Context) (creds *Credentials, err error) {
	reqURL, err := url.JoinPath(baseURL, "/token")
	if nil != err {
		return nil, fmt.Errorf("failed to create token URL: %v", err)
	}

	reqParams := make(url.Values, 3)
	reqParams.Add("client_id", clientID)
	reqParams.Add("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
	reqParams.Add("device_code", r.DeviceCode)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		reqURL,
		strings.NewReader(reqParams.Encode()),
	)
	if nil != err {
		return nil, fmt.Errorf("failed to create token request: %v", err)
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	client := http.Client{Timeout: 5 * time.Second} //nolint:exhaustruct
	resp, err := client.Do(req)
	if nil != err {
		return nil, fmt.Errorf("failed to issue token request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close response body: %v", closeErr))
		}
	}()

	switch code := resp.StatusCode; code {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusForbidden:
		respBytes, err := io.ReadAll(resp.Body)
		if nil != err {
			return nil, fmt.Errorf("failed to read response body: %v", err)
		}
		var respBody struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if err := json.Unmarshal(respBytes, &respBody); nil != err {
			return nil, fmt.Errorf("failed to decode %d status code response body: %v", code, err)
		}
		switch respBody.Error {
		case "authorization_pending":
			return nil, errAuthorizationPending
		case "slow_down":
			return nil, errSlowDown
		case "expired_token":
			return nil, ErrLoginLinkExpired
		case "access_denied":
			return nil, ErrUnauthorized
		default:
			return nil, fmt.Errorf("unexpected %d response: %s", code, string(respBytes))
		}
	default:
		return nil, fmt.Errorf("unexpected status code: %d", code)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if nil != err {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	var respBody struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		return nil, fmt.Errorf("failed to decode 200 status code response body: %v", err)
	}

	return &Credentials{
		Token:        respBody.AccessToken,
		RefreshToken: respBody.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(respBody.ExpiresIn) * time.Second).UTC(),
	}, nil
}
