package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/cvdub/mr-rippah/config"
	"github.com/cvdub/mr-rippah/httputil"
	"github.com/cvdub/mr-rippah/ratelimit"
	"github.com/cvdub/mr-rippah/spotify/auth"
	"github.com/cvdub/mr-rippah/spotify/types"
)

const playlistPageSize = 100

// API is the Session implementation backed by the metadata and audio
// delivery HTTP services.
type API struct {
	auth   *auth.Auth
	conf   config.Session
	logger zerolog.Logger
	client *http.Client
}

func NewAPI(logger zerolog.Logger, a *auth.Auth, conf config.Session) *API {
	return &API{
		auth:   a,
		conf:   conf,
		logger: logger,
		client: &http.Client{}, //nolint:exhaustruct
	}
}

// Connect makes sure the session holds a usable access token, refreshing an
// expired one. Transient refresh failures are retried with a linearly
// growing delay. A missing or revoked refresh token is terminal and
// surfaces as auth.ErrUnauthorized.
func (s *API) Connect(ctx context.Context) error {
	op := func() error {
		creds := s.auth.Credentials()
		if creds.Token == "" && creds.RefreshToken == "" {
			return backoff.Permanent(auth.ErrUnauthorized)
		}

		if !creds.IsExpired() && time.Now().Add(10*time.Minute).Before(creds.ExpiresAt) {
			return nil
		}

		if err := s.auth.RefreshToken(ctx, s.logger); nil != err {
			if errors.Is(err, auth.ErrUnauthorized) {
				return backoff.Permanent(auth.ErrUnauthorized)
			}

			s.logger.Warn().Err(err).Msg("Token refresh attempt failed")

			return err
		}

		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(
			ratelimit.NewLinear(s.conf.AuthRetryDelay.Duration),
			uint64(s.conf.AuthRetries-1), //nolint:gosec
		),
		ctx,
	)
	if err := backoff.Retry(op, b); nil != err {
		if errors.Is(err, auth.ErrUnauthorized) {
			return auth.ErrUnauthorized
		}

		return fmt.Errorf("failed to establish authenticated session: %w", err)
	}

	return nil
}

func (s *API) Close() error {
	s.client.CloseIdleConnections()

	return nil
}

func (s *API) PlaylistTracksPage(
	ctx context.Context,
	id string,
	page int,
) (uris []string, remaining int, err error) {
	reqURL, err := url.Parse(fmt.Sprintf("%s/playlists/%s/tracks", s.conf.MetadataAPIURL, id))
	if nil != err {
		return nil, 0, fmt.Errorf("failed to create playlist tracks URL: %v", err)
	}

	queryParams := make(url.Values, 4)
	queryParams.Add("limit", strconv.Itoa(playlistPageSize))
	queryParams.Add("offset", strconv.Itoa(page*playlistPageSize))
	queryParams.Add("market", "from_token")
	queryParams.Add("fields", "total,items(track(uri))")
	reqURL.RawQuery = queryParams.Encode()

	respBytes, err := s.getJSON(ctx, reqURL.String(), time.Duration(s.conf.Timeouts.GetPlaylistPage)*time.Second)
	if nil != err {
		return nil, 0, fmt.Errorf("failed to get playlist tracks page: %w", err)
	}

	var respBody struct {
		Total int `json:"total"`
		Items []struct {
			Track struct {
				URI string `json:"uri"`
			} `json:"track"`
		} `json:"items"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		return nil, 0, fmt.Errorf("failed to decode playlist tracks response: %v", err)
	}

	if len(respBody.Items) == 0 {
		return nil, 0, nil
	}

	uris = make([]string, 0, len(respBody.Items))
	for _, item := range respBody.Items {
		if item.Track.URI == "" {
			continue
		}
		uris = append(uris, item.Track.URI)
	}

	remaining = respBody.Total - page*playlistPageSize - len(respBody.Items)
	if remaining < 0 {
		remaining = 0
	}

	return uris, remaining, nil
}

func (s *API) TrackMetadata(ctx context.Context, id string) (*types.Track, error) {
	reqURL, err := url.Parse(fmt.Sprintf("%s/tracks/%s", s.conf.MetadataAPIURL, id))
	if nil != err {
		return nil, fmt.Errorf("failed to create track URL: %v", err)
	}

	queryParams := make(url.Values, 1)
	queryParams.Add("market", "from_token")
	reqURL.RawQuery = queryParams.Encode()

	respBytes, err := s.getJSON(ctx, reqURL.String(), time.Duration(s.conf.Timeouts.GetTrack)*time.Second)
	if nil != err {
		return nil, fmt.Errorf("failed to get track metadata: %w", err)
	}

	var respBody struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		TrackNumber int    `json:"track_number"`
		DiscNumber  int    `json:"disc_number"`
		IsPlayable  bool   `json:"is_playable"`
		Artists     []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Images []struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"images"`
			ReleaseDate string `json:"release_date"`
		} `json:"album"`
		ExternalIDs struct {
			ISRC string `json:"isrc"`
		} `json:"external_ids"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		return nil, fmt.Errorf("failed to decode track response: %v", err)
	}

	releaseDate, err := parseReleaseDate(respBody.Album.ReleaseDate)
	if nil != err {
		return nil, fmt.Errorf("failed to parse track release date: %v", err)
	}

	covers := make([]types.CoverRef, len(respBody.Album.Images))
	for i, img := range respBody.Album.Images {
		covers[i] = types.CoverRef{URL: img.URL, Width: img.Width, Height: img.Height}
	}
	slices.SortStableFunc(covers, func(a, b types.CoverRef) int { return a.Width - b.Width })

	artistNames := make([]string, len(respBody.Artists))
	for i, a := range respBody.Artists {
		artistNames[i] = a.Name
	}

	albumArtistNames := make([]string, len(respBody.Album.Artists))
	for i, a := range respBody.Album.Artists {
		albumArtistNames[i] = a.Name
	}

	albumArtist := strings.Join(albumArtistNames, ", ")
	if albumArtist == "" {
		albumArtist = strings.Join(artistNames, ", ")
	}

	// The service re-links unplayable tracks to a playable recording in the
	// caller's market. The response id names that substitute.
	var alternativeID string
	if respBody.ID != "" && respBody.ID != id {
		alternativeID = respBody.ID
	}

	return &types.Track{
		Meta: types.TrackMetadata{
			Title:       respBody.Name,
			Artist:      strings.Join(artistNames, ", "),
			Album:       respBody.Album.Name,
			AlbumArtist: albumArtist,
			TrackNumber: respBody.TrackNumber,
			DiscNumber:  respBody.DiscNumber,
			ReleaseDate: releaseDate,
			ISRC:        respBody.ExternalIDs.ISRC,
			Covers:      covers,
		},
		Playable:      respBody.IsPlayable,
		AlternativeID: alternativeID,
	}, nil
}

func (s *API) TrackStream(ctx context.Context, id string, quality Quality) (rc io.ReadCloser, err error) {
	reqURL, err := url.Parse(fmt.Sprintf("%s/tracks/%s/stream", s.conf.StreamAPIURL, id))
	if nil != err {
		return nil, fmt.Errorf("failed to create track stream URL: %v", err)
	}

	queryParams := make(url.Values, 1)
	queryParams.Add("quality", string(quality))
	reqURL.RawQuery = queryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if nil != err {
		return nil, fmt.Errorf("failed to create track stream request: %w", err)
	}
	req.Header.Add("Authorization", "Bearer "+s.auth.Credentials().Token)

	// GetStream bounds the wait for response headers only. The body drain is
	// paced by the caller's retry loop, not a whole-exchange deadline.
	client := http.Client{ //nolint:exhaustruct
		Transport: &http.Transport{ //nolint:exhaustruct
			ResponseHeaderTimeout: time.Duration(s.conf.Timeouts.GetStream) * time.Second,
		},
	}
	resp, err := client.Do(req)
	if nil != err {
		return nil, fmt.Errorf("failed to send track stream request: %w", err)
	}

	switch code := resp.StatusCode; code {
	case http.StatusOK:
		return resp.Body, nil
	default:
		defer func() {
			if closeErr := resp.Body.Close(); nil != closeErr {
				err = errors.Join(err, fmt.Errorf("failed to close track stream response body: %v", closeErr))
			}
		}()

		switch code {
		case http.StatusUnauthorized:
			respBytes, err := io.ReadAll(resp.Body)
			if nil != err {
				return nil, fmt.Errorf("failed to read 401 response body: %w", err)
			}

			return nil, classifyUnauthorized(respBytes)
		case http.StatusNotFound:
			return nil, ErrTrackNotFound
		case http.StatusTooManyRequests:
			return nil, ErrTooManyRequests
		default:
			respBytes, err := io.ReadAll(resp.Body)
			if nil != err {
				return nil, fmt.Errorf("failed to read response body: %w", err)
			}

			return nil, fmt.Errorf("unexpected status code %d with body: %s", code, string(respBytes))
		}
	}
}

func (s *API) getJSON(ctx context.Context, reqURL string, timeout time.Duration) (b []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if nil != err {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Authorization", "Bearer "+s.auth.Credentials().Token)
	req.Header.Add("Accept", "application/json")

	client := http.Client{Timeout: timeout} //nolint:exhaustruct
	resp, err := client.Do(req)
	if nil != err {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close response body: %v", closeErr))
		}
	}()

	switch code := resp.StatusCode; code {
	case http.StatusOK:
	case http.StatusUnauthorized:
		respBytes, err := io.ReadAll(resp.Body)
		if nil != err {
			return nil, fmt.Errorf("failed to read 401 response body: %w", err)
		}

		return nil, classifyUnauthorized(respBytes)
	case http.StatusNotFound:
		return nil, ErrTrackNotFound
	case http.StatusTooManyRequests:
		return nil, ErrTooManyRequests
	default:
		respBytes, err := io.ReadAll(resp.Body)
		if nil != err {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		return nil, fmt.Errorf("unexpected status code %d with body: %s", code, string(respBytes))
	}

	respBytes, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return nil, fmt.Errorf("failed to read 200 response body: %w", err)
	}

	return respBytes, nil
}

func classifyUnauthorized(respBytes []byte) error {
	if ok, err := httputil.IsTokenExpiredResponse(respBytes); nil != err {
		return fmt.Errorf("failed to check if 401 response is token expired: %v", err)
	} else if ok {
		return auth.ErrUnauthorized
	}

	if ok, err := httputil.IsTokenInvalidResponse(respBytes); nil != err {
		return fmt.Errorf("failed to check if 401 response is token invalid: %v", err)
	} else if ok {
		return auth.ErrUnauthorized
	}

	return fmt.Errorf("unexpected 401 response with body: %s", string(respBytes))
}

func parseReleaseDate(s string) (types.ReleaseDate, error) {
	if s == "" {
		return types.ReleaseDate{}, nil //nolint:exhaustruct
	}

	parts := strings.SplitN(s, "-", 3)
	var d types.ReleaseDate
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if nil != err {
			return types.ReleaseDate{}, fmt.Errorf("invalid release date %q: %v", s, err)
		}
		switch i {
		case 0:
			d.Year = n
		case 1:
			d.Month = n
		case 2:
			d.Day = n
		}
	}

	return d, nil
}
