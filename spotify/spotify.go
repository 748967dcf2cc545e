package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cvdub/mr-rippah/cache"
	"github.com/cvdub/mr-rippah/config"
	"github.com/cvdub/mr-rippah/result"
	"github.com/cvdub/mr-rippah/spotify/auth"
	"github.com/cvdub/mr-rippah/spotify/ripper"
	"github.com/cvdub/mr-rippah/spotify/session"
	"github.com/cvdub/mr-rippah/spotify/types"
)

var (
	ErrLoginRequired     = errors.New("login required")
	ErrUnauthorized      = auth.ErrUnauthorized
	ErrLoginInProgress   = auth.ErrLoginInProgress
	ErrLoginLinkExpired  = auth.ErrLoginLinkExpired
	ErrRipInProgress     = errors.New("another rip is in progress")
	ErrInvalidIdentifier = types.ErrInvalidIdentifier
	ErrTooManyRequests   = session.ErrTooManyRequests
)

type Client struct {
	auth   *auth.Auth
	sess   *session.API
	ripper *ripper.Ripper
	conf   config.Spotify
	ripSem chan struct{}
}

func NewClient(logger zerolog.Logger, conf config.Spotify) (*Client, error) {
	a, err := auth.New(conf.CredsDir)
	if nil != err {
		return nil, fmt.Errorf("failed to create auth: %v", err)
	}

	var (
		c    = cache.New()
		sess = session.NewAPI(logger, a, conf.Session)
		rip  = ripper.NewRipper(sess, ripper.NewFFmpegEncoder(), c, conf)
	)

	return &Client{
		auth:   a,
		sess:   sess,
		ripper: rip,
		conf:   conf,
		ripSem: make(chan struct{}, 1),
	}, nil
}

func (c *Client) Close() error {
	if err := c.sess.Close(); nil != err {
		return fmt.Errorf("failed to close session: %v", err)
	}

	return nil
}

// RipPlaylist connects the session and rips every track of the playlist
// named by input, which may be a web URL or a canonical playlist URI.
func (c *Client) RipPlaylist(
	ctx context.Context,
	logger zerolog.Logger,
	input string,
) (*types.PlaylistRipOutcome, error) {
	select {
	case c.ripSem <- struct{}{}:
		defer func() { <-c.ripSem }()
	default:
		return nil, ErrRipInProgress
	}

	if err := c.connect(ctx); nil != err {
		return nil, err
	}

	outcome, err := c.ripper.RipPlaylist(ctx, logger, input)
	if nil != err {
		if errors.Is(err, auth.ErrUnauthorized) {
			return outcome, ErrLoginRequired
		}

		return outcome, fmt.Errorf("failed to rip playlist: %w", err)
	}

	return outcome, nil
}

// RipTrack rips a single track straight into the downloads directory.
func (c *Client) RipTrack(
	ctx context.Context,
	logger zerolog.Logger,
	input string,
) (types.TrackRipResult, error) {
	select {
	case c.ripSem <- struct{}{}:
		defer func() { <-c.ripSem }()
	default:
		return types.TrackRipResult{}, ErrRipInProgress //nolint:exhaustruct
	}

	if err := c.connect(ctx); nil != err {
		return types.TrackRipResult{}, err //nolint:exhaustruct
	}

	res, err := c.ripper.RipTrack(ctx, logger, c.conf.DownloadsDir, input)
	if nil != err {
		if errors.Is(err, auth.ErrUnauthorized) {
			return res, ErrLoginRequired
		}

		return res, fmt.Errorf("failed to rip track: %w", err)
	}

	return res, nil
}

func (c *Client) connect(ctx context.Context) error {
	if err := c.sess.Connect(ctx); nil != err {
		if errors.Is(err, auth.ErrUnauthorized) {
			return ErrLoginRequired
		}

		return fmt.Errorf("failed to connect session: %w", err)
	}

	return nil
}

func (c *Client) InitiateLoginFlow(
	ctx context.Context,
) (*auth.LoginLink, <-chan result.Of[auth.Credentials], error) {
	link, wait, err := c.auth.InitiateLoginFlow(ctx)
	if nil != err {
		return nil, nil, fmt.Errorf("failed to initiate login flow: %w", err)
	}

	return link, wait, nil
}

// ClearAuth forgets the stored credentials.
func (c *Client) ClearAuth() error {
	if err := c.auth.Clear(); nil != err {
		return fmt.Errorf("failed to clear auth: %w", err)
	}

	return nil
}
