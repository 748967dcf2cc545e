package ripper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cvdub/mr-rippah/spotify/types"
)

// RipPlaylist enumerates a playlist and rips its tracks in order, one at a
// time. Per-track failures are collected into the outcome. The returned
// error is non-nil only when the run itself cannot continue: a malformed
// playlist identifier, a dead session, or cancellation. The partial outcome
// accompanies run-fatal errors so finished work is still reported.
func (r *Ripper) RipPlaylist(
	ctx context.Context,
	logger zerolog.Logger,
	input string,
) (*types.PlaylistRipOutcome, error) {
	uri, err := types.ParsePlaylistURI(input)
	if nil != err {
		return nil, fmt.Errorf("failed to parse playlist URI: %w", err)
	}

	logger = logger.With().Str("playlist", uri.String()).Logger()

	trackURIs, err := r.playlistTrackURIs(ctx, uri.ID)
	if nil != err {
		return nil, fmt.Errorf("failed to get playlist tracks: %w", err)
	}

	dir, err := r.dir.AllocateUnique(uri.ID)
	if nil != err {
		return nil, fmt.Errorf("failed to allocate playlist directory: %v", err)
	}

	logger.
		Info().
		Int("tracks", len(trackURIs)).
		Str("dir", dir).
		Msg("Ripping playlist")

	var (
		startedAt = time.Now()
		outcome   = &types.PlaylistRipOutcome{Dir: dir, Results: nil}
	)
	for i, trackURI := range trackURIs {
		if err := ctx.Err(); nil != err {
			return outcome, err
		}

		res, err := r.RipTrack(ctx, logger, dir, trackURI)
		if nil != err {
			outcome.Results = append(outcome.Results, res)

			return outcome, fmt.Errorf("failed to rip track: %w", err)
		}
		outcome.Results = append(outcome.Results, res)

		// Pace successful fetches so the run does not hammer the service.
		// The last track needs no pause, and failures already waited out
		// their retry delays.
		if res.Success && i != len(trackURIs)-1 {
			if err := sleepCtx(ctx, r.conf.PacingDelay.Duration); nil != err {
				return outcome, err
			}
		}
	}

	logger.
		Info().
		Int("succeeded", outcome.Successes()).
		Int("total", len(outcome.Results)).
		Dur("elapsed", time.Since(startedAt)).
		Msg("Finished ripping playlist")

	return outcome, nil
}

func (r *Ripper) playlistTrackURIs(ctx context.Context, id string) ([]string, error) {
	var uris []string
	for page := 0; ; page++ {
		pageURIs, remaining, err := r.sess.PlaylistTracksPage(ctx, id, page)
		if nil != err {
			return nil, fmt.Errorf("failed to get playlist tracks page %d: %w", page, err)
		}

		uris = append(uris, pageURIs...)
		if remaining == 0 {
			break
		}
	}

	return uris, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
