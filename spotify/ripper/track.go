package ripper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/cvdub/mr-rippah/cache"
	"github.com/cvdub/mr-rippah/config"
	"github.com/cvdub/mr-rippah/ratelimit"
	"github.com/cvdub/mr-rippah/spotify/auth"
	"github.com/cvdub/mr-rippah/spotify/fs"
	"github.com/cvdub/mr-rippah/spotify/types"
)

// Failure reasons surfaced to the user. These are stable strings, reported
// verbatim in the end-of-run failure table.
const (
	ReasonInvalidTrackURI       = "invalid track URI"
	ReasonLocalTrackUnsupported = "local track unsupported"
	ReasonTrackUnplayable       = "track is unplayable"
	ReasonStreamFetchExhausted  = "stream fetch exhausted retries"
	ReasonMetadataFetchFailed   = "failed to fetch track metadata"
	ReasonWriteFailed           = "failed to write track file"
	ReasonEncodeFailed          = "failed to encode track"
	ReasonTagFailed             = "failed to tag track"
)

// RipTrack rips one track into dir. A failed track comes back as a result
// value, not an error: the returned error is non-nil only for conditions
// that must abort the whole run, like a revoked token or cancellation.
func (r *Ripper) RipTrack(
	ctx context.Context,
	logger zerolog.Logger,
	dir string,
	input string,
) (types.TrackRipResult, error) {
	res := types.TrackRipResult{URI: input} //nolint:exhaustruct

	uri, err := types.ParseTrackURI(input)
	if nil != err {
		logger.Warn().Str("uri", input).Msg("Invalid track URI")
		res.FailureReason = ReasonInvalidTrackURI

		return res, nil
	}
	res.URI = uri.String()

	if uri.Kind == types.URIKindLocal {
		res.FailureReason = ReasonLocalTrackUnsupported
		if r.conf.LocalTrackPolicy == config.LocalTrackPolicySkip {
			res.Skipped = true
			logger.Warn().Str("uri", res.URI).Msg("Skipping local track")
		}

		return res, nil
	}

	logger = logger.With().Str("uri", res.URI).Logger()

	track, err := r.trackMeta(ctx, uri.ID)
	if nil != err {
		if isRunFatal(ctx, err) {
			return res, err
		}
		logger.Error().Err(err).Msg("Failed to fetch track metadata")
		res.FailureReason = ReasonMetadataFetchFailed

		return res, nil
	}
	res.Title = track.Meta.Title

	uris := []string{res.URI}
	streamID := uri.ID

	// The service may substitute a re-linked recording for a track that has
	// no deliverable file in the caller's market. Follow the substitution at
	// most once.
	if track.AlternativeID != "" {
		streamID = track.AlternativeID
		resolved := types.URI{Kind: types.URIKindTrack, ID: streamID}
		uris = append(uris, resolved.String())

		if !track.Playable {
			alt, err := r.trackMeta(ctx, streamID)
			if nil != err {
				if isRunFatal(ctx, err) {
					return res, err
				}
				logger.Error().Err(err).Msg("Failed to fetch re-linked track metadata")
				res.FailureReason = ReasonMetadataFetchFailed

				return res, nil
			}
			track = alt
		}
	}

	if !track.Playable {
		logger.Warn().Msg("Track is unplayable")
		res.FailureReason = ReasonTrackUnplayable

		return res, nil
	}

	oggBytes, err := r.fetchStream(ctx, logger, streamID)
	if nil != err {
		if isRunFatal(ctx, err) {
			return res, err
		}
		logger.Error().Err(err).Msg("Stream fetch exhausted retries")
		res.FailureReason = ReasonStreamFetchExhausted

		return res, nil
	}

	path := fs.TrackPath(dir, track.Meta)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); nil != err {
		logger.Error().Err(err).Str("path", path).Msg("Failed to create track directory")
		res.FailureReason = ReasonWriteFailed

		return res, nil
	}

	if err := r.enc.EncodeMP3(ctx, oggBytes, path); nil != err {
		if isRunFatal(ctx, err) {
			return res, err
		}
		logger.Error().Err(err).Str("path", path).Msg("Failed to encode track")
		res.FailureReason = ReasonEncodeFailed

		return res, nil
	}

	cover := r.getCover(ctx, logger, track.Meta)

	if err := tagTrackFile(path, track.Meta, uris, cover); nil != err {
		logger.Error().Err(err).Str("path", path).Msg("Failed to tag track")
		res.FailureReason = ReasonTagFailed

		return res, nil
	}

	res.Success = true
	res.OutputPath = path
	logger.Info().Str("path", path).Msg("Ripped track")

	return res, nil
}

func (r *Ripper) trackMeta(ctx context.Context, id string) (*types.Track, error) {
	cached, err := r.cache.TracksMeta.Fetch(
		id,
		cache.DefaultTrackMetaTTL,
		func() (*types.Track, error) { return r.sess.TrackMetadata(ctx, id) },
	)
	if nil != err {
		return nil, fmt.Errorf("failed to get track metadata: %w", err)
	}

	return cached.Value(), nil
}

// fetchStream drains the track's audio stream into memory, retrying failed
// attempts with a linearly growing delay. TrackRetries bounds the total
// number of attempts, not the retries after the first.
func (r *Ripper) fetchStream(
	ctx context.Context,
	logger zerolog.Logger,
	id string,
) ([]byte, error) {
	var (
		buf     bytes.Buffer
		attempt int
	)
	err := retry.Do(
		ctx,
		retry.WithMaxRetries(
			uint64(r.conf.TrackRetries-1), //nolint:gosec
			ratelimit.NewLinear(r.conf.RetryDelay.Duration),
		),
		func(ctx context.Context) (err error) {
			attempt++
			buf.Reset()

			stream, err := r.sess.TrackStream(ctx, id, r.quality)
			if nil != err {
				if errors.Is(err, auth.ErrUnauthorized) {
					return err
				}
				logger.Warn().Err(err).Int("attempt", attempt).Msg("Stream fetch attempt failed")

				return retry.RetryableError(err)
			}
			defer func() {
				if closeErr := stream.Close(); nil != closeErr {
					err = errors.Join(err, retry.RetryableError(fmt.Errorf("failed to close track stream: %v", closeErr)))
				}
			}()

			chunk := make([]byte, r.conf.ChunkSize)
			if _, err := io.CopyBuffer(&buf, stream, chunk); nil != err {
				logger.Warn().Err(err).Int("attempt", attempt).Msg("Stream read attempt failed")

				return retry.RetryableError(fmt.Errorf("failed to read track stream: %w", err))
			}

			return nil
		},
	)
	if nil != err {
		return nil, fmt.Errorf("failed to fetch track stream: %w", err)
	}

	return buf.Bytes(), nil
}

func isRunFatal(ctx context.Context, err error) bool {
	if errors.Is(err, auth.ErrUnauthorized) {
		return true
	}

	return nil != ctx.Err()
}
