package ripper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cvdub/mr-rippah/cache"
	"github.com/cvdub/mr-rippah/spotify/types"
)

// getCover fetches the largest cover of a track's album, memoized by URL so
// an album's art is downloaded once per run. A missing or undeliverable
// cover yields nil bytes, never an error: art is optional.
func (r *Ripper) getCover(
	ctx context.Context,
	logger zerolog.Logger,
	meta types.TrackMetadata,
) []byte {
	coverRef, ok := meta.LargestCover()
	if !ok {
		return nil
	}

	cachedCover, err := r.cache.Covers.Fetch(
		coverRef.URL,
		cache.DefaultCoverTTL,
		func() ([]byte, error) { return r.downloadCover(ctx, coverRef.URL) },
	)
	if nil != err {
		logger.Warn().Err(err).Str("cover_url", coverRef.URL).Msg("Failed to download cover, continuing without art")

		return nil
	}

	return cachedCover.Value()
}

func (r *Ripper) downloadCover(ctx context.Context, coverURL string) (b []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if nil != err {
		return nil, fmt.Errorf("failed to create get cover request: %w", err)
	}

	client := http.Client{ //nolint:exhaustruct
		Timeout: time.Duration(r.timeouts.DownloadCover) * time.Second,
	}
	resp, err := client.Do(req)
	if nil != err {
		return nil, fmt.Errorf("failed to send get cover request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close get cover response body: %v", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	respBytes, err := io.ReadAll(resp.Body)
	if nil != err {
		return nil, fmt.Errorf("failed to read cover response body: %w", err)
	}

	return respBytes, nil
}
