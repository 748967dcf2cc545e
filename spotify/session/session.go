package session

import (
	"context"
	"errors"
	"io"

	"github.com/cvdub/mr-rippah/spotify/types"
)

type Quality string

const (
	QualityNormal   Quality = "normal"
	QualityHigh     Quality = "high"
	QualityVeryHigh Quality = "very_high"
)

var (
	ErrTooManyRequests = errors.New("too many requests")
	ErrTrackNotFound   = errors.New("track not found")
)

// Session is the authenticated connection tracks are enumerated and fetched
// through. Implementations must be safe for sequential reuse across an
// entire playlist run.
type Session interface {
	// PlaylistTracksPage returns the track URIs of one page of a playlist,
	// and how many tracks remain after it. Local tracks appear in their
	// spotify:local form.
	PlaylistTracksPage(ctx context.Context, id string, page int) (uris []string, remaining int, err error)

	// TrackMetadata resolves a track id into its tag metadata and
	// playability.
	TrackMetadata(ctx context.Context, id string) (*types.Track, error)

	// TrackStream opens the raw audio stream of a track. The caller owns
	// the returned reader.
	TrackStream(ctx context.Context, id string, quality Quality) (io.ReadCloser, error)

	Close() error
}
