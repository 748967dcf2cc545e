package ripper_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cvdub/mr-rippah/config"
	"github.com/cvdub/mr-rippah/spotify/session"
	"github.com/cvdub/mr-rippah/spotify/types"
)

// fakeSession serves canned playlist pages, metadata, and streams, and
// counts stream attempts per track so retry behavior can be asserted.
type fakeSession struct {
	mu             sync.Mutex
	pages          [][]string
	tracks         map[string]*types.Track
	streamFailures map[string]int
	streamAttempts map[string]int
	streamData     []byte
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:          nil,
		tracks:         make(map[string]*types.Track),
		streamFailures: make(map[string]int),
		streamAttempts: make(map[string]int),
		streamData:     []byte("OggS-fake-vorbis-stream-bytes"),
	}
}

func (s *fakeSession) PlaylistTracksPage(
	_ context.Context,
	_ string,
	page int,
) ([]string, int, error) {
	if page >= len(s.pages) {
		return nil, 0, nil
	}

	remaining := 0
	for _, p := range s.pages[page+1:] {
		remaining += len(p)
	}

	return s.pages[page], remaining, nil
}

func (s *fakeSession) TrackMetadata(_ context.Context, id string) (*types.Track, error) {
	track, ok := s.tracks[id]
	if !ok {
		return nil, session.ErrTrackNotFound
	}

	return track, nil
}

func (s *fakeSession) TrackStream(
	_ context.Context,
	id string,
	_ session.Quality,
) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streamAttempts[id]++
	if s.streamAttempts[id] <= s.streamFailures[id] {
		return nil, fmt.Errorf("simulated stream failure %d", s.streamAttempts[id])
	}

	return io.NopCloser(bytes.NewReader(s.streamData)), nil
}

func (s *fakeSession) attempts(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.streamAttempts[id]
}

func (s *fakeSession) Close() error { return nil }

// fakeEncoder copies the stream bytes to the destination instead of running
// ffmpeg.
type fakeEncoder struct{}

func (fakeEncoder) EncodeMP3(_ context.Context, src []byte, dst string) error {
	return os.WriteFile(dst, src, 0o644)
}

func testTrack(title, artist, album string, trackNumber int) *types.Track {
	return &types.Track{
		Meta: types.TrackMetadata{
			Title:       title,
			Artist:      artist,
			Album:       album,
			AlbumArtist: artist,
			TrackNumber: trackNumber,
			DiscNumber:  1,
			ReleaseDate: types.ReleaseDate{Year: 2020, Month: 6, Day: 5},
			ISRC:        "",
			Covers:      nil,
		},
		Playable:      true,
		AlternativeID: "",
	}
}

func testConfig(downloadsDir string) config.Spotify {
	conf := config.Spotify{ //nolint:exhaustruct
		DownloadsDir: downloadsDir,
	}
	conf.Ripper = config.Ripper{
		ChunkSize:        1024,
		TrackRetries:     3,
		RetryDelay:       config.Duration{Duration: time.Millisecond},
		PacingDelay:      config.Duration{Duration: time.Millisecond},
		LocalTrackPolicy: config.LocalTrackPolicyFail,
	}
	conf.Session.Timeouts.DownloadCover = 5

	return conf
}
