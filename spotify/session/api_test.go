package session_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvdub/mr-rippah/config"
	"github.com/cvdub/mr-rippah/spotify/auth"
	"github.com/cvdub/mr-rippah/spotify/fs"
	"github.com/cvdub/mr-rippah/spotify/session"
)

func newTestAPI(t *testing.T, serverURL string) *session.API {
	t.Helper()

	credsDir := t.TempDir()
	require.NoError(t, fs.AuthFileFrom(credsDir, "token.json").Write(fs.AuthFileContent{
		Token:        "test-token",
		RefreshToken: "test-refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}))

	a, err := auth.New(credsDir)
	require.NoError(t, err)

	conf := config.Session{ //nolint:exhaustruct
		MetadataAPIURL: serverURL,
		StreamAPIURL:   serverURL,
		AuthRetries:    1,
	}
	conf.Timeouts.GetPlaylistPage = 5
	conf.Timeouts.GetTrack = 5
	conf.Timeouts.GetStream = 5
	conf.Timeouts.DownloadCover = 5

	return session.NewAPI(zerolog.Nop(), a, conf)
}

func TestPlaylistTracksPagePagination(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"0": `{
			"total": 201,
			"items": [
				{"track": {"uri": "spotify:track:aaaaaaaaaaaaaaaaaaaaaa"}},
				{"track": {"uri": "spotify:local:::Home+Recording:42"}}
			]
		}`,
		"100": `{
			"total": 201,
			"items": [{"track": {"uri": "spotify:track:bbbbbbbbbbbbbbbbbbbbbb"}}]
		}`,
		"200": `{
			"total": 201,
			"items": [{"track": {"uri": "spotify:track:cccccccccccccccccccccc"}}]
		}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/playlists/6rqhFgbbKwnb9MLmUQDhG6/tracks", r.URL.Path)
		assert.Equal(t, "total,items(track(uri))", r.URL.Query().Get("fields"))

		body, ok := pages[r.URL.Query().Get("offset")]
		require.True(t, ok, "unexpected offset %s", r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL)
	ctx := t.Context()

	var all []string
	for page := 0; ; page++ {
		uris, remaining, err := api.PlaylistTracksPage(ctx, "6rqhFgbbKwnb9MLmUQDhG6", page)
		require.NoError(t, err)
		all = append(all, uris...)
		if remaining == 0 {
			break
		}
	}

	assert.Exactly(t, []string{
		"spotify:track:aaaaaaaaaaaaaaaaaaaaaa",
		"spotify:local:::Home+Recording:42",
		"spotify:track:bbbbbbbbbbbbbbbbbbbbbb",
		"spotify:track:cccccccccccccccccccccc",
	}, all)
}

func TestTrackMetadata(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tracks/dddddddddddddddddddddd", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "eeeeeeeeeeeeeeeeeeeeee",
			"name": "Siberian Breaks",
			"track_number": 9,
			"disc_number": 1,
			"is_playable": true,
			"artists": [{"name": "MGMT"}],
			"album": {
				"name": "Congratulations",
				"artists": [{"name": "MGMT"}],
				"images": [
					{"url": "https://img.example/640", "width": 640, "height": 640},
					{"url": "https://img.example/300", "width": 300, "height": 300},
					{"url": "https://img.example/64", "width": 64, "height": 64}
				],
				"release_date": "2010-04-13"
			},
			"external_ids": {"isrc": "USSM11000940"}
		}`))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL)

	track, err := api.TrackMetadata(t.Context(), "dddddddddddddddddddddd")
	require.NoError(t, err)

	assert.Exactly(t, "Siberian Breaks", track.Meta.Title)
	assert.Exactly(t, "MGMT", track.Meta.Artist)
	assert.Exactly(t, "Congratulations", track.Meta.Album)
	assert.Exactly(t, "MGMT", track.Meta.AlbumArtist)
	assert.Exactly(t, 9, track.Meta.TrackNumber)
	assert.Exactly(t, 1, track.Meta.DiscNumber)
	assert.Exactly(t, "2010-04-13", track.Meta.ReleaseDate.Format())
	assert.Exactly(t, "USSM11000940", track.Meta.ISRC)
	assert.True(t, track.Playable)
	assert.Exactly(t, "eeeeeeeeeeeeeeeeeeeeee", track.AlternativeID)

	largest, ok := track.Meta.LargestCover()
	require.True(t, ok)
	assert.Exactly(t, "https://img.example/640", largest.URL)
}

func TestExpiredTokenResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"status": 401, "message": "The access token expired"}}`))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL)

	_, _, err := api.PlaylistTracksPage(t.Context(), "6rqhFgbbKwnb9MLmUQDhG6", 0)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestTooManyRequestsResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL)

	_, err := api.TrackMetadata(t.Context(), "dddddddddddddddddddddd")
	require.ErrorIs(t, err, session.ErrTooManyRequests)

	_, err = api.TrackStream(t.Context(), "dddddddddddddddddddddd", session.QualityVeryHigh)
	require.ErrorIs(t, err, session.ErrTooManyRequests)
}

func TestTrackStreamSlowBodyIsNotCutOff(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for i := 0; i < 8; i++ {
			_, _ = w.Write(bytes.Repeat([]byte{0x4f}, 1024))
			flusher.Flush()
			time.Sleep(200 * time.Millisecond)
		}
	}))
	defer server.Close()

	credsDir := t.TempDir()
	require.NoError(t, fs.AuthFileFrom(credsDir, "token.json").Write(fs.AuthFileContent{
		Token:        "test-token",
		RefreshToken: "test-refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}))
	a, err := auth.New(credsDir)
	require.NoError(t, err)

	conf := config.Session{ //nolint:exhaustruct
		StreamAPIURL: server.URL,
	}
	conf.Timeouts.GetStream = 1

	api := session.NewAPI(zerolog.Nop(), a, conf)

	// The body takes well over the GetStream bound to arrive. A download that
	// keeps making progress must not be cut off by it.
	stream, err := api.TrackStream(t.Context(), "dddddddddddddddddddddd", session.QualityVeryHigh)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	b, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Len(t, b, 8*1024)
}

func TestTrackStream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tracks/dddddddddddddddddddddd/stream", r.URL.Path)
		assert.Equal(t, "very_high", r.URL.Query().Get("quality"))
		_, _ = w.Write([]byte("OggS-audio-bytes"))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL)

	stream, err := api.TrackStream(t.Context(), "dddddddddddddddddddddd", session.QualityVeryHigh)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	b := make([]byte, 32)
	n, _ := stream.Read(b)
	assert.Equal(t, "OggS-audio-bytes", string(b[:n]))
}
