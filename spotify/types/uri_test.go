package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvdub/mr-rippah/spotify/types"
)

func TestParseTrackURIEquivalentForms(t *testing.T) {
	t.Parallel()

	want := types.URI{Kind: types.URIKindTrack, ID: "6rqhFgbbKwnb9MLmUQDhG6"}

	for _, input := range []string{
		"spotify:track:6rqhFgbbKwnb9MLmUQDhG6",
		"https://open.spotify.com/track/6rqhFgbbKwnb9MLmUQDhG6",
		"https://open.spotify.com/track/6rqhFgbbKwnb9MLmUQDhG6?si=abc123",
		"http://open.spotify.com/track/6rqhFgbbKwnb9MLmUQDhG6",
		"6rqhFgbbKwnb9MLmUQDhG6",
	} {
		uri, err := types.ParseTrackURI(input)
		require.NoError(t, err, "input: %s", input)
		assert.Exactly(t, want, uri, "input: %s", input)
	}
}

func TestParseTrackURILocal(t *testing.T) {
	t.Parallel()

	uri, err := types.ParseTrackURI("spotify:local:::Home+Recording:42")
	require.NoError(t, err)

	assert.Exactly(t, types.URIKindLocal, uri.Kind)
	assert.Exactly(t, "::Home+Recording:42", uri.ID)
}

func TestParseTrackURIInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"",
		"spotify:track:tooshort",
		"spotify:track:6rqhFgbbKwnb9MLmUQDhG6extra",
		"spotify:playlist:6rqhFgbbKwnb9MLmUQDhG6",
		"https://open.spotify.com/album/6rqhFgbbKwnb9MLmUQDhG6",
		"not a uri at all",
	} {
		_, err := types.ParseTrackURI(input)
		require.ErrorIs(t, err, types.ErrInvalidIdentifier, "input: %s", input)
	}
}

func TestParsePlaylistURIEquivalentForms(t *testing.T) {
	t.Parallel()

	want := types.URI{Kind: types.URIKindPlaylist, ID: "37i9dQZF1DXcBWIGoYBM5M"}

	for _, input := range []string{
		"spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
		"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
		"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=xyz",
	} {
		uri, err := types.ParsePlaylistURI(input)
		require.NoError(t, err, "input: %s", input)
		assert.Exactly(t, want, uri, "input: %s", input)
	}
}

func TestParsePlaylistURIRequiresFullMatch(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"",
		"spotify:playlist:short",
		"spotify:playlist:37i9dQZF1DXcBWIGoYBM5Mextra",
		"spotify:track:37i9dQZF1DXcBWIGoYBM5M",
		"37i9dQZF1DXcBWIGoYBM5M",
	} {
		_, err := types.ParsePlaylistURI(input)
		require.ErrorIs(t, err, types.ErrInvalidIdentifier, "input: %s", input)
	}
}

func TestURIString(t *testing.T) {
	t.Parallel()

	assert.Exactly(
		t,
		"spotify:track:6rqhFgbbKwnb9MLmUQDhG6",
		types.URI{Kind: types.URIKindTrack, ID: "6rqhFgbbKwnb9MLmUQDhG6"}.String(),
	)
	assert.Exactly(
		t,
		"spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
		types.URI{Kind: types.URIKindPlaylist, ID: "37i9dQZF1DXcBWIGoYBM5M"}.String(),
	)
}
