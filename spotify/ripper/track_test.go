package ripper_test

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvdub/mr-rippah/cache"
	"github.com/cvdub/mr-rippah/config"
	"github.com/cvdub/mr-rippah/spotify/ripper"
)

const (
	trackIDA = "aaaaaaaaaaaaaaaaaaaaaa"
	trackIDB = "bbbbbbbbbbbbbbbbbbbbbb"
	trackIDC = "cccccccccccccccccccccc"
)

func TestRipTrackSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.tracks[trackIDA] = testTrack("Roygbiv", "Boards of Canada", "Music Has the Right to Children", 8)
	sess.streamFailures[trackIDA] = 2

	dir := t.TempDir()
	r := ripper.NewRipper(sess, fakeEncoder{}, cache.New(), testConfig(dir))

	res, err := r.RipTrack(t.Context(), zerolog.Nop(), dir, "spotify:track:"+trackIDA)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Exactly(t, "Roygbiv", res.Title)
	assert.Exactly(t, 3, sess.attempts(trackIDA))

	info, err := os.Stat(res.OutputPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.Contains(t, res.OutputPath, "Boards of Canada")
	assert.Contains(t, res.OutputPath, "08 - Roygbiv.mp3")
}

func TestRipTrackStopsAtRetryLimit(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.tracks[trackIDA] = testTrack("Roygbiv", "Boards of Canada", "Music Has the Right to Children", 8)
	sess.streamFailures[trackIDA] = 100

	dir := t.TempDir()
	r := ripper.NewRipper(sess, fakeEncoder{}, cache.New(), testConfig(dir))

	res, err := r.RipTrack(t.Context(), zerolog.Nop(), dir, "spotify:track:"+trackIDA)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Exactly(t, ripper.ReasonStreamFetchExhausted, res.FailureReason)
	// TrackRetries bounds total attempts, not retries after the first.
	assert.Exactly(t, 3, sess.attempts(trackIDA))
}

func TestRipTrackInvalidURI(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	dir := t.TempDir()
	r := ripper.NewRipper(sess, fakeEncoder{}, cache.New(), testConfig(dir))

	res, err := r.RipTrack(t.Context(), zerolog.Nop(), dir, "spotify:track:not-a-valid-id")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Exactly(t, ripper.ReasonInvalidTrackURI, res.FailureReason)
}

func TestRipTrackLocalPolicies(t *testing.T) {
	t.Parallel()

	t.Run("Fail", func(t *testing.T) {
		t.Parallel()

		sess := newFakeSession()
		dir := t.TempDir()
		r := ripper.NewRipper(sess, fakeEncoder{}, cache.New(), testConfig(dir))

		res, err := r.RipTrack(t.Context(), zerolog.Nop(), dir, "spotify:local:::Home+Recording:42")
		require.NoError(t, err)

		assert.False(t, res.Success)
		assert.False(t, res.Skipped)
		assert.Exactly(t, ripper.ReasonLocalTrackUnsupported, res.FailureReason)
	})

	t.Run("Skip", func(t *testing.T) {
		t.Parallel()

		sess := newFakeSession()
		dir := t.TempDir()
		conf := testConfig(dir)
		conf.Ripper.LocalTrackPolicy = config.LocalTrackPolicySkip
		r := ripper.NewRipper(sess, fakeEncoder{}, cache.New(), conf)

		res, err := r.RipTrack(t.Context(), zerolog.Nop(), dir, "spotify:local:::Home+Recording:42")
		require.NoError(t, err)

		assert.False(t, res.Success)
		assert.True(t, res.Skipped)
		assert.Exactly(t, ripper.ReasonLocalTrackUnsupported, res.FailureReason)
	})
}

func TestRipTrackUnplayableWithoutAlternative(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	track := testTrack("Gone", "Nobody", "Nothing", 1)
	track.Playable = false
	sess.tracks[trackIDB] = track

	dir := t.TempDir()
	r := ripper.NewRipper(sess, fakeEncoder{}, cache.New(), testConfig(dir))

	res, err := r.RipTrack(t.Context(), zerolog.Nop(), dir, "spotify:track:"+trackIDB)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Exactly(t, ripper.ReasonTrackUnplayable, res.FailureReason)
	assert.Zero(t, sess.attempts(trackIDB))
}

func TestRipTrackFollowsRelink(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	original := testTrack("Heartbeats", "The Knife", "Deep Cuts", 2)
	original.Playable = false
	original.AlternativeID = trackIDC
	sess.tracks[trackIDB] = original
	sess.tracks[trackIDC] = testTrack("Heartbeats", "The Knife", "Deep Cuts", 2)

	dir := t.TempDir()
	r := ripper.NewRipper(sess, fakeEncoder{}, cache.New(), testConfig(dir))

	res, err := r.RipTrack(t.Context(), zerolog.Nop(), dir, "spotify:track:"+trackIDB)
	require.NoError(t, err)

	assert.True(t, res.Success)
	// The stream comes from the substitute recording, not the requested id.
	assert.Exactly(t, 1, sess.attempts(trackIDC))
	assert.Zero(t, sess.attempts(trackIDB))
}
