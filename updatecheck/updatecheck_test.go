package updatecheck_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/cvdub/mr-rippah/updatecheck"
)

func newReleasesServer(t *testing.T, tagName string, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name": "` + tagName + `", "name": "Release ` + tagName + `"}`))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestNoticeOnNewerRelease(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := newReleasesServer(t, "v2.3.0", &hits)

	checker := updatecheck.New(t.TempDir(), "v1.0.0")
	checker.ReleasesURL = server.URL

	notice := checker.Notice(t.Context(), zerolog.Nop())
	assert.Contains(t, notice, "v2.3.0")
	assert.Contains(t, notice, "v1.0.0")
}

func TestNoticeUsesCacheWithinInterval(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := newReleasesServer(t, "v2.3.0", &hits)

	checker := updatecheck.New(t.TempDir(), "v1.0.0")
	checker.ReleasesURL = server.URL

	_ = checker.Notice(t.Context(), zerolog.Nop())
	_ = checker.Notice(t.Context(), zerolog.Nop())

	assert.EqualValues(t, 1, hits.Load())
}

func TestNoticeEmptyWhenUpToDate(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := newReleasesServer(t, "v1.0.0", &hits)

	checker := updatecheck.New(t.TempDir(), "1.0.0")
	checker.ReleasesURL = server.URL

	assert.Empty(t, checker.Notice(t.Context(), zerolog.Nop()))
}

func TestNoticeSilentOnDevBuilds(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := newReleasesServer(t, "v9.9.9", &hits)

	checker := updatecheck.New(t.TempDir(), "dev")
	checker.ReleasesURL = server.URL

	assert.Empty(t, checker.Notice(t.Context(), zerolog.Nop()))
	assert.Zero(t, hits.Load())
}

func TestNoticeSilentOnServerFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	checker := updatecheck.New(t.TempDir(), "v1.0.0")
	checker.ReleasesURL = server.URL

	assert.Empty(t, checker.Notice(t.Context(), zerolog.Nop()))
}
