package updatecheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"

	"github.com/cvdub/mr-rippah/httputil"
)

const (
	defaultReleasesURL = "https://api.github.com/repos/cvdub/mr-rippah/releases/latest"
	cacheFileName      = "update_check.json"
	checkInterval      = 24 * time.Hour
	requestTimeout     = 5 * time.Second
)

// Checker looks up the latest released version, remembering the answer for
// a day so repeated runs stay off the network.
type Checker struct {
	CacheDir       string
	CurrentVersion string
	ReleasesURL    string
}

func New(cacheDir, currentVersion string) *Checker {
	return &Checker{
		CacheDir:       cacheDir,
		CurrentVersion: currentVersion,
		ReleasesURL:    defaultReleasesURL,
	}
}

// Notice returns a short message when a newer release exists, or an empty
// string. The check is best-effort: failures are logged at debug level and
// never interrupt the run.
func (c *Checker) Notice(ctx context.Context, logger zerolog.Logger) string {
	if c.CurrentVersion == "" || c.CurrentVersion == "dev" {
		return ""
	}

	latest, err := c.latestVersion(ctx)
	if nil != err {
		logger.Debug().Err(err).Msg("Update check failed")

		return ""
	}

	current := ensureVPrefix(c.CurrentVersion)
	latest = ensureVPrefix(latest)
	if !semver.IsValid(current) || !semver.IsValid(latest) {
		return ""
	}

	if semver.Compare(latest, current) > 0 {
		return fmt.Sprintf("A new version is available: %s (current: %s)", latest, current)
	}

	return ""
}

type cacheRecord struct {
	LastCheckTimestamp int64  `json:"last_check_timestamp"`
	LatestVersion      string `json:"latest_version"`
}

func (c *Checker) latestVersion(ctx context.Context) (string, error) {
	if rec, ok := c.readCache(); ok {
		return rec.LatestVersion, nil
	}

	latest, err := c.fetchLatestVersion(ctx)
	if nil != err {
		return "", err
	}

	if err := c.writeCache(cacheRecord{
		LastCheckTimestamp: time.Now().Unix(),
		LatestVersion:      latest,
	}); nil != err {
		return "", err
	}

	return latest, nil
}

func (c *Checker) readCache() (cacheRecord, bool) {
	var rec cacheRecord

	b, err := os.ReadFile(c.cachePath())
	if nil != err {
		return rec, false
	}

	if err := json.Unmarshal(b, &rec); nil != err {
		return rec, false
	}

	if time.Since(time.Unix(rec.LastCheckTimestamp, 0)) >= checkInterval {
		return rec, false
	}

	return rec, true
}

func (c *Checker) writeCache(rec cacheRecord) error {
	if err := os.MkdirAll(c.CacheDir, 0o755); nil != err {
		return fmt.Errorf("failed to create update check cache directory: %v", err)
	}

	b, err := json.Marshal(rec)
	if nil != err {
		return fmt.Errorf("failed to encode update check cache: %v", err)
	}

	if err := os.WriteFile(c.cachePath(), b, 0o644); nil != err {
		return fmt.Errorf("failed to write update check cache: %v", err)
	}

	return nil
}

func (c *Checker) cachePath() string {
	return filepath.Join(c.CacheDir, cacheFileName)
}

func (c *Checker) fetchLatestVersion(ctx context.Context) (v string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ReleasesURL, nil)
	if nil != err {
		return "", fmt.Errorf("failed to create latest release request: %w", err)
	}
	req.Header.Add("Accept", "application/vnd.github+json")

	client := http.Client{Timeout: requestTimeout} //nolint:exhaustruct
	resp, err := client.Do(req)
	if nil != err {
		return "", fmt.Errorf("failed to send latest release request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close latest release response body: %v", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	respBytes, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return "", fmt.Errorf("failed to read latest release response body: %w", err)
	}

	tagName := gjson.GetBytes(respBytes, "tag_name").String()
	if tagName == "" {
		return "", errors.New("latest release response has no tag name")
	}

	return tagName, nil
}

func ensureVPrefix(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}

	return "v" + v
}
