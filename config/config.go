package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/cvdub/mr-rippah/unit"
)

type Config struct {
	Log     Log     `yaml:"log"`
	Spotify Spotify `yaml:"spotify"`
	Update  Update  `yaml:"update"`
}

func (c *Config) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dict("log", c.Log.ToDict()).
		Dict("spotify", c.Spotify.ToDict()).
		Dict("update", c.Update.ToDict())
}

func (c *Config) setDefaults() error {
	c.Log.setDefaults()
	c.Update.setDefaults()

	return c.Spotify.setDefaults()
}

func (c *Config) validate() error {
	if err := c.Log.validate(); nil != err {
		return fmt.Errorf("log config validation failed: %v", err)
	}

	if err := c.Spotify.validate(); nil != err {
		return fmt.Errorf("spotify config validation failed: %v", err)
	}

	return nil
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Log) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("level", c.Level).
		Str("format", c.Format)
}

func (c *Log) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}

	if c.Format == "" {
		c.Format = "auto"
	}
}

func (c *Log) validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error", "fatal", "panic"}, c.Level) {
		return fmt.Errorf(
			"level must be one of: debug, info, warn, error, fatal, panic, got: %s",
			c.Level,
		)
	}

	if !slices.Contains([]string{"auto", "json", "pretty"}, c.Format) {
		return fmt.Errorf("format must be 'auto', 'json', or 'pretty', got: %s", c.Format)
	}

	return nil
}

type Update struct {
	Disabled bool `yaml:"disabled"`
}

func (c *Update) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Bool("disabled", c.Disabled)
}

func (c *Update) setDefaults() {}

type Spotify struct {
	CredsDir     string  `yaml:"creds_dir"`
	DownloadsDir string  `yaml:"downloads_dir"`
	Session      Session `yaml:"session"`
	Ripper       Ripper  `yaml:"ripper"`
}

func (c *Spotify) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("creds_dir", c.CredsDir).
		Str("downloads_dir", c.DownloadsDir).
		Dict("session", c.Session.ToDict()).
		Dict("ripper", c.Ripper.ToDict())
}

func (c *Spotify) setDefaults() error {
	if c.CredsDir == "" {
		cacheDir, err := os.UserCacheDir()
		if nil != err {
			return fmt.Errorf("failed to resolve user cache directory: %v", err)
		}

		c.CredsDir = filepath.Join(cacheDir, "mr-rippah")
	}

	if c.DownloadsDir == "" {
		homeDir, err := os.UserHomeDir()
		if nil != err {
			return fmt.Errorf("failed to resolve user home directory: %v", err)
		}

		c.DownloadsDir = filepath.Join(homeDir, "Downloads")
	}

	c.Session.setDefaults()
	c.Ripper.setDefaults()

	return nil
}

func (c *Spotify) validate() error {
	if err := c.Session.validate(); nil != err {
		return fmt.Errorf("session config validation failed: %v", err)
	}

	if err := c.Ripper.validate(); nil != err {
		return fmt.Errorf("ripper config validation failed: %v", err)
	}

	return nil
}

type Session struct {
	MetadataAPIURL string          `yaml:"metadata_api_url"`
	StreamAPIURL   string          `yaml:"stream_api_url"`
	AuthRetries    int             `yaml:"auth_retries"`
	AuthRetryDelay Duration        `yaml:"auth_retry_delay"`
	Timeouts       SessionTimeouts `yaml:"timeouts"`
}

func (c *Session) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("metadata_api_url", c.MetadataAPIURL).
		Str("stream_api_url", c.StreamAPIURL).
		Int("auth_retries", c.AuthRetries).
		Str("auth_retry_delay", c.AuthRetryDelay.String()).
		Dict("timeouts", c.Timeouts.ToDict())
}

func (c *Session) setDefaults() {
	if c.MetadataAPIURL == "" {
		c.MetadataAPIURL = "https://api.spotify.com/v1"
	}

	if c.StreamAPIURL == "" {
		c.StreamAPIURL = "https://audio.spotify.com/v1"
	}

	if c.AuthRetries == 0 {
		c.AuthRetries = 5
	}

	if c.AuthRetryDelay.Duration == 0 {
		c.AuthRetryDelay.Duration = 5 * time.Second
	}

	c.Timeouts.setDefaults()
}

func (c *Session) validate() error {
	if c.AuthRetries < 1 {
		return errors.New("auth_retries must be greater than 0")
	}

	if c.AuthRetryDelay.Duration < 0 {
		return errors.New("auth_retry_delay must be greater than 0")
	}

	if err := c.Timeouts.validate(); nil != err {
		return fmt.Errorf("timeouts config validation failed: %v", err)
	}

	return nil
}

// SessionTimeouts are per-request deadlines in seconds. GetStream bounds
// only the wait for the stream response headers; draining the body has no
// deadline and is governed by the track retry loop.
type SessionTimeouts struct {
	GetPlaylistPage int `yaml:"get_playlist_page"`
	GetTrack        int `yaml:"get_track"`
	GetStream       int `yaml:"get_stream"`
	DownloadCover   int `yaml:"download_cover"`
}

func (c *SessionTimeouts) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int("get_playlist_page", c.GetPlaylistPage).
		Int("get_track", c.GetTrack).
		Int("get_stream", c.GetStream).
		Int("download_cover", c.DownloadCover)
}

func (c *SessionTimeouts) setDefaults() {
	if c.GetPlaylistPage == 0 {
		c.GetPlaylistPage = 5
	}

	if c.GetTrack == 0 {
		c.GetTrack = 5
	}

	if c.GetStream == 0 {
		c.GetStream = 60
	}

	if c.DownloadCover == 0 {
		c.DownloadCover = 5
	}
}

func (c *SessionTimeouts) validate() error {
	if c.GetPlaylistPage < 0 {
		return errors.New("get_playlist_page must be greater than 0")
	}

	if c.GetTrack < 0 {
		return errors.New("get_track must be greater than 0")
	}

	if c.GetStream < 0 {
		return errors.New("get_stream must be greater than 0")
	}

	if c.DownloadCover < 0 {
		return errors.New("download_cover must be greater than 0")
	}

	return nil
}

const (
	LocalTrackPolicyFail = "fail"
	LocalTrackPolicySkip = "skip"
)

type Ripper struct {
	ChunkSize        int      `yaml:"chunk_size"`
	TrackRetries     int      `yaml:"track_retries"`
	RetryDelay       Duration `yaml:"retry_delay"`
	PacingDelay      Duration `yaml:"pacing_delay"`
	LocalTrackPolicy string   `yaml:"local_track_policy"`
}

func (c *Ripper) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int("chunk_size", c.ChunkSize).
		Int("track_retries", c.TrackRetries).
		Str("retry_delay", c.RetryDelay.String()).
		Str("pacing_delay", c.PacingDelay.String()).
		Str("local_track_policy", c.LocalTrackPolicy)
}

func (c *Ripper) setDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 64 * unit.Kibibyte
	}

	if c.TrackRetries == 0 {
		c.TrackRetries = 5
	}

	if c.RetryDelay.Duration == 0 {
		c.RetryDelay.Duration = 5 * time.Second
	}

	if c.PacingDelay.Duration == 0 {
		c.PacingDelay.Duration = 5 * time.Second
	}

	if c.LocalTrackPolicy == "" {
		c.LocalTrackPolicy = LocalTrackPolicyFail
	}
}

func (c *Ripper) validate() error {
	if c.ChunkSize < 1 {
		return errors.New("chunk_size must be greater than 0")
	}

	if c.TrackRetries < 1 {
		return errors.New("track_retries must be greater than 0")
	}

	if c.RetryDelay.Duration < 0 {
		return errors.New("retry_delay must be greater than 0")
	}

	if c.PacingDelay.Duration < 0 {
		return errors.New("pacing_delay must be greater than 0")
	}

	if !slices.Contains([]string{LocalTrackPolicyFail, LocalTrackPolicySkip}, c.LocalTrackPolicy) {
		return fmt.Errorf(
			"local_track_policy must be 'fail' or 'skip', got: %s",
			c.LocalTrackPolicy,
		)
	}

	return nil
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	d.Duration = parsed

	return nil
}

// Load reads filename, or config.yaml when filename is empty. A missing
// default config file is not an error since every knob has a default.
func Load(filename string) (*Config, error) {
	var conf Config

	data, err := os.ReadFile(lo.Ternary(len(filename) > 0, filename, "config.yaml"))
	if nil != err {
		if len(filename) > 0 || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
		}
	} else if err := yaml.Unmarshal(data, &conf); nil != err {
		return nil, fmt.Errorf("failed to parse config file %s: %v", filename, err)
	}

	if err := conf.setDefaults(); nil != err {
		return nil, fmt.Errorf("failed to set config defaults: %v", err)
	}

	if err := conf.validate(); nil != err {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return &conf, nil
}
