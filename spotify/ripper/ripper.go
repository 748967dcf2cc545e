package ripper

import (
	"github.com/cvdub/mr-rippah/cache"
	"github.com/cvdub/mr-rippah/config"
	"github.com/cvdub/mr-rippah/spotify/fs"
	"github.com/cvdub/mr-rippah/spotify/session"
)

// Ripper drives the per-track pipeline: metadata, stream fetch, transcode,
// tag. Tracks of a playlist are processed strictly one at a time.
type Ripper struct {
	dir      fs.DownloadsDir
	sess     session.Session
	enc      Encoder
	cache    *cache.Cache
	conf     config.Ripper
	timeouts config.SessionTimeouts
	quality  session.Quality
}

func NewRipper(
	sess session.Session,
	enc Encoder,
	c *cache.Cache,
	conf config.Spotify,
) *Ripper {
	return &Ripper{
		dir:      fs.DownloadsDirFrom(conf.DownloadsDir),
		sess:     sess,
		enc:      enc,
		cache:    c,
		conf:     conf.Ripper,
		timeouts: conf.Session.Timeouts,
		quality:  session.QualityVeryHigh,
	}
}
