package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/cvdub/mr-rippah/spotify/types"
)

var (
	DefaultCoverTTL     = 1 * time.Hour
	DefaultTrackMetaTTL = 1 * time.Hour
)

// Cache keeps per-run lookups off the wire: cover art is shared by every
// track of an album, and re-linked tracks fetch metadata twice.
type Cache struct {
	Covers     CoversCache
	TracksMeta TracksMetaCache
}

func New() *Cache {
	coversCache := ccache.New(
		ccache.Configure[[]byte]().
			MaxSize(100).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	tracksMetaCache := ccache.New(
		ccache.Configure[*types.Track]().
			MaxSize(10_000).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &Cache{
		Covers: CoversCache{
			c:   coversCache,
			mux: sync.Mutex{},
		},
		TracksMeta: TracksMetaCache{
			c:   tracksMetaCache,
			mux: sync.Mutex{},
		},
	}
}

type CoversCache struct {
	c   *ccache.Cache[[]byte]
	mux sync.Mutex
}

func (c *CoversCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() ([]byte, error),
) (*ccache.Item[[]byte], error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return nil, fmt.Errorf("fetch cover: %w", err)
	}

	return v, nil
}

type TracksMetaCache struct {
	c   *ccache.Cache[*types.Track]
	mux sync.Mutex
}

func (c *TracksMetaCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() (*types.Track, error),
) (*ccache.Item[*types.Track], error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return nil, fmt.Errorf("fetch track meta: %w", err)
	}

	return v, nil
}
