package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidIdentifier = errors.New("invalid spotify identifier")

type URIKind int

func (k URIKind) String() string {
	switch k {
	case URIKindTrack:
		return "track"
	case URIKindPlaylist:
		return "playlist"
	case URIKindLocal:
		return "local"
	}

	return "unknown"
}

const (
	URIKindTrack URIKind = iota
	URIKindPlaylist
	URIKindLocal
)

type URI struct {
	Kind URIKind
	ID   string
}

func (u URI) String() string {
	return "spotify:" + u.Kind.String() + ":" + u.ID
}

var (
	webURLPattern      = regexp.MustCompile(`/(playlist|track)/([A-Za-z0-9]{22})`)
	trackURIPattern    = regexp.MustCompile(`^spotify:track:[A-Za-z0-9]{22}$`)
	playlistURIPattern = regexp.MustCompile(`^spotify:playlist:[A-Za-z0-9]{22}$`)
	bareIDPattern      = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
)

// NormalizeURL converts an open.spotify.com web URL into its canonical URI
// form. Anything that is not a web URL passes through unchanged.
func NormalizeURL(input string) string {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		if m := webURLPattern.FindStringSubmatch(input); nil != m {
			return "spotify:" + m[1] + ":" + m[2]
		}
	}

	return input
}

// ParseTrackURI accepts a web URL, a canonical track URI, or a bare 22-char
// id. Local track URIs parse successfully so callers can record them as
// unsupported instead of conflating them with malformed input.
func ParseTrackURI(input string) (URI, error) {
	s := NormalizeURL(input)

	if rest, ok := strings.CutPrefix(s, "spotify:local:"); ok {
		return URI{Kind: URIKindLocal, ID: rest}, nil
	}

	if bareIDPattern.MatchString(s) {
		s = "spotify:track:" + s
	}

	if !trackURIPattern.MatchString(s) {
		return URI{}, fmt.Errorf("%w: %s", ErrInvalidIdentifier, input)
	}

	return URI{Kind: URIKindTrack, ID: strings.TrimPrefix(s, "spotify:track:")}, nil
}

// ParsePlaylistURI accepts a web URL or a canonical playlist URI. The
// canonical form is matched in full, not by prefix.
func ParsePlaylistURI(input string) (URI, error) {
	s := NormalizeURL(input)

	if !playlistURIPattern.MatchString(s) {
		return URI{}, fmt.Errorf("%w: %s", ErrInvalidIdentifier, input)
	}

	return URI{Kind: URIKindPlaylist, ID: strings.TrimPrefix(s, "spotify:playlist:")}, nil
}
