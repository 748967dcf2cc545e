package types

import "fmt"

// ReleaseDate carries a release date of possibly partial precision. Month
// and Day are zero when the service only reports the year (or year-month).
type ReleaseDate struct {
	Year  int
	Month int
	Day   int
}

func (d ReleaseDate) Format() string {
	switch {
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}

type CoverRef struct {
	URL    string
	Width  int
	Height int
}

type TrackMetadata struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	TrackNumber int
	DiscNumber  int
	ReleaseDate ReleaseDate
	ISRC        string
	// Covers is ordered by resolution, largest last.
	Covers []CoverRef
}

func (m TrackMetadata) LargestCover() (CoverRef, bool) {
	if len(m.Covers) == 0 {
		return CoverRef{}, false
	}

	return m.Covers[len(m.Covers)-1], true
}

type Track struct {
	Meta     TrackMetadata
	Playable bool
	// AlternativeID names a substitute recording offered by the service
	// when the track itself has no deliverable file.
	AlternativeID string
}
