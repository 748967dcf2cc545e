package types

import "github.com/samber/lo"

// TrackRipResult records the outcome of a single track attempt. Skips and
// failures are ordinary values, never control flow, so the playlist loop can
// aggregate them without unwinding.
type TrackRipResult struct {
	URI           string
	Title         string
	Success       bool
	Skipped       bool
	FailureReason string
	OutputPath    string
}

type PlaylistRipOutcome struct {
	Dir     string
	Results []TrackRipResult
}

func (o *PlaylistRipOutcome) Successes() int {
	return lo.CountBy(o.Results, func(r TrackRipResult) bool { return r.Success })
}

// Failures returns results worth surfacing to the user. Tracks skipped under
// the skip policy are excluded.
func (o *PlaylistRipOutcome) Failures() []TrackRipResult {
	return lo.Filter(o.Results, func(r TrackRipResult, _ int) bool {
		return !r.Success && !r.Skipped
	})
}
