// Package periods generates the weekly snapshot cutoff dates for the panel.
//
// A single week-boundary convention is used everywhere: the ISO week ending,
// i.e. the Sunday of the ISO week containing a date. Every cutoff produced
// here, every cohort-end date and every in-period window downstream is keyed
// to that same Sunday, since mixing conventions silently corrupts the bucket
// math.
package periods

import (
	"time"

	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/pkg/errors"
)

// Generator produces the ordered sequence of weekly snapshot dates for a
// reporting window.
type Generator struct {
	Start time.Time
	AsOf  time.Time
}

// NewGenerator creates a generator for the window [start, asOf]
func NewGenerator(start, asOf time.Time) *Generator {
	return &Generator{Start: models.Date(start), AsOf: models.Date(asOf)}
}

// WeekEnd returns the ISO week ending (Sunday) of the week containing d
func WeekEnd(d time.Time) time.Time {
	d = models.Date(d)
	wd := int(d.Weekday()) // Sunday == 0
	if wd == 0 {
		return d
	}
	return d.AddDate(0, 0, 7-wd)
}

// MostRecentCompletedWeekEnd returns the last Sunday strictly before now.
// It is the default "as-of" cutoff: the current, still-open week is never
// reported on.
func MostRecentCompletedWeekEnd(now time.Time) time.Time {
	d := models.Date(now)
	wd := int(d.Weekday())
	if wd == 0 {
		return d.AddDate(0, 0, -7)
	}
	return d.AddDate(0, 0, -wd)
}

// PreviousPeriod returns the snapshot date immediately preceding s. The panel
// steps in exact 7-day increments, so the predecessor is always a plain
// one-week lookback rather than "the previous row".
func PreviousPeriod(s time.Time) time.Time {
	return models.Date(s).AddDate(0, 0, -7)
}

// Generate returns the ordered, strictly increasing sequence of weekly cutoff
// dates: the week end of Start, then every following Sunday up to and
// including AsOf's week end (capped at AsOf itself).
//
// An empty window is a configuration error, not an empty result: running the
// panel with start after as-of means the caller misconfigured the report.
func (g *Generator) Generate() ([]time.Time, error) {
	if g.Start.After(g.AsOf) {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidPeriodRange,
			"snapshot window start is after the as-of date",
			nil,
		).WithContext("start", g.Start.Format("2006-01-02")).
			WithContext("as_of", g.AsOf.Format("2006-01-02")).
			WithSuggestion("Check the report start date and as-of cutoff configuration")
	}

	var out []time.Time
	for d := WeekEnd(g.Start); !d.After(g.AsOf); d = d.AddDate(0, 0, 7) {
		out = append(out, d)
	}

	if len(out) == 0 {
		// Start and AsOf fall inside the same incomplete week.
		return nil, errors.ConfigurationError(
			errors.CodeInvalidPeriodRange,
			"snapshot window contains no completed week",
			nil,
		).WithContext("start", g.Start.Format("2006-01-02")).
			WithContext("as_of", g.AsOf.Format("2006-01-02")).
			WithSuggestion("Widen the window so it spans at least one completed ISO week")
	}

	return out, nil
}
