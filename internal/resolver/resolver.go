// Package resolver decides the flight-level range of a located segment.
//
// Sources are tried in strict priority and never blended:
//
//  1. an inline range on the segment's own line;
//  2. the F) and G) fields;
//  3. metre readings, then feet readings, then the Q) line, then GND to 999.
//
// The Q) line limits and a RAISED TO directive are then applied as caps.
package resolver

import (
	"sort"

	"notam_parser/internal/fields"
	"notam_parser/internal/locator"
	"notam_parser/internal/patterns"
)

// Source names the rule that produced a resolution's estimate.
type Source string

const (
	SourceInline  Source = "inline"
	SourceFG      Source = "fg"
	SourceMetres  Source = "metres"
	SourceFeet    Source = "feet"
	SourceQLine   Source = "qline"
	SourceDefault Source = "default"
)

// Ceiling is the upper level used when nothing bounds a closure. It is a
// marker, not an operational level.
const Ceiling = 999

// Resolution is the resolved range for one candidate.
type Resolution struct {
	Low    Bound  `json:"low"`
	High   Bound  `json:"high"`
	Source Source `json:"source"`

	// Estimate is the range the source gave before the caps were applied.
	EstimateLow  int `json:"estimate_low"`
	EstimateHigh int `json:"estimate_high"`

	Adjusted bool `json:"adjusted"` // A cap changed the estimate.
	Sentinel bool `json:"sentinel"` // High is the 999 ceiling marker.
	Inverted bool `json:"inverted"` // Caps left low above high; high is unknown.
}

// Resolved reports whether both bounds are known.
func (r Resolution) Resolved() bool {
	return r.Low.IsKnown() && r.High.IsKnown()
}

// Resolve returns the flight-level range for c given the NOTAM's coded fields.
func Resolve(c locator.Candidate, f fields.Result) Resolution {
	q := f.Q()
	low, high, src := estimate(c, f.FG, q)

	res := Resolution{Source: src, EstimateLow: low, EstimateHigh: high}

	if q != nil {
		high = min(high, q.High)
		low = max(low, q.Low)
	}
	if f.RaisedTo != nil {
		high = min(high, *f.RaisedTo-5)
	}

	res.Adjusted = low != res.EstimateLow || high != res.EstimateHigh
	res.Sentinel = src == SourceDefault && high == Ceiling
	res.Low = Known(low)
	res.High = Known(high)
	if res.Low.IsKnown() && res.High.IsKnown() && low > high {
		res.Inverted = true
		res.High = Unknown
	}
	return res
}

func estimate(c locator.Candidate, fg fields.FieldLimits, q *fields.QLimits) (int, int, Source) {
	if c.HasInline() {
		return *c.InlineLow, *c.InlineHigh, SourceInline
	}

	if fg.Present() {
		low := 0
		switch {
		case fg.F != nil:
			low = *fg.F
		case q != nil:
			low = q.Low
		}
		high := low
		switch {
		case fg.G != nil:
			high = *fg.G
		case q != nil:
			high = q.High
		}
		return low, high, SourceFG
	}

	if low, high, ok := fromReadings(c.Metres, patterns.MetresToFL); ok {
		return low, high, SourceMetres
	}
	if low, high, ok := fromReadings(c.Feet, patterns.FeetToFL); ok {
		return low, high, SourceFeet
	}
	if q != nil {
		return q.Low, q.High, SourceQLine
	}
	return 0, Ceiling, SourceDefault
}

// fromReadings converts altitude readings to a range. Two or more readings
// give min to max. A single reading is read as "AND BELOW": GND to the value.
func fromReadings(readings []int, convert func(int) int) (int, int, bool) {
	switch len(readings) {
	case 0:
		return 0, 0, false
	case 1:
		return 0, convert(readings[0]), true
	}
	sorted := append([]int(nil), readings...)
	sort.Ints(sorted)
	return convert(sorted[0]), convert(sorted[len(sorted)-1]), true
}
