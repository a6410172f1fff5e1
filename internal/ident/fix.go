package ident

import (
	"regexp"
	"sort"
	"strings"
)

var (
	waypointRe = regexp.MustCompile(`^[A-Z]{3,5}$`)
	navaidRe   = regexp.MustCompile(`^[A-Z]{2,3}(?:VOR|NDB|DME)?$`)
	airportRe  = regexp.MustCompile(`^[A-Z]{4}$`)
)

// similarityThreshold is the ratio above which a stored fix counts as a match.
const similarityThreshold = 0.8

// ValidFix reports whether code looks like a published fix: a 3-5 letter
// waypoint, a 2-3 letter navaid (optionally suffixed VOR/NDB/DME), or a
// 4-letter airport.
func ValidFix(code string) bool {
	c := strings.ToUpper(strings.TrimSpace(code))
	return waypointRe.MatchString(c) || navaidRe.MatchString(c) || airportRe.MatchString(c)
}

// Corrector repairs invalid fixes from taught corrections. It is read-only
// after construction.
type Corrector struct {
	fixes map[string]string
	keys  []string // Sorted, so similarity ties resolve the same way every run.
}

// NewCorrector builds a Corrector from a map of bad fix to corrected fix.
func NewCorrector(fixes map[string]string) *Corrector {
	c := &Corrector{fixes: make(map[string]string, len(fixes))}
	for k, v := range fixes {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		c.fixes[k] = strings.ToUpper(strings.TrimSpace(v))
		c.keys = append(c.keys, k)
	}
	sort.Strings(c.keys)
	return c
}

// Lookup returns the taught correction for fix: an exact key first, then the
// most similar key with a ratio above 0.8.
func (c *Corrector) Lookup(fix string) (string, bool) {
	if c == nil || len(c.fixes) == 0 {
		return "", false
	}
	fix = strings.ToUpper(fix)
	if v, ok := c.fixes[fix]; ok {
		return v, true
	}

	best, bestScore := "", similarityThreshold
	for _, k := range c.keys {
		if r := Ratio(fix, k); r > bestScore {
			best, bestScore = k, r
		}
	}
	if best == "" {
		return "", false
	}
	return c.fixes[best], true
}

// Correct returns fix unchanged when it is valid, otherwise a valid taught
// correction, otherwise the fix with a trailing navaid descriptor removed if
// that is valid. Failing all of those the input is returned as is.
func (c *Corrector) Correct(fix string) string {
	if fix == "" || ValidFix(fix) {
		return fix
	}
	if v, ok := c.Lookup(fix); ok && ValidFix(v) {
		return v
	}
	for _, suffix := range []string{"VOR", "NDB", "DME"} {
		if cut := strings.TrimSuffix(fix, suffix); cut != fix && ValidFix(cut) {
			return cut
		}
	}
	return fix
}
