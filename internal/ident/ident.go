// Package ident normalises waypoint identifiers and expands combined route
// designators into concrete airway codes.
package ident

import (
	"regexp"
	"strings"
)

var (
	// quotedCodeRe finds a navaid code given in quotes or brackets, e.g. VOR'DNH' or NDB (BD).
	quotedCodeRe = regexp.MustCompile(`['"(]\s*([A-Z0-9]{2,5})\s*['")]`)

	// descriptorRe matches navaid descriptors that are not part of the identifier.
	descriptorRe = regexp.MustCompile(`\b(?:VOR\s*/\s*DME|VORDME|VOR|NDB|DME)\b`)

	quoteCharsRe = regexp.MustCompile(`[()'"]`)
	otherCharsRe = regexp.MustCompile(`[^A-Z0-9\-\s]`)
	spacesRe     = regexp.MustCompile(`\s+`)

	// dualRouteRe matches a combined designator such as L/UL851.
	dualRouteRe = regexp.MustCompile(`^([A-Z]{1,2})/([A-Z]{1,2})(\d{1,4})$`)
)

// NormalizeWaypoint returns the canonical identifier for a raw waypoint.
// A quoted or bracketed code wins over the surrounding name, so
// "DUNHUANG VOR'DNH'" becomes DNH and "NDB (BD)" becomes BD.
func NormalizeWaypoint(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if m := quotedCodeRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}

	s = descriptorRe.ReplaceAllString(s, " ")
	s = quoteCharsRe.ReplaceAllString(s, "")
	s = otherCharsRe.ReplaceAllString(s, " ")
	s = spacesRe.ReplaceAllString(s, "")
	return strings.Trim(s, "-")
}

// ExpandRoute returns the concrete airway codes for a route token.
// L/UL851 gives [L851 UL851]; anything else is returned as a single element.
// An empty token gives nil.
func ExpandRoute(token string) []string {
	t := strings.ToUpper(strings.TrimSpace(token))
	if t == "" {
		return nil
	}
	if m := dualRouteRe.FindStringSubmatch(t); m != nil {
		return []string{m[1] + m[3], m[2] + m[3]}
	}
	return []string{t}
}
