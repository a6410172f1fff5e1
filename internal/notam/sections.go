package notam

import (
	"regexp"
	"strings"
)

var (
	// eFieldRe finds the E) marker at a field boundary.
	eFieldRe = regexp.MustCompile(`(?i)(?:^|[\s(])E\)\s*`)

	// nextFieldRe finds a coded field marker or O/P block that ends the E) body.
	nextFieldRe = regexp.MustCompile(`(?i)(?:^|\s)(?:[FG]\)|O/P\s*:)`)

	// opBlockRe finds the start of an O/P block.
	opBlockRe = regexp.MustCompile(`(?i)\bO/P\s*:\s*`)
)

// Descriptive returns the descriptive body of a NOTAM: the text after E) up to
// the next coded field marker or O/P block. Without an E) marker the whole
// text is returned. Operates on any form of the text (original or search).
func Descriptive(text string) string {
	loc := eFieldRe.FindStringIndex(text)
	if loc == nil {
		return text
	}
	body := text[loc[1]:]
	if end := nextFieldRe.FindStringIndex(body); end != nil {
		body = body[:end[0]]
	}
	return strings.TrimSpace(body)
}

// HasDescriptiveMarker reports whether the text carries an E) field.
func HasDescriptiveMarker(text string) bool {
	return eFieldRe.MatchString(text)
}

// BeforeOPBlock returns the text up to an O/P block, or all of it.
func BeforeOPBlock(text string) string {
	loc := opBlockRe.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return strings.TrimSpace(text[:loc[0]])
}

// OPBlock returns the machine-readable O/P block, or "" if there is none.
func OPBlock(text string) string {
	loc := opBlockRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(text[loc[1]:])
}
