package patterns

import (
	"regexp"
	"strconv"
	"strings"
)

// Coded field patterns. All expect the uppercased text.
var (
	// QLineCoded matches a full Q) line: FIR/CODE/TRAFFIC/PURPOSE/SCOPE/LLL/UUU[/COORDS].
	QLineCoded = regexp.MustCompile(`\bQ\)\s*(?P<fir>[A-Z]{4})\s*/\s*(?P<code>[A-Z]{3,5})\s*/\s*(?P<traffic>[A-Z]{0,3})\s*/\s*(?P<purpose>[A-Z]{0,3})\s*/\s*(?P<scope>[A-Z]{0,3})\s*/\s*(?P<low>\d{1,3})\s*/\s*(?P<high>\d{1,3})(?:\s*/\s*(?P<coords>\d{4}[NS]\d{5}[EW]\d{0,3}))?`)

	// QLineLoose matches any Q) line with five slash-separated fields before the limits.
	QLineLoose = regexp.MustCompile(`\bQ\)[^/\n]*?/[^/\n]*?/[^/\n]*?/[^/\n]*?/[^/\n]*?/\s*(\d{1,3})\s*/\s*(\d{1,3})\b`)

	// QLineScopeE is the last resort for Q) lines with missing fields but an /E/ scope.
	QLineScopeE = regexp.MustCompile(`\bQ\)[^\n]*?/E/\s*(\d{1,3})\s*/\s*(\d{1,3})\b`)

	// QLineMarker detects that a Q) field is present at all.
	QLineMarker = regexp.MustCompile(`\bQ\)`)

	// FieldF and FieldG capture the rest of the F) or G) field, stopping at the
	// next coded field on the same line.
	FieldF = regexp.MustCompile(`(?:^|[\s(])F\)\s*([^\n]*?)\s*(?:\bG\)|\n|$)`)
	FieldG = regexp.MustCompile(`(?:^|[\s(])G\)\s*([^\n]*?)\s*(?:\b[A-Z]\)|O/P\s*:|\n|$)`)

	// RaisedTo matches a "RAISED TO FLnnn" directive in any case.
	RaisedTo = regexp.MustCompile(`(?i)\bRAISED\s+TO\s+FL\s*(\d{1,3})\b`)
)

// Limit token patterns, tried in this order against a single F) or G) value.
var (
	LimitGround = regexp.MustCompile(`\b(?:GND|SFC)\b`)
	LimitFL     = regexp.MustCompile(`\bFL\s*(\d{1,3})\b`)
	LimitMetres = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+|\d{3,6})\s?M\b`)
	LimitFeet   = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+|\d{3,6})\s?FT\b`)
	LimitBare   = regexp.MustCompile(`\b(\d{1,3})\b`)
)

// Readings anywhere on a segment line.
var (
	MetresReading = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+|\d{1,6})\s?M\b`)
	FeetReading   = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+|\d{1,6})\s?FT\b`)
)

// Level tokens that can never be a waypoint.
var (
	levelTokenRe = regexp.MustCompile(`^(?:FL\s*\d{1,3}|\d+(?:,\d{3})*\s?(?:M|FT)?|GND|SFC|UNL|AMSL|AGL)$`)
)

// IsLevelToken reports whether s is a flight level, altitude, or ground token.
func IsLevelToken(s string) bool {
	return levelTokenRe.MatchString(strings.TrimSpace(strings.ToUpper(s)))
}

// Atoi parses a number that may carry thousands separators. Returns false
// for anything else.
func Atoi(s string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}
