// Package fields extracts the coded flight-level sources of a NOTAM: the Q)
// line limits, the F)/G) fields and a RAISED TO directive.
package fields

import (
	"regexp"
	"strconv"
	"strings"

	"notam_parser/internal/notam"
	"notam_parser/internal/patterns"
)

// QLimits is the lower and upper flight level from the Q) line.
type QLimits struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// QLine holds the decoded Q) line. Limits is nil when the line is absent or malformed.
type QLine struct {
	FIR      string   `json:"fir,omitempty"`
	Code     string   `json:"code,omitempty"`
	Traffic  string   `json:"traffic,omitempty"`
	Purpose  string   `json:"purpose,omitempty"`
	Scope    string   `json:"scope,omitempty"`
	Limits   *QLimits `json:"limits,omitempty"`
	Lat      float64  `json:"lat,omitempty"`
	Lon      float64  `json:"lon,omitempty"`
	RadiusNM int      `json:"radius_nm,omitempty"`
}

// FieldLimits holds the F) and G) values as flight levels; nil means absent.
type FieldLimits struct {
	F *int `json:"F"`
	G *int `json:"G"`
}

// Present reports whether either field resolved.
func (f FieldLimits) Present() bool {
	return f.F != nil || f.G != nil
}

// Result bundles every field extractor's output for one NOTAM.
type Result struct {
	QLine    QLine       `json:"q_line"`
	FG       FieldLimits `json:"f_g"`
	RaisedTo *int        `json:"raised_to"`

	// Malformed lists coded fields that were present but unreadable ("Q", "F", "G").
	Malformed []string `json:"malformed,omitempty"`
}

// Q returns the Q) line limits, or nil.
func (r Result) Q() *QLimits {
	return r.QLine.Limits
}

// Extract runs all field extractors. Absent or malformed fields never fail
// the extraction; malformed ones are listed in Result.Malformed.
func Extract(raw notam.RawNotam) Result {
	var res Result

	q, ok := ExtractQLine(raw.Search)
	res.QLine = q
	if !ok {
		res.Malformed = append(res.Malformed, "Q")
	}

	upper := strings.ToUpper(raw.Original)
	var fOK, gOK bool
	res.FG.F, fOK = extractField(patterns.FieldF, upper)
	res.FG.G, gOK = extractField(patterns.FieldG, upper)
	if !fOK {
		res.Malformed = append(res.Malformed, "F")
	}
	if !gOK {
		res.Malformed = append(res.Malformed, "G")
	}

	res.RaisedTo = ExtractRaisedTo(raw.Search)
	return res
}

// ExtractQLimits returns the Q) line limits from the search form, or nil.
func ExtractQLimits(search string) *QLimits {
	q, _ := ExtractQLine(search)
	return q.Limits
}

// ExtractQLine decodes the Q) line. ok is false only when a Q) marker is
// present but no shape matched; a missing Q) line is not malformed.
func ExtractQLine(search string) (q QLine, ok bool) {
	if m := patterns.QLineCoded.FindStringSubmatch(search); m != nil {
		caps := captures(patterns.QLineCoded.SubexpNames(), m)
		q = QLine{
			FIR:     caps["fir"],
			Code:    caps["code"],
			Traffic: caps["traffic"],
			Purpose: caps["purpose"],
			Scope:   caps["scope"],
		}
		q.Limits = limits(caps["low"], caps["high"])
		if c := caps["coords"]; c != "" {
			q.Lat, q.Lon, q.RadiusNM, _ = patterns.ParseQCentre(c)
		}
		return q, q.Limits != nil
	}

	for _, re := range []*regexp.Regexp{patterns.QLineLoose, patterns.QLineScopeE} {
		if m := re.FindStringSubmatch(search); len(m) > 2 {
			q.Limits = limits(m[1], m[2])
			return q, q.Limits != nil
		}
	}

	return q, !patterns.QLineMarker.MatchString(search)
}

// ExtractFieldLimits returns the F) and G) values from the uppercased
// original text (newlines preserved).
func ExtractFieldLimits(upper string) FieldLimits {
	f, _ := extractField(patterns.FieldF, upper)
	g, _ := extractField(patterns.FieldG, upper)
	return FieldLimits{F: f, G: g}
}

// ExtractRaisedTo returns the flight level of the first RAISED TO directive, or nil.
func ExtractRaisedTo(text string) *int {
	if m := patterns.RaisedTo.FindStringSubmatch(text); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}
	return nil
}

// ParseLimit converts a single F) or G) value to a flight level. Rules are
// tried in order: GND/SFC, FLnnn, metres, feet, bare 1-3 digit number.
func ParseLimit(value string) (int, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" {
		return 0, false
	}
	if patterns.LimitGround.MatchString(v) {
		return 0, true
	}
	if m := patterns.LimitFL.FindStringSubmatch(v); len(m) > 1 {
		return patterns.Atoi(m[1])
	}
	if m := patterns.LimitMetres.FindStringSubmatch(v); len(m) > 1 {
		if n, ok := patterns.Atoi(m[1]); ok {
			return patterns.MetresToFL(n), true
		}
	}
	if m := patterns.LimitFeet.FindStringSubmatch(v); len(m) > 1 {
		if n, ok := patterns.Atoi(m[1]); ok {
			return patterns.FeetToFL(n), true
		}
	}
	if m := patterns.LimitBare.FindStringSubmatch(v); len(m) > 1 {
		return patterns.Atoi(m[1])
	}
	return 0, false
}

// extractField returns the parsed value, and ok=false when the field marker
// is present but its value is unreadable.
func extractField(re *regexp.Regexp, upper string) (*int, bool) {
	m := re.FindStringSubmatch(upper)
	if len(m) < 2 {
		return nil, true
	}
	n, ok := ParseLimit(m[1])
	if !ok {
		return nil, false
	}
	return &n, true
}

func limits(low, high string) *QLimits {
	l, okL := patterns.Atoi(low)
	h, okH := patterns.Atoi(high)
	if !okL || !okH {
		return nil
	}
	return &QLimits{Low: l, High: h}
}

func captures(names, m []string) map[string]string {
	out := make(map[string]string, len(names))
	for i, name := range names {
		if i > 0 && name != "" {
			out[name] = m[i]
		}
	}
	return out
}
