package engine

import (
	"fmt"
	"math"

	"notam_parser/internal/fields"
	"notam_parser/internal/resolver"
)

// State is a stage of the extraction pipeline.
type State string

const (
	StateStart           State = "START"
	StateFieldExtraction State = "FIELD_EXTRACTION"
	StateSegmentLocation State = "SEGMENT_LOCATION"
	StateResolution      State = "RESOLUTION"
	StateNormalization   State = "NORMALIZATION"
	StateOutputAssembly  State = "OUTPUT_ASSEMBLY"
	StateDone            State = "DONE"
)

// ErrorCode is a recoverable problem reported in a Result. None of them stop
// the pipeline.
type ErrorCode string

const (
	ErrEmptyInput          ErrorCode = "empty_input"
	ErrUnresolvedBound     ErrorCode = "unresolved_bound"
	ErrMalformedCodedField ErrorCode = "malformed_coded_field"
	ErrExternalService     ErrorCode = "external_service_failure"
)

// Status summarises how a Result was produced.
type Status string

const (
	StatusOK         Status = "ok"
	StatusFallback   Status = "fallback"
	StatusSaved      Status = "saved_for_teaching"
	StatusEmptyInput Status = "empty_input"
	StatusNoSegments Status = "no_segments"
)

// Origins of the output lines.
const (
	SourceParser = "parser"
	SourceNone   = "none"
)

// Closure is one closed airway segment with its resolved levels.
type Closure struct {
	Airway string         `json:"airway"`
	From   string         `json:"from"`
	To     string         `json:"to"`
	Low    resolver.Bound `json:"low"`
	High   resolver.Bound `json:"high"`
}

// Line renders the closure as an output line.
func (c Closure) Line() string {
	return FormatLine(c.Airway, c.From, c.To, c.Low, c.High)
}

// FormatLine renders "AWY WP1-WP2 FLnnn-FLnnn". Unknown bounds render as FLUNK.
func FormatLine(airway, from, to string, low, high resolver.Bound) string {
	return fmt.Sprintf("%s %s-%s %s-%s", airway, from, to, low, high)
}

// Detail records how one located segment was turned into closures.
type Detail struct {
	RouteToken string          `json:"route_token"`
	Variants   []string        `json:"variants"`
	WP1        string          `json:"wp1"`
	WP2        string          `json:"wp2"`
	Low        resolver.Bound  `json:"low"`
	High       resolver.Bound  `json:"high"`
	Raw        string          `json:"raw"`
	Meters     []int           `json:"meters"`
	Feet       []int           `json:"feet"`
	Source     resolver.Source `json:"source"`
	Adjusted   bool            `json:"adjusted"`
	Sentinel   bool            `json:"sentinel"`
	Inverted   bool            `json:"inverted,omitempty"`
	Strategy   string          `json:"strategy"`
}

// Result is the structured outcome for one NOTAM.
type Result struct {
	ID         string             `json:"id,omitempty"`
	QLimits    *fields.QLimits    `json:"q_limits"`
	QLine      fields.QLine       `json:"q_line"`
	FG         fields.FieldLimits `json:"f_g"`
	RaisedTo   *int               `json:"raised_to"`
	Outputs    []string           `json:"outputs"`
	Closures   []Closure          `json:"closures"`
	Details    []Detail           `json:"details"`
	Errors     []ErrorCode        `json:"errors"`
	Confidence float64            `json:"confidence"`
	States     []State            `json:"states"`
	Status     Status             `json:"status"`
	Source     string             `json:"source"`
}

// HasError reports whether code was recorded.
func (r *Result) HasError(code ErrorCode) bool {
	for _, e := range r.Errors {
		if e == code {
			return true
		}
	}
	return false
}

func (r *Result) addError(code ErrorCode) {
	if !r.HasError(code) {
		r.Errors = append(r.Errors, code)
	}
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// Confidence scores a set of details in [0, 1], rounded to three places:
// 0.4 for the levels (less 0.15 when any cap adjusted them), 0.5 scaled by
// the share of segments whose waypoints both have at least three characters,
// and a fixed 0.01 for memory use.
func Confidence(details []Detail) float64 {
	fl := 1.0
	good := 0
	for _, d := range details {
		if d.Adjusted {
			fl = 1 - 0.15
		}
		if len(d.WP1) >= 3 && len(d.WP2) >= 3 {
			good++
		}
	}
	seg := 0.0
	if len(details) > 0 {
		seg = float64(good) / float64(len(details))
	}
	score := fl*0.4 + seg*0.5 + 0.1*0.1
	return math.Round(score*1000) / 1000
}

// dedupe drops repeated lines, keeping the first occurrence.
func dedupe(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
