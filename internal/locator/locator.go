// Package locator finds closed route segments in the descriptive text of a
// NOTAM. Text is split into list items, each item's route token is found, and
// the first pair strategy that matches supplies the boundary waypoints.
package locator

import (
	"regexp"
	"strings"

	"notam_parser/internal/notam"
	"notam_parser/internal/patterns"
	"notam_parser/internal/registry"
)

// Candidate is one closed segment as written in the text, before flight
// levels are resolved and identifiers are normalised.
type Candidate struct {
	RouteToken string `json:"route_token"`
	Waypoint1  string `json:"wp1"`
	Waypoint2  string `json:"wp2"`
	InlineLow  *int   `json:"inline_low,omitempty"`
	InlineHigh *int   `json:"inline_high,omitempty"`
	Metres     []int  `json:"meters,omitempty"`
	Feet       []int  `json:"feet,omitempty"`
	Raw        string `json:"raw"`
	Strategy   string `json:"strategy"`
}

// HasInline reports whether both inline bounds were found.
func (c Candidate) HasInline() bool {
	return c.InlineLow != nil && c.InlineHigh != nil
}

// Locator applies the pair strategies to each item. It is safe for
// concurrent use once built.
type Locator struct {
	strategies *registry.Registry
}

// NewLocator builds a Locator with the hyphen, slash, BTN and TO strategies.
func NewLocator() *Locator {
	r := registry.New()
	r.Register(hyphenStrategy{})
	r.Register(slashStrategy{})
	r.Register(betweenStrategy{})
	r.Register(toStrategy{})
	r.Sort()
	return &Locator{strategies: r}
}

// Strategies returns the strategy names in the order they are tried.
func (l *Locator) Strategies() []string {
	return l.strategies.Names()
}

// Locate returns the candidates of the descriptive body followed by those of
// the O/P block, in input order.
func (l *Locator) Locate(raw notam.RawNotam) []Candidate {
	var out []Candidate
	for _, section := range Sections(raw) {
		out = append(out, l.locateSection(section)...)
	}
	return out
}

func (l *Locator) locateSection(section string) []Candidate {
	var out []Candidate
	lastRoute := ""
	for _, text := range SplitItems(section) {
		route := RouteToken(text)
		if route == "" {
			route = lastRoute
		} else {
			lastRoute = route
		}
		if route == "" {
			continue
		}

		item := registry.Item{Text: text, Route: route}
		pairs, strategy := l.strategies.First(item)
		if len(pairs) == 0 {
			continue
		}

		low, high := InlineFL(text)
		metres, feet := Readings(text)
		for _, p := range pairs {
			out = append(out, Candidate{
				RouteToken: route,
				Waypoint1:  p.From,
				Waypoint2:  p.To,
				InlineLow:  low,
				InlineHigh: high,
				Metres:     metres,
				Feet:       feet,
				Raw:        text,
				Strategy:   strategy,
			})
		}
	}
	return out
}

// ItemTrace records how one item was handled, for debug output.
type ItemTrace struct {
	Section int                    `json:"section"`
	Item    registry.Item          `json:"item"`
	Results []registry.TraceResult `json:"results"`
}

// Trace runs every strategy on every item and reports each attempt.
func (l *Locator) Trace(raw notam.RawNotam) []ItemTrace {
	var out []ItemTrace
	for i, section := range Sections(raw) {
		lastRoute := ""
		for _, text := range SplitItems(section) {
			route := RouteToken(text)
			if route == "" {
				route = lastRoute
			} else {
				lastRoute = route
			}
			item := registry.Item{Text: text, Route: route}
			out = append(out, ItemTrace{Section: i, Item: item, Results: l.strategies.Trace(item)})
		}
	}
	return out
}

// Sections returns the uppercased text blocks to scan: the descriptive body,
// then the O/P block when there is one. Newlines are kept so that list items
// can still be split on them.
func Sections(raw notam.RawNotam) []string {
	upper := strings.ToUpper(raw.Original)
	if strings.TrimSpace(upper) == "" {
		return nil
	}

	body := notam.Descriptive(upper)
	if !notam.HasDescriptiveMarker(upper) {
		body = notam.BeforeOPBlock(body)
	}
	sections := []string{body}
	if op := notam.OPBlock(upper); op != "" {
		sections = append(sections, op)
	}
	return sections
}

var (
	// listSplitRe marks a comma that starts a new item: ", AWY ..." or ", L604 ...".
	listSplitRe = regexp.MustCompile(`,\s*(AWY\b|` + patterns.BasePatterns["AIRWAY"] + `\b)`)

	listMarkerRe = regexp.MustCompile(`^\(?\d{1,2}[.)]\s*`)
)

// SplitItems breaks a section into list items: on newlines, then on commas
// that precede AWY or an airway-shaped token. Leading list markers such as
// "1." are removed and whitespace is collapsed.
func SplitItems(section string) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		line = listSplitRe.ReplaceAllString(line, "\n$1")
		for _, part := range strings.Split(line, "\n") {
			part = strings.Join(strings.Fields(part), " ")
			part = strings.TrimSpace(listMarkerRe.ReplaceAllString(part, ""))
			if part != "" {
				items = append(items, part)
			}
		}
	}
	return items
}

// notRoutes are airway-shaped tokens that are never route designators.
var notRoutes = regexp.MustCompile(`^(?:FL\d+|H24)$`)

// RouteToken returns the route designator of an item, or "" if it has none.
// AWY <code> wins over RTE <code>, which wins over the first airway-shaped
// token. The token is returned as written, e.g. L/UL851.
func RouteToken(text string) string {
	for _, name := range []string{"awy", "rte"} {
		if ms := routeCompiler.FindAll(text, name); len(ms) > 0 {
			return ms[0].Get("route", "")
		}
	}
	for _, m := range routeCompiler.FindAll(text, "airway") {
		// A1234/25 is a NOTAM number.
		if m.End < len(text) && text[m.End] == '/' {
			continue
		}
		if r := m.Get("route", ""); !notRoutes.MatchString(r) {
			return r
		}
	}
	return ""
}

// InlineFL returns the inline level range of an item. GND and SFC as the
// lower bound give 0. Both results are nil when no range is written.
func InlineFL(text string) (low, high *int) {
	m := levelCompiler.Parse(text)
	if m == nil {
		return nil, nil
	}
	h, ok := patterns.Atoi(m.Get("high", ""))
	if !ok {
		return nil, nil
	}
	l := 0
	if v := m.Get("low", ""); v != "" {
		if l, ok = patterns.Atoi(v); !ok {
			return nil, nil
		}
	}
	return &l, &h
}

// Readings returns every metre and feet reading on an item, in text order.
func Readings(text string) (metres, feet []int) {
	for _, m := range patterns.MetresReading.FindAllStringSubmatch(text, -1) {
		if v, ok := patterns.Atoi(m[1]); ok {
			metres = append(metres, v)
		}
	}
	for _, m := range patterns.FeetReading.FindAllStringSubmatch(text, -1) {
		if v, ok := patterns.Atoi(m[1]); ok {
			feet = append(feet, v)
		}
	}
	return metres, feet
}
