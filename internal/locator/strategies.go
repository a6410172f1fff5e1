package locator

import (
	"regexp"
	"strings"

	"notam_parser/internal/patterns"
	"notam_parser/internal/registry"
)

var hyphenRe = regexp.MustCompile(`\s*[-\x{2013}]\s*`)

// hyphenStrategy finds X-Y pairs. A chain A-B-C yields A-B and B-C.
type hyphenStrategy struct{}

func (hyphenStrategy) Name() string  { return "hyphen" }
func (hyphenStrategy) Priority() int { return 10 }

func (hyphenStrategy) QuickCheck(text string) bool {
	return strings.ContainsAny(text, "-–")
}

func (hyphenStrategy) Find(item registry.Item) []registry.Pair {
	var pairs []registry.Pair
	for _, m := range pairCompiler.FindAll(item.Text, "chain") {
		var points []string
		for _, p := range hyphenRe.Split(item.Text[m.Start:m.End], -1) {
			if usablePoint(p, item.Route) {
				points = append(points, p)
			}
		}
		for i := 0; i+1 < len(points); i++ {
			pairs = append(pairs, registry.Pair{From: points[i], To: points[i+1]})
		}
	}
	return pairs
}

// slashStrategy finds "ROUTE X/Y" where ROUTE is the item's route token.
type slashStrategy struct{}

func (slashStrategy) Name() string                { return "slash" }
func (slashStrategy) Priority() int               { return 20 }
func (slashStrategy) QuickCheck(text string) bool { return strings.Contains(text, "/") }

func (slashStrategy) Find(item registry.Item) []registry.Pair {
	if item.Route == "" {
		return nil
	}
	var pairs []registry.Pair
	for _, m := range pairCompiler.FindAll(item.Text, "slash") {
		if m.Get("route", "") != item.Route {
			continue
		}
		pairs = appendPair(pairs, m, item.Route)
	}
	return pairs
}

// betweenStrategy finds "BTN X AND Y" and "BETWEEN X AND Y".
type betweenStrategy struct{}

func (betweenStrategy) Name() string  { return "between" }
func (betweenStrategy) Priority() int { return 30 }

func (betweenStrategy) QuickCheck(text string) bool {
	return strings.Contains(text, "BTN") || strings.Contains(text, "BETWEEN")
}

func (betweenStrategy) Find(item registry.Item) []registry.Pair {
	var pairs []registry.Pair
	for _, m := range pairCompiler.FindAll(item.Text, "between") {
		pairs = appendPair(pairs, m, item.Route)
	}
	return pairs
}

// toStrategy finds "X TO Y", skipping level ranges such as GND TO FL341.
type toStrategy struct{}

func (toStrategy) Name() string                { return "to" }
func (toStrategy) Priority() int               { return 40 }
func (toStrategy) QuickCheck(text string) bool { return strings.Contains(text, " TO ") }

func (toStrategy) Find(item registry.Item) []registry.Pair {
	var pairs []registry.Pair
	for _, m := range pairCompiler.FindAll(item.Text, "to") {
		pairs = appendPair(pairs, m, item.Route)
	}
	return pairs
}

// appendPair adds the from/to captures of m when both sides can be waypoints.
func appendPair(pairs []registry.Pair, m *patterns.Match, route string) []registry.Pair {
	from, to := m.Get("from", ""), m.Get("to", "")
	if !usablePoint(from, route) || !usablePoint(to, route) {
		return pairs
	}
	return append(pairs, registry.Pair{From: from, To: to})
}

// notPoints are words that the point patterns accept but that never name a fix.
var notPoints = map[string]bool{
	"AND": true, "AWY": true, "ATS": true, "BTN": true, "CLSD": true,
	"DUE": true, "FM": true, "FROM": true, "RTE": true, "ROUTE": true, "SEGMENT": true,
}

func usablePoint(p, route string) bool {
	p = strings.TrimSpace(p)
	if p == "" || patterns.IsLevelToken(p) || notPoints[p] {
		return false
	}
	return route == "" || p != route
}
