package completion

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// jsonBlockPattern matches JSON inside markdown code blocks: ```json { ... } ```
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern matches any JSON object (greedy fallback).
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

	// labelPattern matches "OUTPUT:" and "O/P:" style prefixes on plain-text answers.
	labelPattern = regexp.MustCompile(`(?i)^(?:\[?output\]?:?|\(?o/p\)?:?)\s*`)
	// fencePattern matches a markdown fence line.
	fencePattern = regexp.MustCompile("^```")
	// closureLinePattern matches a rendered closure: AWY WP1-WP2 FLnnn-FLnnn.
	closureLinePattern = regexp.MustCompile(`^\S+ \S+-\S+ FL(?:\d{3}|UNK)-FL(?:\d{3}|UNK)$`)
)

// ExtractJSON returns the JSON object in a model answer, with trailing
// commas removed, or "" when there is none.
func ExtractJSON(content string) string {
	raw := ""
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		raw = jsonObjectPattern.FindString(content)
	}
	if raw == "" {
		return ""
	}
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}

// answer is the JSON shape requested from the model. Some models answer
// with a single text blob instead.
type answer struct {
	Segments   []string `json:"segments"`
	OutputText string   `json:"output_text"`
}

// ParseSegments turns a model answer into closure lines. It accepts
// {"segments": [...]} or {"output_text": "..."}; anything else is split into
// lines with OUTPUT: and O/P: labels removed. Lines are trimmed and
// duplicates removed, keeping the first. Only lines shaped like a closure
// survive, so refusals, error pages and broken JSON yield nothing.
func ParseSegments(content string) []string {
	if js := ExtractJSON(content); js != "" {
		var a answer
		if err := json.Unmarshal([]byte(js), &a); err == nil {
			if a.Segments != nil {
				return uniqueLines(a.Segments)
			}
			if a.OutputText != "" {
				return uniqueLines(strings.Split(a.OutputText, "\n"))
			}
			return nil
		}
	}
	return uniqueLines(strings.Split(content, "\n"))
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(labelPattern.ReplaceAllString(strings.TrimSpace(l), ""))
		if l == "" || fencePattern.MatchString(l) || !closureLinePattern.MatchString(l) || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
