// Package patterns provides shared regex patterns, unit conversions and the
// grok-style format compiler used by the NOTAM extractors.
package patterns

import (
	"regexp"
	"sort"
	"strings"
)

// Format is a named pattern written with {PLACEHOLDER} references into BasePatterns.
type Format struct {
	Name     string         // Format name, reported in traces.
	Pattern  string         // Pattern with {PLACEHOLDER} syntax.
	Compiled *regexp.Regexp // Populated by Compile.
}

// Compiler expands and compiles an ordered set of formats.
type Compiler struct {
	basePatterns map[string]string
	formats      []Format
}

// NewCompiler creates a compiler for the given formats. Local patterns
// override BasePatterns of the same name.
func NewCompiler(formats []Format, localPatterns map[string]string) *Compiler {
	c := &Compiler{
		basePatterns: make(map[string]string, len(BasePatterns)+len(localPatterns)),
		formats:      make([]Format, len(formats)),
	}
	for k, v := range BasePatterns {
		c.basePatterns[k] = v
	}
	for k, v := range localPatterns {
		c.basePatterns[k] = v
	}
	copy(c.formats, formats)
	return c
}

// MustCompile is like Compile but panics on an invalid pattern. Intended for
// package-level format tables whose patterns are fixed at build time.
func (c *Compiler) MustCompile() *Compiler {
	if err := c.Compile(); err != nil {
		panic("patterns: " + err.Error())
	}
	return c
}

// Compile expands placeholders and compiles every format.
func (c *Compiler) Compile() error {
	for i := range c.formats {
		re, err := regexp.Compile(c.Expand(c.formats[i].Pattern))
		if err != nil {
			return err
		}
		c.formats[i].Compiled = re
	}
	return nil
}

// Expand replaces {NAME} references with their base patterns. Longer names
// are replaced first so that {FL} never clobbers part of {FLR}.
func (c *Compiler) Expand(pattern string) string {
	names := make([]string, 0, len(c.basePatterns))
	for name := range c.basePatterns {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	result := pattern
	for _, name := range names {
		result = strings.ReplaceAll(result, "{"+name+"}", c.basePatterns[name])
	}
	return result
}

// Format returns the compiled format with the given name, or nil.
func (c *Compiler) Format(name string) *Format {
	for i := range c.formats {
		if c.formats[i].Name == name {
			return &c.formats[i]
		}
	}
	return nil
}

// Match is a successful format match with its named captures.
type Match struct {
	FormatName string
	Captures   map[string]string
	Start, End int // Byte offsets of the whole match in the input.
}

// Get returns a named capture, or def when it is missing or empty.
func (m *Match) Get(name, def string) string {
	if m == nil {
		return def
	}
	if v, ok := m.Captures[name]; ok && v != "" {
		return v
	}
	return def
}

// Parse returns the first format that matches text, trying formats in order.
// The text is matched as given; callers pass the search form.
func (c *Compiler) Parse(text string) *Match {
	for _, f := range c.formats {
		if m := matchFormat(f, text); m != nil {
			return m
		}
	}
	return nil
}

// FindAll returns every non-overlapping match of the named format.
func (c *Compiler) FindAll(text, formatName string) []*Match {
	f := c.Format(formatName)
	if f == nil || f.Compiled == nil {
		return nil
	}
	var out []*Match
	for _, loc := range f.Compiled.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildMatch(*f, text, loc))
	}
	return out
}

func matchFormat(f Format, text string) *Match {
	if f.Compiled == nil {
		return nil
	}
	loc := f.Compiled.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}
	return buildMatch(f, text, loc)
}

func buildMatch(f Format, text string, loc []int) *Match {
	m := &Match{
		FormatName: f.Name,
		Captures:   make(map[string]string),
		Start:      loc[0],
		End:        loc[1],
	}
	for i, name := range f.Compiled.SubexpNames() {
		if i == 0 || name == "" || loc[2*i] < 0 {
			continue
		}
		m.Captures[name] = text[loc[2*i]:loc[2*i+1]]
	}
	return m
}

// FormatTrace records one format match attempt.
type FormatTrace struct {
	Name     string
	Matched  bool
	Pattern  string
	Captures map[string]string
}

// ParseWithTrace tries every format and reports each attempt, for the CLI's
// debug output. Match holds the first successful result.
func (c *Compiler) ParseWithTrace(text string) ([]FormatTrace, *Match) {
	traces := make([]FormatTrace, 0, len(c.formats))
	var first *Match
	for _, f := range c.formats {
		ft := FormatTrace{Name: f.Name, Pattern: c.Expand(f.Pattern)}
		if m := matchFormat(f, text); m != nil {
			ft.Matched = true
			ft.Captures = m.Captures
			if first == nil {
				first = m
			}
		}
		traces = append(traces, ft)
	}
	return traces, first
}
