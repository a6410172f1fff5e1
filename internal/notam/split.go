package notam

import (
	"regexp"
	"strings"
)

var (
	// blankLinesRe separates NOTAMs pasted with an empty line between them.
	blankLinesRe = regexp.MustCompile(`\n[ \t]*\n+`)

	// headerLineRe matches lines that start a new NOTAM.
	headerLineRe = regexp.MustCompile(`(?i)^(?:NOTAM[NRC]?\b|[A-Z]\d{1,}/\d{2,}\b|Q\))`)
)

// Split breaks a document holding several NOTAMs into one text per NOTAM.
// Blank lines are the primary separator; otherwise lines that begin with a
// NOTAM keyword, an id such as A1234/25, or a Q) field start a new NOTAM.
func Split(text string) []string {
	normalized := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n"))
	if normalized == "" {
		return nil
	}

	if chunks := nonEmpty(blankLinesRe.Split(normalized, -1)); len(chunks) > 1 {
		return chunks
	}

	lines := strings.Split(normalized, "\n")
	var starts []int
	for i, line := range lines {
		if headerLineRe.MatchString(strings.TrimSpace(line)) {
			// A Q) line directly after an id line belongs to the same NOTAM.
			if len(starts) > 0 && starts[len(starts)-1] == i-1 && isQLine(line) {
				continue
			}
			starts = append(starts, i)
		}
	}
	if len(starts) < 2 {
		return []string{normalized}
	}

	var out []string
	if starts[0] > 0 {
		// Preamble before the first header stays with the first NOTAM.
		starts[0] = 0
	}
	for k, start := range starts {
		end := len(lines)
		if k+1 < len(starts) {
			end = starts[k+1]
		}
		out = append(out, strings.Join(lines[start:end], "\n"))
	}
	return nonEmpty(out)
}

func isQLine(line string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "Q)")
}

func nonEmpty(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
