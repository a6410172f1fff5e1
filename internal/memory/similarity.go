package memory

import (
	"math"
	"regexp"
	"strings"
)

// SimilarityThreshold is the lowest score FindSimilar accepts.
const SimilarityThreshold = 0.75

// Weights of the operational and full-text scores.
const (
	operationalWeight = 0.70
	fullTextWeight    = 0.30
)

var (
	nonTokenRe   = regexp.MustCompile(`[^A-Z0-9 ]`)
	eFieldRe     = regexp.MustCompile(`E\)([^\n]*)`)
	nextFieldRe  = regexp.MustCompile(`[A-Z]\)`)
	designatorRe = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,4}\b`)
)

// Tokens uppercases text, turns everything but letters, digits and spaces
// into spaces and splits on whitespace.
func Tokens(text string) []string {
	return strings.Fields(nonTokenRe.ReplaceAllString(strings.ToUpper(text), " "))
}

// Jaccard is the size of the intersection over the size of the union of the
// two token sets. Either side empty scores zero.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	as := make(map[string]bool, len(a))
	for _, t := range a {
		as[t] = true
	}
	bs := make(map[string]bool, len(b))
	for _, t := range b {
		bs[t] = true
	}
	inter := 0
	for t := range as {
		if bs[t] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Operational returns the operational core of a NOTAM: the body of its first
// E) field up to the next field marker on that line, followed by every short
// designator-like token in the text.
func Operational(text string) string {
	text = strings.ToUpper(text)
	var parts []string
	if m := eFieldRe.FindStringSubmatch(text); m != nil {
		body := m[1]
		if loc := nextFieldRe.FindStringIndex(body); loc != nil {
			body = body[:loc[0]]
		}
		parts = append(parts, body)
	}
	parts = append(parts, designatorRe.FindAllString(text, -1)...)
	return strings.Join(parts, " ")
}

// Similarity scores how alike two NOTAM texts are in [0, 1].
func Similarity(a, b string) float64 {
	op := Jaccard(Tokens(Operational(a)), Tokens(Operational(b)))
	full := Jaccard(Tokens(a), Tokens(b))
	return operationalWeight*op + fullTextWeight*full
}

// FindSimilar returns the taught record most similar to text, if any scores
// at least SimilarityThreshold. Pending records are ignored. When two records
// score within 1e-6 of each other the newer one wins.
func FindSimilar(text string, records []Record) (Record, float64, bool) {
	opTokens := Tokens(Operational(text))
	fullTokens := Tokens(text)

	var best Record
	bestScore := 0.0
	found := false
	for _, rec := range records {
		if rec.Pending() {
			continue
		}
		score := operationalWeight*Jaccard(opTokens, Tokens(Operational(rec.Notam))) +
			fullTextWeight*Jaccard(fullTokens, Tokens(rec.Notam))
		if score < SimilarityThreshold {
			continue
		}
		switch {
		case score > bestScore:
			best, bestScore, found = rec, score, true
		case math.Abs(score-bestScore) < 1e-6 && rec.CreatedAt.After(best.CreatedAt):
			best = rec
		}
	}
	return best, bestScore, found
}
