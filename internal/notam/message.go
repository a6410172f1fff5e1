// Package notam provides NOTAM text types, normalisation and document splitting.
package notam

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// RawNotam holds a NOTAM exactly as received plus its search form.
// Both fields are set once by Normalize and never modified.
type RawNotam struct {
	Original string // Line endings unified, case preserved.
	Search   string // Uppercased, whitespace collapsed.
}

// Empty reports whether the NOTAM carries no text at all.
func (r RawNotam) Empty() bool {
	return r.Search == ""
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize converts line endings to LF and builds the search form.
// Non-breaking spaces and byte-order marks are treated as whitespace.
func Normalize(text string) RawNotam {
	original := strings.ReplaceAll(text, "\r\n", "\n")
	original = strings.ReplaceAll(original, "\r", "\n")
	original = strings.TrimPrefix(original, "\ufeff")

	search := strings.ReplaceAll(original, "\u00a0", " ")
	search = whitespaceRe.ReplaceAllString(search, " ")
	search = strings.ToUpper(strings.TrimSpace(search))

	return RawNotam{Original: original, Search: search}
}

// FlexID handles JSON id fields that can be either string or number.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	// Try as string first.
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexID(s)
		return nil
	}

	// Numeric ids from some feeds.
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexID(strconv.FormatInt(i, 10))
		return nil
	}

	*f = ""
	return nil // Silently ignore unparseable IDs.
}

// Message is the envelope for a NOTAM arriving from JSONL files or the message bus.
type Message struct {
	ID        FlexID `json:"id"`
	Source    string `json:"source,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Text      string `json:"text"`
}

// DecodeMessage decodes a JSON envelope. Payloads that are not JSON are taken
// as the NOTAM text itself, so plain text can be published straight to the bus.
func DecodeMessage(b []byte) Message {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "{") {
		var msg Message
		if err := json.Unmarshal([]byte(trimmed), &msg); err == nil && msg.Text != "" {
			return msg
		}
	}
	return Message{Text: string(b)}
}
