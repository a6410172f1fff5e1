package resolver

import (
	"encoding/json"
	"fmt"
)

// Bound is a flight level that is either known (non-negative) or unknown.
// The zero value is unknown.
type Bound struct {
	level int
	known bool
}

// Known returns a known bound. Negative levels are unknown.
func Known(level int) Bound {
	if level < 0 {
		return Bound{}
	}
	return Bound{level: level, known: true}
}

// Unknown is a bound that no rule could determine.
var Unknown = Bound{}

// Level returns the flight level and whether it is known.
func (b Bound) Level() (int, bool) {
	return b.level, b.known
}

// IsKnown reports whether the bound was determined.
func (b Bound) IsKnown() bool {
	return b.known
}

// String renders the bound for an output line: FL045, or FLUNK when unknown.
func (b Bound) String() string {
	if !b.known {
		return "FLUNK"
	}
	return fmt.Sprintf("FL%03d", b.level)
}

// MarshalJSON writes the level as a number, or null when unknown.
func (b Bound) MarshalJSON() ([]byte, error) {
	if !b.known {
		return []byte("null"), nil
	}
	return json.Marshal(b.level)
}

// UnmarshalJSON accepts a number or null.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var v *int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode bound: %w", err)
	}
	if v == nil {
		*b = Unknown
		return nil
	}
	*b = Known(*v)
	return nil
}
