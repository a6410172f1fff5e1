package patterns

// BasePatterns defines reusable regex components for grok-style composition.
// Formats reference them as {NAME}.
var BasePatterns = map[string]string{
	// Flight levels and altitudes.
	"FL":     `\d{1,3}`,                // Flight level digits (e.g. 45, 341).
	"METRES": `\d{1,3}(?:,\d{3})+|\d+`, // 10,400 or 6300.
	"FEET":   `\d{1,3}(?:,\d{3})+|\d+`, // 30,000 or 30000.

	// Route designators: L736, UL851, W187, and dual forms such as L/UL851.
	"AIRWAY": `[A-Z]{1,3}(?:/[A-Z]{1,3})?\d{1,4}`,

	// A boundary fix, optionally with a navaid descriptor and a quoted or
	// bracketed code, e.g. TUSLI, NDB (BD), DUNHUANG VOR'DNH'. A bare point
	// is fix-sized (2 to 5 characters) so prose such as MIL-EXERCISE is
	// never read as a pair; longer names need a navaid suffix or a code.
	"FIX":   `[A-Z][A-Z0-9]{1,5}`,
	"QUOTE": `['"(][A-Z0-9]{2,5}['")]`,
	"POINT": `[A-Z][A-Z0-9]*\s*(?:VORDME|VOR|NDB|DME)?\s*['"(][A-Z0-9]{2,5}['")]` +
		`|[A-Z][A-Z0-9]*\s*(?:VORDME|VOR|NDB|DME)\b` +
		`|['"(][A-Z0-9]{2,5}['")]` +
		`|[A-Z][A-Z0-9]{1,4}\b`,

	// Separators.
	"HYPHEN": `\s*[-\x{2013}]\s*`,
}
