package locator

import "notam_parser/internal/patterns"

// RouteFormats find the route token of an item, most explicit first.
// Example: AWY L321 KUNKI/OBRAN
// Example: SEGMENT TUSLI - DNH OF ATS RTE W187 CLSD
var RouteFormats = []patterns.Format{
	{Name: "awy", Pattern: `\bAWY\s+(?P<route>{AIRWAY})\b`},
	{Name: "rte", Pattern: `\b(?:ATS\s+)?(?:RTE|ROUTE)\s+(?P<route>{AIRWAY})\b`},
	{Name: "airway", Pattern: `\b(?P<route>{AIRWAY})\b`},
}

// LevelFormats find an inline flight-level range on an item.
// Example: FL045-FL130, FL100/FL200, FROM GND TO FL341, FM FL200 TO FL300
var LevelFormats = []patterns.Format{
	{
		Name:    "range",
		Pattern: `(?:\bFL\s*(?P<low>{FL})|\b(?P<ground>GND|SFC))\s*[-/]\s*FL\s*(?P<high>{FL})\b`,
	},
	{
		Name:    "from_to",
		Pattern: `\b(?:FROM|FM)\s*(?:FL\s*(?P<low>{FL})|(?P<ground>GND|SFC))\s+TO\s+FL\s*(?P<high>{FL})\b`,
	},
}

// PairFormats find waypoint pairs. Each pair strategy uses one of them.
var PairFormats = []patterns.Format{
	// Example: NEDRA-GOMED, TUSLI - DUNHUANG VOR'DNH', A-B-C
	{Name: "chain", Pattern: `\b(?:{POINT})(?:{HYPHEN}(?:{POINT}))+`},
	// Example: L321 KUNKI/OBRAN
	{Name: "slash", Pattern: `\b(?P<route>{AIRWAY})\s+(?P<from>{FIX})\s*/\s*(?P<to>{FIX})\b`},
	// Example: BTN NDB (BD) AND KEKAL
	{Name: "between", Pattern: `\b(?:BTN|BETWEEN)\s+(?P<from>{POINT})\s+AND\s+(?P<to>{POINT})`},
	// Example: FROM TUSLI TO DNH
	{Name: "to", Pattern: `\b(?P<from>{POINT})\s+TO\s+(?P<to>{POINT})`},
}

var (
	routeCompiler = patterns.NewCompiler(RouteFormats, nil).MustCompile()
	levelCompiler = patterns.NewCompiler(LevelFormats, nil).MustCompile()
	pairCompiler  = patterns.NewCompiler(PairFormats, nil).MustCompile()
)
