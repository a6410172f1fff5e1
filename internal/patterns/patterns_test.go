package patterns

import (
	"math"
	"testing"
)

func TestMetresToFL(t *testing.T) {
	tests := []struct {
		metres int
		want   int
	}{
		{10400, 341},
		{6300, 207},
		{15240, 500},
		{3000, 98},
		{0, 0},
	}

	for _, tt := range tests {
		if got := MetresToFL(tt.metres); got != tt.want {
			t.Errorf("MetresToFL(%d) = %d, want %d", tt.metres, got, tt.want)
		}
	}
}

func TestFeetToFL(t *testing.T) {
	tests := []struct {
		feet int
		want int
	}{
		{30000, 300},
		{4500, 45},
		{150, 2}, // Half rounds up.
		{149, 1},
		{250, 3},
	}

	for _, tt := range tests {
		if got := FeetToFL(tt.feet); got != tt.want {
			t.Errorf("FeetToFL(%d) = %d, want %d", tt.feet, got, tt.want)
		}
	}
}

func TestIsLevelToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"FL130", true},
		{"FL 45", true},
		{"GND", true},
		{"SFC", true},
		{"10,400M", true},
		{"3000FT", true},
		{"000", true},
		{"NEDRA", false},
		{"DNH", false},
		{"L736", false},
	}

	for _, tt := range tests {
		if got := IsLevelToken(tt.token); got != tt.want {
			t.Errorf("IsLevelToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestAtoi(t *testing.T) {
	if n, ok := Atoi("10,400"); !ok || n != 10400 {
		t.Errorf("Atoi(10,400) = %d, %v", n, ok)
	}
	if _, ok := Atoi("ABC"); ok {
		t.Error("Atoi(ABC) ok = true, want false")
	}
}

func TestParseQCentre(t *testing.T) {
	lat, lon, radius, ok := ParseQCentre("3520N10230E005")
	if !ok {
		t.Fatal("ParseQCentre() ok = false")
	}
	if math.Abs(lat-(35+20.0/60)) > 1e-9 {
		t.Errorf("lat = %v", lat)
	}
	if math.Abs(lon-(102+30.0/60)) > 1e-9 {
		t.Errorf("lon = %v", lon)
	}
	if radius != 5 {
		t.Errorf("radius = %d, want 5", radius)
	}

	lat, lon, _, ok = ParseQCentre("3330S07040W")
	if !ok || lat >= 0 || lon >= 0 {
		t.Errorf("ParseQCentre(south west) = %v, %v, %v", lat, lon, ok)
	}

	if _, _, _, ok := ParseQCentre("9930N10230E005"); ok {
		t.Error("ParseQCentre() accepted latitude > 90")
	}
}

func TestQLineCoded(t *testing.T) {
	text := "Q) ZLHW/QARLC/IV/NBO/E/000/341/3520N10230E005 A) ZLHW"
	m := QLineCoded.FindStringSubmatch(text)
	if m == nil {
		t.Fatal("QLineCoded did not match")
	}
	got := map[string]string{}
	for i, name := range QLineCoded.SubexpNames() {
		if name != "" {
			got[name] = m[i]
		}
	}
	want := map[string]string{
		"fir": "ZLHW", "code": "QARLC", "traffic": "IV", "purpose": "NBO",
		"scope": "E", "low": "000", "high": "341", "coords": "3520N10230E005",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("capture %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestCompilerParse(t *testing.T) {
	c := NewCompiler([]Format{
		{Name: "hyphen", Pattern: `\b(?P<a>{FIX}){HYPHEN}(?P<b>{FIX})`},
		{Name: "airway", Pattern: `\b(?P<awy>{AIRWAY})\b`},
	}, nil).MustCompile()

	m := c.Parse("L736 NEDRA-GOMED")
	if m == nil || m.FormatName != "hyphen" {
		t.Fatalf("Parse() = %+v, want hyphen match", m)
	}
	if m.Get("a", "") != "NEDRA" || m.Get("b", "") != "GOMED" {
		t.Errorf("captures = %v", m.Captures)
	}
	if m.Get("missing", "X") != "X" {
		t.Error("Get() default not returned")
	}

	all := c.FindAll("L/UL851 AND W187", "airway")
	if len(all) != 2 || all[0].Captures["awy"] != "L/UL851" || all[1].Captures["awy"] != "W187" {
		t.Errorf("FindAll() = %+v", all)
	}

	traces, first := c.ParseWithTrace("W187")
	if len(traces) != 2 || traces[0].Matched || !traces[1].Matched || first.FormatName != "airway" {
		t.Errorf("ParseWithTrace() = %+v, %+v", traces, first)
	}
}

func TestExpandLongestFirst(t *testing.T) {
	c := NewCompiler(nil, map[string]string{"FLX": `X+`})
	if got, want := c.Expand("{FLX}{FL}"), `X+\d{1,3}`; got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}
