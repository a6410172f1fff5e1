package fields

import (
	"fmt"
	"reflect"
	"testing"

	"notam_parser/internal/notam"
)

func intp(n int) *int { return &n }

func TestExtractQLine(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantLimits *QLimits
		wantOK     bool
		wantFIR    string
	}{
		{
			name:       "full coded line",
			text:       "Q) ZLHW/QARLC/IV/NBO/E/000/341/3520N10230E005",
			wantLimits: &QLimits{Low: 0, High: 341},
			wantOK:     true,
			wantFIR:    "ZLHW",
		},
		{
			name:       "spaces around slashes",
			text:       "Q) ZBPE / QARLC / IV / NBO / E / 045 / 130 / 4000N11600E050",
			wantLimits: &QLimits{Low: 45, High: 130},
			wantOK:     true,
			wantFIR:    "ZBPE",
		},
		{
			name:       "loose field shapes",
			text:       "Q) ZBPE/QARLC/IV/NBO/AE12/000/500/",
			wantLimits: &QLimits{Low: 0, High: 500},
			wantOK:     true,
		},
		{
			name:       "scope E fallback",
			text:       "Q) ZBPE/QARLC/E/000/250",
			wantLimits: &QLimits{Low: 0, High: 250},
			wantOK:     true,
		},
		{
			name:   "malformed",
			text:   "Q) ZBPE/QARLC/GARBLED",
			wantOK: false,
		},
		{
			name:   "absent",
			text:   "E) L736 NEDRA-GOMED",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := ExtractQLine(tt.text)
			if ok != tt.wantOK {
				t.Errorf("ExtractQLine() ok = %v, want %v", ok, tt.wantOK)
			}
			if !reflect.DeepEqual(q.Limits, tt.wantLimits) {
				t.Errorf("ExtractQLine() limits = %+v, want %+v", q.Limits, tt.wantLimits)
			}
			if q.FIR != tt.wantFIR {
				t.Errorf("ExtractQLine() FIR = %q, want %q", q.FIR, tt.wantFIR)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		value  string
		want   int
		wantOK bool
	}{
		{"GND", 0, true},
		{"SFC", 0, true},
		{"FL341", 341, true},
		{"FL 45", 45, true},
		{"10400M", 341, true},
		{"10,400M AMSL", 341, true},
		{"6300M", 207, true},
		{"30000FT", 300, true},
		{"30,000 FT AMSL", 300, true},
		{"250", 250, true},
		{"UNL", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseLimit(tt.value)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, %v, want %d, %v", tt.value, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExtractFieldLimits(t *testing.T) {
	tests := []struct {
		name string
		text string
		want FieldLimits
	}{
		{
			name: "same line",
			text: "E) CLSD\nF) GND G) FL341",
			want: FieldLimits{F: intp(0), G: intp(341)},
		},
		{
			name: "separate lines",
			text: "F) 6300M\nG) FL341",
			want: FieldLimits{F: intp(207), G: intp(341)},
		},
		{
			name: "F ignores G value",
			text: "F) 3000M G) FL200",
			want: FieldLimits{F: intp(98), G: intp(200)},
		},
		{
			name: "only G",
			text: "E) AWY CLSD G) FL250",
			want: FieldLimits{G: intp(250)},
		},
		{
			name: "absent",
			text: "E) L736 NEDRA-GOMED",
			want: FieldLimits{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractFieldLimits(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractFieldLimits() = %s, want %s", fmtLimits(got), fmtLimits(tt.want))
			}
		})
	}
}

func fmtLimits(f FieldLimits) string {
	s := func(p *int) string {
		if p == nil {
			return "nil"
		}
		return fmt.Sprint(*p)
	}
	return "{F:" + s(f.F) + " G:" + s(f.G) + "}"
}

func TestExtractRaisedTo(t *testing.T) {
	if got := ExtractRaisedTo("LOWER LIMIT RAISED TO FL200 THEN RAISED TO FL300"); got == nil || *got != 200 {
		t.Errorf("ExtractRaisedTo() = %v, want 200", got)
	}
	if got := ExtractRaisedTo("raised to fl 150"); got == nil || *got != 150 {
		t.Errorf("ExtractRaisedTo(lowercase) = %v, want 150", got)
	}
	if got := ExtractRaisedTo("NO DIRECTIVE"); got != nil {
		t.Errorf("ExtractRaisedTo() = %d, want nil", *got)
	}
}

func TestExtract(t *testing.T) {
	raw := notam.Normalize("Q) ZLHW/QARLC/IV/NBO/E/000/341/3520N10230E005\nE) W187 CLSD\nF) GARBAGE\nG) FL341")
	res := Extract(raw)

	if q := res.Q(); q == nil || q.Low != 0 || q.High != 341 {
		t.Errorf("Q() = %+v", q)
	}
	if res.FG.F != nil {
		t.Errorf("F = %d, want nil", *res.FG.F)
	}
	if res.FG.G == nil || *res.FG.G != 341 {
		t.Errorf("G = %v, want 341", res.FG.G)
	}
	if !reflect.DeepEqual(res.Malformed, []string{"F"}) {
		t.Errorf("Malformed = %v, want [F]", res.Malformed)
	}
	if res.RaisedTo != nil {
		t.Errorf("RaisedTo = %d, want nil", *res.RaisedTo)
	}
}
