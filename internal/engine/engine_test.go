package engine

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"notam_parser/internal/resolver"
)

func TestParseScenarios(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "inline range",
			input: "E) L736 NEDRA-GOMED FL045-FL130",
			want:  []string{"L736 NEDRA-GOMED FL045-FL130"},
		},
		{
			name: "quoted navaid with metres and GND to FL",
			input: "Q) ZLHW/QARLC/IV/NBO/E/000/341/\n" +
				"E) SEGMENT TUSLI - DUNHUANG VOR'DNH' OF ATS RTE W187 CLSD AT 10,400M AND BELOW.FROM GND TO FL341",
			want: []string{"W187 TUSLI-DNH FL000-FL341"},
		},
		{
			name:  "comma list bounded by Q line",
			input: "Q) ZBPE/QARLC/IV/NBO/E/000/500/\nE) AWY L321 KUNKI/OBRAN,AWY L604 BRN/DANAD",
			want:  []string{"L321 KUNKI-OBRAN FL000-FL500", "L604 BRN-DANAD FL000-FL500"},
		},
		{
			name:  "dual designator",
			input: "E) L/UL851 ABDAN-PEREN FL100-FL200",
			want:  []string{"L851 ABDAN-PEREN FL100-FL200", "UL851 ABDAN-PEREN FL100-FL200"},
		},
		{
			name:  "duplicates collapse",
			input: "E) L736 NEDRA-GOMED FL045-FL130\nL736 NEDRA-GOMED FL045-FL130\nO/P: L736 NEDRA-GOMED FL045-FL130",
			want:  []string{"L736 NEDRA-GOMED FL045-FL130"},
		},
		{
			name:  "F and G fields",
			input: "E) AWY A599 POMOK-LEMOD CLSD\nF) GND G) FL250",
			want:  []string{"A599 POMOK-LEMOD FL000-FL250"},
		},
		{
			name:  "RAISED TO caps the upper bound",
			input: "E) G470 ABC-DEF FL100-FL210 LOWER LIMIT RAISED TO FL200",
			want:  []string{"G470 ABC-DEF FL100-FL195"},
		},
		{
			name:  "default ceiling",
			input: "E) B330 SADAN-PEXUN CLSD",
			want:  []string{"B330 SADAN-PEXUN FL000-FL999"},
		},
		{
			name:  "prose hyphen word is not a segment",
			input: "E) L888 SEGMENT PEXUN-OMBON CLSD DUE TO MIL-EXERCISE",
			want:  []string{"L888 PEXUN-OMBON FL000-FL999"},
		},
		{
			name:  "nothing found",
			input: "E) RWY 09/27 CLSD DUE TO WIP",
			want:  []string{},
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Parse(tt.input)
			if !reflect.DeepEqual(got.Outputs, tt.want) {
				t.Errorf("Parse().Outputs = %q, want %q", got.Outputs, tt.want)
			}
		})
	}
}

func TestParseStatesAndStatus(t *testing.T) {
	wantStates := []State{
		StateStart, StateFieldExtraction, StateSegmentLocation, StateResolution,
		StateNormalization, StateOutputAssembly, StateDone,
	}

	tests := []struct {
		name       string
		input      string
		wantStatus Status
		wantSource string
		wantErrors []ErrorCode
	}{
		{"ok", "E) L736 NEDRA-GOMED FL045-FL130", StatusOK, SourceParser, []ErrorCode{}},
		{"empty", "  \r\n ", StatusEmptyInput, SourceNone, []ErrorCode{ErrEmptyInput}},
		{"no segments", "E) TWY B CLSD", StatusNoSegments, SourceNone, []ErrorCode{}},
		{"malformed Q", "Q) GARBAGE\nE) L736 NEDRA-GOMED FL045-FL130", StatusOK, SourceParser, []ErrorCode{ErrMalformedCodedField}},
		{"inverted", "Q) ZBPE/QARLC/IV/NBO/E/000/300/\nE) L736 NEDRA-GOMED FL350-FL400", StatusOK, SourceParser, []ErrorCode{ErrUnresolvedBound}},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Parse(tt.input)
			if !reflect.DeepEqual(got.States, wantStates) {
				t.Errorf("States = %v, want %v", got.States, wantStates)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tt.wantSource)
			}
			if !reflect.DeepEqual(got.Errors, tt.wantErrors) {
				t.Errorf("Errors = %v, want %v", got.Errors, tt.wantErrors)
			}
		})
	}
}

func TestParseUnknownBoundRendering(t *testing.T) {
	got := New().Parse("Q) ZBPE/QARLC/IV/NBO/E/000/300/\nE) L736 NEDRA-GOMED FL350-FL400")
	want := []string{"L736 NEDRA-GOMED FL350-FLUNK"}
	if !reflect.DeepEqual(got.Outputs, want) {
		t.Errorf("Outputs = %q, want %q", got.Outputs, want)
	}
	if len(got.Details) != 1 || !got.Details[0].Inverted {
		t.Errorf("Details = %+v, want one inverted detail", got.Details)
	}
}

func TestParseDetails(t *testing.T) {
	got := New().Parse("Q) ZLHW/QARLC/IV/NBO/E/000/341/\n" +
		"E) SEGMENT TUSLI - DUNHUANG VOR'DNH' OF ATS RTE W187 CLSD AT 10,400M AND BELOW.FROM GND TO FL341")

	if len(got.Details) != 1 {
		t.Fatalf("Details = %d, want 1", len(got.Details))
	}
	d := got.Details[0]
	if d.RouteToken != "W187" || d.WP1 != "TUSLI" || d.WP2 != "DNH" {
		t.Errorf("detail = %s %s-%s, want W187 TUSLI-DNH", d.RouteToken, d.WP1, d.WP2)
	}
	if !reflect.DeepEqual(d.Meters, []int{10400}) {
		t.Errorf("Meters = %v, want [10400]", d.Meters)
	}
	if d.Source != resolver.SourceInline || d.Adjusted || d.Sentinel {
		t.Errorf("Source = %q adjusted=%v sentinel=%v", d.Source, d.Adjusted, d.Sentinel)
	}
	if got.QLimits == nil || got.QLimits.High != 341 {
		t.Errorf("QLimits = %+v, want high 341", got.QLimits)
	}
	if got.Confidence != 0.91 {
		t.Errorf("Confidence = %v, want 0.91", got.Confidence)
	}
}

func TestParseDeterministic(t *testing.T) {
	input := "Q) ZBPE/QARLC/IV/NBO/E/000/500/\nE) AWY L321 KUNKI/OBRAN,AWY L604 BRN/DANAD\nO/P: L/UL851 ABDAN-PEREN"
	e := New()
	first, err := json.Marshal(e.Parse(input))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := json.Marshal(e.Parse(input))
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, again, first)
		}
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name    string
		details []Detail
		want    float64
	}{
		{"none", nil, 0.41},
		{"clean", []Detail{{WP1: "ABC", WP2: "DEF"}}, 0.91},
		{"adjusted", []Detail{{WP1: "ABC", WP2: "DEF", Adjusted: true}}, 0.85},
		{"half short", []Detail{{WP1: "ABC", WP2: "DEF"}, {WP1: "BD", WP2: "DEF"}}, 0.66},
	}

	for _, tt := range tests {
		if got := Confidence(tt.details); got != tt.want {
			t.Errorf("Confidence(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		low, high resolver.Bound
		want      string
	}{
		{resolver.Known(0), resolver.Known(341), "W187 TUSLI-DNH FL000-FL341"},
		{resolver.Known(45), resolver.Unknown, "W187 TUSLI-DNH FL045-FLUNK"},
	}
	for _, tt := range tests {
		if got := FormatLine("W187", "TUSLI", "DNH", tt.low, tt.high); got != tt.want {
			t.Errorf("FormatLine() = %q, want %q", got, tt.want)
		}
	}
}

// fakeFallback answers with fixed lines or an error and counts its calls.
type fakeFallback struct {
	name  string
	lines []string
	err   error
	calls int
}

func (f *fakeFallback) Name() string { return f.name }

func (f *fakeFallback) Extract(ctx context.Context, text string) ([]string, error) {
	f.calls++
	return f.lines, f.err
}

type fakeTeacher struct {
	saved []string
	err   error
}

func (f *fakeTeacher) Remember(ctx context.Context, text string) error {
	f.saved = append(f.saved, text)
	return f.err
}

type fakeFixes map[string]string

func (f fakeFixes) Fixes(context.Context) (map[string]string, error) { return f, nil }

func TestProcessSavesForTeachingOnce(t *testing.T) {
	completion := &fakeFallback{name: "completion", err: errors.New("connection refused")}
	memory := &fakeFallback{name: "memory"}
	teacher := &fakeTeacher{}
	e := New(WithFallbacks(completion, memory), WithTeacher(teacher))

	got := e.Process(context.Background(), "E) RWY 09/27 CLSD DUE TO WIP")

	if len(got.Outputs) != 0 {
		t.Errorf("Outputs = %q, want none", got.Outputs)
	}
	if completion.calls != 1 || memory.calls != 1 {
		t.Errorf("fallback calls = %d, %d, want 1, 1", completion.calls, memory.calls)
	}
	if len(teacher.saved) != 1 {
		t.Errorf("Remember called %d times, want 1", len(teacher.saved))
	}
	if got.Status != StatusSaved {
		t.Errorf("Status = %q, want %q", got.Status, StatusSaved)
	}
	if !got.HasError(ErrExternalService) {
		t.Errorf("Errors = %v, want %s", got.Errors, ErrExternalService)
	}
	if got.ID == "" {
		t.Error("ID is empty")
	}
}

func TestProcessFallbackOrder(t *testing.T) {
	completion := &fakeFallback{name: "completion"}
	memory := &fakeFallback{name: "memory", lines: []string{"L888 SADAN-PEXUN FL100-FL200", "L888 SADAN-PEXUN FL100-FL200"}}
	never := &fakeFallback{name: "never", lines: []string{"X"}}
	teacher := &fakeTeacher{}
	e := New(WithFallbacks(completion, memory, never), WithTeacher(teacher))

	got := e.Process(context.Background(), "E) SOMETHING UNREADABLE")

	if got.Status != StatusFallback || got.Source != "memory" {
		t.Errorf("Status, Source = %q, %q, want fallback, memory", got.Status, got.Source)
	}
	if want := []string{"L888 SADAN-PEXUN FL100-FL200"}; !reflect.DeepEqual(got.Outputs, want) {
		t.Errorf("Outputs = %q, want %q", got.Outputs, want)
	}
	if never.calls != 0 {
		t.Errorf("later fallback called %d times", never.calls)
	}
	if len(teacher.saved) != 0 {
		t.Errorf("Remember called %d times, want 0", len(teacher.saved))
	}
}

func TestProcessSkipsFallbackWhenParsed(t *testing.T) {
	fb := &fakeFallback{name: "completion", lines: []string{"X"}}
	teacher := &fakeTeacher{}
	e := New(WithFallbacks(fb), WithTeacher(teacher))

	got := e.Process(context.Background(), "E) L736 NEDRA-GOMED FL045-FL130")
	if got.Source != SourceParser || fb.calls != 0 || len(teacher.saved) != 0 {
		t.Errorf("Source = %q, fallback calls = %d, saves = %d", got.Source, fb.calls, len(teacher.saved))
	}

	empty := e.Process(context.Background(), "")
	if empty.Status != StatusEmptyInput || fb.calls != 0 || len(teacher.saved) != 0 {
		t.Errorf("empty input reached the fallback chain: %+v", empty)
	}
}

// slowFallback blocks until its context is done.
type slowFallback struct{}

func (slowFallback) Name() string { return "slow" }

func (slowFallback) Extract(ctx context.Context, text string) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcessTimeout(t *testing.T) {
	teacher := &fakeTeacher{}
	e := New(WithFallbacks(slowFallback{}), WithTeacher(teacher), WithTimeout(20*time.Millisecond))

	got := e.Process(context.Background(), "E) NOTHING")
	if got.Status != StatusSaved || len(teacher.saved) != 1 {
		t.Errorf("Status = %q, saves = %d, want saved_for_teaching, 1", got.Status, len(teacher.saved))
	}
}

func TestProcessTeacherFailure(t *testing.T) {
	teacher := &fakeTeacher{err: errors.New("disk full")}
	got := New(WithTeacher(teacher)).Process(context.Background(), "E) NOTHING")
	if got.Status != StatusNoSegments || !got.HasError(ErrExternalService) {
		t.Errorf("Status = %q, Errors = %v", got.Status, got.Errors)
	}
}

func TestProcessCorrectsFixes(t *testing.T) {
	e := New(WithFixSource(fakeFixes{"KUNK1": "KUNKI"}))
	got := e.Process(context.Background(), "E) L321 KUNK1-OBRAN FL100-FL200")
	if want := []string{"L321 KUNKI-OBRAN FL100-FL200"}; !reflect.DeepEqual(got.Outputs, want) {
		t.Errorf("Outputs = %q, want %q", got.Outputs, want)
	}

	// Parse never consults the fix source.
	if got := e.Parse("E) L321 KUNK1-OBRAN FL100-FL200"); got.Outputs[0] != "L321 KUNK1-OBRAN FL100-FL200" {
		t.Errorf("Parse().Outputs = %q", got.Outputs)
	}
}
