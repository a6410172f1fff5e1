// Package engine runs the NOTAM closure extraction pipeline and, when the
// parser finds nothing, the ordered fallback chain.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"notam_parser/internal/fields"
	"notam_parser/internal/ident"
	"notam_parser/internal/locator"
	"notam_parser/internal/notam"
	"notam_parser/internal/resolver"
)

// Fallback is a collaborator asked for output lines when the parser finds
// none. An error is logged and treated as an empty answer.
type Fallback interface {
	Name() string
	Extract(ctx context.Context, text string) ([]string, error)
}

// Teacher stores a NOTAM that nothing could parse so that a person can
// supply the expected output later.
type Teacher interface {
	Remember(ctx context.Context, text string) error
}

// FixSource supplies taught waypoint corrections.
type FixSource interface {
	Fixes(ctx context.Context) (map[string]string, error)
}

// Engine extracts route closures. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	locator   *locator.Locator
	fallbacks []Fallback
	teacher   Teacher
	fixes     FixSource
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFallbacks sets the fallback chain, tried in order.
func WithFallbacks(fbs ...Fallback) Option {
	return func(e *Engine) {
		e.fallbacks = append([]Fallback(nil), fbs...)
	}
}

// WithTeacher sets where unparsed NOTAMs are saved.
func WithTeacher(t Teacher) Option {
	return func(e *Engine) {
		e.teacher = t
	}
}

// WithFixSource enables waypoint correction from taught fixes in Process.
func WithFixSource(f FixSource) Option {
	return func(e *Engine) {
		e.fixes = f
	}
}

// WithTimeout bounds each fallback call.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		locator: locator.NewLocator(),
		timeout: 30 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Locator returns the segment locator, for tracing.
func (e *Engine) Locator() *locator.Locator {
	return e.locator
}

// Parse runs the parser alone. It does no I/O and the same text always gives
// the same Result.
func (e *Engine) Parse(text string) Result {
	return e.parse(notam.Normalize(text), nil)
}

// Process runs the parser and, when it produces no lines, the fallback chain.
// If every fallback is empty the NOTAM is handed to the Teacher once.
func (e *Engine) Process(ctx context.Context, text string) Result {
	raw := notam.Normalize(text)
	res := e.parse(raw, e.corrector(ctx))
	res.ID = uuid.New().String()

	if res.Status != StatusNoSegments {
		return res
	}

	for _, fb := range e.fallbacks {
		lines, err := e.callFallback(ctx, fb, raw.Original)
		if err != nil {
			e.logger.Warn("fallback failed", "fallback", fb.Name(), "error", err)
			res.addError(ErrExternalService)
			continue
		}
		if lines = dedupe(lines); len(lines) > 0 {
			res.Outputs = lines
			res.Status = StatusFallback
			res.Source = fb.Name()
			return res
		}
	}

	if e.teacher == nil {
		return res
	}
	if err := e.teacher.Remember(ctx, raw.Original); err != nil {
		e.logger.Warn("save for teaching failed", "error", err)
		res.addError(ErrExternalService)
		return res
	}
	res.Status = StatusSaved
	return res
}

func (e *Engine) callFallback(ctx context.Context, fb Fallback, text string) ([]string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return fb.Extract(ctx, text)
}

func (e *Engine) corrector(ctx context.Context) *ident.Corrector {
	if e.fixes == nil {
		return nil
	}
	fixes, err := e.fixes.Fixes(ctx)
	if err != nil {
		e.logger.Warn("load fix corrections failed", "error", err)
		return nil
	}
	return ident.NewCorrector(fixes)
}

// parse walks every state in order. A state that finds nothing passes an
// empty result on; none of them abort.
func (e *Engine) parse(raw notam.RawNotam, fixer *ident.Corrector) Result {
	res := Result{
		Outputs:  []string{},
		Closures: []Closure{},
		Details:  []Detail{},
		Errors:   []ErrorCode{},
		Source:   SourceNone,
	}
	res.enter(StateStart)
	if raw.Empty() {
		res.addError(ErrEmptyInput)
	}

	res.enter(StateFieldExtraction)
	fr := fields.Extract(raw)
	res.QLimits = fr.Q()
	res.QLine = fr.QLine
	res.FG = fr.FG
	res.RaisedTo = fr.RaisedTo
	if len(fr.Malformed) > 0 {
		res.addError(ErrMalformedCodedField)
	}

	res.enter(StateSegmentLocation)
	candidates := e.locator.Locate(raw)

	res.enter(StateResolution)
	resolutions := make([]resolver.Resolution, len(candidates))
	for i, c := range candidates {
		resolutions[i] = resolver.Resolve(c, fr)
		if !resolutions[i].Resolved() {
			res.addError(ErrUnresolvedBound)
		}
	}

	res.enter(StateNormalization)
	for i, c := range candidates {
		wp1 := normalizeFix(c.Waypoint1, fixer)
		wp2 := normalizeFix(c.Waypoint2, fixer)
		variants := ident.ExpandRoute(c.RouteToken)
		if wp1 == "" || wp2 == "" || len(variants) == 0 {
			continue
		}

		r := resolutions[i]
		res.Details = append(res.Details, Detail{
			RouteToken: c.RouteToken,
			Variants:   variants,
			WP1:        wp1,
			WP2:        wp2,
			Low:        r.Low,
			High:       r.High,
			Raw:        c.Raw,
			Meters:     nonNil(c.Metres),
			Feet:       nonNil(c.Feet),
			Source:     r.Source,
			Adjusted:   r.Adjusted,
			Sentinel:   r.Sentinel,
			Inverted:   r.Inverted,
			Strategy:   c.Strategy,
		})
		for _, v := range variants {
			res.Closures = append(res.Closures, Closure{Airway: v, From: wp1, To: wp2, Low: r.Low, High: r.High})
		}
	}

	res.enter(StateOutputAssembly)
	lines := make([]string, 0, len(res.Closures))
	for _, c := range res.Closures {
		lines = append(lines, c.Line())
	}
	res.Outputs = dedupe(lines)
	res.Confidence = Confidence(res.Details)

	switch {
	case raw.Empty():
		res.Status = StatusEmptyInput
	case len(res.Outputs) > 0:
		res.Status = StatusOK
		res.Source = SourceParser
	default:
		res.Status = StatusNoSegments
	}

	res.enter(StateDone)
	return res
}

func normalizeFix(raw string, fixer *ident.Corrector) string {
	wp := ident.NormalizeWaypoint(raw)
	if fixer != nil {
		wp = fixer.Correct(wp)
	}
	return wp
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
