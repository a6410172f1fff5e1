// Package bus runs the engine behind a NATS subscription and forwards results
// to the outbound subject, Kafka and the extraction history.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"

	"notam_parser/internal/engine"
	"notam_parser/internal/metrics"
	"notam_parser/internal/notam"
	"notam_parser/internal/resolver"
	"notam_parser/internal/storage"
)

// Processor turns a NOTAM into a result. *engine.Engine satisfies it.
type Processor interface {
	Process(ctx context.Context, text string) engine.Result
}

// Publisher sends a payload to a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Sink receives every published output.
type Sink interface {
	Publish(ctx context.Context, out Output) error
}

// History records extraction results. *storage.ClickHouseDB satisfies it.
type History interface {
	Insert(ctx context.Context, p storage.InsertParams) error
}

// Output is the message published for each processed NOTAM.
type Output struct {
	MessageID   string        `json:"message_id,omitempty"`
	Source      string        `json:"source,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
	Result      engine.Result `json:"result"`
}

// Worker consumes raw NOTAMs and publishes their results.
type Worker struct {
	processor  Processor
	publisher  Publisher
	subjectIn  string
	subjectOut string
	sinks      []Sink
	history    History
	metrics    *metrics.Metrics
	clock      clockwork.Clock
	logger     *slog.Logger

	drainTimeout time.Duration
}

// DefaultDrainTimeout bounds how long Run waits for in-flight messages after
// its context is cancelled.
const DefaultDrainTimeout = 10 * time.Second

// Option configures a Worker.
type Option func(*Worker)

// WithSinks adds sinks that receive every output.
func WithSinks(sinks ...Sink) Option {
	return func(w *Worker) {
		w.sinks = append(w.sinks, sinks...)
	}
}

// WithHistory records every result.
func WithHistory(h History) Option {
	return func(w *Worker) {
		w.history = h
	}
}

// WithMetrics sets the metrics to update.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithClock sets the clock used for processing times.
func WithClock(c clockwork.Clock) Option {
	return func(w *Worker) {
		w.clock = c
	}
}

// WithDrainTimeout sets how long Run lets queued messages finish on shutdown.
func WithDrainTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.drainTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = l
	}
}

// NewWorker creates a worker that reads subjectIn and publishes to subjectOut.
func NewWorker(p Processor, pub Publisher, subjectIn, subjectOut string, opts ...Option) *Worker {
	w := &Worker{
		processor:  p,
		publisher:  pub,
		subjectIn:  subjectIn,
		subjectOut: subjectOut,
		clock:      clockwork.NewRealClock(),
		logger:     slog.Default(),

		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// Run subscribes to the inbound subject on nc and handles messages until ctx
// is cancelled, then drains the subscription. Messages handled while
// draining still get a live context; it is cancelled once the drain
// finishes or the drain timeout passes.
func (w *Worker) Run(ctx context.Context, nc *nats.Conn) error {
	handleCtx, cancel := w.handlerContext(ctx)
	defer cancel()

	sub, err := nc.Subscribe(w.subjectIn, w.msgHandler(handleCtx))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.subjectIn, err)
	}
	w.logger.Info("consuming notams", "subject", w.subjectIn, "publish", w.subjectOut)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain subscription: %w", err)
	}

	deadline := w.clock.After(w.drainTimeout)
	ticker := w.clock.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for sub.IsValid() {
		select {
		case <-deadline:
			w.logger.Warn("drain timed out", "subject", w.subjectIn, "timeout", w.drainTimeout)
			return nil
		case <-ticker.Chan():
		}
	}
	return nil
}

// handlerContext keeps the values of ctx but not its cancellation, so that a
// shutdown does not fail the messages still being drained.
func (w *Worker) handlerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(context.WithoutCancel(ctx))
}

func (w *Worker) msgHandler(ctx context.Context) nats.MsgHandler {
	return func(m *nats.Msg) {
		if err := w.Handle(ctx, m.Data); err != nil {
			w.logger.Error("handle notam", "subject", m.Subject, "error", err)
		}
	}
}

// Handle processes one payload: a JSON envelope or plain NOTAM text. Sink and
// history failures are logged; only a failed publish is returned.
func (w *Worker) Handle(ctx context.Context, data []byte) error {
	msg := notam.DecodeMessage(data)

	start := w.clock.Now()
	res := w.processor.Process(ctx, msg.Text)
	w.metrics.Observe(res, w.clock.Since(start))

	out := Output{
		MessageID:   string(msg.ID),
		Source:      msg.Source,
		ProcessedAt: w.clock.Now().UTC(),
		Result:      res,
	}

	payload, err := json.Marshal(out)
	if err != nil {
		w.metrics.BusMessage("encode_error")
		return fmt.Errorf("marshal output: %w", err)
	}
	if err := w.publisher.Publish(w.subjectOut, payload); err != nil {
		w.metrics.BusMessage("publish_error")
		return fmt.Errorf("publish %s: %w", w.subjectOut, err)
	}
	w.metrics.BusMessage("ok")

	for _, s := range w.sinks {
		if err := s.Publish(ctx, out); err != nil {
			w.logger.Warn("sink publish failed", "id", res.ID, "error", err)
		}
	}

	if w.history != nil {
		if err := w.history.Insert(ctx, HistoryFromResult(msg.Text, res, out.ProcessedAt)); err != nil {
			w.metrics.HistoryFailed()
			w.logger.Warn("record history failed", "id", res.ID, "error", err)
		}
	}
	return nil
}

// HistoryFromResult converts a result into a history row. Unknown bounds are
// stored as NULL.
func HistoryFromResult(text string, res engine.Result, at time.Time) storage.InsertParams {
	codes := make([]string, len(res.Errors))
	for i, c := range res.Errors {
		codes[i] = string(c)
	}
	closures := make([]storage.ClosureRow, len(res.Closures))
	for i, c := range res.Closures {
		closures[i] = storage.ClosureRow{
			Airway: c.Airway,
			From:   c.From,
			To:     c.To,
			Low:    level(c.Low),
			High:   level(c.High),
		}
	}
	return storage.InsertParams{
		ID:          res.ID,
		ProcessedAt: at,
		Status:      string(res.Status),
		Source:      res.Source,
		RawText:     text,
		Outputs:     res.Outputs,
		Result:      res,
		ErrorCodes:  codes,
		Confidence:  float32(res.Confidence),
		Closures:    closures,
	}
}

func level(b resolver.Bound) *uint16 {
	v, known := b.Level()
	if !known {
		return nil
	}
	u := uint16(v)
	return &u
}
