package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notam_parser/internal/engine"
	"notam_parser/internal/metrics"
	"notam_parser/internal/storage"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

type fakeSink struct {
	outputs []Output
	err     error
}

func (s *fakeSink) Publish(_ context.Context, out Output) error {
	s.outputs = append(s.outputs, out)
	return s.err
}

type fakeHistory struct {
	rows []storage.InsertParams
	err  error
}

func (h *fakeHistory) Insert(_ context.Context, p storage.InsertParams) error {
	h.rows = append(h.rows, p)
	return h.err
}

var processedAt = time.Date(2026, 1, 27, 6, 30, 0, 0, time.UTC)

func newTestWorker(pub Publisher, opts ...Option) *Worker {
	opts = append([]Option{WithClock(clockwork.NewFakeClockAt(processedAt))}, opts...)
	return NewWorker(engine.New(), pub, "notam.raw", "notam.closures", opts...)
}

func TestHandleEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	sink := &fakeSink{}
	hist := &fakeHistory{}
	m := metrics.NewForTesting()
	w := newTestWorker(pub, WithSinks(sink), WithHistory(hist), WithMetrics(m))

	payload := `{"id": 42, "source": "faa", "text": "E) L736 NEDRA-GOMED FL045-FL130"}`
	require.NoError(t, w.Handle(context.Background(), []byte(payload)))

	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "notam.closures", pub.subjects[0])

	var out struct {
		MessageID string `json:"message_id"`
		Source    string `json:"source"`
		Result    struct {
			Outputs []string `json:"outputs"`
			Status  string   `json:"status"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(pub.payloads[0], &out))
	assert.Equal(t, "42", out.MessageID)
	assert.Equal(t, "faa", out.Source)
	assert.Equal(t, "ok", out.Result.Status)
	assert.Equal(t, []string{"L736 NEDRA-GOMED FL045-FL130"}, out.Result.Outputs)

	require.Len(t, sink.outputs, 1)
	assert.True(t, sink.outputs[0].ProcessedAt.Equal(processedAt))

	require.Len(t, hist.rows, 1)
	assert.Equal(t, "ok", hist.rows[0].Status)
	require.Len(t, hist.rows[0].Closures, 1)
	assert.Equal(t, uint16(45), *hist.rows[0].Closures[0].Low)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BusMessages.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Processed.WithLabelValues("ok")))
}

func TestHandlePlainText(t *testing.T) {
	pub := &fakePublisher{}
	w := newTestWorker(pub)

	require.NoError(t, w.Handle(context.Background(), []byte("E) TWY B CLSD")))
	require.Len(t, pub.payloads, 1)
	assert.Contains(t, string(pub.payloads[0]), `"status":"no_segments"`)
}

func TestHandlePublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection closed")}
	sink := &fakeSink{}
	w := newTestWorker(pub, WithSinks(sink))

	err := w.Handle(context.Background(), []byte("E) L736 NEDRA-GOMED FL045-FL130"))
	require.Error(t, err)
	assert.Empty(t, sink.outputs, "nothing forwarded after a failed publish")
}

func TestHandleSinkAndHistoryFailuresAreNotFatal(t *testing.T) {
	pub := &fakePublisher{}
	sink := &fakeSink{err: errors.New("broker down")}
	hist := &fakeHistory{err: errors.New("clickhouse down")}
	m := metrics.NewForTesting()
	w := newTestWorker(pub, WithSinks(sink), WithHistory(hist), WithMetrics(m))

	require.NoError(t, w.Handle(context.Background(), []byte("E) L736 NEDRA-GOMED FL045-FL130")))
	assert.Len(t, pub.payloads, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryFailures))
}

func TestHistoryFromResult(t *testing.T) {
	res := engine.New().Parse("Q) ZBPE/QARLC/IV/NBO/E/000/300/\nE) L736 NEDRA-GOMED FL350-FL400")
	row := HistoryFromResult("raw", res, processedAt)

	assert.Equal(t, "raw", row.RawText)
	assert.Equal(t, "ok", row.Status)
	assert.Equal(t, "parser", row.Source)
	assert.Equal(t, []string{"L736 NEDRA-GOMED FL350-FLUNK"}, row.Outputs)
	assert.Equal(t, []string{"unresolved_bound"}, row.ErrorCodes)
	require.Len(t, row.Closures, 1)
	c := row.Closures[0]
	assert.Equal(t, "L736", c.Airway)
	assert.Equal(t, "NEDRA", c.From)
	require.NotNil(t, c.Low)
	assert.Equal(t, uint16(350), *c.Low)
	assert.Nil(t, c.High, "unknown bound stored as NULL")
}

func TestSerializeToMessage(t *testing.T) {
	out := Output{
		ProcessedAt: processedAt,
		Result:      engine.Result{ID: "res-1", Status: engine.StatusOK},
	}

	msg, err := serializeToMessage(out)
	require.NoError(t, err)

	assert.Equal(t, []byte("res-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"status":"ok"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "status", msg.Headers[0].Key)
	assert.Equal(t, []byte("ok"), msg.Headers[0].Value)
	assert.Equal(t, []byte(processedAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

// ctxProcessor records whether the context it was handed was still live.
type ctxProcessor struct {
	errs []error
}

func (p *ctxProcessor) Process(ctx context.Context, text string) engine.Result {
	p.errs = append(p.errs, ctx.Err())
	return engine.New().Parse(text)
}

func TestHandlerOutlivesRunContext(t *testing.T) {
	proc := &ctxProcessor{}
	pub := &fakePublisher{}
	w := NewWorker(proc, pub, "notam.raw", "notam.closures", WithClock(clockwork.NewFakeClockAt(processedAt)))

	runCtx, stop := context.WithCancel(context.Background())
	handleCtx, cancel := w.handlerContext(runCtx)
	defer cancel()
	handler := w.msgHandler(handleCtx)

	// Shutdown has started; queued messages are still being drained.
	stop()
	handler(&nats.Msg{Subject: "notam.raw", Data: []byte("E) L736 NEDRA-GOMED FL045-FL130")})

	require.Len(t, proc.errs, 1)
	assert.NoError(t, proc.errs[0])
	assert.Len(t, pub.payloads, 1)

	cancel()
	assert.Error(t, handleCtx.Err(), "cancelled once the drain ends")
}

func TestWithDrainTimeout(t *testing.T) {
	w := NewWorker(engine.New(), &fakePublisher{}, "in", "out")
	assert.Equal(t, DefaultDrainTimeout, w.drainTimeout)

	w = NewWorker(engine.New(), &fakePublisher{}, "in", "out", WithDrainTimeout(time.Second), WithDrainTimeout(0))
	assert.Equal(t, time.Second, w.drainTimeout)
}
