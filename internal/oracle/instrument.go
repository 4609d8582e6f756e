package oracle

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/chembench/server/internal/audit"
	"github.com/chembench/server/pkg/lab"
)

const instrumentationName = "github.com/chembench/server/internal/oracle"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// CallObserver receives the outcome of every completed oracle call.
type CallObserver func(operation string, durationMS int64, success bool)

// Instrumented wraps an Oracle with OTel metrics, slog logging and audit
// recording. Behavior of the wrapped calls is unchanged.
type Instrumented struct {
	inner    Oracle
	recorder audit.Backend
	log      *slog.Logger
	observer CallObserver

	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// SetCallObserver registers a sink for per-call timing points, typically a
// time-series writer. Must be set before the oracle serves requests.
func (o *Instrumented) SetCallObserver(fn CallObserver) {
	o.observer = fn
}

// Instrument wraps inner. recorder may be nil to disable audit recording.
// Uses the global OTel meter (no-op if not configured).
func Instrument(inner Oracle, recorder audit.Backend, log *slog.Logger) (*Instrumented, error) {
	m := meter()

	calls, err := m.Int64Counter(
		"oracle.calls",
		metric.WithDescription("Total oracle invocations"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := m.Float64Histogram(
		"oracle.call.duration",
		metric.WithDescription("Oracle call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Instrumented{
		inner:    inner,
		recorder: recorder,
		log:      log,
		calls:    calls,
		duration: duration,
	}, nil
}

func (o *Instrumented) observe(ctx context.Context, op string, start time.Time, req, resp any, callErr error) {
	elapsed := time.Since(start)
	outcome := "ok"
	if callErr != nil {
		outcome = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	o.calls.Add(ctx, 1, attrs)
	o.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	if callErr != nil {
		o.log.Error("oracle call failed", "operation", op, "duration", elapsed, "error", callErr)
	} else {
		o.log.Debug("oracle call complete", "operation", op, "duration", elapsed)
	}

	if o.observer != nil {
		o.observer(op, elapsed.Milliseconds(), callErr == nil)
	}

	if o.recorder == nil {
		return
	}
	call := audit.Call{
		Time:       start,
		Operation:  op,
		DurationMS: elapsed.Milliseconds(),
		Success:    callErr == nil,
	}
	if callErr != nil {
		call.Error = callErr.Error()
	}
	if raw, err := json.Marshal(req); err == nil {
		call.Request = raw
	}
	if resp != nil {
		if raw, err := json.Marshal(resp); err == nil {
			call.Response = raw
		}
	}
	o.recorder.Record(call)
}

// GenerateExperiment implements Oracle.
func (o *Instrumented) GenerateExperiment(ctx context.Context, req ExperimentRequest) (*lab.Experiment, error) {
	start := time.Now()
	exp, err := o.inner.GenerateExperiment(ctx, req)
	o.observe(ctx, "generate_experiment", start, req, exp, err)
	return exp, err
}

// JudgeLayout implements Oracle.
func (o *Instrumented) JudgeLayout(ctx context.Context, req LayoutRequest) (lab.Verdict, error) {
	start := time.Now()
	verdict, err := o.inner.JudgeLayout(ctx, req)
	o.observe(ctx, "judge_layout", start, req, verdict, err)
	return verdict, err
}

// Chat implements Oracle.
func (o *Instrumented) Chat(ctx context.Context, req ChatRequest) (string, error) {
	start := time.Now()
	reply, err := o.inner.Chat(ctx, req)
	o.observe(ctx, "chat", start, req, reply, err)
	return reply, err
}

// EditImage implements Oracle. Image payloads are not written to the audit
// log; only the prompt is.
func (o *Instrumented) EditImage(ctx context.Context, req ImageEditRequest) (string, error) {
	start := time.Now()
	uri, err := o.inner.EditImage(ctx, req)
	o.observe(ctx, "edit_image", start, struct {
		Prompt   string `json:"prompt"`
		MimeType string `json:"mimeType"`
	}{req.Prompt, req.MimeType}, nil, err)
	return uri, err
}
