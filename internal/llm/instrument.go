package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/observability"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/ctxutil"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

// Instrument records one span, one log line and one metric sample per
// upstream attempt.
func Instrument(log *logger.Logger, metrics *observability.Metrics) Middleware {
	tracer := observability.Tracer("llm")
	if log == nil {
		log = logger.Nop()
	}
	return func(next Client) Client {
		return &instrumented{next: next, log: log.With("component", "LLMGateway", "engine", next.Name()), metrics: metrics, tracer: tracer}
	}
}

type instrumented struct {
	next    Client
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func (c *instrumented) Name() string { return c.next.Name() }

func (c *instrumented) Complete(ctx context.Context, req Request) (string, error) {
	phase := PhaseFrom(ctx)
	ctx, span := c.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.model", req.Model),
		attribute.String("llm.phase", phase),
		attribute.Int("llm.prompt_bytes", promptBytes(req)),
	))
	defer span.End()

	start := time.Now()
	out, err := c.next.Complete(ctx, req)
	dur := time.Since(start)
	status := callStatus(err)
	c.metrics.ObserveLLMRequest(req.Model, phase, status, dur)

	fields := append([]interface{}{
		"model", req.Model,
		"phase", phase,
		"status", status,
		"duration_ms", dur.Milliseconds(),
	}, ctxutil.LogFields(ctx)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		c.log.Warn("llm call failed", append(fields, "error", err.Error())...)
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.completion_bytes", len(out)))
	c.log.Debug("llm call", append(fields, "completion_bytes", len(out))...)
	return out, nil
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrEmptyCompletion):
		return "empty"
	default:
		return "error"
	}
}

func promptBytes(req Request) int {
	n := 0
	for _, m := range req.Messages {
		n += len(m.Content)
	}
	return n
}
