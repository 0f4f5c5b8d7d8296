package sessionkit

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (c *Controller) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Controller) emit(ctx context.Context, typ string, identity *Identity, err error, meta map[string]string) {
	if c.events == nil {
		return
	}
	ev := SessionEvent{
		Timestamp: c.now(),
		Type:      typ,
		Instance:  c.instance,
		Version:   c.View().Version,
		Success:   err == nil,
		Metadata:  meta,
	}
	if identity != nil {
		ev.UserID = userID(identity)
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.events.Emit(ctx, ev)
}

func (c *Controller) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.tracer.Start(ensureContext(ctx), name, trace.WithAttributes(
		attribute.String("sessionkit.instance", c.instance),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func userID(id *Identity) string {
	if id == nil || id.ID == 0 {
		return ""
	}
	return strconv.FormatInt(id.ID, 10)
}
