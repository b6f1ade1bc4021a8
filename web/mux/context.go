package mux

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type requestKey struct{}

// Request is the per-request state the App attaches to every handler
// context. Middleware reads it after the handler returns, so Status
// reflects whatever the handler responded with.
type Request struct {
	TraceID string
	Route   string
	Start   time.Time
	Status  int

	tracer trace.Tracer
}

// FromContext returns the Request attached by the App. Outside a routed
// request it returns a detached Request carrying the nil trace id.
func FromContext(ctx context.Context) *Request {
	if req, ok := ctx.Value(requestKey{}).(*Request); ok {
		return req
	}

	return &Request{
		TraceID: uuid.Nil.String(),
		Start:   time.Now(),
		tracer:  noop.NewTracerProvider().Tracer(""),
	}
}

// SetStatus records the response status of the current request.
func SetStatus(ctx context.Context, code int) {
	if req, ok := ctx.Value(requestKey{}).(*Request); ok {
		req.Status = code
	}
}

// TraceID returns the trace id of the current request, or the nil uuid.
func TraceID(ctx context.Context) string {
	return FromContext(ctx).TraceID
}

// StartSpan opens a child span on the App's tracer. Without a routed
// request it returns ctx and the span already in it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	req, ok := ctx.Value(requestKey{}).(*Request)
	if !ok || req.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := req.tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	return ctx, span
}

func withRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}
