package mux

import (
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/trace"
)

// Option configures an App.
type Option func(*options)

type options struct {
	tracer trace.Tracer
	logger *slog.Logger
	mw     []Middleware
}

// WithMiddleware installs app-wide middleware, outermost first. The
// order matters: the logger and metrics should come before Errors so
// they see the status it chose, and Panics belongs last, closest to the
// handler.
func WithMiddleware(mw ...Middleware) Option {
	ordered := slices.Clone(mw)

	return func(o *options) { o.mw = ordered }
}

// WithTracer sets the tracer spans are started on. Default is a noop tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithLogger sets the logger for errors no middleware handled.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.logger = log }
}
