// Package mux routes requests to error-returning handlers, wrapping each
// in a tracing span and a per-request context.
package mux

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handler handles a request and reports any failure it did not answer.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware wraps a Handler.
type Middleware func(handler Handler) Handler

// App is an http.Handler built on [http.ServeMux]. Apps returned by
// [App.Mount] share the ServeMux, so mounting only changes the prefix and
// the middleware applied to routes registered through them.
type App struct {
	mux    *http.ServeMux
	prefix string
	mw     []Middleware
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates an App. Without options it uses a no-op tracer and
// slog.Default().
func New(optFns ...Option) *App {
	var opts options
	for _, opt := range optFns {
		opt(&opts)
	}

	app := &App{
		mux:    http.NewServeMux(),
		mw:     opts.mw,
		logger: opts.logger,
		tracer: opts.tracer,
	}
	if app.logger == nil {
		app.logger = slog.Default()
	}
	if app.tracer == nil {
		app.tracer = noop.NewTracerProvider().Tracer("")
	}

	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Mount returns an App whose routes live under prefix. It starts with a
// copy of a's middleware.
func (a *App) Mount(prefix string) *App {
	sub := *a
	sub.prefix = path.Join("/", a.prefix, strings.Trim(prefix, "/"))
	sub.mw = slices.Clone(a.mw)

	return &sub
}

// Use appends middleware for routes registered after the call.
func (a *App) Use(mw ...Middleware) {
	a.mw = append(a.mw, mw...)
}

// Get registers fn for GET requests on p.
func (a *App) Get(p string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodGet, p, fn, mw...)
}

// Post registers fn for POST requests on p.
func (a *App) Post(p string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodPost, p, fn, mw...)
}

// Handle registers fn for method on p. Route middleware runs inside the
// App's middleware. Errors that reach the App unanswered are logged.
func (a *App) Handle(method, p string, fn Handler, mw ...Middleware) {
	pattern := a.pattern(method, p)
	fn = chain(a.mw, chain(mw, fn))

	a.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.startSpan(w, r, pattern)
		defer span.End()

		req := &Request{
			TraceID: traceID(span),
			Route:   pattern,
			Start:   time.Now().UTC(),
			tracer:  a.tracer,
		}
		ctx = withRequest(ctx, req)

		if err := fn(ctx, w, r.WithContext(ctx)); err != nil {
			a.logger.Error("unhandled error", "route", pattern, "trace_id", req.TraceID, "error", err)
		}
	})
}

// HandleRaw registers a plain http.Handler that bypasses middleware and
// tracing.
func (a *App) HandleRaw(method, p string, handler http.Handler) {
	a.mux.Handle(a.pattern(method, p), handler)
}

func (a *App) pattern(method, p string) string {
	if a.prefix != "" && a.prefix != "/" {
		p = a.prefix + p
	}

	return method + " " + p
}

// startSpan continues any trace propagated by the caller and echoes the
// span context back in the response headers.
func (a *App) startSpan(w http.ResponseWriter, r *http.Request, pattern string) (context.Context, trace.Span) {
	prop := otel.GetTextMapPropagator()

	ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := a.tracer.Start(ctx, pattern, trace.WithAttributes(attribute.String("path", r.URL.Path)))
	prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

	return ctx, span
}

func traceID(span trace.Span) string {
	if id := span.SpanContext().TraceID(); id.IsValid() {
		return id.String()
	}

	return uuid.NewString()
}

// chain wraps fn so mw[0] runs first.
func chain(mw []Middleware, fn Handler) Handler {
	for _, m := range slices.Backward(mw) {
		if m != nil {
			fn = m(fn)
		}
	}

	return fn
}
