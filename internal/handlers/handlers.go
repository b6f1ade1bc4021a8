// Package handlers binds the fetchpackd HTTP API to the client, archive
// and workdir packages.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/fetchpack/client"
	"github.com/adamwoolhether/fetchpack/internal/metrics"
	"github.com/adamwoolhether/fetchpack/web"
	"github.com/adamwoolhether/fetchpack/web/middleware"
	"github.com/adamwoolhether/fetchpack/web/mux"
)

// Config carries the dependencies shared by every handler.
type Config struct {
	Log     *slog.Logger
	Client  *client.Client
	FS      afero.Fs
	Metrics *metrics.Metrics
	Tracer  trace.Tracer

	ArchiveRoot      string
	RunsRoot         string
	DefaultMaxSizeMB int64
}

// Routes builds the application mux with the standard middleware stack.
func Routes(cfg Config) *mux.App {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	opts := []mux.Option{
		mux.WithLogger(cfg.Log),
		mux.WithMiddleware(
			middleware.Logger(cfg.Log),
			middleware.Metrics(cfg.Metrics),
			middleware.Errors(cfg.Log),
			middleware.Panics(),
		),
	}
	if cfg.Tracer != nil {
		opts = append(opts, mux.WithTracer(cfg.Tracer))
	}

	app := mux.New(opts...)
	app.Get("/healthz", healthz)
	app.HandleRaw(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	h := &handlers{
		log:        cfg.Log,
		client:     cfg.Client,
		fs:         cfg.FS,
		metrics:    cfg.Metrics,
		archives:   cfg.ArchiveRoot,
		runs:       cfg.RunsRoot,
		defaultMax: cfg.DefaultMaxSizeMB,
	}

	v1 := app.Mount("v1")
	v1.Post("/fetch", h.fetch)
	v1.Post("/archive", h.archiveDir)
	v1.Post("/runs/{run_id}/fetch", h.runFetch)
	v1.Get("/runs/{run_id}/files", h.runFiles)
	v1.Post("/runs/{run_id}/archive", h.runArchive)

	return app
}

type handlers struct {
	log        *slog.Logger
	client     *client.Client
	fs         afero.Fs
	metrics    *metrics.Metrics
	archives   string
	runs       string
	defaultMax int64
}

func healthz(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.RespondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}
