// Command fetchpackd serves the fetch and archive HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/adamwoolhether/fetchpack/client"
	"github.com/adamwoolhether/fetchpack/internal/config"
	"github.com/adamwoolhether/fetchpack/internal/handlers"
	"github.com/adamwoolhether/fetchpack/internal/janitor"
	"github.com/adamwoolhether/fetchpack/internal/metrics"
	"github.com/adamwoolhether/fetchpack/web/server"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("fetchpackd", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	fsys := afero.NewOsFs()
	if err := cfg.Prepare(fsys); err != nil {
		return err
	}

	clientOpts := []client.Option{
		client.WithLogger(log),
		client.WithFS(fsys),
		client.WithDownloadRoot(cfg.DownloadRoot),
		client.WithTimeout(cfg.FetchTimeout),
		client.WithUserAgent(cfg.UserAgent),
	}
	if cfg.Throttled() {
		clientOpts = append(clientOpts, client.WithThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst))
	}

	c, err := client.Build(clientOpts...)
	if err != nil {
		return err
	}

	m := metrics.New()

	app := handlers.Routes(handlers.Config{
		Log:              log,
		Client:           c,
		FS:               fsys,
		Metrics:          m,
		Tracer:           otel.Tracer("fetchpackd"),
		ArchiveRoot:      cfg.ArchiveRoot,
		RunsRoot:         cfg.RunsRoot,
		DefaultMaxSizeMB: cfg.DefaultMaxSizeMB,
	})

	srvOpts := []server.Option{
		server.WithHost(cfg.Addr),
		server.WithLogger(log),
		server.WithReadTimeout(cfg.ReadTimeout),
		server.WithWriteTimeout(cfg.WriteTimeout),
		server.WithIdleTimeout(cfg.IdleTimeout),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	}
	if cfg.TLSCertFile != "" {
		srvOpts = append(srvOpts, server.WithTLS(cfg.TLSCertFile, cfg.TLSKeyFile))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stop()
		return server.New(app, srvOpts...).Run(ctx)
	})

	if cfg.WorkspaceTTL > 0 {
		j := &janitor.Janitor{
			FS:       fsys,
			Root:     cfg.DownloadRoot,
			TTL:      cfg.WorkspaceTTL,
			Interval: cfg.SweepInterval,
			Logger:   log,
			OnSwept:  m.WorkspacesSwept,
		}
		g.Go(func() error { return j.Run(ctx) })
	}

	log.Info("fetchpackd starting",
		"addr", cfg.Addr,
		"download_root", cfg.DownloadRoot,
		"archive_root", cfg.ArchiveRoot,
		"runs_root", cfg.RunsRoot,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
