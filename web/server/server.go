package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// Server runs an http.Server until its context ends or a termination
// signal arrives, then drains it.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
	shutdownFuncs   []shutdownFunc
	tlsCertFile     string
	tlsKeyFile      string
}

// New wraps handler in an http.Server listening on ":8080" by default.
// The read timeout also bounds reading headers.
func New(handler http.Handler, opts ...Option) *Server {
	o := options{
		host:            ":8080",
		readTimeout:     5 * time.Second,
		writeTimeout:    10 * time.Second,
		idleTimeout:     120 * time.Second,
		shutdownTimeout: 20 * time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	srv := &http.Server{
		Addr:              o.host,
		Handler:           handler,
		ReadHeaderTimeout: o.readTimeout,
		ReadTimeout:       o.readTimeout,
		WriteTimeout:      o.writeTimeout,
		IdleTimeout:       o.idleTimeout,
		ErrorLog:          slog.NewLogLogger(o.logger.Handler(), slog.LevelError),
	}

	return &Server{
		srv:             srv,
		shutdownTimeout: o.shutdownTimeout,
		logger:          o.logger,
		shutdownFuncs:   o.shutdownFuncs,
		tlsCertFile:     o.tlsCertFile,
		tlsKeyFile:      o.tlsKeyFile,
	}
}

// Addr is the address given to [WithHost].
func (s *Server) Addr() string { return s.srv.Addr }

// Run listens on Addr and hands the listener to Serve.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends or the process gets
// SIGINT or SIGTERM, then drains in-flight requests within the shutdown
// timeout. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String(), "tls", s.tlsCertFile != "")

		if s.tlsCertFile == "" {
			serveErr <- s.srv.Serve(ln)
			return
		}
		serveErr <- s.srv.ServeTLS(ln, s.tlsCertFile, s.tlsKeyFile)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
	}

	stop()
	s.logger.Info("shutdown signal received", "cause", context.Cause(ctx))

	drainCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	s.logger.Info("shutdown complete")

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx ends, forcing the rest closed. Registered shutdown funcs run
// afterwards either way; their errors are logged, not returned.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if serr := s.srv.Shutdown(ctx); serr != nil {
		_ = s.srv.Close()
		err = fmt.Errorf("server didn't stop gracefully: %w", serr)
	}

	for i, fn := range s.shutdownFuncs {
		if ferr := fn(ctx); ferr != nil {
			s.logger.Error("shutdown func", "index", i, "error", ferr)
		}
	}

	return err
}
