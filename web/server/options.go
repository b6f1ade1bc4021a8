package server

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Server. Zero and negative durations, an empty
// host and a nil logger leave the default in place.
type Option func(*options)

type shutdownFunc func(ctx context.Context) error

type options struct {
	host            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	shutdownFuncs   []shutdownFunc
	tlsCertFile     string
	tlsKeyFile      string
}

func positive(dst *time.Duration, d time.Duration) {
	if d > 0 {
		*dst = d
	}
}

// WithHost sets the listen address. Default ":8080".
func WithHost(host string) Option {
	return func(o *options) {
		if host != "" {
			o.host = host
		}
	}
}

// WithReadTimeout bounds reading a whole request, headers included. Default 5s.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { positive(&o.readTimeout, d) }
}

// WithWriteTimeout bounds writing the response. A fetch streams the whole
// remote file before it answers, so this is also the ceiling on a fetch.
// Default 10s.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { positive(&o.writeTimeout, d) }
}

// WithIdleTimeout bounds how long a keep-alive connection may sit unused. Default 120s.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) { positive(&o.idleTimeout, d) }
}

// WithShutdownTimeout bounds the drain of in-flight requests once the
// serve context ends. Default 20s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) { positive(&o.shutdownTimeout, d) }
}

// WithLogger sets the lifecycle logger. It also backs http.Server.ErrorLog.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithShutdownFunc adds fn to the hooks run, in order, after the HTTP
// server stops accepting requests.
func WithShutdownFunc(fn func(ctx context.Context) error) Option {
	return func(o *options) { o.shutdownFuncs = append(o.shutdownFuncs, fn) }
}

// WithTLS serves HTTPS from the given PEM files.
func WithTLS(certFile, keyFile string) Option {
	return func(o *options) { o.tlsCertFile, o.tlsKeyFile = certFile, keyFile }
}
