package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/fetchpack/web/mux"
)

// Logger writes one line when a request arrives and one when it leaves,
// the second carrying the final status and elapsed time.
func Logger(log *slog.Logger) mux.Middleware {
	return func(next mux.Handler) mux.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			req := mux.FromContext(ctx)

			target := r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}

			reqLog := log.With("trace_id", req.TraceID, "method", r.Method, "path", target, "remoteaddr", r.RemoteAddr)
			reqLog.Info("request started")

			err := next(ctx, w, r)

			reqLog.Info("request completed", "statusCode", req.Status, "since", time.Since(req.Start).String())

			return err
		}
	}
}
