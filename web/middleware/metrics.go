package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/adamwoolhether/fetchpack/web/mux"
)

// Recorder receives one observation per completed request.
type Recorder interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

// Metrics reports the route pattern, final status and latency of every
// request. An error nobody answered counts as a 500.
func Metrics(rec Recorder) mux.Middleware {
	return func(next mux.Handler) mux.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := next(ctx, w, r)

			req := mux.FromContext(ctx)
			status := req.Status
			if status == 0 && err != nil {
				status = http.StatusInternalServerError
			}
			rec.ObserveRequest(req.Route, status, time.Since(req.Start))

			return err
		}
	}
}
