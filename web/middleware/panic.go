package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/adamwoolhether/fetchpack/web/errs"
	"github.com/adamwoolhether/fetchpack/web/mux"
)

// Panics turns a panic in the handler chain into an internal error so
// Errors can answer it with an obscured 500.
func Panics() mux.Middleware {
	return func(next mux.Handler) mux.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = errs.NewInternal(fmt.Errorf("PANIC [%v] TRACE[%s]", rec, debug.Stack()))
				}
			}()

			return next(ctx, w, r)
		}
	}
}
