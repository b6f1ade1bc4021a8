package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/adamwoolhether/fetchpack/web"
	"github.com/adamwoolhether/fetchpack/web/errs"
	"github.com/adamwoolhether/fetchpack/web/mux"
)

// Errors answers any error returned by the handler chain. Field errors
// become a 422 listing every field. An error that is not an *errs.Error
// is treated as internal, and internal messages are replaced by the
// status text once logged.
func Errors(log *slog.Logger) mux.Middleware {
	return func(next mux.Handler) mux.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := next(ctx, w, r)
			if err == nil {
				return nil
			}

			reqLog := log.With("trace_id", mux.TraceID(ctx), "route", mux.FromContext(ctx).Route)

			if fields, ok := errors.AsType[errs.FieldErrors](err); ok {
				reqLog.Warn("request failed validation", "fields", fields.Fields())
				return web.RespondJSON(ctx, w, http.StatusUnprocessableEntity, fields)
			}

			appErr, ok := errors.AsType[*errs.Error](err)
			if !ok {
				appErr = errs.NewInternal(err)
			}

			level := slog.LevelWarn
			if appErr.Code >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			reqLog.Log(ctx, level, err.Error(),
				"status", appErr.Code,
				"source_err_file", path.Base(appErr.FileName),
				"source_err_func", path.Base(appErr.FuncName),
			)

			resp := *appErr
			if resp.IsInternal() {
				resp.Message = http.StatusText(resp.Code)
			}

			return web.RespondError(ctx, w, &resp)
		}
	}
}
