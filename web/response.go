package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/adamwoolhether/fetchpack/web/errs"
	"github.com/adamwoolhether/fetchpack/web/mux"
)

// RespondJSON writes data as the JSON body with status code. A 204 gets
// neither a body nor a content type. The status is recorded on the
// request so middleware can report it.
func RespondJSON(ctx context.Context, w http.ResponseWriter, status int, data any) error {
	mux.SetStatus(ctx, status)

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return nil
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}

	return nil
}

// RespondError writes err as {"code","message"} with err.Code as status.
func RespondError(ctx context.Context, w http.ResponseWriter, err *errs.Error) error {
	return RespondJSON(ctx, w, err.Code, err)
}
