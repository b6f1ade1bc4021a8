package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/fetchpack/web/errs"
	"github.com/adamwoolhether/fetchpack/web/middleware"
	"github.com/adamwoolhether/fetchpack/web/mux"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestErrors(t *testing.T) {
	internal := http.StatusText(http.StatusInternalServerError)

	testCases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "nil passes through",
			err:      nil,
			wantCode: http.StatusOK,
			wantBody: "",
		},
		{
			name:     "wrapped app error keeps its message",
			err:      fmt.Errorf("handler: %w", errs.New(http.StatusRequestEntityTooLarge, errors.New("file exceeds 1MB"))),
			wantCode: http.StatusRequestEntityTooLarge,
			wantBody: `{"code":413,"message":"file exceeds 1MB"}`,
		},
		{
			name:     "internal message is hidden",
			err:      errs.NewInternal(errors.New("disk full at /var/lib/fetchpack")),
			wantCode: http.StatusInternalServerError,
			wantBody: fmt.Sprintf(`{"code":500,"message":%q}`, internal),
		},
		{
			name:     "plain error is internal",
			err:      errors.New("unexpected failure"),
			wantCode: http.StatusInternalServerError,
			wantBody: fmt.Sprintf(`{"code":500,"message":%q}`, internal),
		},
		{
			name:     "field errors list every field",
			err:      errs.NewFieldsError("url", errors.New("This field is required")),
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `[{"field":"url","error":"This field is required"}]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var status int
			handler := middleware.Errors(discard())(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				if tc.err == nil {
					w.WriteHeader(http.StatusOK)
				}
				return tc.err
			})

			app := mux.New(mux.WithLogger(discard()))
			app.Post("/v1/fetch", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				err := handler(ctx, w, r)
				status = mux.FromContext(ctx).Status
				return err
			})

			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/fetch", nil))

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			if tc.err != nil && status != tc.wantCode {
				t.Errorf("recorded status = %d, want %d", status, tc.wantCode)
			}
			if tc.wantBody == "" {
				return
			}

			var got, want any
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("body is not JSON: %v: %s", err, w.Body.String())
			}
			if err := json.Unmarshal([]byte(tc.wantBody), &want); err != nil {
				t.Fatalf("bad test case body: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
