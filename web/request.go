// Package web decodes and validates requests and writes JSON responses
// for handlers registered on a mux.App.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/adamwoolhether/fetchpack/web/errs"
)

// bodyLimit caps the JSON bodies Decode accepts.
const bodyLimit = 1 << 20

// Param returns the named path wildcard, failing when it is empty.
func Param(r *http.Request, key string) (string, error) {
	if v := r.PathValue(key); v != "" {
		return v, nil
	}

	return "", fmt.Errorf("path param[%s] not found", key)
}

// QueryBool parses the named query parameter as a bool, returning def
// when it is absent. A malformed value is reported as a field error.
func QueryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errs.NewFieldsError(key, fmt.Errorf("must be boolean: %w", err))
	}

	return b, nil
}

// Decode fills val from the JSON body and runs Validate on it. Bodies
// over 1MB, unknown fields and an empty body answer 400.
func Decode[T any](r *http.Request, val *T) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, bodyLimit))
	dec.DisallowUnknownFields()

	switch err := dec.Decode(val); {
	case errors.Is(err, io.EOF):
		return errs.New(http.StatusBadRequest, errors.New("request body is empty"))
	case err != nil:
		return errs.New(http.StatusBadRequest, fmt.Errorf("decode: %w", err))
	}

	return Validate(val)
}
