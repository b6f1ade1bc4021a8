// Package errs carries the errors a handler returns to the Errors
// middleware, which turns them into responses.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// Error pairs a cause with the HTTP status it should be answered with.
// Only Code and Message reach the client. FuncName and FileName record
// where the Error was built so the log line points at the handler.
type Error struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	FuncName string `json:"-"`
	FileName string `json:"-"`

	internal bool
	cause    error
}

// New answers err with the given status and err's message.
func New(code int, err error) *Error {
	return build(code, err, false)
}

// NewInternal answers err with a 500. Its message is logged but never
// sent to the client.
func NewInternal(err error) *Error {
	return build(http.StatusInternalServerError, err, true)
}

func build(code int, cause error, internal bool) *Error {
	e := Error{
		Code:     code,
		Message:  cause.Error(),
		internal: internal,
		cause:    cause,
	}

	if pc, file, line, ok := runtime.Caller(2); ok {
		e.FileName = fmt.Sprintf("%s:%d", file, line)
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.FuncName = fn.Name()
		}
	}

	return &e
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// IsInternal reports whether the message must be hidden from the client.
func (e *Error) IsInternal() bool { return e.internal }

// FieldError names one request field that failed validation.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors is answered with a 422 listing each failing field.
type FieldErrors []FieldError

// NewFieldsError reports a single failing field.
func NewFieldsError(field string, err error) error {
	return FieldErrors{{Field: field, Err: err.Error()}}
}

func (fe FieldErrors) Error() string {
	b, err := json.Marshal(fe)
	if err != nil {
		return err.Error()
	}

	return string(b)
}

// Fields maps each failing field to its message.
func (fe FieldErrors) Fields() map[string]string {
	out := make(map[string]string, len(fe))
	for _, f := range fe {
		out[f.Field] = f.Err
	}

	return out
}

// IsFieldErrors reports whether err wraps FieldErrors.
func IsFieldErrors(err error) bool {
	_, ok := errors.AsType[FieldErrors](err)
	return ok
}
