package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// errBodyLimit is how much of a rejected response is kept for the error.
const errBodyLimit = 4 << 10

var (
	// ErrUnexpectedStatusCode is wrapped by every [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is wrapped as well when the status is 401 or 403.
	ErrAuthFailure = errors.New("auth failure")
	// ErrInvalidURL means the URL did not parse or was not http(s).
	ErrInvalidURL = errors.New("invalid url")
)

// UnexpectedStatusError reports a non-2xx answer to a fetch. Body holds
// at most the first 4KB of the response. Nothing is written locally.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error { return e.Err }

// rejectStatus returns nil for a 2xx response and an UnexpectedStatusError
// carrying the head of the body otherwise.
func rejectStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	if err != nil {
		b = []byte("unable to read body")
	}

	sentinel := ErrUnexpectedStatusCode
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		sentinel = fmt.Errorf("%w: %w", ErrAuthFailure, ErrUnexpectedStatusCode)
	}

	return &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: string(b), Err: sentinel}
}
