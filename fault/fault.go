// Package fault defines the failure kinds shared by the fetch and archive
// packages, letting callers tell transport trouble from local storage trouble.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork is matched by every [NetworkError].
	ErrNetwork = errors.New("network error")
	// ErrFileSystem is matched by every [FileSystemError].
	ErrFileSystem = errors.New("file system error")
)

// NetworkError reports a connection failure, timeout, cancellation or an
// interrupted response stream. Path names the partially written file, if
// the failure happened after the file was created.
type NetworkError struct {
	Op   string
	URL  string
	Path string
	Err  error
}

func (e *NetworkError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%v: %s: %v", ErrNetwork, e.Op, e.Err)
	}

	return fmt.Sprintf("%v: %s %s: %v", ErrNetwork, e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetwork, e.Err}
}

// FileSystemError reports a failure creating, reading or writing local storage.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrFileSystem, e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() []error {
	return []error{ErrFileSystem, e.Err}
}

// Network is a shorthand for building a [NetworkError].
func Network(op, url string, err error) error {
	return &NetworkError{Op: op, URL: url, Err: err}
}

// FileSystem is a shorthand for building a [FileSystemError].
func FileSystem(op, path string, err error) error {
	return &FileSystemError{Op: op, Path: path, Err: err}
}
