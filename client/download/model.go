package download

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/fault"
)

const (
	// ChunkSize is the largest number of body bytes read per loop iteration.
	ChunkSize = 32 << 10 // 32KB

	// DefaultFileName names the local file when the URL path has no usable
	// final segment, e.g. a bare host or a query-only URL.
	DefaultFileName = "download"

	workspacePrefix = "fetchpack_downloads_"
	bytesPerMB      = 1024 * 1024
)

var (
	ErrSizeLimitExceeded     = errors.New("size limit exceeded")
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrDownloadCancelled     = errors.New("download cancelled")
)

// Result describes a completed transfer. The file at Path is fully
// written and closed. Dir is the workspace owned by the transfer.
type Result struct {
	Path  string
	Dir   string
	Bytes int64

	fs afero.Fs
}

// Release removes the workspace holding the downloaded file.
func (r *Result) Release() error {
	if r == nil || r.fs == nil {
		return nil
	}

	if err := r.fs.RemoveAll(r.Dir); err != nil {
		return fault.FileSystem("release workspace", r.Dir, err)
	}

	return nil
}

// SizeLimitError is returned when the advertised or observed transfer
// size passes the configured ceiling. Observed holds the advertised
// Content-Length when Advertised is set, otherwise the bytes written
// before the transfer was cut. Path names the partial file, if any.
type SizeLimitError struct {
	LimitMB    int64
	Observed   int64
	Advertised bool
	Path       string
}

func (e *SizeLimitError) Error() string {
	src := "received"
	if e.Advertised {
		src = "advertised"
	}

	return fmt.Sprintf("%v: download file size exceeded the maximum allowed size of %d MB (%s %d bytes)", ErrSizeLimitExceeded, e.LimitMB, src, e.Observed)
}

func (e *SizeLimitError) Unwrap() error {
	return ErrSizeLimitExceeded
}

// Error wraps a sentinel verification error with additional detail.
type Error struct {
	Detail string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PartialPath reports the file a failed transfer left behind.
func PartialPath(err error) (string, bool) {
	if sizeErr, ok := errors.AsType[*SizeLimitError](err); ok && sizeErr.Path != "" {
		return sizeErr.Path, true
	}

	if netErr, ok := errors.AsType[*fault.NetworkError](err); ok && netErr.Path != "" {
		return netErr.Path, true
	}

	if dlErr, ok := errors.AsType[*Error](err); ok && dlErr.Path != "" {
		return dlErr.Path, true
	}

	if fsErr, ok := errors.AsType[*fault.FileSystemError](err); ok {
		switch fsErr.Op {
		case opWrite, opSync, opClose:
			return fsErr.Path, true
		}
	}

	return "", false
}
