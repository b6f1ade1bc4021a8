package client

import (
	"hash"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/client/download"
	"github.com/adamwoolhether/fetchpack/fault"
)

type (
	// FetchResult is the local file produced by [Client.Fetch].
	FetchResult = download.Result
	// SizeLimitError reports a body that exceeded the configured ceiling.
	SizeLimitError = download.SizeLimitError
	// DownloadError carries a download failure that is not a size violation.
	DownloadError = download.Error
	// NetworkError reports a failure establishing or reading the connection.
	NetworkError = fault.NetworkError
	// FileSystemError reports a failure creating, writing or closing local files.
	FileSystemError = fault.FileSystemError
)

var (
	ErrSizeLimitExceeded     = download.ErrSizeLimitExceeded
	ErrContentLengthMismatch = download.ErrContentLengthMismatch
	ErrChecksumMismatch      = download.ErrChecksumMismatch
	ErrDownloadCancelled     = download.ErrDownloadCancelled
	ErrNetwork               = fault.ErrNetwork
	ErrFileSystem            = fault.ErrFileSystem
)

// WithMaxSizeMB caps the fetched body at mb megabytes (1 MB = 1,048,576 bytes).
func WithMaxSizeMB(mb int64) FetchOption {
	return download.WithMaxSizeMB(mb)
}

// WithChecksum verifies the fetched file against the hex-encoded expected digest.
func WithChecksum(h hash.Hash, expected string) FetchOption {
	return download.WithChecksum(h, expected)
}

// WithProgress logs transfer progress.
func WithProgress() FetchOption {
	return download.WithProgress()
}

// WithRemovePartial removes the workspace when a fetch fails.
func WithRemovePartial() FetchOption {
	return download.WithRemovePartial()
}

// PartialPath reports the partially written file left behind by a failed fetch.
func PartialPath(err error) (string, bool) {
	return download.PartialPath(err)
}

// Discard removes a partial file and its workspace.
func Discard(fsys afero.Fs, path string) error {
	return download.Discard(fsys, path)
}
