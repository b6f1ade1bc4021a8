package download

import (
	"errors"
	"fmt"
	"hash"
	"math"

	"github.com/spf13/afero"
)

// Option defines optional settings for a transfer.
//
// WithMaxSizeMB sets the ceiling, in megabytes, checked against the
// advertised Content-Length and the running byte count.
//
// WithChecksum enables checksum validation of the downloaded file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
//
// WithProgress enables periodic progress logging via the logger
// supplied to Handle.
//
// WithRemovePartial removes the workspace when the transfer fails.
//
// WithFS and WithRoot choose the filesystem and parent directory
// workspaces are created in.
type Option func(*options) error

type options struct {
	limit         ceiling
	checksum      *digest
	progress      bool
	removePartial bool
	fs            afero.Fs
	root          string
}

func WithMaxSizeMB(mb int64) Option {
	return func(opts *options) error {
		if mb <= 0 {
			return fmt.Errorf("max size[%d MB] must be greater than zero", mb)
		}

		if mb > math.MaxInt64/bytesPerMB {
			return fmt.Errorf("max size[%d MB] is too large", mb)
		}

		opts.limit = ceiling{mb: mb, bytes: mb * bytesPerMB}
		return nil
	}
}

func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = &digest{h: h, want: expected}
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

func WithRemovePartial() Option {
	return func(opts *options) error {
		opts.removePartial = true
		return nil
	}
}

func WithFS(fsys afero.Fs) Option {
	return func(opts *options) error {
		if fsys == nil {
			return errors.New("filesystem must not be nil")
		}

		opts.fs = fsys
		return nil
	}
}

func WithRoot(dir string) Option {
	return func(opts *options) error {
		opts.root = dir
		return nil
	}
}

// ceiling is the configured maximum transfer size. The zero value is unlimited.
type ceiling struct {
	mb    int64
	bytes int64
}

func (c ceiling) set() bool {
	return c.bytes > 0
}

func (c ceiling) exceeded(n int64) bool {
	return c.set() && n > c.bytes
}
