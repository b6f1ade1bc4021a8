package archive

import (
	"compress/flate"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/spf13/afero"
)

// Option configures [Dir], [Extract] and [List].
type Option func(*options) error

type options struct {
	fs      afero.Fs
	logger  *slog.Logger
	level   int
	exclude []string
}

func defaults(optFns []Option) (options, error) {
	opts := options{level: flate.DefaultCompression}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return options{}, fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.fs == nil {
		opts.fs = afero.NewOsFs()
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	return opts, nil
}

// WithFS sets the filesystem archives are read from and written to.
func WithFS(fsys afero.Fs) Option {
	return func(o *options) error {
		if fsys == nil {
			return errors.New("filesystem must not be nil")
		}
		o.fs = fsys
		return nil
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithCompressionLevel sets the deflate level, from flate.HuffmanOnly
// to flate.BestCompression.
func WithCompressionLevel(level int) Option {
	return func(o *options) error {
		if level < flate.HuffmanOnly || level > flate.BestCompression {
			return fmt.Errorf("compression level[%d] out of range", level)
		}
		o.level = level
		return nil
	}
}

// WithExclude skips files and directories whose base name or relative
// path matches any of the path.Match patterns.
func WithExclude(patterns ...string) Option {
	return func(o *options) error {
		for _, p := range patterns {
			if _, err := path.Match(p, ""); err != nil {
				return fmt.Errorf("exclude pattern[%s]: %w", p, err)
			}
		}
		o.exclude = append(o.exclude, patterns...)
		return nil
	}
}

func (o options) excluded(rel string) bool {
	base := path.Base(rel)
	for _, p := range o.exclude {
		if ok, _ := path.Match(p, base); ok {
			return true
		}
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
	}

	return false
}
