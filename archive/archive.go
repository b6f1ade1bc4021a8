package archive

import (
	"archive/zip"
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/fault"
)

// Dir writes every regular file under src into a zip archive at dst and
// returns dst unchanged. The archive is finalized and closed before Dir
// returns; on failure dst is removed.
func Dir(ctx context.Context, src, dst string, optFns ...Option) (string, error) {
	opts, err := defaults(optFns)
	if err != nil {
		return "", err
	}
	fsys, logger := opts.fs, opts.logger

	info, err := fsys.Stat(src)
	if err != nil {
		return "", fault.FileSystem(opStat, src, err)
	}
	if !info.IsDir() {
		return "", fault.FileSystem(opStat, src, ErrNotDirectory)
	}

	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return "", fault.FileSystem(opCreate, dst, err)
	}

	f, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fault.FileSystem(opCreate, dst, err)
	}

	var successful bool
	defer func() {
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing archive", "path", dst, "error", err)
		}
		if !successful {
			if err := fsys.Remove(dst); err != nil {
				logger.Error("failed to remove incomplete archive", "path", dst, "error", err)
			}
		}
	}()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, opts.level)
	})

	var entries int
	walkFn := func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return fault.FileSystem(opWalk, p, err)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return fault.FileSystem(opWalk, p, err)
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		if opts.excluded(name) {
			logger.Debug("excluding path from archive", "path", p)
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case info.IsDir():
			return nil
		case !info.Mode().IsRegular():
			logger.Debug("skipping non-regular file", "path", p, "mode", info.Mode().String())
			return nil
		}

		if abs, err := filepath.Abs(p); err == nil && abs == dstAbs {
			return nil
		}

		if err := addFile(zw, fsys, p, name, info); err != nil {
			return err
		}
		entries++

		return nil
	}

	if err := afero.Walk(fsys, src, walkFn); err != nil {
		_ = zw.Close()
		return "", err
	}

	if err := zw.Close(); err != nil {
		return "", fault.FileSystem(opFinalize, dst, err)
	}
	if err := f.Close(); err != nil {
		return "", fault.FileSystem(opClose, dst, err)
	}

	successful = true

	logger.Info("archive created", "src", src, "dst", dst, "entries", entries)

	return dst, nil
}

func addFile(zw *zip.Writer, fsys afero.Fs, p, name string, info os.FileInfo) error {
	in, err := fsys.Open(p)
	if err != nil {
		return fault.FileSystem(opOpen, p, err)
	}
	defer in.Close()

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fault.FileSystem(opWrite, p, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fault.FileSystem(opWrite, p, err)
	}

	if _, err := io.Copy(w, in); err != nil {
		return fault.FileSystem(opWrite, p, err)
	}

	return nil
}
