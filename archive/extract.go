package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/fault"
)

// Extract restores the files of the archive at archivePath under destDir.
// Every entry name is checked before anything is written; an entry that
// would land outside destDir fails the whole extraction with
// ErrIllegalEntry. Symbolic link entries are skipped.
func Extract(ctx context.Context, archivePath, destDir string, optFns ...Option) error {
	opts, err := defaults(optFns)
	if err != nil {
		return err
	}
	fsys, logger := opts.fs, opts.logger

	zr, closer, err := openZip(fsys, archivePath)
	if err != nil {
		return err
	}
	defer closer.Close()

	targets := make([]string, len(zr.File))
	for i, zf := range zr.File {
		target, err := entryTarget(destDir, zf.Name)
		if err != nil {
			return err
		}
		targets[i] = target
	}

	for i, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := fsys.MkdirAll(targets[i], 0o755); err != nil {
				return fault.FileSystem(opExtract, targets[i], err)
			}
			continue
		case !mode.IsRegular():
			logger.Debug("skipping non-regular entry", "name", zf.Name, "mode", mode.String())
			continue
		}

		if err := extractFile(fsys, zf, targets[i]); err != nil {
			return err
		}
	}

	logger.Info("archive extracted", "archive", archivePath, "dest", destDir, "entries", len(zr.File))

	return nil
}

// List returns the file entries of the archive at archivePath in stored order.
func List(archivePath string, optFns ...Option) ([]Entry, error) {
	opts, err := defaults(optFns)
	if err != nil {
		return nil, err
	}

	zr, closer, err := openZip(opts.fs, archivePath)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	entries := make([]Entry, 0, len(zr.File))
	for _, zf := range zr.File {
		if zf.Mode().IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Name:           zf.Name,
			Size:           int64(zf.UncompressedSize64),
			CompressedSize: int64(zf.CompressedSize64),
			CRC32:          zf.CRC32,
		})
	}

	return entries, nil
}

func openZip(fsys afero.Fs, archivePath string) (*zip.Reader, io.Closer, error) {
	f, err := fsys.Open(archivePath)
	if err != nil {
		return nil, nil, fault.FileSystem(opRead, archivePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fault.FileSystem(opRead, archivePath, err)
	}

	// Entry names are checked by Extract itself.
	zr, err := zip.NewReader(f, info.Size())
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		f.Close()
		return nil, nil, fault.FileSystem(opRead, archivePath, err)
	}

	return zr, f, nil
}

// entryTarget resolves name under destDir, rejecting absolute names and
// names that climb out of destDir.
func entryTarget(destDir, name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %q", ErrIllegalEntry, name)
	}

	target := filepath.Join(destDir, filepath.FromSlash(name))

	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrIllegalEntry, name)
	}

	return target, nil
}

func extractFile(fsys afero.Fs, zf *zip.File, target string) error {
	if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fault.FileSystem(opExtract, target, err)
	}

	in, err := zf.Open()
	if err != nil {
		return fault.FileSystem(opRead, zf.Name, err)
	}
	defer in.Close()

	perm := zf.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}

	out, err := fsys.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fault.FileSystem(opExtract, target, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fault.FileSystem(opExtract, target, err)
	}

	if err := out.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fault.FileSystem(opExtract, target, err)
	}

	return nil
}
