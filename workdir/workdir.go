// Package workdir manages per-run download directories: one directory
// per run under a shared root, holding every file fetched for that run.
package workdir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/fault"
)

// maxSuffix bounds the search for a free name in Adopt.
const maxSuffix = 1000

var (
	ErrInvalidRunID = errors.New("invalid run id")
	ErrNameTaken    = errors.New("no free file name")
)

// ValidRunID reports whether runID is usable as a single directory name.
func ValidRunID(runID string) bool {
	if runID == "" || runID == "." || runID == ".." {
		return false
	}

	return !strings.ContainsAny(runID, `/\`+"\x00")
}

// Path returns root/runID without touching the filesystem.
func Path(root, runID string) (string, error) {
	if !ValidRunID(runID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}

	return filepath.Join(root, runID), nil
}

// RunDir creates, if needed, and returns the download directory of runID.
func RunDir(fsys afero.Fs, root, runID string) (string, error) {
	dir, err := Path(root, runID)
	if err != nil {
		return "", err
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fault.FileSystem("create run dir", dir, err)
	}

	return dir, nil
}

// CountFiles counts regular files under dir, recursively.
// A missing dir holds zero files.
func CountFiles(fsys afero.Fs, dir string) (int, error) {
	files, err := ListFiles(fsys, dir)
	return len(files), err
}

// ListFiles returns the slash-separated paths, relative to dir, of every
// regular file under dir in lexical order. A missing dir yields none.
func ListFiles(fsys afero.Fs, dir string) ([]string, error) {
	if _, err := fsys.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}

	files := []string{}
	err := afero.Walk(fsys, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return fault.FileSystem("walk run dir", p, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return fault.FileSystem("walk run dir", p, err)
		}
		files = append(files, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)

	return files, nil
}

// Adopt moves the file at src into dir and returns its new path. When the
// base name is taken a numeric suffix is added: report.csv, report-1.csv.
func Adopt(fsys afero.Fs, dir, src string) (string, error) {
	target, err := freeName(fsys, dir, filepath.Base(src))
	if err != nil {
		return "", err
	}

	if err := fsys.Rename(src, target); err == nil {
		return target, nil
	}

	// Rename fails across devices; fall back to copy and remove.
	if err := copyFile(fsys, src, target); err != nil {
		return "", err
	}
	if err := fsys.Remove(src); err != nil {
		return "", fault.FileSystem("remove source", src, err)
	}

	return target, nil
}

func freeName(fsys afero.Fs, dir, base string) (string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := range maxSuffix {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}

		p := filepath.Join(dir, name)
		exists, err := afero.Exists(fsys, p)
		if err != nil {
			return "", fault.FileSystem("stat target", p, err)
		}
		if !exists {
			return p, nil
		}
	}

	return "", fault.FileSystem("adopt file", filepath.Join(dir, base), ErrNameTaken)
}

func copyFile(fsys afero.Fs, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return fault.FileSystem("open source", src, err)
	}
	defer in.Close()

	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fault.FileSystem("create target", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		fsys.Remove(dst)
		return fault.FileSystem("copy file", dst, err)
	}

	if err := out.Close(); err != nil {
		return fault.FileSystem("close target", dst, err)
	}

	return nil
}
