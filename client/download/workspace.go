package download

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/fault"
)

const (
	opAcquire = "create workspace"
	opCreate  = "create file"
	opWrite   = "write file"
	opSync    = "sync file"
	opClose   = "close file"
)

// Workspace is a uniquely named temporary directory owned by a single
// transfer. It is never shared between calls.
type Workspace struct {
	fs  afero.Fs
	dir string
}

// Acquire creates a fresh workspace under root on fsys. An empty root
// resolves to the system temp directory.
func Acquire(fsys afero.Fs, root string) (*Workspace, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	dir, err := afero.TempDir(fsys, root, workspacePrefix)
	if err != nil {
		return nil, fault.FileSystem(opAcquire, root, err)
	}

	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	return &Workspace{fs: fsys, dir: dir}, nil
}

// Dir returns the absolute workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Create opens name for writing inside the workspace. The file must not exist.
func (w *Workspace) Create(name string) (afero.File, string, error) {
	p := filepath.Join(w.dir, name)

	f, err := w.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, "", fault.FileSystem(opCreate, p, err)
	}

	return f, p, nil
}

// Release removes the workspace and everything in it.
func (w *Workspace) Release() error {
	if err := w.fs.RemoveAll(w.dir); err != nil {
		return fault.FileSystem("release workspace", w.dir, err)
	}

	return nil
}

// FileName derives the local file name from the final segment of the
// URL path. A path with no final segment, which includes any path ending
// in a slash such as "/dir/", yields [DefaultFileName], as do "." and "..".
func FileName(u *url.URL) string {
	if u == nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return DefaultFileName
	}

	// Treat a backslash as a separator too, so a decoded name can never
	// climb out of the workspace on Windows.
	name := path.Base(strings.ReplaceAll(u.Path, `\`, "/"))
	if name == "." || name == ".." || name == "/" {
		return DefaultFileName
	}

	return name
}

// Discard removes a file left by a failed transfer. When the file sits
// in a workspace the whole workspace is removed.
func Discard(fsys afero.Fs, p string) error {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	target := p
	if dir := filepath.Dir(p); strings.HasPrefix(filepath.Base(dir), workspacePrefix) {
		target = dir
	}

	if err := fsys.RemoveAll(target); err != nil {
		return fault.FileSystem("discard", target, err)
	}

	return nil
}
