package download

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/fault"
)

// Sweep removes workspaces directly under root that were last modified
// before cutoff, returning the removed directories. Entries that are not
// workspaces are never touched. A missing root sweeps nothing.
func Sweep(fsys afero.Fs, root string, cutoff time.Time) ([]string, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	entries, err := afero.ReadDir(fsys, root)
	if err != nil {
		if exists, _ := afero.DirExists(fsys, root); !exists {
			return nil, nil
		}
		return nil, fault.FileSystem("sweep", root, err)
	}

	var removed []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), workspacePrefix) || !e.ModTime().Before(cutoff) {
			continue
		}

		dir := filepath.Join(root, e.Name())
		if err := fsys.RemoveAll(dir); err != nil {
			return removed, fault.FileSystem("sweep", dir, err)
		}
		removed = append(removed, dir)
	}

	return removed, nil
}
