// Package staging manages the isolated directory trees projects are
// copied into before promotion. A staging area is a sibling of its
// final directory, so the promote rename stays on one volume and is
// atomic.
package staging

import (
	"fmt"
	"os"
	"path/filepath"

	"loom/internal/fileutil"
)

// Suffix marks a staging directory on disk.
const Suffix = ".staging"

// PathPrefix marks staging-relative stored paths in the database until
// promotion strips it.
const PathPrefix = ".staging/"

// layoutDirs is the directory skeleton mirrored into every staging
// area and carried into the final project tree.
var layoutDirs = []string{
	"original",
	filepath.Join("artifacts", "xliff"),
	filepath.Join("artifacts", "xjliff"),
	filepath.Join("artifacts", "qa"),
}

// Area is one staging tree and the final location it promotes into.
type Area struct {
	Dir      string
	FinalDir string
}

// Create builds the staging skeleton for a project under projectsDir
// and registers it with the guard. The final destination must not
// already exist, and it must share a volume with the staging tree or
// the later rename would not be atomic; both are rejected up front.
func Create(projectsDir, dirName string, guard *Guard) (*Area, error) {
	if dirName == "" {
		return nil, fmt.Errorf("staging: directory name is empty")
	}
	if err := os.MkdirAll(projectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure projects directory: %w", err)
	}

	area := &Area{
		Dir:      filepath.Join(projectsDir, dirName+Suffix),
		FinalDir: filepath.Join(projectsDir, dirName),
	}

	if _, err := os.Stat(area.FinalDir); err == nil {
		return nil, fmt.Errorf("staging: destination %s already exists", area.FinalDir)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat destination: %w", err)
	}

	if err := os.Mkdir(area.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	guard.Track(area.Dir)

	same, err := fileutil.SameVolume(area.Dir, projectsDir)
	if err != nil {
		return nil, fmt.Errorf("staging volume check: %w", err)
	}
	if !same {
		return nil, fmt.Errorf("staging: %s and %s are on different volumes", area.Dir, projectsDir)
	}

	for _, dir := range layoutDirs {
		if err := os.MkdirAll(filepath.Join(area.Dir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create staging layout %s: %w", dir, err)
		}
	}
	return area, nil
}

// CopyFile streams srcPath into the staging tree at relPath (a
// final-root-relative path), returning the byte count and hex SHA-256
// of the copied data. relPath must stay inside the staging tree.
func (a *Area) CopyFile(srcPath, relPath string) (int64, string, error) {
	dst, err := fileutil.JoinWithin(a.Dir, relPath)
	if err != nil {
		return 0, "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, "", fmt.Errorf("ensure staging subdirectory: %w", err)
	}
	return fileutil.CopyFileHashed(srcPath, dst)
}

// Promote renames the staging tree into its final location. The rename
// either fully succeeds or leaves the staging tree intact; there is no
// intermediate state.
func (a *Area) Promote() error {
	if err := os.Rename(a.Dir, a.FinalDir); err != nil {
		return fmt.Errorf("promote staging directory: %w", err)
	}
	return nil
}

// Remove deletes the staging tree and everything in it.
func (a *Area) Remove() error {
	return os.RemoveAll(a.Dir)
}
