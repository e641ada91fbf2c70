package installer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/utils"
)

// replaceDirectory makes dest hold exactly the contents of src. An existing
// dest is moved aside first and put back if src cannot be moved in, so a
// failed replacement leaves the previous install intact.
func replaceDirectory(src, dest string, t *task.Task) error {
	backup := ""
	if _, err := os.Lstat(dest); err == nil {
		backup = fmt.Sprintf("%s.old-%d", dest, time.Now().UnixNano())
		if err := os.Rename(dest, backup); err != nil {
			return fmt.Errorf("failed to move existing %s aside: %w", utils.LogPath(dest), err)
		}
		if t != nil {
			t.V(3).Infof("Moved previous install to %s", utils.LogPath(backup))
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to inspect %s: %w", utils.LogPath(dest), err)
	}

	if err := moveDirectory(src, dest); err != nil {
		_ = os.RemoveAll(dest)
		if backup != "" {
			if rerr := os.Rename(backup, dest); rerr != nil {
				return fmt.Errorf("failed to install into %s: %w (previous install left at %s: %v)", dest, err, backup, rerr)
			}
		}
		return fmt.Errorf("failed to install into %s: %w", dest, err)
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil && t != nil {
			t.Warnf("Failed to remove previous install %s: %v", utils.LogPath(backup), err)
		}
	}
	return nil
}

// moveDirectory renames src to dest, copying when a rename is not possible
// (e.g. across volumes).
func moveDirectory(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyDirectory(src, dest); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyDirectory(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

// copyFile copies a file from src to dst
func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
