package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/utils"
)

// Result describes a verified extraction
type Result struct {
	// Dir is the directory the archive was extracted into
	Dir string
	// PackageRoot is the directory holding the package contents: the single
	// top-level folder of the archive, or Dir when the archive is flat
	PackageRoot string
	Files       []string
}

// Extract unpacks archivePath into a fresh extractDir and verifies the result.
// extractDir is wiped first so leftovers from a previous failed run never mix
// with the new contents.
func Extract(archivePath, extractDir string, t *task.Task) (*Result, error) {
	if t != nil {
		t.SetDescription(fmt.Sprintf("Extracting %s", filepath.Base(archivePath)))
	}

	if _, err := os.Stat(extractDir); err == nil {
		if err := os.RemoveAll(extractDir); err != nil {
			return nil, fmt.Errorf("failed to clean up existing extract directory: %w", err)
		}
	}

	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create extract directory: %w", err)
	}

	unarchived, err := Unarchive(archivePath, extractDir)
	if err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}
	utils.LogExtraction(t, archivePath, extractDir, len(unarchived.Files))

	if err := verifyExtraction(extractDir, t); err != nil {
		return nil, fmt.Errorf("extraction verification failed: %w", err)
	}

	root, err := FindPackageRoot(extractDir)
	if err != nil {
		return nil, err
	}
	if t != nil && root != extractDir {
		t.V(3).Infof("Package root: %s", utils.LogPath(root))
	}

	return &Result{Dir: extractDir, PackageRoot: root, Files: unarchived.Files}, nil
}

// FindPackageRoot returns the only top-level directory of extractDir, or
// extractDir itself when it holds files or several entries
func FindPackageRoot(extractDir string) (string, error) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction destination: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(extractDir, entries[0].Name()), nil
	}
	return extractDir, nil
}

// verifyExtraction verifies that extraction destination exists and holds at least one file
func verifyExtraction(extractDir string, t *task.Task) error {
	info, err := os.Stat(extractDir)
	if err != nil {
		return fmt.Errorf("extraction destination does not exist: %s", extractDir)
	}

	if !info.IsDir() {
		return fmt.Errorf("extraction destination is not a directory: %s", extractDir)
	}

	var fileCount, dirCount int
	var totalSize int64
	err = filepath.WalkDir(extractDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == extractDir {
			return nil
		}
		if d.IsDir() {
			dirCount++
			return nil
		}
		fileCount++
		if info, err := d.Info(); err == nil {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read extraction destination: %w", err)
	}

	if fileCount == 0 {
		return fmt.Errorf("extraction destination is empty: %s", extractDir)
	}

	if t != nil {
		t.V(4).Infof("Verified %d files in %d directories (%s)", fileCount, dirCount, utils.FormatBytes(totalSize))
	}
	return nil
}
