package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// UnarchiveResult lists what was written
type UnarchiveResult struct {
	Files []string
}

// Unarchive extracts archivePath into destDir. Entries that would land outside
// destDir are rejected.
func Unarchive(archivePath, destDir string) (*UnarchiveResult, error) {
	ext := GetExtension(archivePath)
	switch ext {
	case ".zip":
		return unzip(archivePath, destDir)
	case ".tar", ".tar.gz", ".tgz", ".tar.xz", ".txz":
		f, err := os.Open(archivePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		var r io.Reader = f
		switch ext {
		case ".tar.gz", ".tgz":
			gz, err := gzip.NewReader(f)
			if err != nil {
				return nil, fmt.Errorf("invalid gzip stream: %w", err)
			}
			defer gz.Close()
			r = gz
		case ".tar.xz", ".txz":
			xr, err := xz.NewReader(f)
			if err != nil {
				return nil, fmt.Errorf("invalid xz stream: %w", err)
			}
			r = xr
		}
		return untar(r, destDir)
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

func unzip(archivePath, destDir string) (*UnarchiveResult, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	defer reader.Close()

	result := &UnarchiveResult{}
	for _, file := range reader.File {
		target, err := safePath(destDir, file.Name)
		if err != nil {
			return result, err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return result, err
			}
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return result, fmt.Errorf("opening %s: %w", file.Name, err)
		}
		err = writeFile(target, rc, file.Mode().Perm())
		rc.Close()
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, target)
	}
	return result, nil
}

func untar(r io.Reader, destDir string) (*UnarchiveResult, error) {
	tr := tar.NewReader(r)
	result := &UnarchiveResult{}

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("reading tar: %w", err)
		}

		target, err := safePath(destDir, header.Name)
		if err != nil {
			return result, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return result, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return result, err
			}
			result.Files = append(result.Files, target)
		case tar.TypeSymlink:
			linkTarget := header.Linkname
			if !filepath.IsAbs(linkTarget) {
				linkTarget = filepath.Join(filepath.Dir(target), linkTarget)
			}
			if _, err := safePath(destDir, mustRel(destDir, linkTarget)); err != nil {
				return result, fmt.Errorf("symlink %s: %w", header.Name, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return result, err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return result, err
			}
			result.Files = append(result.Files, target)
		}
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	_, copyErr := io.Copy(out, r)
	if closeErr := out.Close(); closeErr != nil && copyErr == nil {
		return fmt.Errorf("closing %s: %w", target, closeErr)
	}
	if copyErr != nil {
		return fmt.Errorf("writing %s: %w", target, copyErr)
	}
	return nil
}

// safePath joins name onto baseDir and rejects results outside baseDir
func safePath(baseDir, name string) (string, error) {
	dest := filepath.Join(baseDir, name)

	cleanBase := filepath.Clean(baseDir) + string(os.PathSeparator)
	cleanDest := filepath.Clean(dest)

	if cleanDest+string(os.PathSeparator) != cleanBase && !strings.HasPrefix(cleanDest, cleanBase) {
		return "", fmt.Errorf("path traversal attempt: %q escapes %q", name, baseDir)
	}

	return cleanDest, nil
}

func mustRel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		// unrelated roots never resolve inside base
		return filepath.Join("..", target)
	}
	return rel
}
