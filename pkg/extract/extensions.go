package extract

import (
	"path/filepath"
	"strings"
)

// GetExtension returns the archive extension of a path or URL, keeping compound
// extensions such as .tar.gz intact
func GetExtension(url string) string {
	// Remove query parameters from URLs
	if idx := strings.Index(url, "?"); idx != -1 {
		url = url[:idx]
	}

	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"):
		return ".tar.gz"
	case strings.HasSuffix(lower, ".tgz"):
		return ".tgz"
	case strings.HasSuffix(lower, ".tar.xz"):
		return ".tar.xz"
	case strings.HasSuffix(lower, ".txz"):
		return ".txz"
	case strings.HasSuffix(lower, ".tar"):
		return ".tar"
	case strings.HasSuffix(lower, ".zip"):
		return ".zip"
	case strings.HasSuffix(lower, ".msi"):
		return ".msi"
	default:
		return strings.ToLower(filepath.Ext(url))
	}
}

// IsArchive returns true if Unarchive can handle the path
func IsArchive(path string) bool {
	switch GetExtension(path) {
	case ".zip", ".tar", ".tar.gz", ".tgz", ".tar.xz", ".txz":
		return true
	default:
		return false
	}
}
