package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flanksource/clicky/task"
)

// LogPath returns path relative to the working directory when that is
// shorter, the base name when it cannot be made relative.
func LogPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Base(abs)
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil || len(rel) > len(abs) {
		return filepath.Base(abs)
	}
	return rel
}

// FormatBytes renders a byte count with a binary unit, e.g. 1.5 MB
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ShortenURL drops the scheme and, for long release URLs, everything
// between the host and the file name.
func ShortenURL(url string) string {
	url = strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	if len(url) <= 60 {
		return url
	}
	host, rest, ok := strings.Cut(url, "/")
	if !ok || !strings.Contains(rest, "/") {
		return url
	}
	return host + "/.../" + rest[strings.LastIndex(rest, "/")+1:]
}

// LogOperation runs fn under a task description and reports how it ended
func LogOperation(t *task.Task, operation, target string, fn func() error) error {
	if t == nil {
		return fn()
	}

	t.SetDescription(fmt.Sprintf("%s %s...", operation, target))
	start := time.Now()
	if err := fn(); err != nil {
		t.Errorf("❌ %s failed: %v", operation, err)
		return err
	}

	if d := time.Since(start); d > 500*time.Millisecond {
		t.Infof("✅ %s completed (%v)", operation, d.Round(10*time.Millisecond))
	} else {
		t.Infof("✅ %s completed", operation)
	}
	return nil
}

// LogPathFound records where a file the pipeline looked for was found
func LogPathFound(t *task.Task, path, what string) {
	if t == nil {
		return
	}
	size := ""
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		size = ", " + FormatBytes(info.Size())
	}
	t.V(4).Infof("Found %s at %s%s", what, LogPath(path), size)
}

func LogDownloadStart(t *task.Task, url, dest string) {
	if t == nil {
		return
	}
	t.Infof("Downloading from %s", ShortenURL(url))
	t.SetDescription(fmt.Sprintf("Downloading %s", filepath.Base(dest)))
}

func LogExtraction(t *task.Task, archivePath, extractDir string, fileCount int) {
	if t == nil {
		return
	}
	t.Infof("Extracted %s (%d files) to %s", filepath.Base(archivePath), fileCount, LogPath(extractDir))
}

// LogProcessExit records the exit code and wall time of an external process
func LogProcessExit(t *task.Task, name string, exitCode int, duration time.Duration) {
	if t == nil {
		return
	}
	if exitCode == 0 {
		t.Infof("✅ %s exited successfully (%v)", name, duration.Round(time.Second))
	} else {
		t.Infof("%s exited with code %d (%v)", name, exitCode, duration.Round(time.Second))
	}
}
