package download

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flanksource/clicky/api"
	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/checksum"
	sdkhttp "github.com/flanksource/sdk-installer/pkg/http"
	"github.com/flanksource/sdk-installer/pkg/utils"
)

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download failed: HTTP %s for %s", e.Status, e.URL)
}

// IsNotFound reports whether err is a 404 from the artifact host
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// DownloadOption is a functional option for configuring downloads
type DownloadOption func(*downloadConfig)

type downloadConfig struct {
	expectedChecksum string
	skipProgress     bool
	timeout          time.Duration
	client           *http.Client
}

// WithChecksum sets the expected checksum ("sha256:<hex>" or bare hex) for verification
func WithChecksum(checksum string) DownloadOption {
	return func(c *downloadConfig) {
		c.expectedChecksum = strings.TrimSpace(checksum)
	}
}

// WithoutProgress disables progress tracking even if task is provided
func WithoutProgress() DownloadOption {
	return func(c *downloadConfig) {
		c.skipProgress = true
	}
}

// WithTimeout bounds the whole transfer
func WithTimeout(timeout time.Duration) DownloadOption {
	return func(c *downloadConfig) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the default client
func WithHTTPClient(client *http.Client) DownloadOption {
	return func(c *downloadConfig) {
		c.client = client
	}
}

// ProgressReader wraps an io.Reader and reports progress
type ProgressReader struct {
	io.Reader
	total      int64
	current    int64
	task       *task.Task
	lastUpdate time.Time
	startTime  time.Time
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	pr.current += int64(n)

	// Update progress at most once per 100ms to avoid excessive updates
	now := time.Now()
	if now.Sub(pr.lastUpdate) >= 100*time.Millisecond {
		if pr.total > 0 {
			pr.task.SetProgress(int(pr.current), int(pr.total))

			elapsed := now.Sub(pr.startTime).Seconds()
			if elapsed > 0 {
				speed := float64(pr.current) / elapsed
				remaining := pr.total - pr.current
				eta := time.Duration(float64(remaining) / speed * float64(time.Second))

				pr.task.SetDescription(fmt.Sprintf("%s/%s (%.1f MB/s, ETA: %s)",
					utils.FormatBytes(pr.current),
					utils.FormatBytes(pr.total),
					speed/1024/1024,
					formatDuration(eta)))
			}
		} else {
			pr.task.SetDescription(fmt.Sprintf("Downloaded %s", utils.FormatBytes(pr.current)))
		}
		pr.lastUpdate = now
	}

	return n, err
}

// Download fetches url into dest. The body is streamed into dest+".tmp" and
// renamed into place only after the status and checksum checks pass, so dest
// never holds a partial file.
func Download(ctx context.Context, url, dest string, t *task.Task, opts ...DownloadOption) (int64, error) {
	config := &downloadConfig{timeout: 30 * time.Minute}
	for _, opt := range opts {
		opt(config)
	}

	var expectedValue string
	var hashType checksum.HashType
	if config.expectedChecksum != "" {
		var err error
		expectedValue, hashType, err = checksum.ParseChecksum(config.expectedChecksum)
		if err != nil {
			return 0, fmt.Errorf("invalid checksum format: %w", err)
		}
	}

	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory %s: %w", destDir, err)
	}

	tempFile := dest + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file %s: %w", tempFile, err)
	}
	defer func() {
		out.Close()
		// Clean up temp file if it still exists (not renamed)
		if _, err := os.Stat(tempFile); err == nil {
			os.Remove(tempFile)
		}
	}()

	utils.LogDownloadStart(t, url, dest)

	client := config.client
	if client == nil {
		client = sdkhttp.GetHttpClient(sdkhttp.WithTimeout(config.timeout), sdkhttp.WithRedirectLogging(t))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid download URL %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if t != nil && resp.ContentLength > 0 {
		t.SetDescription(fmt.Sprintf("Downloading (%s)", utils.FormatBytes(resp.ContentLength)))
	}

	var reader io.Reader = resp.Body
	var writer io.Writer = out
	var hasher hash.Hash

	if expectedValue != "" {
		hasher, err = checksum.CreateHasher(hashType)
		if err != nil {
			return 0, fmt.Errorf("failed to create hasher: %w", err)
		}
		writer = io.MultiWriter(writer, hasher)
	}

	if t != nil && !config.skipProgress {
		reader = &ProgressReader{
			Reader:     resp.Body,
			total:      resp.ContentLength,
			task:       t,
			startTime:  time.Now(),
			lastUpdate: time.Now(),
		}
	}

	written, err := io.Copy(writer, reader)
	if err != nil {
		return written, fmt.Errorf("failed to download %s: %w", url, err)
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		return written, fmt.Errorf("incomplete download of %s: got %d of %d bytes", url, written, resp.ContentLength)
	}

	// Close the temp file before verification/rename
	if err := out.Close(); err != nil {
		return written, fmt.Errorf("failed to write %s: %w", tempFile, err)
	}

	if hasher != nil {
		actualChecksum := fmt.Sprintf("%x", hasher.Sum(nil))
		if !checksum.ChecksumsMatch(expectedValue, actualChecksum) {
			return written, fmt.Errorf("checksum mismatch: expected %s, got %s", expectedValue, actualChecksum)
		}
		if t != nil {
			display := actualChecksum
			if len(display) > 16 {
				display = display[:16] + "..."
			}
			t.Infof("✓ Checksum verified: %s:%s", hashType, display)
		}
	} else if t != nil {
		msg := api.Text{Content: "✗ No checksum available - downloaded without validation", Style: "text-yellow-500"}
		t.V(2).Infof(msg.ANSI())
	}

	if err := os.Rename(tempFile, dest); err != nil {
		return written, fmt.Errorf("failed to move temp file to destination: %w", err)
	}

	if t != nil {
		t.SetDescription(fmt.Sprintf("Downloaded %s (%s)",
			filepath.Base(dest), utils.FormatBytes(written)))
	}

	return written, nil
}

// formatDuration formats duration into human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
