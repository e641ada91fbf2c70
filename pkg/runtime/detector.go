package runtime

import (
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
)

// runtimeDetector finds a script runtime on PATH and extracts its version
type runtimeDetector struct {
	language       string
	binaryVariants []string
	versionCmd     []string
	versionRegex   *regexp.Regexp
	task           *task.Task
}

var (
	detectedMu sync.Mutex
	detected   = map[string]*runtimeInfo{}
)

// detectRuntime finds the runtime binary and extracts its version. Results are
// kept for the lifetime of the process.
func (d *runtimeDetector) detectRuntime() (*runtimeInfo, error) {
	detectedMu.Lock()
	defer detectedMu.Unlock()

	if info, ok := detected[d.language]; ok {
		return info, nil
	}

	binaryPath, err := findBinaryInPath(d.binaryVariants...)
	if err != nil {
		return nil, fmt.Errorf("%s runtime not found in PATH (searched: %s)", d.language, strings.Join(d.binaryVariants, ", "))
	}

	if d.task != nil {
		d.task.V(4).Infof("Found %s binary at: %s", d.language, binaryPath)
	}

	info := &runtimeInfo{Path: binaryPath}

	// a missing version is not fatal, the binary is still usable
	if v, err := d.getVersion(binaryPath); err == nil {
		info.Version = v
	} else if d.task != nil {
		d.task.V(4).Infof("Could not determine %s version: %v", d.language, err)
	}

	detected[d.language] = info
	return info, nil
}

// getVersion executes the version command and extracts the version string
func (d *runtimeDetector) getVersion(binaryPath string) (string, error) {
	process := clicky.Exec(binaryPath, d.versionCmd...)

	if d.task != nil {
		process = process.WithTask(d.task)
	}

	result := process.Run()
	if result.Err != nil {
		return "", result.Err
	}

	versionStr := d.parseVersion(result.Out())
	if versionStr == "" {
		return "", fmt.Errorf("failed to parse version from output: %s", result.Out())
	}

	return versionStr, nil
}

// parseVersion extracts version string using regex
func (d *runtimeDetector) parseVersion(output string) string {
	if d.versionRegex == nil {
		return ""
	}

	matches := d.versionRegex.FindStringSubmatch(output)
	if len(matches) < 2 {
		return ""
	}

	return strings.TrimSpace(matches[1])
}

// findBinaryInPath returns the first variant found on PATH. On Windows the
// .exe suffix is tried as well.
func findBinaryInPath(variants ...string) (string, error) {
	for _, variant := range variants {
		candidates := []string{variant}
		if runtime.GOOS == "windows" && !strings.HasSuffix(variant, ".exe") {
			candidates = []string{variant + ".exe", variant}
		}
		for _, c := range candidates {
			if path, err := exec.LookPath(c); err == nil {
				return path, nil
			}
		}
	}
	return "", exec.ErrNotFound
}

func resetDetected() {
	detectedMu.Lock()
	defer detectedMu.Unlock()
	detected = map[string]*runtimeInfo{}
}
