package runtime

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
)

var powershellVersionRegex = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

func powershellDetector(t *task.Task) *runtimeDetector {
	// Windows PowerShell ships with every supported Windows; pwsh is preferred when present
	variants := []string{"pwsh"}
	if runtime.GOOS == "windows" {
		variants = []string{"pwsh", "powershell"}
	}
	return &runtimeDetector{
		language:       "powershell",
		binaryVariants: variants,
		versionCmd:     []string{"-NoProfile", "-NonInteractive", "-Command", "$PSVersionTable.PSVersion.ToString()"},
		versionRegex:   powershellVersionRegex,
		task:           t,
	}
}

// FindPowershell returns the path of the PowerShell binary that scripts run with
func FindPowershell(t *task.Task) (string, error) {
	info, err := powershellDetector(t).detectRuntime()
	if err != nil {
		return "", err
	}
	return info.Path, nil
}

// RunPowershellFile executes a .ps1 file with the given arguments
func RunPowershellFile(script string, opts RunOptions, t *task.Task) (*RunResult, error) {
	args := append([]string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-File", script}, opts.Args...)
	return runPowershell(args, opts, t)
}

// RunPowershellCommand executes an inline PowerShell command
func RunPowershellCommand(command string, opts RunOptions, t *task.Task) (*RunResult, error) {
	return runPowershell([]string{"-NoProfile", "-NonInteractive", "-Command", command}, opts, t)
}

func runPowershell(args []string, opts RunOptions, t *task.Task) (*RunResult, error) {
	info, err := powershellDetector(t).detectRuntime()
	if err != nil {
		return nil, fmt.Errorf("failed to find PowerShell runtime: %w", err)
	}

	process := clicky.Exec(info.Path, args...)

	if opts.Timeout > 0 {
		process = process.WithTimeout(opts.Timeout)
	}

	if opts.WorkingDir != "" {
		process = process.WithCwd(opts.WorkingDir)
	}

	if opts.Env != nil {
		process = process.WithEnv(opts.Env)
	}

	if t != nil {
		process = process.WithTask(t)
	}

	result := process.Run()

	runResult := &RunResult{
		Process:        result,
		RuntimePath:    info.Path,
		RuntimeVersion: info.Version,
	}

	return runResult, result.Err
}

// Quote renders s as a single-quoted PowerShell string literal
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
