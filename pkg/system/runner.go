package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/utils"
)

// Runner starts an OS process and waits for it, returning its exit code.
// A non-zero exit is not an error; err is reserved for failing to run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (int, error)
}

// ExecRunner runs processes with os/exec and logs their output to the task
type ExecRunner struct {
	Task *task.Task
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	if r.Task != nil {
		r.Task.V(3).Infof("Running %s %s", name, strings.Join(args, " "))
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()

	if r.Task != nil && output.Len() > 0 {
		r.Task.V(4).Infof("%s output:\n%s", name, strings.TrimSpace(output.String()))
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		utils.LogProcessExit(r.Task, name, 0, time.Since(start))
		return 0, nil
	case errors.As(err, &exitErr):
		utils.LogProcessExit(r.Task, name, exitErr.ExitCode(), time.Since(start))
		return exitErr.ExitCode(), nil
	default:
		return -1, fmt.Errorf("failed to run %s: %w", name, err)
	}
}

// Elevated wraps a command so that it runs with administrator rights through
// a UAC prompt. The returned command waits for the elevated process and exits
// with its exit code.
func Elevated(name string, args ...string) (string, []string) {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, quoteArg(a))
	}

	script := fmt.Sprintf("$p = Start-Process -FilePath %s -ArgumentList %s -Verb RunAs -Wait -PassThru; exit $p.ExitCode",
		psQuote(name), psQuote(strings.Join(quoted, " ")))
	return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
}

// quoteArg double-quotes a command-line argument containing spaces. For
// KEY=value arguments only the value is quoted, which is what msiexec expects.
func quoteArg(a string) string {
	if !strings.ContainsAny(a, " \t") || strings.HasPrefix(a, `"`) {
		return a
	}
	if k, v, ok := strings.Cut(a, "="); ok && !strings.ContainsAny(k, " \t") && !strings.HasPrefix(k, "/") {
		return k + `="` + v + `"`
	}
	return `"` + a + `"`
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
