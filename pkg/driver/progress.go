package driver

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/flanksource/sdk-installer/pkg/utils"
	"github.com/shirou/gopsutil/v3/process"
)

// ProgressObserver receives the estimated completion of the driver installer, 0-100
type ProgressObserver interface {
	Progress(percent int)
}

// ProgressFunc adapts a function to ProgressObserver
type ProgressFunc func(percent int)

func (f ProgressFunc) Progress(percent int) { f(percent) }

// TaskProgress reports into a clicky task progress bar
type TaskProgress struct {
	Task *task.Task
}

func (p TaskProgress) Progress(percent int) {
	if p.Task != nil {
		p.Task.SetProgress(percent, 100)
	}
}

// EstimateProgress maps the processor time consumed so far onto 0-99. The
// installer gives no progress of its own, so this is only an approximation
// against a fixed ceiling; 100 is reserved for process exit.
func EstimateProgress(cpu, ceiling time.Duration) int {
	if ceiling <= 0 || cpu <= 0 {
		return 0
	}
	percent := int(float64(cpu) / float64(ceiling) * 100)
	return min(99, percent)
}

// cpuTime samples the user and system time of pid
func cpuTime(ctx context.Context, pid int) (time.Duration, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return 0, err
	}
	times, err := p.TimesWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration((times.User + times.System) * float64(time.Second)), nil
}

// RunDriverInstaller starts the installer found in localPath for deviceID and
// waits for it, reporting estimated progress every poll interval. The exit
// code is returned with a nil error; an error means the process could not run.
func (d *Installer) RunDriverInstaller(ctx context.Context, localPath, deviceID string, observer ProgressObserver, t *task.Task) (int, error) {
	exe, err := d.FindInstaller(localPath)
	if err != nil {
		return -1, pipeline.NewError(pipeline.KindInstallerProcess, types.StageDriver, localPath, err)
	}

	var args []string
	if deviceID != "" {
		args = append(args, deviceID)
	}

	ceiling := d.Config.Timeout
	if ceiling <= 0 {
		ceiling = DefaultTimeout
	}
	interval := d.Config.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if observer == nil {
		observer = ProgressFunc(func(int) {})
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = filepath.Dir(exe)
	if t != nil {
		t.Infof("Running %s %v", utils.LogPath(exe), args)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return -1, pipeline.NewError(pipeline.KindInstallerProcess, types.StageDriver, exe, err)
	}
	observer.Progress(0)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := 0
	for {
		select {
		case err := <-done:
			observer.Progress(100)
			code := -1
			if cmd.ProcessState != nil {
				code = cmd.ProcessState.ExitCode()
			}
			utils.LogProcessExit(t, "driver installer", code, time.Since(start))

			var exitErr *exec.ExitError
			if err != nil && !errors.As(err, &exitErr) {
				return code, pipeline.NewError(pipeline.KindInstallerProcess, types.StageDriver, exe,
					fmt.Errorf("failed waiting for driver installer: %w", err))
			}
			return code, nil
		case <-ticker.C:
			used, err := cpuTime(ctx, cmd.Process.Pid)
			if err != nil {
				if t != nil {
					t.V(4).Infof("Could not sample driver installer: %v", err)
				}
				continue
			}
			// never move backwards
			if percent := EstimateProgress(used, ceiling); percent > last {
				last = percent
				observer.Progress(percent)
			}
		}
	}
}
