package system

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/flanksource/clicky/task"
)

// MsiSuccessCodes are the msiexec exit codes reporting a completed install:
// success, success with reboot initiated, and success with reboot required
var MsiSuccessCodes = []int{0, 1641, 3010}

// MsiOptions describes a single msiexec invocation
type MsiOptions struct {
	Package string
	// TargetProperty receives TargetDir, e.g. INSTALL_ROOT
	TargetProperty string
	TargetDir      string
	LogFile        string
	// Elevate runs msiexec through a UAC prompt
	Elevate bool
}

// MsiArgs returns the msiexec arguments: basic UI, verbose log
func MsiArgs(opts MsiOptions) []string {
	args := []string{"/i", opts.Package}
	if opts.TargetProperty != "" && opts.TargetDir != "" {
		args = append(args, fmt.Sprintf("%s=%s", opts.TargetProperty, opts.TargetDir))
	}
	args = append(args, "/qb")
	if opts.LogFile != "" {
		args = append(args, "/l*v", opts.LogFile)
	}
	return args
}

// MsiCommand returns the command line that installs the package
func MsiCommand(opts MsiOptions) (string, []string) {
	if opts.Elevate {
		return Elevated("msiexec.exe", MsiArgs(opts)...)
	}
	return "msiexec.exe", MsiArgs(opts)
}

// MsiInstaller hands .msi packages to the Windows installer service
type MsiInstaller struct {
	Runner Runner
	// GOOS defaults to the running OS
	GOOS string
}

// Install runs msiexec and waits for it. A non-success exit code is returned
// with a nil error so the caller can apply its own policy.
func (m *MsiInstaller) Install(ctx context.Context, opts MsiOptions, t *task.Task) (int, error) {
	goos := m.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	if goos != "windows" {
		return -1, fmt.Errorf(".msi files can only be installed on Windows")
	}

	runner := m.Runner
	if runner == nil {
		runner = ExecRunner{Task: t}
	}

	if t != nil {
		if opts.Elevate {
			t.Infof("🔐 Installing %s with elevation (%s is not writable)", opts.Package, opts.TargetDir)
		} else {
			t.Infof("Installing %s into %s", opts.Package, opts.TargetDir)
		}
	}

	name, args := MsiCommand(opts)
	return runner.Run(ctx, name, args...)
}

// IsMsiSuccess reports whether code is an msiexec success code
func IsMsiSuccess(code int) bool {
	return slices.Contains(MsiSuccessCodes, code)
}
