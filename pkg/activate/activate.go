package activate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/runtime"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/flanksource/sdk-installer/pkg/utils"
)

// ScriptRunner executes an activation script with no arguments
type ScriptRunner interface {
	RunScript(ctx context.Context, script string, t *task.Task) error
}

// PowershellRunner runs .ps1 scripts with the detected PowerShell
type PowershellRunner struct{}

func (PowershellRunner) RunScript(ctx context.Context, script string, t *task.Task) error {
	_, err := runtime.RunPowershellFile(script, runtime.RunOptions{}, t)
	return err
}

// Activator runs the environment-setup script shipped with the package
type Activator struct {
	// Script is the file name under tools/, e.g. Env.ps1
	Script string
	Runner ScriptRunner
}

// ScriptPath returns where the activation script is expected inside dest
func (a *Activator) ScriptPath(dest types.InstallDestination) string {
	return filepath.Join(dest.Path(), "tools", a.Script)
}

// Activate locates tools/<script> in the installed package and runs it. A
// missing script is an ActivationScriptMissingError; a failing script is an
// InstallerProcessError.
func (a *Activator) Activate(ctx context.Context, dest types.InstallDestination, t *task.Task) error {
	script := a.ScriptPath(dest)

	info, err := os.Stat(script)
	if err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("is a directory")
		}
		return pipeline.NewError(pipeline.KindActivationScriptMissing, types.StageActivate, script, err)
	}
	utils.LogPathFound(t, script, "activation script")

	runner := a.Runner
	if runner == nil {
		runner = PowershellRunner{}
	}

	return utils.LogOperation(t, "Running", filepath.Base(script), func() error {
		if err := runner.RunScript(ctx, script, t); err != nil {
			return pipeline.NewError(pipeline.KindInstallerProcess, types.StageActivate, script, err)
		}
		return nil
	})
}
