package sdkinstaller

import (
	"context"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/flanksource/sdk-installer/pkg/config"
	"github.com/flanksource/sdk-installer/pkg/installer"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/types"
)

// Re-export commonly used types for public API
type (
	InstallRequest = types.InstallRequest
	InstallResult  = types.InstallResult
	Config         = types.Config
	Environment    = types.Environment
	ErrorKind      = pipeline.ErrorKind
)

// Re-export installer options
type InstallOption = installer.InstallOption

var (
	WithTmpDir          = installer.WithTmpDir
	WithDebug           = installer.WithDebug
	WithStrict          = installer.WithStrict
	WithTimeout         = installer.WithTimeout
	WithPolicy          = installer.WithPolicy
	WithHTTPClient      = installer.WithHTTPClient
	WithScriptRunner    = installer.WithScriptRunner
	WithNativeInstaller = installer.WithNativeInstaller
)

// ExitCode returns the process exit code for an error returned by Install
var ExitCode = pipeline.ExitCodeOf

// Install installs the SDK described by the global configuration and
// returns the per-stage result.
//
// Example:
//
//	result, err := sdkinstaller.Install(sdkinstaller.InstallRequest{
//	    Version: "v1.2.3",
//	    User:    "alice",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Pretty())
func Install(req InstallRequest, opts ...InstallOption) (*InstallResult, error) {
	cfg := config.GetGlobalConfig()
	env := config.DetectEnvironment(cfg.Settings.TmpDir)

	inst, err := installer.New(cfg, env, opts...)
	if err != nil {
		return nil, err
	}

	var result *InstallResult
	var installErr error

	task.StartTask(cfg.Package.Name, func(ctx flanksourceContext.Context, t *task.Task) (interface{}, error) {
		result, installErr = inst.Install(ctx, req, t)
		return result, installErr
	})

	clicky.WaitForGlobalCompletion()

	return result, installErr
}

// InstallWithConfig runs the pipeline for an explicit configuration and
// environment without any task UI.
func InstallWithConfig(ctx context.Context, cfg *Config, env Environment, req InstallRequest, opts ...InstallOption) (*InstallResult, error) {
	inst, err := installer.New(cfg, env, opts...)
	if err != nil {
		return nil, err
	}
	return inst.Install(ctx, req, nil)
}
