package installer

import (
	"context"
	"net/http"
	"time"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/access"
	"github.com/flanksource/sdk-installer/pkg/activate"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/system"
	"github.com/flanksource/sdk-installer/pkg/version"
)

// NativeInstaller hands a native package to the OS installer and returns its exit code.
type NativeInstaller interface {
	Install(ctx context.Context, opts system.MsiOptions, t *task.Task) (int, error)
}

// InstallOptions configures the installation behavior
type InstallOptions struct {
	// TmpDir receives downloads and installer logs, defaults to the environment temp dir
	TmpDir string
	// Debug keeps downloaded and extracted files
	Debug  bool
	Strict bool
	// Timeout bounds each download
	Timeout time.Duration
	Policy  pipeline.Policy

	HTTPClient *http.Client
	Resolver   *version.Resolver
	Checker    *access.Checker
	Native     NativeInstaller
	Scripts    activate.ScriptRunner
}

// InstallOption is a functional option for configuring installation
type InstallOption func(*InstallOptions)

// WithTmpDir sets the directory receiving downloads
func WithTmpDir(dir string) InstallOption {
	return func(opts *InstallOptions) {
		opts.TmpDir = dir
	}
}

// WithDebug enables debug mode, keeping downloaded and extracted files
func WithDebug(debug bool) InstallOption {
	return func(opts *InstallOptions) {
		opts.Debug = debug
	}
}

// WithStrict makes every error kind abort the run
func WithStrict(strict bool) InstallOption {
	return func(opts *InstallOptions) {
		opts.Strict = strict
	}
}

// WithTimeout sets the download timeout
func WithTimeout(timeout time.Duration) InstallOption {
	return func(opts *InstallOptions) {
		opts.Timeout = timeout
	}
}

// WithPolicy overrides the error policy derived from the configuration
func WithPolicy(policy pipeline.Policy) InstallOption {
	return func(opts *InstallOptions) {
		opts.Policy = policy
	}
}

// WithHTTPClient sets the client used for release queries and downloads
func WithHTTPClient(client *http.Client) InstallOption {
	return func(opts *InstallOptions) {
		opts.HTTPClient = client
	}
}

// WithResolver replaces the GitHub release resolver
func WithResolver(r *version.Resolver) InstallOption {
	return func(opts *InstallOptions) {
		opts.Resolver = r
	}
}

// WithChecker replaces the platform access checker
func WithChecker(c *access.Checker) InstallOption {
	return func(opts *InstallOptions) {
		opts.Checker = c
	}
}

// WithNativeInstaller replaces the msiexec invocation
func WithNativeInstaller(n NativeInstaller) InstallOption {
	return func(opts *InstallOptions) {
		opts.Native = n
	}
}

// WithScriptRunner replaces the activation script runner
func WithScriptRunner(r activate.ScriptRunner) InstallOption {
	return func(opts *InstallOptions) {
		opts.Scripts = r
	}
}

// DefaultOptions returns sensible default options
func DefaultOptions() InstallOptions {
	return InstallOptions{
		Timeout: 30 * time.Minute,
	}
}
