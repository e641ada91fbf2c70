package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/commons/logger"
	"github.com/flanksource/sdk-installer/pkg/access"
	"github.com/flanksource/sdk-installer/pkg/activate"
	"github.com/flanksource/sdk-installer/pkg/config"
	"github.com/flanksource/sdk-installer/pkg/download"
	"github.com/flanksource/sdk-installer/pkg/extract"
	sdkhttp "github.com/flanksource/sdk-installer/pkg/http"
	"github.com/flanksource/sdk-installer/pkg/locator"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/system"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/flanksource/sdk-installer/pkg/utils"
	"github.com/flanksource/sdk-installer/pkg/version"
)

// Installer runs the installation pipeline: resolve, locate, probe access,
// download, install and activate.
type Installer struct {
	config    *types.Config
	env       types.Environment
	options   InstallOptions
	policy    pipeline.Policy
	resolver  *version.Resolver
	checker   *access.Checker
	native    NativeInstaller
	activator *activate.Activator
}

// New creates an installer for the package described by cfg
func New(cfg *types.Config, env types.Environment, opts ...InstallOption) (*Installer, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if options.TmpDir == "" {
		options.TmpDir = cfg.Settings.TmpDir
	}
	if options.TmpDir == "" {
		options.TmpDir = env.TempDir
	}
	if options.TmpDir == "" {
		options.TmpDir = os.TempDir()
	}
	if cfg.Settings.DownloadTimeout > 0 && options.Timeout == DefaultOptions().Timeout {
		options.Timeout = cfg.Settings.DownloadTimeout
	}

	i := &Installer{
		config:   cfg,
		env:      env,
		options:  options,
		policy:   options.Policy,
		resolver: options.Resolver,
		checker:  options.Checker,
		native:   options.Native,
		activator: &activate.Activator{
			Script: cfg.Package.ActivationScript,
			Runner: options.Scripts,
		},
	}

	if i.policy == nil || options.Strict {
		policy, err := config.Policy(cfg, options.Strict)
		if err != nil {
			return nil, err
		}
		i.policy = policy
	}

	if i.resolver == nil {
		resolverOpts := []version.ResolverOption{version.WithAPIURL(cfg.Settings.GitHubAPIURL)}
		if options.HTTPClient != nil {
			resolverOpts = append(resolverOpts, version.WithHTTPClient(options.HTTPClient))
		}
		resolver, err := version.NewResolver(cfg.Package.Name, cfg.Package.Repo, resolverOpts...)
		if err != nil {
			return nil, err
		}
		i.resolver = resolver
	}

	if i.checker == nil {
		i.checker = access.NewChecker(env.Platform, env.LocalDomains()...)
	}
	if i.native == nil {
		i.native = &system.MsiInstaller{}
	}

	return i, nil
}

// Options returns the effective options
func (i *Installer) Options() InstallOptions {
	return i.options
}

// Install runs the pipeline for req. The returned error is the error that
// aborted the run, if any; errors the policy allowed to continue are recorded
// in the result stages and reflected in its exit code.
func (i *Installer) Install(ctx context.Context, req types.InstallRequest, t *task.Task) (*types.InstallResult, error) {
	result := &types.InstallResult{Request: req}
	pc := pipeline.NewContext(t, i.policy, result)

	if err := i.resolve(ctx, pc, t); err != nil {
		return result, err
	}

	if err := pc.Run(types.StageLocate, func() error {
		result.Destination = locator.Destination(i.config.Package, i.env, req)
		target, err := locator.Locate(i.config.Package, i.env.Platform, result.Version, req)
		result.Target = target
		if err == nil && t != nil {
			t.V(2).Infof("Artifact: %s", target)
			t.V(2).Infof("Destination: %s", result.Destination.Path())
		}
		return err
	}); err != nil {
		return result, err
	}

	cleanup := NewCleanupManager(i.options.Debug, t)
	defer cleanup.Cleanup()

	var err error
	switch result.Target.Format {
	case types.FormatArchive:
		pc.Skip(types.StageAccess, "archive install into a user profile")
		err = i.installArchive(ctx, pc, cleanup, t)
	case types.FormatNativePackage:
		err = i.installNative(ctx, pc, cleanup, t)
	default:
		err = pc.Record(types.StageInstall, pipeline.Errorf(pipeline.KindUnsupportedFormat, types.StageInstall,
			result.Target.URL, "no installer for %s", result.Target.Format), 0)
	}
	if err != nil {
		return result, err
	}

	if err := pc.Run(types.StageActivate, func() error {
		if err := i.activator.Activate(ctx, result.Destination, t); err != nil {
			return err
		}
		result.Activated = true
		return nil
	}); err != nil {
		return result, err
	}

	if t != nil {
		if result.ExitCode == 0 {
			t.Infof("✅ Installed %s", result.Pretty())
			t.Success()
		} else {
			t.Warnf("%s completed with %d warning(s)", result.Pretty(), len(result.Warnings()))
		}
	}

	return result, nil
}

// resolve picks the version. An explicit URL with no explicit version needs
// no remote lookup, since the artifact is already known.
func (i *Installer) resolve(ctx context.Context, pc *pipeline.Context, t *task.Task) error {
	req := pc.Result.Request
	if strings.TrimSpace(req.ExplicitURL) != "" && req.WantsLatest() {
		pc.Skip(types.StageResolve, "explicit URL without a version")
		return nil
	}

	err := pc.Run(types.StageResolve, func() error {
		v, err := i.resolver.Resolve(ctx, req.Version, t)
		pc.Result.Version = v
		return err
	})
	if err == nil && t != nil && pc.Result.Version.Tag != "" {
		t.SetName(fmt.Sprintf("%s@%s", i.config.Package.Name, pc.Result.Version.Tag))
	}
	return err
}

func (i *Installer) installArchive(ctx context.Context, pc *pipeline.Context, cleanup *CleanupManager, t *task.Task) error {
	result := pc.Result
	dest := result.Destination

	archive, err := i.downloadStage(ctx, pc, cleanup, t)
	if err != nil {
		return err
	}
	if archive == "" {
		pc.Skip(types.StageExtract, "nothing was downloaded")
		pc.Skip(types.StageInstall, "nothing was downloaded")
		return nil
	}

	var extracted *extract.Result
	if err := pc.Run(types.StageExtract, func() error {
		if err := os.MkdirAll(dest.Root, 0755); err != nil {
			return pipeline.NewError(pipeline.KindExtraction, types.StageExtract, dest.Root, err)
		}
		// extracting next to the destination keeps the final move a rename
		dir, err := os.MkdirTemp(dest.Root, "."+dest.PackageDir+"-extract-")
		if err != nil {
			return pipeline.NewError(pipeline.KindExtraction, types.StageExtract, dest.Root, err)
		}
		cleanup.AddDirectory(dir)

		extracted, err = extract.Extract(archive, dir, t)
		if err != nil {
			return pipeline.NewError(pipeline.KindExtraction, types.StageExtract, archive, err)
		}
		return nil
	}); err != nil {
		return err
	}
	if extracted == nil {
		pc.Skip(types.StageInstall, "extraction failed")
		return nil
	}

	return pc.Run(types.StageInstall, func() error {
		if err := replaceDirectory(extracted.PackageRoot, dest.Path(), t); err != nil {
			return pipeline.NewError(pipeline.KindExtraction, types.StageInstall, dest.Path(), err)
		}
		if t != nil {
			t.Infof("Installed %d files to %s", len(extracted.Files), utils.LogPath(dest.Path()))
		}
		return nil
	})
}

func (i *Installer) installNative(ctx context.Context, pc *pipeline.Context, cleanup *CleanupManager, t *task.Task) error {
	result := pc.Result
	dest := result.Destination

	principal := i.env.CurrentUser
	if result.Request.PerUser() {
		principal = result.Request.User
	}

	if err := pc.Run(types.StageAccess, func() error {
		grant, err := i.checker.CanWrite(ctx, principal, dest.Root, t)
		result.Access = grant
		return err
	}); err != nil {
		return err
	}
	if result.Access.NeedsElevation() && t != nil {
		t.Infof("%s cannot write to %s, elevation will be requested", principal, utils.LogPath(dest.Root))
	}

	pkg, err := i.downloadStage(ctx, pc, cleanup, t)
	if err != nil {
		return err
	}
	if pkg == "" {
		pc.Skip(types.StageInstall, "nothing was downloaded")
		return nil
	}

	return pc.Run(types.StageInstall, func() error {
		logFile := filepath.Join(i.options.TmpDir, i.logFileName(result))
		opts := system.MsiOptions{
			Package:        pkg,
			TargetProperty: i.config.Package.MsiTargetProperty,
			TargetDir:      dest.Root,
			LogFile:        logFile,
			Elevate:        result.Access.NeedsElevation(),
		}

		code, err := i.native.Install(ctx, opts, t)

		if _, statErr := os.Stat(logFile); statErr == nil {
			result.LogFile = logFile
			if t != nil {
				t.Infof("Installer log: %s", logFile)
			}
		} else if t != nil {
			t.Warnf("Installer log %s was not written", logFile)
		}

		if err != nil {
			return pipeline.NewError(pipeline.KindInstallerProcess, types.StageInstall, pkg, err)
		}
		if !system.IsMsiSuccess(code) {
			return pipeline.Errorf(pipeline.KindInstallerProcess, types.StageInstall, pkg,
				"msiexec exited with code %d, see %s", code, logFile)
		}
		if code != 0 && t != nil {
			t.Warnf("msiexec exited with %d: a reboot is required to complete the installation", code)
		}
		return nil
	})
}

// downloadStage fetches the target into a private directory under TmpDir
// and returns the local path, or "" when the policy let a failure through.
func (i *Installer) downloadStage(ctx context.Context, pc *pipeline.Context, cleanup *CleanupManager, t *task.Task) (string, error) {
	result := pc.Result
	var local string

	err := pc.Run(types.StageDownload, func() error {
		if err := os.MkdirAll(i.options.TmpDir, 0755); err != nil {
			return pipeline.NewError(pipeline.KindDownload, types.StageDownload, i.options.TmpDir, err)
		}
		dir, err := os.MkdirTemp(i.options.TmpDir, "sdk-installer-")
		if err != nil {
			return pipeline.NewError(pipeline.KindDownload, types.StageDownload, i.options.TmpDir, err)
		}
		cleanup.AddDirectory(dir)

		name := result.Target.FileName
		if name == "" {
			name = fmt.Sprintf("%s.%s", i.config.Package.Name, result.Target.Format.Extension())
		}
		dest := filepath.Join(dir, name)

		opts := []download.DownloadOption{download.WithTimeout(i.options.Timeout)}
		if result.Request.Checksum != "" {
			opts = append(opts, download.WithChecksum(result.Request.Checksum))
		}
		switch {
		case i.options.HTTPClient != nil:
			opts = append(opts, download.WithHTTPClient(i.options.HTTPClient))
		case i.options.Debug:
			opts = append(opts, download.WithHTTPClient(sdkhttp.GetHttpClient(
				sdkhttp.WithTimeout(i.options.Timeout),
				sdkhttp.WithHttpLogging(logger.Info, logger.Trace1),
				sdkhttp.WithRedirectLogging(t),
			)))
		}

		if _, err := download.Download(ctx, result.Target.URL, dest, t, opts...); err != nil {
			return i.downloadError(ctx, result, err)
		}
		local = dest
		return nil
	})
	return local, err
}

// downloadError classifies a failed download. A 404 on a constructed URL
// usually means the version does not exist, so the closest published release
// is suggested.
func (i *Installer) downloadError(ctx context.Context, result *types.InstallResult, err error) error {
	if download.IsNotFound(err) && !result.Target.Explicit && result.Version.Tag != "" {
		suggestion, serr := i.resolver.Suggest(ctx, result.Version.Tag)
		if serr == nil && suggestion != "" && suggestion != result.Version.Tag {
			err = fmt.Errorf("%w (closest published release: %s)", err, suggestion)
		}
	}
	return pipeline.NewError(pipeline.KindDownload, types.StageDownload, result.Target.URL, err)
}

func (i *Installer) logFileName(result *types.InstallResult) string {
	tag := result.Version.Tag
	if tag == "" {
		tag = strings.TrimSuffix(result.Target.FileName, filepath.Ext(result.Target.FileName))
	}
	if tag == "" {
		tag = "latest"
	}
	return fmt.Sprintf("%s-%s-install.log", i.config.Package.Name, tag)
}
