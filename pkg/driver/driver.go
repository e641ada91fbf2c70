package driver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/flanksource/clicky/task"
	"github.com/flanksource/gomplate/v3"
	"github.com/flanksource/sdk-installer/pkg/download"
	"github.com/flanksource/sdk-installer/pkg/extract"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/system"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/flanksource/sdk-installer/pkg/utils"
	"github.com/flanksource/sdk-installer/pkg/version"
)

const (
	DefaultTimeout      = 5 * time.Minute
	DefaultPollInterval = 500 * time.Millisecond

	bundleDir     = "bundle"
	workDirPrefix = "sdk-installer-driver-"
)

// Installer acquires the USB driver bundle, runs its generator and registers
// the resulting INF with the driver store.
type Installer struct {
	Config   types.DriverConfig
	Resolver *version.Resolver
	// TmpDir receives the downloaded bundle
	TmpDir     string
	HTTPClient *http.Client
	// Runner executes pnputil, defaults to system.ExecRunner
	Runner system.Runner
	// Elevate wraps pnputil in a UAC prompt
	Elevate bool
	// Keep leaves the work directory in TmpDir after Install, on success or failure
	Keep bool
}

// New creates a driver installer for the driver repo of cfg
func New(cfg *types.Config, env types.Environment, opts ...version.ResolverOption) (*Installer, error) {
	if cfg.Driver.Repo == "" {
		return nil, fmt.Errorf("driver.repo is not configured")
	}
	resolverOpts := append([]version.ResolverOption{version.WithAPIURL(cfg.Settings.GitHubAPIURL)}, opts...)
	resolver, err := version.NewResolver("driver", cfg.Driver.Repo, resolverOpts...)
	if err != nil {
		return nil, err
	}

	tmpDir := cfg.Settings.TmpDir
	if tmpDir == "" {
		tmpDir = env.TempDir
	}
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}

	return &Installer{
		Config:   cfg.Driver,
		Resolver: resolver,
		TmpDir:   tmpDir,
		Elevate:  env.Platform.IsWindows(),
	}, nil
}

// AssetURL returns the download URL of the driver bundle for a resolved tag
func (d *Installer) AssetURL(resolved types.ResolvedVersion) (string, error) {
	asset, err := gomplate.RunTemplate(map[string]any{
		"tag":     resolved.Tag,
		"version": resolved.Numeric,
	}, gomplate.Template{Template: d.Config.Asset})
	if err != nil {
		return "", pipeline.NewError(pipeline.KindUnsupportedFormat, types.StageDriver, d.Config.Asset,
			fmt.Errorf("failed to render driver asset name: %w", err))
	}
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return "", pipeline.Errorf(pipeline.KindUnsupportedFormat, types.StageDriver, d.Config.Repo, "driver.asset is empty")
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(d.Config.BaseURL, "/"), resolved.Tag, asset), nil
}

// AcquireDriverPackage resolves requested (empty means the configured
// version), downloads the bundle and extracts it when it is an archive. It
// returns the directory holding the bundle. The work directory is removed
// again when acquisition fails, unless Keep is set.
func (d *Installer) AcquireDriverPackage(ctx context.Context, requested string, t *task.Task) (localPath string, err error) {
	if requested == "" {
		requested = d.Config.Version
	}
	resolved, err := d.Resolver.Resolve(ctx, requested, t)
	if err != nil {
		return "", err
	}

	url, err := d.AssetURL(resolved)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.TmpDir, 0755); err != nil {
		return "", pipeline.NewError(pipeline.KindDownload, types.StageDriver, d.TmpDir, err)
	}
	workDir, err := os.MkdirTemp(d.TmpDir, workDirPrefix)
	if err != nil {
		return "", pipeline.NewError(pipeline.KindDownload, types.StageDriver, d.TmpDir, err)
	}
	defer func() {
		if err != nil && !d.Keep {
			_ = os.RemoveAll(workDir)
		}
	}()

	bundle := filepath.Join(workDir, filepath.Base(url))
	opts := []download.DownloadOption{}
	if d.HTTPClient != nil {
		opts = append(opts, download.WithHTTPClient(d.HTTPClient))
	}
	if _, err := download.Download(ctx, url, bundle, t, opts...); err != nil {
		return "", pipeline.NewError(pipeline.KindDownload, types.StageDriver, url, err)
	}

	if !extract.IsArchive(bundle) {
		return workDir, nil
	}

	result, err := extract.Extract(bundle, filepath.Join(workDir, bundleDir), t)
	if err != nil {
		return "", pipeline.NewError(pipeline.KindExtraction, types.StageDriver, bundle, err)
	}
	_ = os.Remove(bundle)
	return result.Dir, nil
}

// workDirOf maps a path returned by AcquireDriverPackage back to its work directory
func workDirOf(localPath string) string {
	if filepath.Base(localPath) == bundleDir {
		return filepath.Dir(localPath)
	}
	return localPath
}

// FindInstaller locates the configured installer executable inside localPath
func (d *Installer) FindInstaller(localPath string) (string, error) {
	return findOne(localPath, "**/"+d.Config.Installer, "driver installer")
}

// FindInf locates the INF generated by the driver installer inside localPath
func (d *Installer) FindInf(localPath string) (string, error) {
	pattern := d.Config.InfGlob
	if pattern == "" {
		pattern = "**/*.inf"
	}
	return findOne(localPath, pattern, "driver INF")
}

func findOne(dir, pattern, what string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s matching %s in %s", what, pattern, utils.LogPath(dir))
	}
	// shallowest match wins, then lexical order
	sort.Slice(matches, func(i, j int) bool {
		di, dj := strings.Count(matches[i], "/"), strings.Count(matches[j], "/")
		if di != dj {
			return di < dj
		}
		return matches[i] < matches[j]
	})
	return filepath.Join(dir, filepath.FromSlash(matches[0])), nil
}

// RegisterDriver adds the INF to the driver store and installs it on
// matching devices with pnputil.
func (d *Installer) RegisterDriver(ctx context.Context, infPath string, t *task.Task) (int, error) {
	if _, err := os.Stat(infPath); err != nil {
		return -1, pipeline.NewError(pipeline.KindInstallerProcess, types.StageDriver, infPath, err)
	}

	runner := d.Runner
	if runner == nil {
		runner = system.ExecRunner{Task: t}
	}

	name, args := "pnputil", []string{"/add-driver", infPath, "/install"}
	if d.Elevate {
		name, args = system.Elevated(name, args...)
	}

	if t != nil {
		t.Infof("Registering %s", utils.LogPath(infPath))
	}
	code, err := runner.Run(ctx, name, args...)
	if err != nil {
		return code, pipeline.NewError(pipeline.KindInstallerProcess, types.StageDriver, infPath, err)
	}
	if code != 0 {
		return code, pipeline.Errorf(pipeline.KindInstallerProcess, types.StageDriver, infPath, "pnputil exited with code %d", code)
	}
	return code, nil
}

// Install acquires the bundle, runs the installer for deviceID and registers
// the generated INF. The work directory is removed afterwards unless Keep is set.
func (d *Installer) Install(ctx context.Context, requested, deviceID string, observer ProgressObserver, t *task.Task) error {
	localPath, err := d.AcquireDriverPackage(ctx, requested, t)
	if err != nil {
		return err
	}
	if !d.Keep {
		defer os.RemoveAll(workDirOf(localPath))
	}

	code, err := d.RunDriverInstaller(ctx, localPath, deviceID, observer, t)
	if err != nil {
		return err
	}
	if code != 0 {
		return pipeline.Errorf(pipeline.KindInstallerProcess, types.StageDriver, d.Config.Installer, "driver installer exited with code %d", code)
	}

	inf, err := d.FindInf(localPath)
	if err != nil {
		return pipeline.NewError(pipeline.KindInstallerProcess, types.StageDriver, localPath, err)
	}
	utils.LogPathFound(t, inf, "driver INF")

	_, err = d.RegisterDriver(ctx, inf, t)
	return err
}
