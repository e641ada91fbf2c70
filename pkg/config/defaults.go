package config

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultConfigYAML []byte

// LoadDefaultConfig loads the embedded default configuration
func LoadDefaultConfig() (*types.Config, error) {
	var config types.Config
	if err := yaml.Unmarshal(defaultConfigYAML, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded default config: %w", err)
	}
	ApplyDefaults(&config)
	return &config, nil
}

// ApplyDefaults fills in fields derived from other fields
func ApplyDefaults(config *types.Config) {
	if config.Package.BaseURL == "" && config.Package.Repo != "" {
		config.Package.BaseURL = releaseDownloadBase(config.Package.Repo)
	}
	if config.Driver.BaseURL == "" && config.Driver.Repo != "" {
		config.Driver.BaseURL = releaseDownloadBase(config.Driver.Repo)
	}
	config.Package.BaseURL = strings.TrimSuffix(config.Package.BaseURL, "/")
	config.Driver.BaseURL = strings.TrimSuffix(config.Driver.BaseURL, "/")

	if config.Driver.Timeout <= 0 {
		config.Driver.Timeout = 5 * time.Minute
	}
	if config.Driver.PollInterval <= 0 {
		config.Driver.PollInterval = 500 * time.Millisecond
	}
	if config.Settings.DownloadTimeout <= 0 {
		config.Settings.DownloadTimeout = 30 * time.Minute
	}
	if config.Policy == nil {
		config.Policy = map[string]string{}
	}
}

func releaseDownloadBase(repo string) string {
	return fmt.Sprintf("https://github.com/%s/releases/download", repo)
}

// mergeConfig merges a user config over the defaults. Non-empty user fields win.
func mergeConfig(base, user *types.Config) *types.Config {
	merged := *base

	merged.Package = types.PackageConfig{
		Name:              lo.CoalesceOrEmpty(user.Package.Name, base.Package.Name),
		Repo:              lo.CoalesceOrEmpty(user.Package.Repo, base.Package.Repo),
		OptionalComponent: lo.CoalesceOrEmpty(user.Package.OptionalComponent, base.Package.OptionalComponent),
		BaseURL:           user.Package.BaseURL,
		URLTemplate:       lo.CoalesceOrEmpty(user.Package.URLTemplate, base.Package.URLTemplate),
		PlatformTag:       lo.CoalesceOrEmpty(user.Package.PlatformTag, base.Package.PlatformTag),
		ActivationScript:  lo.CoalesceOrEmpty(user.Package.ActivationScript, base.Package.ActivationScript),
		MsiTargetProperty: lo.CoalesceOrEmpty(user.Package.MsiTargetProperty, base.Package.MsiTargetProperty),
	}
	// keep the default download base only while the repo is unchanged
	if merged.Package.BaseURL == "" && merged.Package.Repo == base.Package.Repo {
		merged.Package.BaseURL = base.Package.BaseURL
	}

	merged.Driver = types.DriverConfig{
		Repo:         lo.CoalesceOrEmpty(user.Driver.Repo, base.Driver.Repo),
		Version:      lo.CoalesceOrEmpty(user.Driver.Version, base.Driver.Version),
		BaseURL:      user.Driver.BaseURL,
		Asset:        lo.CoalesceOrEmpty(user.Driver.Asset, base.Driver.Asset),
		Installer:    lo.CoalesceOrEmpty(user.Driver.Installer, base.Driver.Installer),
		DeviceID:     lo.CoalesceOrEmpty(user.Driver.DeviceID, base.Driver.DeviceID),
		InfGlob:      lo.CoalesceOrEmpty(user.Driver.InfGlob, base.Driver.InfGlob),
		Timeout:      lo.CoalesceOrEmpty(user.Driver.Timeout, base.Driver.Timeout),
		PollInterval: lo.CoalesceOrEmpty(user.Driver.PollInterval, base.Driver.PollInterval),
	}
	if merged.Driver.BaseURL == "" && merged.Driver.Repo == base.Driver.Repo {
		merged.Driver.BaseURL = base.Driver.BaseURL
	}

	merged.Settings = types.Settings{
		GitHubAPIURL:    lo.CoalesceOrEmpty(user.Settings.GitHubAPIURL, base.Settings.GitHubAPIURL),
		DownloadTimeout: lo.CoalesceOrEmpty(user.Settings.DownloadTimeout, base.Settings.DownloadTimeout),
		TmpDir:          lo.CoalesceOrEmpty(user.Settings.TmpDir, base.Settings.TmpDir),
	}

	merged.Policy = lo.Assign(base.Policy, user.Policy)

	ApplyDefaults(&merged)
	return &merged
}
