package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/platform"
	"github.com/flanksource/sdk-installer/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFile = "sdk-installer.yaml"
)

// LoadConfig loads and parses a config file without merging defaults
func LoadConfig(path string) (*types.Config, error) {
	if path == "" {
		path = ConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config types.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &config, nil
}

// LoadMergedConfig loads the embedded defaults and merges the user config over
// them. An empty path searches for sdk-installer.yaml from the working directory
// upwards; a missing file in that case is not an error.
func LoadMergedConfig(path string) (*types.Config, error) {
	defaults, err := LoadDefaultConfig()
	if err != nil {
		return nil, err
	}

	if path == "" {
		found, err := FindConfigFile()
		if err != nil {
			return defaults, ValidateConfig(defaults)
		}
		path = found
	}

	user, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	merged := mergeConfig(defaults, user)
	if err := ValidateConfig(merged); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return merged, nil
}

// FindConfigFile searches for sdk-installer.yaml in the current and parent directories
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		configPath := filepath.Join(dir, ConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in current directory or any parent directory", ConfigFile)
}

// ValidateConfig validates the configuration for common errors
func ValidateConfig(config *types.Config) error {
	if config == nil {
		return fmt.Errorf("configuration is nil")
	}

	if config.Package.Name == "" {
		return fmt.Errorf("package.name is required")
	}
	if strings.Count(config.Package.Repo, "/") != 1 {
		return fmt.Errorf("package.repo %q must be in owner/repo form", config.Package.Repo)
	}
	if config.Package.URLTemplate == "" {
		return fmt.Errorf("package.url_template is required")
	}
	if config.Package.ActivationScript == "" {
		return fmt.Errorf("package.activation_script is required")
	}
	if config.Package.PlatformTag != "" {
		if _, err := platform.ParseTag(config.Package.PlatformTag); err != nil {
			return fmt.Errorf("package.platform_tag: %w", err)
		}
	}
	if config.Driver.Repo != "" && strings.Count(config.Driver.Repo, "/") != 1 {
		return fmt.Errorf("driver.repo %q must be in owner/repo form", config.Driver.Repo)
	}

	if config.Settings.GitHubAPIURL != "" {
		if _, err := url.Parse(config.Settings.GitHubAPIURL); err != nil {
			return fmt.Errorf("settings.github_api_url: %w", err)
		}
	}

	if _, err := pipeline.DefaultPolicy().With(config.Policy); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	return nil
}

// Policy builds the error policy from the configuration. strict makes every kind abort.
func Policy(config *types.Config, strict bool) (pipeline.Policy, error) {
	if strict {
		return pipeline.StrictPolicy(), nil
	}
	return pipeline.DefaultPolicy().With(config.Policy)
}
