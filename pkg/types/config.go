package types

import "time"

// Config is the installer configuration: embedded defaults merged with an
// optional sdk-installer.yaml.
type Config struct {
	Package  PackageConfig     `json:"package" yaml:"package"`
	Driver   DriverConfig      `json:"driver" yaml:"driver"`
	Settings Settings          `json:"settings" yaml:"settings"`
	Policy   map[string]string `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// PackageConfig describes the SDK release artifacts.
type PackageConfig struct {
	// Name is the package name used in artifact file names and the install subfolder
	Name string `json:"name" yaml:"name"`
	// Repo is the GitHub repository publishing releases (owner/repo)
	Repo string `json:"repo" yaml:"repo"`
	// OptionalComponent is the component whose absence is marked with "-no-<component>"
	OptionalComponent string `json:"optional_component" yaml:"optional_component"`
	// BaseURL is the release download base; defaults to https://github.com/<repo>/releases/download
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// URLTemplate builds the artifact URL from {{.base}}, {{.tag}}, {{.name}}, {{.suffix}}, {{.version}}, {{.platform}}, {{.ext}}
	URLTemplate string `json:"url_template" yaml:"url_template"`
	// PlatformTag overrides the platform suffix (e.g. win64)
	PlatformTag string `json:"platform_tag,omitempty" yaml:"platform_tag,omitempty"`
	// ActivationScript is the script under tools/ run after install
	ActivationScript string `json:"activation_script" yaml:"activation_script"`
	// MsiTargetProperty is the msi property receiving the install root
	MsiTargetProperty string `json:"msi_target_property" yaml:"msi_target_property"`
}

// DriverConfig describes the USB driver bundle and how to install it.
type DriverConfig struct {
	Repo    string `json:"repo" yaml:"repo"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Asset is the release asset file name, templated with {{.tag}} and {{.version}}
	Asset string `json:"asset" yaml:"asset"`
	// Installer is the executable inside the bundle that generates and installs the driver
	Installer string `json:"installer" yaml:"installer"`
	// DeviceID is passed to the installer
	DeviceID string `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	// InfGlob locates the generated .inf relative to the bundle directory
	InfGlob      string        `json:"inf_glob" yaml:"inf_glob"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// Settings are tool-wide options.
type Settings struct {
	// GitHubAPIURL overrides https://api.github.com/ (GitHub Enterprise, tests)
	GitHubAPIURL    string        `json:"github_api_url,omitempty" yaml:"github_api_url,omitempty"`
	DownloadTimeout time.Duration `json:"download_timeout" yaml:"download_timeout"`
	// TmpDir receives downloads; empty uses the system temp directory
	TmpDir string `json:"tmp_dir,omitempty" yaml:"tmp_dir,omitempty"`
}
