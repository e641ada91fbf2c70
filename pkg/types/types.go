package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/flanksource/sdk-installer/pkg/platform"
)

// InstallRequest captures what the caller asked for. It is built once at
// invocation start and never mutated afterwards.
type InstallRequest struct {
	// Version is the release tag to install; empty or "latest" resolves the newest release
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	// User targets another user's profile and selects the per-user (archive) package
	User string `json:"user,omitempty" yaml:"user,omitempty"`
	// ExplicitURL overrides the constructed download URL
	ExplicitURL string `json:"url,omitempty" yaml:"url,omitempty"`
	// InstallPath overrides the install root (defaults to the local app-data directory)
	InstallPath string `json:"install_path,omitempty" yaml:"install_path,omitempty"`
	// IncludeOptionalComponent selects the package variant that bundles the optional component
	IncludeOptionalComponent bool `json:"include_optional_component,omitempty" yaml:"include_optional_component,omitempty"`
	// Checksum is an optional "<type>:<hex>" digest the artifact must match
	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// PerUser reports whether the request targets a specific user's profile.
func (r InstallRequest) PerUser() bool {
	return strings.TrimSpace(r.User) != ""
}

// WantsLatest reports whether the version must be looked up remotely.
func (r InstallRequest) WantsLatest() bool {
	v := strings.TrimSpace(r.Version)
	return v == "" || strings.EqualFold(v, "latest")
}

// ResolvedVersion is a concrete release tag and its numeric component.
type ResolvedVersion struct {
	// Tag is the release tag as published, e.g. v1.2.3-rc1
	Tag string `json:"tag" yaml:"tag"`
	// Numeric is the major.minor.patch part of the tag, empty if the tag is malformed
	Numeric string `json:"numeric,omitempty" yaml:"numeric,omitempty"`
	// Semver is the parsed tag, nil when it does not parse
	Semver *semver.Version `json:"-" yaml:"-"`
}

// HasNumeric reports whether the numeric triple was extracted from the tag.
func (v ResolvedVersion) HasNumeric() bool {
	return v.Numeric != ""
}

func (v ResolvedVersion) String() string {
	return v.Tag
}

// PackageFormat is decided once when the download target is built.
type PackageFormat int

const (
	// FormatUnknown is never attached to a valid DownloadTarget
	FormatUnknown PackageFormat = iota
	// FormatArchive is a zip extracted into the destination
	FormatArchive
	// FormatNativePackage is an msi handed to the OS installer
	FormatNativePackage
)

func (f PackageFormat) String() string {
	switch f {
	case FormatArchive:
		return "archive"
	case FormatNativePackage:
		return "native-package"
	default:
		return "unknown"
	}
}

// Extension returns the file extension used for the format, without the dot.
func (f PackageFormat) Extension() string {
	switch f {
	case FormatArchive:
		return "zip"
	case FormatNativePackage:
		return "msi"
	default:
		return ""
	}
}

// DownloadTarget is the artifact to fetch and how to install it.
type DownloadTarget struct {
	URL      string        `json:"url" yaml:"url"`
	Format   PackageFormat `json:"format" yaml:"format"`
	FileName string        `json:"file_name" yaml:"file_name"`
	// Explicit is true when the URL came from the caller verbatim
	Explicit bool `json:"explicit,omitempty" yaml:"explicit,omitempty"`
}

func (d DownloadTarget) String() string {
	return fmt.Sprintf("%s (%s)", d.URL, d.Format)
}

// InstallDestination is where the package contents end up.
type InstallDestination struct {
	// Root is the install root, e.g. %LOCALAPPDATA%
	Root string `json:"root" yaml:"root"`
	// PackageDir is the package subfolder name, e.g. sensing-dev or sensing-dev-no-opencv
	PackageDir string `json:"package_dir" yaml:"package_dir"`
}

// Path returns the full package directory.
func (d InstallDestination) Path() string {
	return filepath.Join(d.Root, d.PackageDir)
}

// AccessGrant records whether a principal can write to a path without elevation.
type AccessGrant struct {
	Principal string `json:"principal" yaml:"principal"`
	Path      string `json:"path" yaml:"path"`
	Writable  bool   `json:"writable" yaml:"writable"`
	// Probed is false when no probe was performed and elevation is assumed
	Probed bool `json:"probed" yaml:"probed"`
}

// NeedsElevation reports whether installers should ask for elevated rights.
func (g AccessGrant) NeedsElevation() bool {
	return !g.Writable
}

// Environment is the ambient state of the invocation, captured once and
// passed into every stage.
type Environment struct {
	// CurrentUser is the invoking principal, e.g. DOMAIN\alice
	CurrentUser string `json:"current_user" yaml:"current_user"`
	// ComputerName is the local machine name, the domain of local accounts
	ComputerName string `json:"computer_name,omitempty" yaml:"computer_name,omitempty"`
	// TempDir receives downloads
	TempDir string `json:"temp_dir" yaml:"temp_dir"`
	// LocalAppData is the current user's local application-data directory
	LocalAppData string `json:"local_app_data" yaml:"local_app_data"`
	// UsersRoot is the parent of all user profiles, e.g. C:\Users
	UsersRoot string `json:"users_root" yaml:"users_root"`
	// Platform is the target OS/architecture
	Platform platform.Platform `json:"platform" yaml:"platform"`
}

// LocalDomains lists the domains an unqualified account name is assumed to
// belong to: the machine name and the domain of the invoking user.
func (e Environment) LocalDomains() []string {
	var domains []string
	if e.ComputerName != "" {
		domains = append(domains, e.ComputerName)
	}
	if i := strings.LastIndex(e.CurrentUser, `\`); i > 0 {
		if d := e.CurrentUser[:i]; !strings.EqualFold(d, e.ComputerName) {
			domains = append(domains, d)
		}
	}
	return domains
}

// LocalAppDataFor returns the local app-data directory of the given user,
// or of the invoking user when user is empty.
func (e Environment) LocalAppDataFor(user string) string {
	if strings.TrimSpace(user) == "" || e.UsersRoot == "" {
		return e.LocalAppData
	}
	if e.Platform.IsWindows() {
		return filepath.Join(e.UsersRoot, user, "AppData", "Local")
	}
	return filepath.Join(e.UsersRoot, user, ".local", "share")
}

// Stage names a step of the installation pipeline.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageLocate   Stage = "locate"
	StageAccess   Stage = "access"
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageInstall  Stage = "install"
	StageActivate Stage = "activate"
	StageDriver   Stage = "driver"
)

// StageStatus is the outcome of a single stage.
type StageStatus string

const (
	StageStatusOK      StageStatus = "ok"
	StageStatusWarning StageStatus = "warning"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// StageResult is the per-stage record kept by the pipeline.
type StageResult struct {
	Stage    Stage         `json:"stage" yaml:"stage"`
	Status   StageStatus   `json:"status" yaml:"status"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`
	Error    error         `json:"-" yaml:"-"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// InstallResult summarises a pipeline run.
type InstallResult struct {
	Request     InstallRequest     `json:"request" yaml:"request"`
	Version     ResolvedVersion    `json:"version" yaml:"version"`
	Target      DownloadTarget     `json:"target" yaml:"target"`
	Destination InstallDestination `json:"destination" yaml:"destination"`
	Access      AccessGrant        `json:"access" yaml:"access"`
	Stages      []StageResult      `json:"stages" yaml:"stages"`

	// LogFile is the verbose log written by the native installer, if any
	LogFile   string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Activated bool   `json:"activated" yaml:"activated"`
	ExitCode  int    `json:"exit_code" yaml:"exit_code"`
}

// Stage returns the recorded result of a stage, if any.
func (r *InstallResult) Stage(stage Stage) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageResult{}, false
}

// Warnings returns the errors recorded by stages that did not abort the run.
func (r *InstallResult) Warnings() []error {
	var errs []error
	for _, s := range r.Stages {
		if s.Status == StageStatusWarning && s.Error != nil {
			errs = append(errs, s.Error)
		}
	}
	return errs
}

// Succeeded reports whether no stage failed.
func (r *InstallResult) Succeeded() bool {
	for _, s := range r.Stages {
		if s.Status == StageStatusFailed {
			return false
		}
	}
	return true
}

// Pretty renders a one-line summary for terminal output.
func (r *InstallResult) Pretty() string {
	status := "✅"
	if !r.Succeeded() {
		status = "❌"
	} else if len(r.Warnings()) > 0 {
		status = "⚠️"
	}
	s := fmt.Sprintf("%s %s", status, r.Version.Tag)
	if r.Destination.PackageDir != "" {
		s += " -> " + r.Destination.Path()
	}
	if r.Target.Format != FormatUnknown {
		s += fmt.Sprintf(" (%s)", r.Target.Format)
	}
	return s
}
