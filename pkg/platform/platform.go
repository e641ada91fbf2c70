package platform

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Platform is the OS/architecture a package is installed for
type Platform struct {
	OS   string `json:"os" yaml:"os"`
	Arch string `json:"arch" yaml:"arch"`
}

// overrides set from the --os/--arch flags
var (
	overrideMu   sync.RWMutex
	overrideOS   string
	overrideArch string
)

func (p Platform) String() string {
	return p.OS + "-" + p.Arch
}

// SetGlobalOverrides replaces the detected OS and architecture, empty values
// fall back to the running process
func SetGlobalOverrides(os, arch string) {
	overrideMu.Lock()
	defer overrideMu.Unlock()
	overrideOS, overrideArch = os, arch
}

// Current returns the target platform, respecting global overrides
func Current() Platform {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	return Platform{
		OS:   lo.CoalesceOrEmpty(overrideOS, runtime.GOOS),
		Arch: lo.CoalesceOrEmpty(overrideArch, runtime.GOARCH),
	}
}

// SupportedPlatforms returns the platforms SDK packages are published for
func SupportedPlatforms() []Platform {
	return []Platform{
		{OS: "windows", Arch: "amd64"},
		{OS: "windows", Arch: "386"},
		{OS: "windows", Arch: "arm64"},
	}
}

// Validate rejects platforms no package is published for
func Validate(p Platform) error {
	n := p.Normalize()
	if lo.Contains(SupportedPlatforms(), n) {
		return nil
	}
	names := lo.Map(SupportedPlatforms(), func(s Platform, _ int) string { return s.String() })
	return fmt.Errorf("unsupported platform %s (supported: %s)", p, strings.Join(names, ", "))
}

// Tag returns the platform suffix used in release artifact names, e.g. win64
func (p Platform) Tag() string {
	n := p.Normalize()
	if !n.IsWindows() {
		return n.String()
	}
	switch n.Arch {
	case "amd64":
		return "win64"
	case "386":
		return "win32"
	default:
		return "win-" + n.Arch
	}
}

// ParseTag is the inverse of Tag
func ParseTag(tag string) (Platform, error) {
	lower := strings.ToLower(strings.TrimSpace(tag))
	switch {
	case lower == "win64":
		return Platform{OS: "windows", Arch: "amd64"}, nil
	case lower == "win32":
		return Platform{OS: "windows", Arch: "386"}, nil
	case strings.HasPrefix(lower, "win-") && len(lower) > 4:
		return Platform{OS: "windows", Arch: normalizeArch(lower[4:])}, nil
	}

	os, arch, ok := strings.Cut(lower, "-")
	if !ok || os == "" || arch == "" || strings.Contains(arch, "-") {
		return Platform{}, fmt.Errorf("invalid platform tag %q (expected win64, win32, win-<arch> or <os>-<arch>)", tag)
	}
	return Platform{OS: os, Arch: arch}.Normalize(), nil
}

// Normalize maps OS and architecture aliases to Go's names
func (p Platform) Normalize() Platform {
	return Platform{OS: normalizeOS(p.OS), Arch: normalizeArch(p.Arch)}
}

func normalizeOS(os string) string {
	switch os = strings.ToLower(os); os {
	case "macos", "osx", "mac":
		return "darwin"
	case "win", "win32", "win64":
		return "windows"
	default:
		return os
	}
}

func normalizeArch(arch string) string {
	switch arch = strings.ToLower(arch); arch {
	case "x86_64", "x64", "win64":
		return "amd64"
	case "aarch64":
		return "arm64"
	case "i386", "i686", "x86", "win32":
		return "386"
	case "armv7", "armv7l":
		return "arm"
	default:
		return arch
	}
}

func (p Platform) IsWindows() bool {
	return normalizeOS(p.OS) == "windows"
}
