package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/flanksource/sdk-installer/pkg/platform"
	"github.com/flanksource/sdk-installer/pkg/types"
)

// DetectEnvironment captures the ambient state of the invocation. It is the
// only place that reads the current user and environment variables; every
// stage receives the result explicitly.
func DetectEnvironment(tmpDir string) types.Environment {
	env := types.Environment{
		TempDir:  tmpDir,
		Platform: platform.Current(),
	}
	if env.TempDir == "" {
		env.TempDir = os.TempDir()
	}

	if u, err := user.Current(); err == nil {
		env.CurrentUser = u.Username
	} else if name := os.Getenv("USERNAME"); name != "" {
		env.CurrentUser = name
	} else {
		env.CurrentUser = os.Getenv("USER")
	}

	if name := os.Getenv("COMPUTERNAME"); name != "" {
		env.ComputerName = name
	} else if host, err := os.Hostname(); err == nil {
		env.ComputerName = host
	}

	home, _ := os.UserHomeDir()

	if runtime.GOOS == "windows" {
		env.LocalAppData = os.Getenv("LOCALAPPDATA")
		if env.LocalAppData == "" && home != "" {
			env.LocalAppData = filepath.Join(home, "AppData", "Local")
		}
	} else {
		env.LocalAppData = os.Getenv("XDG_DATA_HOME")
		if env.LocalAppData == "" && home != "" {
			env.LocalAppData = filepath.Join(home, ".local", "share")
		}
	}

	if home != "" {
		env.UsersRoot = filepath.Dir(home)
	}

	return env
}
