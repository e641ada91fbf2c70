package helpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/config"
	"github.com/flanksource/sdk-installer/pkg/platform"
	"github.com/flanksource/sdk-installer/pkg/system"
	"github.com/flanksource/sdk-installer/pkg/types"
)

// TestContext holds the context and resources for a single test
type TestContext struct {
	TempDir    string
	ConfigFile string
	Config     *types.Config
	Env        types.Environment
	Cleanup    func()
}

// CreateInstallTestEnvironment writes an sdk-installer.yaml pointing at
// release and loads it merged with the embedded defaults. The environment
// mimics a Windows host with a profile for alice.
func CreateInstallTestEnvironment(release *FakeRelease) (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "sdk-installer-e2e-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	configContent := fmt.Sprintf(`package:
  base_url: %s
  platform_tag: win64
settings:
  github_api_url: %s
`, release.DownloadBase(), release.Server.URL)

	configFile := filepath.Join(tempDir, config.ConfigFile)
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to write config file: %w", err)
	}

	cfg, err := config.LoadMergedConfig(configFile)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	users := filepath.Join(tempDir, "Users")
	env := types.Environment{
		CurrentUser:  "tester",
		TempDir:      filepath.Join(tempDir, "tmp"),
		LocalAppData: filepath.Join(users, "tester", "AppData", "Local"),
		UsersRoot:    users,
		Platform:     platform.Platform{OS: "windows", Arch: "amd64"},
	}
	for _, dir := range []string{env.TempDir, env.LocalAppData, env.LocalAppDataFor("alice")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			os.RemoveAll(tempDir)
			return nil, err
		}
	}

	return &TestContext{
		TempDir:    tempDir,
		ConfigFile: configFile,
		Config:     cfg,
		Env:        env,
		Cleanup:    func() { os.RemoveAll(tempDir) },
	}, nil
}

// TempEntries lists what is left in the environment temp directory
func (c *TestContext) TempEntries() []string {
	entries, _ := os.ReadDir(c.Env.TempDir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// RecordingScripts records activation scripts instead of running them
type RecordingScripts struct {
	mu      sync.Mutex
	Scripts []string
}

func (r *RecordingScripts) RunScript(_ context.Context, script string, _ *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Scripts = append(r.Scripts, script)
	return nil
}

// FakeMsi records msiexec invocations and writes the verbose log
type FakeMsi struct {
	Calls []system.MsiOptions
	Code  int
}

func (f *FakeMsi) Install(_ context.Context, opts system.MsiOptions, _ *task.Task) (int, error) {
	f.Calls = append(f.Calls, opts)
	if opts.LogFile != "" {
		_ = os.WriteFile(opts.LogFile, []byte("MSI (s) Product: sensing-dev -- Installation completed successfully."), 0644)
	}
	return f.Code, nil
}
