package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/access"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/platform"
	"github.com/flanksource/sdk-installer/pkg/system"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repoPath = "/repos/Sensing-Dev/sensing-dev-installer"

type fakeRelease struct {
	server   *httptest.Server
	assets   map[string][]byte
	requests []string
}

func newFakeRelease(t *testing.T) *fakeRelease {
	f := &fakeRelease{assets: map[string][]byte{}}
	mux := http.NewServeMux()
	mux.HandleFunc(repoPath+"/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.2.3","name":"v1.2.3"}`)
	})
	mux.HandleFunc(repoPath+"/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"tag_name":"v1.2.3"},{"tag_name":"v1.1.0"}]`)
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		f.requests = append(f.requests, r.URL.Path)
		body, ok := f.assets[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func buildZip(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type recordingScripts struct {
	scripts []string
	err     error
}

func (r *recordingScripts) RunScript(_ context.Context, script string, _ *task.Task) error {
	r.scripts = append(r.scripts, script)
	return r.err
}

type fakeMsi struct {
	calls    []system.MsiOptions
	code     int
	writeLog bool
}

func (f *fakeMsi) Install(_ context.Context, opts system.MsiOptions, _ *task.Task) (int, error) {
	f.calls = append(f.calls, opts)
	if f.writeLog {
		_ = os.WriteFile(opts.LogFile, []byte("=== Verbose logging started"), 0644)
	}
	return f.code, nil
}

type staticSource struct {
	entries []access.Entry
	err     error
}

func (s staticSource) Entries(context.Context, string) ([]access.Entry, error) {
	return s.entries, s.err
}

type fixture struct {
	release *fakeRelease
	config  *types.Config
	env     types.Environment
	scripts *recordingScripts
}

func newFixture(t *testing.T) *fixture {
	release := newFakeRelease(t)
	users := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(users, "alice", "AppData", "Local"), 0755))

	return &fixture{
		release: release,
		scripts: &recordingScripts{},
		config: &types.Config{
			Package: types.PackageConfig{
				Name:              "sensing-dev",
				Repo:              "Sensing-Dev/sensing-dev-installer",
				OptionalComponent: "opencv",
				BaseURL:           release.server.URL + "/download",
				URLTemplate:       "{{.base}}/{{.tag}}/{{.name}}{{.suffix}}-{{.version}}-{{.platform}}.{{.ext}}",
				PlatformTag:       "win64",
				ActivationScript:  "Env.ps1",
				MsiTargetProperty: "INSTALL_ROOT",
			},
			Settings: types.Settings{GitHubAPIURL: release.server.URL},
		},
		env: types.Environment{
			CurrentUser:  "tester",
			TempDir:      t.TempDir(),
			LocalAppData: t.TempDir(),
			UsersRoot:    users,
			Platform:     platform.Platform{OS: "windows", Arch: "amd64"},
		},
	}
}

func (f *fixture) installer(t *testing.T, opts ...InstallOption) *Installer {
	opts = append([]InstallOption{WithScriptRunner(f.scripts)}, opts...)
	i, err := New(f.config, f.env, opts...)
	require.NoError(t, err)
	return i
}

func (f *fixture) serveArchive(t *testing.T, tag, numeric string, files map[string]string) {
	name := fmt.Sprintf("/download/%s/sensing-dev-no-opencv-%s-win64.zip", tag, numeric)
	f.release.assets[name] = buildZip(t, files)
}

func listTree(t *testing.T, root string) []string {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if rel != "." {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func assertNoTemporaries(t *testing.T, f *fixture, root string) {
	entries, err := os.ReadDir(f.env.TempDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "sdk-installer-"), "leftover download dir %s", e.Name())
	}

	entries, err = os.ReadDir(root)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "-extract-", "leftover extraction dir")
		assert.NotContains(t, e.Name(), ".old-", "leftover backup dir")
	}
}

var sdkFiles = map[string]string{
	"sensing-dev/bin/ion-core.dll": "core",
	"sensing-dev/tools/Env.ps1":    "Write-Host env",
	"sensing-dev/include/ion.h":    "#pragma once",
}

func TestArchiveInstallForUser(t *testing.T) {
	f := newFixture(t)
	f.serveArchive(t, "v1.2.3", "1.2.3", sdkFiles)

	result, err := f.installer(t).Install(context.Background(), types.InstallRequest{Version: "v1.2.3", User: "alice"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", result.Version.Numeric)
	assert.True(t, strings.HasSuffix(result.Target.URL, "-no-opencv-1.2.3-win64.zip"), result.Target.URL)
	assert.Equal(t, types.FormatArchive, result.Target.Format)

	root := filepath.Join(f.env.UsersRoot, "alice", "AppData", "Local")
	assert.Equal(t, root, result.Destination.Root)
	assert.Equal(t, "sensing-dev-no-opencv", result.Destination.PackageDir)

	dest := result.Destination.Path()
	assert.Equal(t, []string{"bin", "bin/ion-core.dll", "include", "include/ion.h", "tools", "tools/Env.ps1"}, listTree(t, dest))

	probe, ok := result.Stage(types.StageAccess)
	require.True(t, ok)
	assert.Equal(t, types.StageStatusSkipped, probe.Status)

	assert.Equal(t, []string{filepath.Join(dest, "tools", "Env.ps1")}, f.scripts.scripts)
	assert.True(t, result.Activated)
	assert.Equal(t, 0, result.ExitCode)
	assertNoTemporaries(t, f, root)
}

func TestArchiveInstallIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.serveArchive(t, "v1.2.3", "1.2.3", sdkFiles)

	req := types.InstallRequest{Version: "v1.2.3", InstallPath: t.TempDir(), User: "alice"}
	dest := filepath.Join(req.InstallPath, "sensing-dev-no-opencv")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "stale"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "stale", "old.dll"), []byte("old"), 0644))

	inst := f.installer(t)
	_, err := inst.Install(context.Background(), req, nil)
	require.NoError(t, err)
	first := listTree(t, dest)

	_, err = inst.Install(context.Background(), req, nil)
	require.NoError(t, err)
	second := listTree(t, dest)

	assert.Equal(t, first, second)
	assert.NotContains(t, second, "stale/old.dll")
	assertNoTemporaries(t, f, req.InstallPath)
}

func TestArchiveInstallPreservesDestinationOnCorruptArchive(t *testing.T) {
	f := newFixture(t)
	f.release.assets["/download/v1.2.3/sensing-dev-no-opencv-1.2.3-win64.zip"] = []byte("this is not a zip file")

	req := types.InstallRequest{Version: "v1.2.3", InstallPath: t.TempDir(), User: "alice"}
	dest := filepath.Join(req.InstallPath, "sensing-dev-no-opencv")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "tools"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "tools", "Env.ps1"), []byte("previous"), 0644))

	result, err := f.installer(t).Install(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, pipeline.KindExtraction, pipeline.KindOf(err))
	assert.Equal(t, pipeline.KindExtraction.ExitCode(), result.ExitCode)

	data, rerr := os.ReadFile(filepath.Join(dest, "tools", "Env.ps1"))
	require.NoError(t, rerr)
	assert.Equal(t, "previous", string(data))

	_, activated := result.Stage(types.StageActivate)
	assert.False(t, activated)
	assert.Empty(t, f.scripts.scripts)
	assertNoTemporaries(t, f, req.InstallPath)
}

func TestLatestVersionIsResolved(t *testing.T) {
	f := newFixture(t)
	f.serveArchive(t, "v1.2.3", "1.2.3", sdkFiles)

	result, err := f.installer(t).Install(context.Background(), types.InstallRequest{User: "alice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", result.Version.Tag)
	assert.Contains(t, f.release.requests, "/download/v1.2.3/sensing-dev-no-opencv-1.2.3-win64.zip")
}

func TestMissingReleaseSuggestsClosest(t *testing.T) {
	f := newFixture(t)

	result, err := f.installer(t).Install(context.Background(), types.InstallRequest{Version: "v1.2.9", User: "alice"}, nil)
	require.Error(t, err)
	assert.Equal(t, pipeline.KindDownload, pipeline.KindOf(err))
	assert.Contains(t, err.Error(), "closest published release: v1.2.3")
	assert.Contains(t, err.Error(), "sensing-dev-no-opencv-1.2.9-win64.zip")
	assert.Equal(t, pipeline.KindDownload.ExitCode(), result.ExitCode)
	assertNoTemporaries(t, f, filepath.Join(f.env.UsersRoot, "alice", "AppData", "Local"))
}

func TestChecksumMismatchFailsDownload(t *testing.T) {
	f := newFixture(t)
	f.serveArchive(t, "v1.2.3", "1.2.3", sdkFiles)

	req := types.InstallRequest{
		Version:  "v1.2.3",
		User:     "alice",
		Checksum: "sha256:" + strings.Repeat("0", 64),
	}
	_, err := f.installer(t).Install(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, pipeline.KindDownload, pipeline.KindOf(err))
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestMissingActivationScriptIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.serveArchive(t, "v1.2.3", "1.2.3", map[string]string{
		"sensing-dev/bin/ion-core.dll": "core",
	})

	result, err := f.installer(t).Install(context.Background(), types.InstallRequest{Version: "v1.2.3", User: "alice"}, nil)
	require.NoError(t, err)

	activate, ok := result.Stage(types.StageActivate)
	require.True(t, ok)
	assert.Equal(t, types.StageStatusWarning, activate.Status)
	assert.Equal(t, pipeline.KindActivationScriptMissing, pipeline.KindOf(activate.Error))
	assert.Contains(t, activate.Message, filepath.Join("tools", "Env.ps1"))
	assert.False(t, result.Activated)
	assert.Equal(t, pipeline.KindActivationScriptMissing.ExitCode(), result.ExitCode)
}

func TestNativeInstallRequestsElevation(t *testing.T) {
	f := newFixture(t)
	f.release.assets["/download/pkg.msi"] = []byte("msi")

	msi := &fakeMsi{writeLog: true}
	checker := &access.Checker{Source: staticSource{entries: []access.Entry{
		{Principal: `BUILTIN\Administrators`, Type: "Allow", Rights: "FullControl"},
	}}}

	req := types.InstallRequest{Version: "v9.9.9", ExplicitURL: f.release.server.URL + "/download/pkg.msi"}
	result, err := f.installer(t, WithNativeInstaller(msi), WithChecker(checker)).Install(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, types.FormatNativePackage, result.Target.Format)
	assert.True(t, result.Access.Probed)
	assert.False(t, result.Access.Writable)
	assert.Equal(t, "tester", result.Access.Principal)

	require.Len(t, msi.calls, 1)
	call := msi.calls[0]
	assert.True(t, call.Elevate)
	assert.Equal(t, f.env.LocalAppData, call.TargetDir)
	assert.Equal(t, "INSTALL_ROOT", call.TargetProperty)
	assert.Equal(t, "pkg.msi", filepath.Base(call.Package))
	assert.Equal(t, call.LogFile, result.LogFile)

	_, statErr := os.Stat(call.Package)
	assert.True(t, os.IsNotExist(statErr), "temporary installer file should be removed")
}

func TestNativeInstallWithoutElevation(t *testing.T) {
	f := newFixture(t)
	f.release.assets["/download/pkg.msi"] = []byte("msi")

	msi := &fakeMsi{}
	checker := &access.Checker{Source: staticSource{entries: []access.Entry{
		{Principal: `HOST\tester`, Type: "Allow", Rights: "Modify, Synchronize"},
	}}, LocalDomains: []string{"HOST"}}

	req := types.InstallRequest{ExplicitURL: f.release.server.URL + "/download/pkg.msi"}
	result, err := f.installer(t, WithNativeInstaller(msi), WithChecker(checker)).Install(context.Background(), req, nil)
	require.NoError(t, err)

	resolve, ok := result.Stage(types.StageResolve)
	require.True(t, ok)
	assert.Equal(t, types.StageStatusSkipped, resolve.Status)

	require.Len(t, msi.calls, 1)
	assert.False(t, msi.calls[0].Elevate)
	assert.Empty(t, result.LogFile)
	assert.True(t, strings.HasSuffix(msi.calls[0].LogFile, "sensing-dev-pkg-install.log"), msi.calls[0].LogFile)
}

func TestNativeInstallerFailureContinues(t *testing.T) {
	f := newFixture(t)
	f.release.assets["/download/pkg.msi"] = []byte("msi")

	msi := &fakeMsi{code: 1603, writeLog: true}
	checker := &access.Checker{Source: staticSource{err: fmt.Errorf("access denied")}}

	req := types.InstallRequest{ExplicitURL: f.release.server.URL + "/download/pkg.msi"}
	result, err := f.installer(t, WithNativeInstaller(msi), WithChecker(checker)).Install(context.Background(), req, nil)
	require.NoError(t, err)

	probe, _ := result.Stage(types.StageAccess)
	assert.Equal(t, types.StageStatusWarning, probe.Status)
	require.Len(t, msi.calls, 1)
	assert.True(t, msi.calls[0].Elevate, "a failed probe falls back to elevation")

	install, _ := result.Stage(types.StageInstall)
	assert.Equal(t, types.StageStatusWarning, install.Status)
	assert.Contains(t, install.Message, "1603")

	// activation still runs and reports the missing script
	activate, ok := result.Stage(types.StageActivate)
	require.True(t, ok)
	assert.Equal(t, types.StageStatusWarning, activate.Status)

	assert.Equal(t, pipeline.KindPermissionProbe.ExitCode(), result.ExitCode)
	assert.NotEmpty(t, result.LogFile)
}

func TestStrictModeAbortsOnInstallerFailure(t *testing.T) {
	f := newFixture(t)
	f.release.assets["/download/pkg.msi"] = []byte("msi")

	msi := &fakeMsi{code: 1603}
	checker := &access.Checker{Source: staticSource{entries: []access.Entry{
		{Principal: "tester", Type: "Allow", Rights: "FullControl"},
	}}}

	req := types.InstallRequest{ExplicitURL: f.release.server.URL + "/download/pkg.msi"}
	result, err := f.installer(t, WithNativeInstaller(msi), WithChecker(checker), WithStrict(true)).
		Install(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, pipeline.KindInstallerProcess, pipeline.KindOf(err))
	assert.Equal(t, pipeline.KindInstallerProcess.ExitCode(), result.ExitCode)

	_, activated := result.Stage(types.StageActivate)
	assert.False(t, activated)
}

func TestUnsupportedExplicitURL(t *testing.T) {
	f := newFixture(t)

	req := types.InstallRequest{ExplicitURL: f.release.server.URL + "/download/pkg.tar.gz"}
	result, err := f.installer(t).Install(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, pipeline.KindUnsupportedFormat, pipeline.KindOf(err))
	assert.Empty(t, f.release.requests)
	assert.Equal(t, pipeline.KindUnsupportedFormat.ExitCode(), result.ExitCode)
}

func TestReplaceDirectoryRestoresOnFailure(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "pkg")
	require.NoError(t, os.MkdirAll(dest, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "keep.txt"), []byte("keep"), 0644))

	err := replaceDirectory(filepath.Join(root, "does-not-exist"), dest, nil)
	require.Error(t, err)

	data, rerr := os.ReadFile(filepath.Join(dest, "keep.txt"))
	require.NoError(t, rerr)
	assert.Equal(t, "keep", string(data))

	entries, _ := os.ReadDir(root)
	assert.Len(t, entries, 1)
}

func TestDebugInstallKeepsDownload(t *testing.T) {
	f := newFixture(t)
	f.serveArchive(t, "v1.2.3", "1.2.3", sdkFiles)

	result, err := f.installer(t, WithDebug(true)).Install(context.Background(), types.InstallRequest{Version: "v1.2.3", User: "alice"}, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(result.Destination.Path(), "tools", "Env.ps1"))

	entries, err := os.ReadDir(f.env.TempDir)
	require.NoError(t, err)
	kept := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "sdk-installer-") {
			kept++
			assert.FileExists(t, filepath.Join(f.env.TempDir, e.Name(), "sensing-dev-no-opencv-1.2.3-win64.zip"))
		}
	}
	assert.Equal(t, 1, kept)
}

func TestCleanupManagerKeepsFilesInDebug(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(tmp, 0755))

	cm := NewCleanupManager(true, nil)
	cm.AddDirectory(tmp)
	cm.Cleanup()
	assert.DirExists(t, tmp)

	cm = NewCleanupManager(false, nil)
	cm.AddDirectory(tmp)
	cm.AddFile(filepath.Join(dir, "missing.zip"))
	cm.Cleanup()
	assert.NoDirExists(t, tmp)
}
