package runtime

import (
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, "'C:\\Users\\alice'", Quote(`C:\Users\alice`))
	assert.Equal(t, "'it''s'", Quote("it's"))
	assert.Equal(t, "''", Quote(""))
}

func TestParseVersion(t *testing.T) {
	d := powershellDetector(nil)
	assert.Equal(t, "7.4.1", d.parseVersion("7.4.1\n"))
	assert.Equal(t, "5.1.22621", d.parseVersion("5.1.22621.2506"))
	assert.Equal(t, "", d.parseVersion("not a version"))
}

func TestFindBinaryInPath(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("uses a shell script as a fake binary")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "fake-pwsh")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\necho 7.4.1\n"), 0755))
	t.Setenv("PATH", dir)

	path, err := findBinaryInPath("missing", "fake-pwsh")
	require.NoError(t, err)
	assert.Equal(t, fake, path)

	_, err = findBinaryInPath("missing")
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestDetectRuntimeCachesResult(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("uses a shell script as a fake binary")
	}
	resetDetected()
	t.Cleanup(resetDetected)

	dir := t.TempDir()
	fake := filepath.Join(dir, "pwsh")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\necho 7.4.1\n"), 0755))
	t.Setenv("PATH", dir)

	path, err := FindPowershell(nil)
	require.NoError(t, err)
	assert.Equal(t, fake, path)

	// removing the binary does not invalidate the detected runtime
	require.NoError(t, os.Remove(fake))
	path, err = FindPowershell(nil)
	require.NoError(t, err)
	assert.Equal(t, fake, path)
}
