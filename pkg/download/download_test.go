package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha256 of "payload"
const payloadSHA256 = "239f59ed55e737c77147cf55ad0c1b030b6d7ee748a7426952f9b852d5a935e5"

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/pkg.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	})
	mux.HandleFunc("/moved.zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/pkg.zip", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDownload(t *testing.T) {
	server := newServer(t)
	dest := filepath.Join(t.TempDir(), "nested", "pkg.zip")

	n, err := Download(context.Background(), server.URL+"/moved.zip", dest, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
	assert.NoFileExists(t, dest+".tmp")
}

func TestDownloadNotFound(t *testing.T) {
	server := newServer(t)
	dest := filepath.Join(t.TempDir(), "missing.zip")

	_, err := Download(context.Background(), server.URL+"/missing.zip", dest, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "404")
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+".tmp")
}

func TestDownloadChecksum(t *testing.T) {
	server := newServer(t)
	dir := t.TempDir()

	_, err := Download(context.Background(), server.URL+"/pkg.zip", filepath.Join(dir, "ok.zip"), nil,
		WithChecksum("sha256:"+payloadSHA256))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "ok.zip"))

	_, err = Download(context.Background(), server.URL+"/pkg.zip", filepath.Join(dir, "bad.zip"), nil,
		WithChecksum("sha256:"+strings.Repeat("a", 64)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.NoFileExists(t, filepath.Join(dir, "bad.zip"))
	assert.NoFileExists(t, filepath.Join(dir, "bad.zip.tmp"))
}

func TestDownloadTransportFailure(t *testing.T) {
	server := newServer(t)
	url := server.URL + "/pkg.zip"
	server.Close()

	_, err := Download(context.Background(), url, filepath.Join(t.TempDir(), "pkg.zip"), nil)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}
