package helpers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeRelease serves the GitHub release API and release downloads for one repository
type FakeRelease struct {
	Server *httptest.Server
	Repo   string
	Latest string
	Tags   []string

	mu       sync.Mutex
	assets   map[string][]byte
	requests []string
}

// NewFakeRelease starts a release server for repo (owner/name) publishing tags, newest first
func NewFakeRelease(repo string, tags ...string) *FakeRelease {
	f := &FakeRelease{Repo: repo, Tags: tags, assets: map[string][]byte{}}
	if len(tags) > 0 {
		f.Latest = tags[0]
	}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/repos/%s/releases/latest", repo), func(w http.ResponseWriter, r *http.Request) {
		if f.Latest == "" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"tag_name": f.Latest})
	})
	mux.HandleFunc(fmt.Sprintf("/repos/%s/releases", repo), func(w http.ResponseWriter, r *http.Request) {
		releases := make([]map[string]string, 0, len(f.Tags))
		for _, tag := range f.Tags {
			releases = append(releases, map[string]string{"tag_name": tag})
		}
		_ = json.NewEncoder(w).Encode(releases)
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.Path)
		body, ok := f.assets[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	})

	f.Server = httptest.NewServer(mux)
	return f
}

// AddAsset publishes body at /download/<tag>/<name>
func (f *FakeRelease) AddAsset(tag, name string, body []byte) string {
	path := fmt.Sprintf("/download/%s/%s", tag, name)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[path] = body
	return f.Server.URL + path
}

// DownloadBase is the base URL of release downloads
func (f *FakeRelease) DownloadBase() string {
	return f.Server.URL + "/download"
}

// Requests returns the download paths requested so far
func (f *FakeRelease) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.requests...)
}

func (f *FakeRelease) Close() {
	f.Server.Close()
}

// BuildZip creates a zip archive holding files (path -> content)
func BuildZip(files map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(content)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
