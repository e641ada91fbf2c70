package version

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// DefaultTokenSources are checked in order for a GitHub API token
var DefaultTokenSources = []string{"${GITHUB_TOKEN}", "${GH_TOKEN}", "${GITHUB_ACCESS_TOKEN}"}

// ResolveToken returns the first non-empty token from the given ${VAR} patterns
// and the name of the variable it came from.
func ResolveToken(sources ...string) (token, source string) {
	for _, pattern := range sources {
		expanded := os.ExpandEnv(pattern)
		if expanded != "" && expanded != pattern {
			return expanded, strings.TrimSuffix(strings.TrimPrefix(pattern, "${"), "}")
		}
	}
	return "", ""
}

// NewGitHubClient creates a go-github client on top of base, authenticating
// with token when one is given. apiURL overrides https://api.github.com/.
func NewGitHubClient(base *http.Client, token, apiURL string) (*github.Client, error) {
	httpClient := base
	if token != "" {
		ctx := context.Background()
		if base != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
		}
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	client := github.NewClient(httpClient)

	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %s: %w", apiURL, err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// SplitRepo splits owner/repo
func SplitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(strings.Trim(repo, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q (expected owner/repo)", repo)
	}
	return parts[0], parts[1], nil
}
