package version

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/google/go-github/v57/github"
	"github.com/samber/lo"
)

// Release is a published release of the package repository
type Release struct {
	Tag         string
	Name        string
	Prerelease  bool
	PublishedAt time.Time
	Semver      *semver.Version
}

// Resolver turns a requested version into a concrete release tag, asking
// the release-listing API only when the latest release is wanted.
type Resolver struct {
	// Name is the package name used in the status line
	Name  string
	Owner string
	Repo  string

	client *github.Client
}

// ResolverOption configures a Resolver
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	apiURL       string
	token        string
	tokenSources []string
	httpClient   *http.Client
}

// WithAPIURL points the resolver at a different GitHub API endpoint
func WithAPIURL(apiURL string) ResolverOption {
	return func(c *resolverConfig) {
		c.apiURL = apiURL
	}
}

// WithToken sets an explicit API token instead of reading the environment
func WithToken(token string) ResolverOption {
	return func(c *resolverConfig) {
		c.token = token
	}
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(c *resolverConfig) {
		c.httpClient = client
	}
}

// NewResolver creates a resolver for the owner/repo release feed
func NewResolver(name, repo string, opts ...ResolverOption) (*Resolver, error) {
	cfg := &resolverConfig{tokenSources: DefaultTokenSources}
	for _, opt := range opts {
		opt(cfg)
	}

	owner, repoName, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	token := cfg.token
	if token == "" {
		token, _ = ResolveToken(cfg.tokenSources...)
	}

	client, err := NewGitHubClient(cfg.httpClient, token, cfg.apiURL)
	if err != nil {
		return nil, err
	}

	return &Resolver{Name: name, Owner: owner, Repo: repoName, client: client}, nil
}

func (r *Resolver) latestURL() string {
	return fmt.Sprintf("%srepos/%s/%s/releases/latest", r.client.BaseURL, r.Owner, r.Repo)
}

// Resolve returns the requested tag verbatim, or the latest published tag
// when requested is empty or "latest".
func (r *Resolver) Resolve(ctx context.Context, requested string, t *task.Task) (types.ResolvedVersion, error) {
	req := types.InstallRequest{Version: requested}

	tag := requested
	if req.WantsLatest() {
		latest, err := r.Latest(ctx)
		if err != nil {
			return types.ResolvedVersion{}, err
		}
		tag = latest
		if t != nil {
			t.V(3).Infof("Latest release of %s/%s is %s", r.Owner, r.Repo, tag)
		}
	}

	resolved := ParseTag(tag)
	if t != nil {
		t.Infof("Installing %s %s", r.Name, resolved.Tag)
	}
	return resolved, nil
}

// Latest queries the release-listing API for the newest published tag
func (r *Resolver) Latest(ctx context.Context) (string, error) {
	release, _, err := r.client.Repositories.GetLatestRelease(ctx, r.Owner, r.Repo)
	if err != nil {
		return "", pipeline.NewError(pipeline.KindResolution, types.StageResolve, r.latestURL(), err)
	}
	if release.GetTagName() == "" {
		return "", pipeline.Errorf(pipeline.KindResolution, types.StageResolve, r.latestURL(), "release has no tag_name")
	}
	return release.GetTagName(), nil
}

// ListReleases returns up to limit published releases, newest first. Drafts
// are skipped.
func (r *Resolver) ListReleases(ctx context.Context, limit int) ([]Release, error) {
	if limit <= 0 {
		limit = 30
	}
	perPage := min(limit, 100)

	var all []*github.RepositoryRelease
	opts := &github.ListOptions{PerPage: perPage}
	for {
		page, resp, err := r.client.Repositories.ListReleases(ctx, r.Owner, r.Repo, opts)
		if err != nil {
			return nil, pipeline.NewError(pipeline.KindResolution, types.StageResolve,
				fmt.Sprintf("%s/%s", r.Owner, r.Repo), err)
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 || len(all) >= limit {
			break
		}
		opts.Page = resp.NextPage
	}

	releases := lo.FilterMap(all, func(rel *github.RepositoryRelease, _ int) (Release, bool) {
		if rel.GetDraft() || rel.GetTagName() == "" {
			return Release{}, false
		}
		out := Release{
			Tag:         rel.GetTagName(),
			Name:        rel.GetName(),
			Prerelease:  rel.GetPrerelease(),
			PublishedAt: rel.GetPublishedAt().Time,
		}
		if v, err := semver.NewVersion(out.Tag); err == nil {
			out.Semver = v
		}
		return out, true
	})

	SortReleases(releases)
	if len(releases) > limit {
		releases = releases[:limit]
	}
	return releases, nil
}

// Suggest returns the published tag closest to requested, or "" when nothing
// is published.
func (r *Resolver) Suggest(ctx context.Context, requested string) (string, error) {
	releases, err := r.ListReleases(ctx, 100)
	if err != nil {
		return "", err
	}
	return SuggestClosestVersion(requested, releases), nil
}

// SortReleases orders releases newest first. Semver tags sort before
// non-semver tags, which keep their publish order.
func SortReleases(releases []Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		a, b := releases[i], releases[j]
		switch {
		case a.Semver != nil && b.Semver != nil:
			return a.Semver.GreaterThan(b.Semver)
		case a.Semver != nil:
			return true
		case b.Semver != nil:
			return false
		default:
			return a.PublishedAt.After(b.PublishedAt)
		}
	})
}
