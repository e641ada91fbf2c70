package cmd

import (
	"context"
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/sdk-installer/pkg/version"
	"github.com/spf13/cobra"
)

// ReleaseInfo is a published release for table display
type ReleaseInfo struct {
	Tag        string `json:"tag" pretty:"label=Tag"`
	Version    string `json:"version" pretty:"label=Version"`
	Prerelease bool   `json:"prerelease" pretty:"label=Pre-release"`
	Published  string `json:"published" pretty:"label=Published"`
}

// ReleaseList represents a list of releases for table display
type ReleaseList struct {
	Releases []ReleaseInfo `json:"releases" pretty:"table"`
}

var (
	releaseLimit   int
	releaseSuggest string
)

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List published SDK releases",
	Long: `List the releases published for the SDK, newest first.

With --suggest, print the published release closest to the given tag.`,
	RunE: runReleases,
}

func init() {
	rootCmd.AddCommand(releasesCmd)
	releasesCmd.Flags().IntVar(&releaseLimit, "limit", 20, "Maximum number of releases to list")
	releasesCmd.Flags().StringVar(&releaseSuggest, "suggest", "", "Print the published release closest to this tag")
}

func runReleases(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	resolver, err := version.NewResolver(cfg.Package.Name, cfg.Package.Repo, version.WithAPIURL(cfg.Settings.GitHubAPIURL))
	if err != nil {
		return err
	}

	ctx := context.Background()
	if releaseSuggest != "" {
		suggestion, err := resolver.Suggest(ctx, releaseSuggest)
		if err != nil {
			return err
		}
		if suggestion == "" {
			return fmt.Errorf("no releases published for %s", cfg.Package.Repo)
		}
		cmd.Println(suggestion)
		return nil
	}

	releases, err := resolver.ListReleases(ctx, releaseLimit)
	if err != nil {
		return err
	}

	var list ReleaseList
	for _, r := range releases {
		info := ReleaseInfo{
			Tag:        r.Tag,
			Version:    version.ParseTag(r.Tag).Numeric,
			Prerelease: r.Prerelease,
		}
		if !r.PublishedAt.IsZero() {
			info.Published = r.PublishedAt.Format("2006-01-02")
		}
		list.Releases = append(list.Releases, info)
	}

	result, err := clicky.Format(list)
	if err != nil {
		return err
	}

	cmd.Println(result)
	return nil
}
