package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/agnivade/levenshtein"
)

// SuggestClosestVersion finds the published tag closest to the requested one.
// Semver tags are compared by minor/patch distance within the same major;
// anything else falls back to edit distance on the tag text.
func SuggestClosestVersion(requested string, releases []Release) string {
	if len(releases) == 0 {
		return ""
	}

	requestedSemver, err := semver.NewVersion(Normalize(requested))
	if err != nil {
		return closestByName(requested, releases)
	}

	var closest *Release
	var minDiff uint64 = ^uint64(0)

	for i := range releases {
		r := &releases[i]
		if r.Prerelease || r.Semver == nil {
			continue
		}
		if r.Semver.Equal(requestedSemver) {
			return r.Tag
		}
		if diff := calculateVersionDiff(requestedSemver, r.Semver); diff < minDiff {
			minDiff = diff
			closest = r
		}
	}

	if closest != nil && minDiff != ^uint64(0) {
		return closest.Tag
	}
	return latestStable(releases)
}

func closestByName(requested string, releases []Release) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	best := ""
	bestDistance := -1
	for _, r := range releases {
		d := levenshtein.ComputeDistance(requested, strings.ToLower(r.Tag))
		if bestDistance < 0 || d < bestDistance {
			best = r.Tag
			bestDistance = d
		}
	}
	return best
}

// latestStable returns the newest non-prerelease tag, or the first tag when all are prereleases
func latestStable(releases []Release) string {
	var latest *Release
	for i := range releases {
		r := &releases[i]
		if r.Prerelease || r.Semver == nil {
			continue
		}
		if latest == nil || r.Semver.GreaterThan(latest.Semver) {
			latest = r
		}
	}
	if latest != nil {
		return latest.Tag
	}
	return releases[0].Tag
}

// calculateVersionDiff weights minor over patch differences; a different
// major is never considered close.
func calculateVersionDiff(v1, v2 *semver.Version) uint64 {
	if v1.Major() != v2.Major() {
		return ^uint64(0)
	}
	minorDiff := absDiff(v1.Minor(), v2.Minor())
	patchDiff := absDiff(v1.Patch(), v2.Patch())
	return minorDiff*1000 + patchDiff
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
