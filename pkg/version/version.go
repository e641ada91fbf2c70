package version

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/types"
)

// tagPattern extracts major.minor.patch from release tags such as v1.2.3 or v2.0.0-rc1
var tagPattern = regexp.MustCompile(`v(\d+\.\d+\.\d+)(-\w+)?`)

// ParseTag builds a ResolvedVersion from a release tag. A tag that does not
// match the pattern still resolves, but without a numeric component.
func ParseTag(tag string) types.ResolvedVersion {
	tag = strings.TrimSpace(tag)
	resolved := types.ResolvedVersion{Tag: tag}

	if m := tagPattern.FindStringSubmatch(tag); m != nil {
		resolved.Numeric = m[1]
	}
	if v, err := semver.NewVersion(tag); err == nil {
		resolved.Semver = v
	}
	return resolved
}

// RequireNumeric returns a MalformedVersionError when the numeric triple
// could not be extracted from the tag.
func RequireNumeric(v types.ResolvedVersion, stage types.Stage) error {
	if v.HasNumeric() {
		return nil
	}
	return pipeline.Errorf(pipeline.KindMalformedVersion, stage, v.Tag,
		"tag %q does not match v<major>.<minor>.<patch>[-suffix]", v.Tag)
}

// Normalize strips a leading v/V and surrounding whitespace
func Normalize(version string) string {
	version = strings.TrimSpace(version)
	version = strings.TrimPrefix(version, "v")
	return strings.TrimPrefix(version, "V")
}
