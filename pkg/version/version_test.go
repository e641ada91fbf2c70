package version

import (
	"errors"

	"github.com/Masterminds/semver/v3"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseTag", func() {
	DescribeTable("extracts the numeric triple from well-formed tags",
		func(tag, numeric string) {
			resolved := ParseTag(tag)
			Expect(resolved.Tag).To(Equal(tag))
			Expect(resolved.Numeric).To(Equal(numeric))
			Expect(RequireNumeric(resolved, types.StageLocate)).To(Succeed())
		},
		Entry("plain", "v1.2.3", "1.2.3"),
		Entry("release candidate", "v2.0.0-rc1", "2.0.0"),
		Entry("multi-digit components", "v10.20.300", "10.20.300"),
		Entry("underscore suffix", "v0.1.0-beta_2", "0.1.0"),
	)

	DescribeTable("leaves the numeric triple empty for malformed tags",
		func(tag string) {
			resolved := ParseTag(tag)
			Expect(resolved.HasNumeric()).To(BeFalse())

			err := RequireNumeric(resolved, types.StageLocate)
			Expect(err).To(HaveOccurred())
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindMalformedVersion))
			Expect(errors.Is(err, &pipeline.Error{Kind: pipeline.KindMalformedVersion})).To(BeTrue())
		},
		Entry("missing v prefix", "1.2.3"),
		Entry("two components", "v1.2"),
		Entry("text", "nightly"),
		Entry("empty", ""),
	)

	It("keeps a parsed semver when the tag is valid", func() {
		resolved := ParseTag("v2.0.0-rc1")
		Expect(resolved.Semver).ToNot(BeNil())
		Expect(resolved.Semver.Prerelease()).To(Equal("rc1"))
	})
})

var _ = Describe("SuggestClosestVersion", func() {
	releases := func(tags ...string) []Release {
		out := make([]Release, 0, len(tags))
		for _, tag := range tags {
			r := Release{Tag: tag}
			if v, err := semver.NewVersion(tag); err == nil {
				r.Semver = v
				r.Prerelease = v.Prerelease() != ""
			}
			out = append(out, r)
		}
		return out
	}

	It("returns nothing when no releases are published", func() {
		Expect(SuggestClosestVersion("v1.0.0", nil)).To(BeEmpty())
	})

	It("prefers the nearest patch within the same minor", func() {
		Expect(SuggestClosestVersion("v1.2.4", releases("v1.3.0", "v1.2.3", "v1.0.0"))).To(Equal("v1.2.3"))
	})

	It("falls back to the latest stable when the major differs", func() {
		Expect(SuggestClosestVersion("v9.0.0", releases("v1.3.0-rc1", "v1.2.3", "v1.0.0"))).To(Equal("v1.2.3"))
	})

	It("uses edit distance for non-semver requests", func() {
		Expect(SuggestClosestVersion("nightly-2024", releases("nightly-2023", "v1.0.0"))).To(Equal("nightly-2023"))
	})
})
