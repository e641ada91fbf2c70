package version

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/flanksource/sdk-installer/pkg/pipeline"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Resolver", func() {
	var (
		server  *httptest.Server
		latest  http.HandlerFunc
		list    http.HandlerFunc
		hits    int
		resolve func(requested string) (*Resolver, error)
	)

	BeforeEach(func() {
		hits = 0
		latest = func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"tag_name": "v2.0.0-rc1"})
		}
		list = func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]map[string]any{
				{"tag_name": "v1.2.3"},
				{"tag_name": "v1.10.0"},
				{"tag_name": "v2.0.0-rc1", "prerelease": true},
				{"tag_name": "v9.9.9", "draft": true},
			})
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/repos/Sensing-Dev/sensing-dev-installer/releases/latest", func(w http.ResponseWriter, r *http.Request) {
			hits++
			latest(w, r)
		})
		mux.HandleFunc("/repos/Sensing-Dev/sensing-dev-installer/releases", func(w http.ResponseWriter, r *http.Request) {
			list(w, r)
		})
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)

		resolve = func(string) (*Resolver, error) {
			return NewResolver("sensing-dev", "Sensing-Dev/sensing-dev-installer",
				WithAPIURL(server.URL), WithToken("test-token"))
		}
	})

	It("uses an explicit version verbatim without calling the API", func() {
		r, err := resolve("")
		Expect(err).ToNot(HaveOccurred())

		resolved, err := r.Resolve(context.Background(), "v1.2.3", nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(resolved.Tag).To(Equal("v1.2.3"))
		Expect(resolved.Numeric).To(Equal("1.2.3"))
		Expect(hits).To(Equal(0))
	})

	It("does not validate explicit versions against the release list", func() {
		r, _ := resolve("")
		resolved, err := r.Resolve(context.Background(), "nightly", nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(resolved.Tag).To(Equal("nightly"))
		Expect(resolved.HasNumeric()).To(BeFalse())
		Expect(hits).To(Equal(0))
	})

	DescribeTable("queries the latest release",
		func(requested string) {
			r, _ := resolve("")
			resolved, err := r.Resolve(context.Background(), requested, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(resolved.Tag).To(Equal("v2.0.0-rc1"))
			Expect(resolved.Numeric).To(Equal("2.0.0"))
			Expect(hits).To(Equal(1))
		},
		Entry("when no version is given", ""),
		Entry("when latest is requested", "latest"),
		Entry("case-insensitively", "LATEST"),
	)

	DescribeTable("reports a ResolutionError",
		func(handler http.HandlerFunc) {
			latest = handler
			r, _ := resolve("")
			_, err := r.Resolve(context.Background(), "", nil)
			Expect(err).To(HaveOccurred())
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindResolution))
			Expect(err.Error()).To(ContainSubstring("releases/latest"))
		},
		Entry("on a non-200 status", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		})),
		Entry("on malformed JSON", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		})),
		Entry("on an empty tag", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"tag_name": ""}`))
		})),
	)

	It("reports a ResolutionError when the endpoint is unreachable", func() {
		r, _ := resolve("")
		server.Close()
		_, err := r.Resolve(context.Background(), "latest", nil)
		Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindResolution))
	})

	It("lists published releases newest first, skipping drafts", func() {
		r, _ := resolve("")
		releases, err := r.ListReleases(context.Background(), 10)
		Expect(err).ToNot(HaveOccurred())

		tags := []string{}
		for _, rel := range releases {
			tags = append(tags, rel.Tag)
		}
		Expect(tags).To(Equal([]string{"v2.0.0-rc1", "v1.10.0", "v1.2.3"}))
		Expect(releases[0].Prerelease).To(BeTrue())
	})

	It("suggests the closest published tag", func() {
		r, _ := resolve("")
		suggestion, err := r.Suggest(context.Background(), "v1.2.9")
		Expect(err).ToNot(HaveOccurred())
		Expect(suggestion).To(Equal("v1.2.3"))
	})

	It("rejects malformed repositories", func() {
		_, err := NewResolver("x", "not-a-repo")
		Expect(err).To(HaveOccurred())
	})
})
