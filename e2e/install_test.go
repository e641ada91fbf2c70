package e2e

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	sdkinstaller "github.com/flanksource/sdk-installer"
	"github.com/flanksource/sdk-installer/e2e/helpers"
	"github.com/flanksource/sdk-installer/pkg/access"
	"github.com/flanksource/sdk-installer/pkg/installer"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/types"
)

type denyAll struct{}

func (denyAll) Entries(context.Context, string) ([]access.Entry, error) {
	return []access.Entry{{Principal: `BUILTIN\Administrators`, Type: "Allow", Rights: "FullControl"}}, nil
}

var packageFiles = map[string]string{
	"sensing-dev/bin/ion-core.dll":      "core",
	"sensing-dev/lib/cmake/ion.cmake":   "# cmake",
	"sensing-dev/tools/Env.ps1":         "Write-Host env",
	"sensing-dev/tools/Uninstaller.ps1": "Write-Host bye",
}

var _ = Describe("Installation pipeline", func() {
	var (
		release *helpers.FakeRelease
		testCtx *helpers.TestContext
		scripts *helpers.RecordingScripts
	)

	BeforeEach(func() {
		release = helpers.NewFakeRelease("Sensing-Dev/sensing-dev-installer", "v1.2.3", "v1.1.0")
		var err error
		testCtx, err = helpers.CreateInstallTestEnvironment(release)
		Expect(err).ToNot(HaveOccurred(), "Test environment creation should succeed")
		scripts = &helpers.RecordingScripts{}
	})

	AfterEach(func() {
		if testCtx != nil {
			testCtx.Cleanup()
		}
		release.Close()
	})

	install := func(req types.InstallRequest, opts ...installer.InstallOption) (*types.InstallResult, error) {
		opts = append([]installer.InstallOption{installer.WithScriptRunner(scripts)}, opts...)
		return sdkinstaller.InstallWithConfig(context.Background(), testCtx.Config, testCtx.Env, req, opts...)
	}

	Describe("per-user archive install", func() {
		BeforeEach(func() {
			zipped, err := helpers.BuildZip(packageFiles)
			Expect(err).ToNot(HaveOccurred())
			release.AddAsset("v1.2.3", "sensing-dev-no-opencv-1.2.3-win64.zip", zipped)
		})

		It("installs an explicit version into the user's profile", func() {
			result, err := install(types.InstallRequest{Version: "v1.2.3", User: "alice"})
			Expect(err).ToNot(HaveOccurred())

			Expect(result.Version.Numeric).To(Equal("1.2.3"))
			Expect(result.Target.URL).To(HaveSuffix("-no-opencv-1.2.3-win64.zip"))
			Expect(result.Target.Format).To(Equal(types.FormatArchive))

			dest := filepath.Join(testCtx.Env.LocalAppDataFor("alice"), "sensing-dev-no-opencv")
			Expect(result.Destination.Path()).To(Equal(dest))
			Expect(filepath.Join(dest, "tools", "Env.ps1")).To(BeARegularFile())
			Expect(filepath.Join(dest, "bin", "ion-core.dll")).To(BeARegularFile())

			Expect(scripts.Scripts).To(ConsistOf(filepath.Join(dest, "tools", "Env.ps1")))
			Expect(result.ExitCode).To(BeZero())
			Expect(testCtx.TempEntries()).To(BeEmpty())
		})

		It("resolves the latest release", func() {
			result, err := install(types.InstallRequest{Version: "LATEST", User: "alice"})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Version.Tag).To(Equal("v1.2.3"))
		})

		It("is idempotent", func() {
			req := types.InstallRequest{Version: "v1.2.3", User: "alice"}
			first, err := install(req)
			Expect(err).ToNot(HaveOccurred())

			marker := filepath.Join(first.Destination.Path(), "leftover.txt")
			Expect(os.WriteFile(marker, []byte("x"), 0644)).To(Succeed())

			_, err = install(req)
			Expect(err).ToNot(HaveOccurred())
			Expect(marker).ToNot(BeAnExistingFile())

			entries, err := os.ReadDir(first.Destination.Root)
			Expect(err).ToNot(HaveOccurred())
			Expect(entries).To(HaveLen(1), "only the package directory remains in the install root")
		})

		It("reports a missing release with a suggestion", func() {
			result, err := install(types.InstallRequest{Version: "v1.2.4", User: "alice"})
			Expect(err).To(HaveOccurred())
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindDownload))
			Expect(err.Error()).To(ContainSubstring("closest published release: v1.2.3"))
			Expect(sdkinstaller.ExitCode(err)).To(Equal(result.ExitCode))
			Expect(testCtx.TempEntries()).To(BeEmpty())
		})

		It("rejects a malformed version before downloading", func() {
			_, err := install(types.InstallRequest{Version: "nightly", User: "alice"})
			Expect(err).To(HaveOccurred())
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindMalformedVersion))
			Expect(release.Requests()).To(BeEmpty())
		})

		It("selects the variant bundling the optional component", func() {
			zipped, err := helpers.BuildZip(packageFiles)
			Expect(err).ToNot(HaveOccurred())
			release.AddAsset("v1.2.3", "sensing-dev-1.2.3-win64.zip", zipped)

			result, err := install(types.InstallRequest{Version: "v1.2.3", User: "alice", IncludeOptionalComponent: true})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Target.URL).ToNot(ContainSubstring("-no-"))
			Expect(result.Destination.PackageDir).To(Equal("sensing-dev"))
		})
	})

	Describe("native package install", func() {
		var msi *helpers.FakeMsi
		var url string

		BeforeEach(func() {
			msi = &helpers.FakeMsi{}
			url = release.AddAsset("custom", "pkg.msi", []byte("msi"))
		})

		It("installs an explicit .msi URL with elevation when the root is not writable", func() {
			result, err := install(
				types.InstallRequest{Version: "v0.0.1", ExplicitURL: url},
				installer.WithNativeInstaller(msi),
				installer.WithChecker(&access.Checker{Source: denyAll{}}),
			)
			Expect(err).ToNot(HaveOccurred())

			Expect(result.Target.URL).To(Equal(url))
			Expect(result.Target.Format).To(Equal(types.FormatNativePackage))
			Expect(result.Access.Writable).To(BeFalse())

			Expect(msi.Calls).To(HaveLen(1))
			Expect(msi.Calls[0].Elevate).To(BeTrue())
			Expect(msi.Calls[0].TargetDir).To(Equal(testCtx.Env.LocalAppData))
			Expect(result.LogFile).To(BeARegularFile())
			Expect(strings.HasPrefix(filepath.Base(result.LogFile), "sensing-dev-")).To(BeTrue())

			// the package ships no activation script in this test
			activate, ok := result.Stage(types.StageActivate)
			Expect(ok).To(BeTrue())
			Expect(activate.Status).To(Equal(types.StageStatusWarning))
			Expect(result.ExitCode).To(Equal(pipeline.KindActivationScriptMissing.ExitCode()))
		})
	})
})
