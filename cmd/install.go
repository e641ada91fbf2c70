package cmd

import (
	"errors"
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/flanksource/sdk-installer/pkg/config"
	"github.com/flanksource/sdk-installer/pkg/installer"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/spf13/cobra"
)

var (
	installVersion string
	installUser    string
	installURL     string
	installPath    string
	withOptional   bool
	installSum     string
)

var installCmd = &cobra.Command{
	Use:          "install",
	Short:        "Install the SDK",
	SilenceUsage: true,
	Long: `Install the SDK for the current user or another user's profile.

Without --user the msi package is installed through the Windows installer,
requesting elevation when the install root is not writable. With --user the
zip archive is extracted into that user's local application-data directory.

Examples:
  sdk-installer install                              # Latest release, msi
  sdk-installer install --version v1.2.3 --user alice
  sdk-installer install --url https://example.com/pkg.msi
  sdk-installer install --with-opencv --install-path D:\sdk`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
	bindInstallFlags(installCmd)
}

func bindInstallFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&installVersion, "version", "latest", "Release tag to install")
	cmd.Flags().StringVarP(&installUser, "user", "u", "", "Install the archive into this user's profile")
	cmd.Flags().StringVar(&installURL, "url", "", "Download this artifact instead of the release asset (.zip or .msi)")
	cmd.Flags().StringVar(&installPath, "install-path", "", "Install root (default: local application-data directory)")
	cmd.Flags().BoolVar(&withOptional, "with-optional", false, "Install the package variant bundling the optional component")
	cmd.Flags().BoolVar(&withOptional, "with-opencv", false, "Alias of --with-optional")
	cmd.Flags().StringVar(&installSum, "checksum", "", "Expected artifact digest, e.g. sha256:<hex>")
}

func installRequest() types.InstallRequest {
	return types.InstallRequest{
		Version:                  installVersion,
		User:                     installUser,
		ExplicitURL:              installURL,
		InstallPath:              installPath,
		IncludeOptionalComponent: withOptional,
		Checksum:                 installSum,
	}
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	env := config.DetectEnvironment(cfg.Settings.TmpDir)

	inst, err := installer.New(cfg, env,
		installer.WithDebug(debug),
		installer.WithStrict(strict),
	)
	if err != nil {
		return err
	}

	req := installRequest()
	var result *types.InstallResult
	var installErr error

	task.StartTask(cfg.Package.Name, func(ctx flanksourceContext.Context, t *task.Task) (interface{}, error) {
		result, installErr = inst.Install(ctx, req, t)
		return result, installErr
	})

	clicky.WaitForGlobalCompletion()

	if result != nil {
		fmt.Println(result.Pretty())
	}

	if installErr != nil {
		return &ExitError{Code: pipeline.ExitCodeOf(installErr), Err: installErr}
	}
	if result != nil && result.ExitCode != 0 {
		return &ExitError{
			Code: result.ExitCode,
			Err:  fmt.Errorf("installation completed with warnings: %w", errors.Join(result.Warnings()...)),
		}
	}
	return nil
}
