package cmd

import (
	"fmt"
	"runtime"

	"github.com/flanksource/clicky"
	"github.com/flanksource/commons/logger"
	"github.com/flanksource/sdk-installer/pkg/config"
	"github.com/flanksource/sdk-installer/pkg/platform"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/spf13/cobra"
)

var (
	tmpDir       string
	debug        bool
	strict       bool
	osOverride   string
	archOverride string
	configFile   string
	sdkConfig    *types.Config
)

var rootCmd = &cobra.Command{
	Use:   "sdk-installer",
	Short: "Installs the Sensing-Dev SDK and its USB driver",
	Long: `sdk-installer resolves a Sensing-Dev SDK release, downloads the matching
package and installs it: the zip archive into a user's profile, or the msi
through the Windows installer. The environment script shipped with the
package is run afterwards.

Running sdk-installer without a subcommand is the same as "sdk-installer install".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Apply clicky flags after command line parsing
		clicky.Flags.UseFlags()

		// Set global platform overrides from CLI flags
		if cmd.Flags().Changed("os") || cmd.Flags().Changed("arch") {
			if err := platform.Validate(platform.Platform{OS: osOverride, Arch: archOverride}); err != nil {
				return err
			}
		}
		platform.SetGlobalOverrides(osOverride, archOverride)

		var err error
		sdkConfig, err = config.LoadMergedConfig(configFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if tmpDir != "" {
			sdkConfig.Settings.TmpDir = tmpDir
		}

		logger.Debugf("Target platform %s/%s", osOverride, archOverride)
		return nil
	},
	RunE: runInstall,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// GetConfig returns the loaded configuration
func GetConfig() *types.Config {
	return sdkConfig
}

func init() {
	clicky.BindAllFlags(rootCmd.PersistentFlags(), "tasks", "!format")

	rootCmd.PersistentFlags().StringVar(&tmpDir, "tmp-dir", "", "Directory for downloads and installer logs (default: system temp directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Keep downloaded and extracted files")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Abort on every error, including installer and activation failures")
	rootCmd.PersistentFlags().StringVar(&osOverride, "os", runtime.GOOS, "Target OS (windows, linux, darwin)")
	rootCmd.PersistentFlags().StringVar(&archOverride, "arch", runtime.GOARCH, "Target architecture (amd64, arm64)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to sdk-installer.yaml config file")

	bindInstallFlags(rootCmd)
}
