package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo is stamped at build time by the release pipeline
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Dirty   bool   `json:"dirty"`
}

var buildInfo = BuildInfo{Version: "dev", Commit: "unknown", Date: "unknown"}

// SetVersion records the build information shown by "sdk-installer version"
func SetVersion(version, commit, date, dirty string) {
	buildInfo = BuildInfo{Version: version, Commit: commit, Date: date, Dirty: dirty == "true"}
}

func (b BuildInfo) String() string {
	v := b.Version
	if b.Dirty {
		v += "-dirty"
	}
	return fmt.Sprintf("sdk-installer %s (commit %s, built %s, %s/%s)", v, b.Commit, b.Date, runtime.GOOS, runtime.GOARCH)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sdk-installer version",
	// configuration is not needed to print the version
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(buildInfo.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
