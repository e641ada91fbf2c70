package cmd

import (
	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/flanksource/sdk-installer/pkg/config"
	"github.com/flanksource/sdk-installer/pkg/driver"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/spf13/cobra"
)

var (
	driverVersion  string
	driverDeviceID string
)

var driverCmd = &cobra.Command{
	Use:   "driver",
	Short: "Install the USB camera driver",
	Long: `Download the driver bundle, run its installer for the device and register
the generated INF with pnputil. Needs administrator rights.

Examples:
  sdk-installer driver
  sdk-installer driver --device-id "USB\VID_2676&PID_BA02"`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if driverDeviceID == "" {
			driverDeviceID = cfg.Driver.DeviceID
		}

		d, err := driver.New(cfg, config.DetectEnvironment(cfg.Settings.TmpDir))
		if err != nil {
			return err
		}
		d.Keep = debug

		var installErr error
		task.StartTask("driver", func(ctx flanksourceContext.Context, t *task.Task) (interface{}, error) {
			installErr = d.Install(ctx, driverVersion, driverDeviceID, driver.TaskProgress{Task: t}, t)
			if installErr == nil {
				t.Success()
			}
			return nil, installErr
		})

		clicky.WaitForGlobalCompletion()

		if installErr != nil {
			return &ExitError{Code: pipeline.ExitCodeOf(installErr), Err: installErr}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(driverCmd)
	driverCmd.Flags().StringVar(&driverVersion, "driver-version", "", "Driver release tag (default: driver.version from config)")
	driverCmd.Flags().StringVar(&driverDeviceID, "device-id", "", "Device instance ID passed to the driver installer")
}
