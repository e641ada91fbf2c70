package installer

import (
	"github.com/flanksource/sdk-installer/pkg/config"
	"github.com/flanksource/sdk-installer/pkg/types"
)

// NewDefault creates an installer from the global configuration
// (embedded defaults merged with sdk-installer.yaml)
func NewDefault(env types.Environment, opts ...InstallOption) (*Installer, error) {
	return New(config.GetGlobalConfig(), env, opts...)
}
