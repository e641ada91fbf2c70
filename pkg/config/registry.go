package config

import (
	"sync"

	"github.com/flanksource/commons/logger"
	"github.com/flanksource/sdk-installer/pkg/types"
)

var (
	globalConfig     *types.Config
	globalConfigOnce sync.Once
)

// GetGlobalConfig returns the merged global configuration (defaults + user config)
func GetGlobalConfig() *types.Config {
	globalConfigOnce.Do(func() {
		var err error
		globalConfig, err = LoadMergedConfig("")
		if err != nil {
			logger.Warnf("Failed to load %s, using defaults: %v", ConfigFile, err)
			// Fallback to defaults only if there's an error
			globalConfig, _ = LoadDefaultConfig()
		}
	})
	return globalConfig
}
