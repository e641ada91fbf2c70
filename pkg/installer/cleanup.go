package installer

import (
	"os"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/utils"
)

// CleanupManager removes temporary downloads and extraction directories.
// In debug mode everything is kept for inspection.
type CleanupManager struct {
	debug       bool
	files       []string
	directories []string
	task        *task.Task
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(debug bool, t *task.Task) *CleanupManager {
	return &CleanupManager{
		debug:       debug,
		task:        t,
		files:       make([]string, 0),
		directories: make([]string, 0),
	}
}

// AddFile adds a file to be cleaned up
func (cm *CleanupManager) AddFile(filepath string) {
	if filepath != "" {
		cm.files = append(cm.files, filepath)
	}
}

// AddDirectory adds a directory to be cleaned up
func (cm *CleanupManager) AddDirectory(dirpath string) {
	if dirpath != "" {
		cm.directories = append(cm.directories, dirpath)
	}
}

// Paths returns everything registered for cleanup.
func (cm *CleanupManager) Paths() []string {
	return append(append([]string{}, cm.directories...), cm.files...)
}

// Cleanup performs the actual cleanup
func (cm *CleanupManager) Cleanup() {
	if cm.debug {
		if cm.task != nil {
			for _, path := range cm.Paths() {
				cm.task.Debugf("Install: keeping temporary files for debugging: %s", utils.LogPath(path))
			}
		}
		return
	}

	// Clean up directories first (they may contain files)
	for _, dir := range cm.directories {
		if err := os.RemoveAll(dir); err != nil && cm.task != nil {
			cm.task.V(4).Infof("Failed to clean up directory %s: %v", utils.LogPath(dir), err)
		}
	}

	for _, file := range cm.files {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) && cm.task != nil {
			cm.task.V(4).Infof("Failed to clean up file %s: %v", utils.LogPath(file), err)
		}
	}
}
