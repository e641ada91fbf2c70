package runtime

import (
	"time"

	"github.com/flanksource/clicky/exec"
)

// RunOptions configures script execution
type RunOptions struct {
	// Timeout for script execution
	Timeout time.Duration `json:"timeout,omitempty" flag:"timeout"`

	// WorkingDir sets the working directory for script execution
	WorkingDir string `json:"working_dir,omitempty" flag:"working-dir"`

	// Env provides custom environment variables
	Env map[string]string `json:"env,omitempty" flag:"env"`

	// Args provides additional command-line arguments to pass to the script
	Args []string `json:"args,omitempty" args:"true"`
}

// RunResult extends exec.Process with runtime-specific metadata
type RunResult struct {
	*exec.Process

	// RuntimePath is the path to the runtime binary used
	RuntimePath string

	// RuntimeVersion is the version of the runtime used
	RuntimeVersion string
}

// runtimeInfo holds detected runtime information
type runtimeInfo struct {
	Path    string
	Version string
}
