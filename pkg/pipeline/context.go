package pipeline

import (
	"time"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/types"
)

// Context records stage outcomes for a single run and applies the policy.
type Context struct {
	// Task context for logging and progress, may be nil
	Task   *task.Task
	Policy Policy
	Result *types.InstallResult

	firstErr error
}

// NewContext creates a pipeline context writing into result.
func NewContext(t *task.Task, policy Policy, result *types.InstallResult) *Context {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if result == nil {
		result = &types.InstallResult{}
	}
	return &Context{Task: t, Policy: policy, Result: result}
}

// Run executes fn as stage and records the outcome. It returns a non-nil
// error only when the policy says the pipeline must stop.
func (c *Context) Run(stage types.Stage, fn func() error) error {
	start := time.Now()
	c.LogDebug("stage %s: started", stage)
	err := fn()
	return c.Record(stage, err, time.Since(start))
}

// Record stores the outcome of a stage that was executed outside Run.
func (c *Context) Record(stage types.Stage, err error, d time.Duration) error {
	res := types.StageResult{Stage: stage, Duration: d, Error: err}

	switch {
	case err == nil:
		res.Status = types.StageStatusOK
		c.LogDebug("stage %s: ok (%v)", stage, d.Round(time.Millisecond))
	case c.Policy.ShouldAbort(err):
		res.Status = types.StageStatusFailed
		res.Message = err.Error()
		c.LogError("%v", err)
	default:
		res.Status = types.StageStatusWarning
		res.Message = err.Error()
		c.LogWarn("%v", err)
	}

	c.Result.Stages = append(c.Result.Stages, res)

	if err != nil && c.firstErr == nil {
		c.firstErr = err
		c.Result.ExitCode = ExitCodeOf(err)
	}

	if res.Status == types.StageStatusFailed {
		return err
	}
	return nil
}

// Skip records a stage that did not apply to this run.
func (c *Context) Skip(stage types.Stage, reason string) {
	c.Result.Stages = append(c.Result.Stages, types.StageResult{
		Stage:   stage,
		Status:  types.StageStatusSkipped,
		Message: reason,
	})
	c.LogDebug("stage %s: skipped (%s)", stage, reason)
}

// FirstError returns the first error recorded, whether or not it aborted.
func (c *Context) FirstError() error {
	return c.firstErr
}

// LogInfo logs an info message if task context is available
func (c *Context) LogInfo(format string, args ...any) {
	if c.Task != nil {
		c.Task.Infof(format, args...)
	}
}

// LogDebug logs a debug message if task context is available
func (c *Context) LogDebug(format string, args ...any) {
	if c.Task != nil {
		c.Task.Debugf(format, args...)
	}
}

// LogWarn logs a non-fatal error if task context is available
func (c *Context) LogWarn(format string, args ...any) {
	if c.Task != nil {
		c.Task.Warnf("⚠️ "+format, args...)
	}
}

// LogError logs an error message if task context is available
func (c *Context) LogError(format string, args ...any) {
	if c.Task != nil {
		c.Task.Errorf("❌ "+format, args...)
	}
}
