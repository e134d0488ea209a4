package jobrun

import "github.com/fuzoj/jobrunner/internal/model"

// ProgressCallback is the injected capability the driver notifies at
// task boundaries. Implementations must be idempotent; a failure to
// deliver an event must never fail the job, so the driver treats every
// call here as fire-and-forget.
type ProgressCallback interface {
	JobStarted(jobID string)
	TaskCompleted(taskID string, status model.TaskStatus)
	TaskSkipped(taskID string)
	TaskFailed(taskID, message string)
	JobEnded(overallOK bool)
}

// NoopCallback implements ProgressCallback with no-ops, so callers
// never need a nil check at a call site.
type NoopCallback struct{}

func (NoopCallback) JobStarted(string)                  {}
func (NoopCallback) TaskCompleted(string, model.TaskStatus) {}
func (NoopCallback) TaskSkipped(string)                 {}
func (NoopCallback) TaskFailed(string, string)          {}
func (NoopCallback) JobEnded(bool)                      {}
