// Package tasks implements the task instance variants (C4): a tagged
// set of internal filesystem tasks plus the sandboxed external task.
// Each exposes Run(ctx) -> model.TaskResult, validating its own
// argument count at construction time per the engine's contract
// (wrong count is a TaskError::BadArguments, not a runtime failure).
package tasks

import (
	"context"

	"go.uber.org/zap"

	pkgerrors "github.com/fuzoj/jobrunner/pkg/errors"
	"github.com/fuzoj/jobrunner/internal/filemanager"
	"github.com/fuzoj/jobrunner/internal/model"
	"github.com/fuzoj/jobrunner/internal/sandbox"
)

// Task is the uniform interface every task variant implements.
type Task interface {
	ID() string
	Run(ctx context.Context) model.TaskResult
}

// RunContext carries the directories, capabilities and limits a task
// needs to run, shared across every variant for one job.
type RunContext struct {
	WorkerID      string
	JobID         string
	SourceDir     string
	WorkingDir    string
	TempDir       string
	ResultDir     string
	EvaluationDir string
	JudgesDir     string

	MaxOutputLength     int64
	MaxCarboncopyLength int64

	FileManager    filemanager.FileManager
	SandboxFactory sandbox.Factory

	Log *zap.Logger
}

func badArgs(taskID, reason string) error {
	return pkgerrors.New(pkgerrors.TaskBadArguments).
		WithMessage(reason).
		WithDetail("task_id", taskID)
}

func runtimeErr(err error) model.TaskResult {
	return model.TaskResult{Status: model.StatusFailed, ErrorMessage: err.Error()}
}

// Build constructs the Task variant for meta, choosing the internal
// implementation by meta.Binary (cp, mkdir, rename, rm, archivate,
// extract, fetch) when meta.Sandbox is nil, or the external sandboxed
// task otherwise. Construction-time argument validation happens here.
func Build(meta model.TaskMeta, resolvedLimits model.Limits, rc *RunContext) (Task, error) {
	if meta.Sandbox != nil {
		return newExternalTask(meta, resolvedLimits, rc)
	}

	switch meta.Binary {
	case "cp":
		return newCpTask(meta)
	case "mkdir":
		return newMkdirTask(meta)
	case "rename":
		return newRenameTask(meta)
	case "rm":
		return newRmTask(meta)
	case "archivate":
		return newArchivateTask(meta)
	case "extract":
		return newExtractTask(meta)
	case "fetch":
		return newFetchTask(meta, rc)
	default:
		return nil, badArgs(meta.TaskID, "unknown internal task binary "+meta.Binary)
	}
}
