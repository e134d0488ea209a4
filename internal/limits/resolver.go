// Package limits implements the limits resolver (C5): it selects a
// task's limits block for the worker's hardware group and clamps it
// against worker-configured maxima, filling sentinel "undefined"
// fields with worker defaults.
package limits

import (
	pkgerrors "github.com/fuzoj/jobrunner/pkg/errors"
	"github.com/fuzoj/jobrunner/internal/model"
)

// Resolve picks sandbox.LoadedLimits[hwgroup], then clamps every
// numeric field against maxima (reducing task-provided values that
// exceed the cap) and fills any field still at the sentinel with the
// matching default.
func Resolve(sandbox *model.SandboxSpec, hwgroup string, defaults, maxima model.Limits) (model.Limits, error) {
	task, ok := sandbox.LoadedLimits[hwgroup]
	if !ok {
		return model.Limits{}, pkgerrors.Newf(pkgerrors.LimitsNotFound,
			"no limits entry for hardware group %q", hwgroup)
	}

	resolved := task
	resolved.CPUTime = clampFloat(task.CPUTime, defaults.CPUTime, maxima.CPUTime)
	resolved.WallTime = clampFloat(task.WallTime, defaults.WallTime, maxima.WallTime)
	resolved.ExtraTime = clampFloat(task.ExtraTime, defaults.ExtraTime, maxima.ExtraTime)
	resolved.StackSize = clampUint(task.StackSize, defaults.StackSize, maxima.StackSize)
	resolved.MemoryUsage = clampUint(task.MemoryUsage, defaults.MemoryUsage, maxima.MemoryUsage)
	resolved.ExtraMemory = clampUint(task.ExtraMemory, defaults.ExtraMemory, maxima.ExtraMemory)
	resolved.Processes = clampUint(task.Processes, defaults.Processes, maxima.Processes)
	resolved.DiskSize = clampUint(task.DiskSize, defaults.DiskSize, maxima.DiskSize)
	resolved.DiskFiles = clampUint(task.DiskFiles, defaults.DiskFiles, maxima.DiskFiles)

	return resolved, nil
}

// clampFloat: undefined -> default; over-cap -> cap; else unchanged.
func clampFloat(value, def, max float32) float32 {
	if value == model.UndefinedFloat {
		return def
	}
	if max != model.UndefinedFloat && value > max {
		return max
	}
	return value
}

func clampUint(value, def, max uint64) uint64 {
	if value == model.UndefinedUint {
		return def
	}
	if max != model.UndefinedUint && value > max {
		return max
	}
	return value
}
