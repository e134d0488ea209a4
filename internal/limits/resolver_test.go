package limits

import (
	"testing"

	"github.com/fuzoj/jobrunner/internal/model"
)

func TestResolveMissingHwgroup(t *testing.T) {
	spec := &model.SandboxSpec{LoadedLimits: map[string]model.Limits{}}
	_, err := Resolve(spec, "group1", model.UndefinedLimits(), model.UndefinedLimits())
	if err == nil {
		t.Fatalf("expected error for missing hwgroup entry")
	}
}

func TestResolveFillsUndefinedWithDefault(t *testing.T) {
	spec := &model.SandboxSpec{LoadedLimits: map[string]model.Limits{
		"group1": model.UndefinedLimits(),
	}}
	defaults := model.UndefinedLimits()
	defaults.CPUTime = 5
	defaults.MemoryUsage = 1024

	resolved, err := Resolve(spec, "group1", defaults, model.UndefinedLimits())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.CPUTime != 5 {
		t.Fatalf("CPUTime = %v, want 5 (filled from default)", resolved.CPUTime)
	}
	if resolved.MemoryUsage != 1024 {
		t.Fatalf("MemoryUsage = %v, want 1024", resolved.MemoryUsage)
	}
}

func TestResolveClampsOverMaximum(t *testing.T) {
	task := model.UndefinedLimits()
	task.CPUTime = 100
	task.MemoryUsage = 1 << 20

	spec := &model.SandboxSpec{LoadedLimits: map[string]model.Limits{"group1": task}}
	maxima := model.UndefinedLimits()
	maxima.CPUTime = 10
	maxima.MemoryUsage = 1 << 10

	resolved, err := Resolve(spec, "group1", model.UndefinedLimits(), maxima)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.CPUTime != 10 {
		t.Fatalf("CPUTime = %v, want clamped to 10", resolved.CPUTime)
	}
	if resolved.MemoryUsage != 1<<10 {
		t.Fatalf("MemoryUsage = %v, want clamped to %v", resolved.MemoryUsage, 1<<10)
	}
}

func TestResolveWithinMaximumUnchanged(t *testing.T) {
	task := model.UndefinedLimits()
	task.CPUTime = 3

	spec := &model.SandboxSpec{LoadedLimits: map[string]model.Limits{"group1": task}}
	maxima := model.UndefinedLimits()
	maxima.CPUTime = 10

	resolved, err := Resolve(spec, "group1", model.UndefinedLimits(), maxima)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.CPUTime != 3 {
		t.Fatalf("CPUTime = %v, want unchanged 3", resolved.CPUTime)
	}
}
