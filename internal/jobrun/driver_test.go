package jobrun

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fuzoj/jobrunner/internal/model"
	"github.com/fuzoj/jobrunner/internal/tasks"
	"github.com/fuzoj/jobrunner/internal/vars"
)

type recordingCallback struct {
	started   []string
	completed []string
	skipped   []string
	failed    []string
	ended     []bool
}

func (r *recordingCallback) JobStarted(id string) { r.started = append(r.started, id) }
func (r *recordingCallback) TaskCompleted(id string, status model.TaskStatus) {
	r.completed = append(r.completed, id)
}
func (r *recordingCallback) TaskSkipped(id string)       { r.skipped = append(r.skipped, id) }
func (r *recordingCallback) TaskFailed(id, msg string)   { r.failed = append(r.failed, id) }
func (r *recordingCallback) JobEnded(ok bool)            { r.ended = append(r.ended, ok) }

func newTestRunContext(t *testing.T) *tasks.RunContext {
	t.Helper()
	dir := t.TempDir()
	return &tasks.RunContext{
		WorkerID:   "worker-1",
		WorkingDir: dir,
	}
}

func mkdirMeta(id string, priority uint64, fatal bool, deps []string, dir string) model.TaskMeta {
	return model.TaskMeta{
		TaskID:           id,
		Priority:         priority,
		FatalFailure:     fatal,
		Dependencies:     deps,
		Binary:           "mkdir",
		CmdArgs:          []string{dir},
		SuccessExitCodes: model.NewExitCodeSet(),
	}
}

func renameFailMeta(id string, priority uint64, fatal bool, deps []string) model.TaskMeta {
	return model.TaskMeta{
		TaskID:           id,
		Priority:         priority,
		FatalFailure:     fatal,
		Dependencies:     deps,
		Binary:           "rename",
		CmdArgs:          []string{"/no/such/source", "/no/such/dest"},
		SuccessExitCodes: model.NewExitCodeSet(),
	}
}

func TestDriverRunsAllTasksSuccessfully(t *testing.T) {
	rc := newTestRunContext(t)
	job := &model.JobMeta{
		JobID: "job-1",
		Tasks: []model.TaskMeta{
			mkdirMeta("a", 1, false, nil, filepath.Join(rc.WorkingDir, "a")),
			mkdirMeta("b", 1, false, nil, filepath.Join(rc.WorkingDir, "b")),
		},
	}

	cb := &recordingCallback{}
	driver := NewDriver(rc, model.UndefinedLimits(), model.UndefinedLimits(), "group1", vars.Values{}, cb)
	agg, err := driver.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !agg.OverallOK() {
		t.Fatalf("expected overall OK")
	}
	if len(cb.completed) != 2 {
		t.Fatalf("expected 2 completions, got %v", cb.completed)
	}
	if len(cb.ended) != 1 || !cb.ended[0] {
		t.Fatalf("expected JobEnded(true), got %v", cb.ended)
	}
}

func TestDriverNonFatalFailureSkipsOnlyDescendants(t *testing.T) {
	rc := newTestRunContext(t)
	job := &model.JobMeta{
		JobID: "job-2",
		Tasks: []model.TaskMeta{
			renameFailMeta("a", 10, false, nil),
			mkdirMeta("b", 5, false, []string{"a"}, filepath.Join(rc.WorkingDir, "b")),
			mkdirMeta("c", 1, false, nil, filepath.Join(rc.WorkingDir, "c")),
		},
	}

	cb := &recordingCallback{}
	driver := NewDriver(rc, model.UndefinedLimits(), model.UndefinedLimits(), "group1", vars.Values{}, cb)
	agg, err := driver.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !agg.OverallOK() {
		t.Fatalf("non-fatal failure should leave overall verdict OK")
	}

	skipped := map[string]bool{}
	for _, id := range cb.skipped {
		skipped[id] = true
	}
	if !skipped["b"] {
		t.Fatalf("expected b (descendant of failed a) to be skipped, got skipped=%v", cb.skipped)
	}
	if skipped["c"] {
		t.Fatalf("c is unrelated to a and should not be skipped, got skipped=%v", cb.skipped)
	}

	completed := map[string]bool{}
	for _, id := range cb.completed {
		completed[id] = true
	}
	if !completed["c"] {
		t.Fatalf("expected c to complete, got completed=%v", cb.completed)
	}
}

func TestDriverFatalFailureAbortsWholeJob(t *testing.T) {
	rc := newTestRunContext(t)
	job := &model.JobMeta{
		JobID: "job-3",
		Tasks: []model.TaskMeta{
			renameFailMeta("a", 10, true, nil),
			mkdirMeta("b", 5, false, nil, filepath.Join(rc.WorkingDir, "b")),
		},
	}

	cb := &recordingCallback{}
	driver := NewDriver(rc, model.UndefinedLimits(), model.UndefinedLimits(), "group1", vars.Values{}, cb)
	agg, err := driver.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if agg.OverallOK() {
		t.Fatalf("expected overall verdict failed after a fatal failure")
	}

	skipped := map[string]bool{}
	for _, id := range cb.skipped {
		skipped[id] = true
	}
	if !skipped["b"] {
		t.Fatalf("expected unrelated task b to be skipped after fatal failure of a, got skipped=%v", cb.skipped)
	}
}

func TestDriverSetupAbortOnMissingDependency(t *testing.T) {
	rc := newTestRunContext(t)
	job := &model.JobMeta{
		JobID: "job-4",
		Tasks: []model.TaskMeta{
			mkdirMeta("a", 1, false, []string{"ghost"}, filepath.Join(rc.WorkingDir, "a")),
		},
	}

	driver := NewDriver(rc, model.UndefinedLimits(), model.UndefinedLimits(), "group1", vars.Values{}, NoopCallback{})
	_, err := driver.Run(context.Background(), job)
	if err == nil {
		t.Fatalf("expected job-setup error for missing dependency")
	}
}
