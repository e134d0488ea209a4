package taskgraph

import (
	"testing"

	"github.com/fuzoj/jobrunner/internal/model"
	pkgerrors "github.com/fuzoj/jobrunner/pkg/errors"
)

func taskMeta(id string, deps ...string) model.TaskMeta {
	return model.TaskMeta{TaskID: id, Dependencies: deps, SuccessExitCodes: model.NewExitCodeSet()}
}

func TestBuildLinksDependencies(t *testing.T) {
	job := &model.JobMeta{Tasks: []model.TaskMeta{
		taskMeta("a"),
		taskMeta("b", "a"),
		taskMeta("c", "a", "b"),
	}}

	g, err := Build(job)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if g.Nodes["a"].Indegree != 1 { // edge from synthetic root
		t.Fatalf("task a should have indegree 1 (root edge), got %d", g.Nodes["a"].Indegree)
	}
	if g.Nodes["c"].Indegree != 2 {
		t.Fatalf("task c should have indegree 2, got %d", g.Nodes["c"].Indegree)
	}
}

func TestBuildMissingDependency(t *testing.T) {
	job := &model.JobMeta{Tasks: []model.TaskMeta{taskMeta("a", "ghost")}}
	_, err := Build(job)
	if pkgerrors.GetCode(err) != pkgerrors.GraphMissingDependency {
		t.Fatalf("expected GraphMissingDependency, got %v", err)
	}
}

func TestBuildDuplicateTaskID(t *testing.T) {
	job := &model.JobMeta{Tasks: []model.TaskMeta{taskMeta("a"), taskMeta("a")}}
	_, err := Build(job)
	if err == nil {
		t.Fatalf("expected error for duplicate task id")
	}
}

func TestBuildCycle(t *testing.T) {
	job := &model.JobMeta{Tasks: []model.TaskMeta{
		taskMeta("a", "b"),
		taskMeta("b", "a"),
	}}
	_, err := Build(job)
	if pkgerrors.GetCode(err) != pkgerrors.GraphCycle {
		t.Fatalf("expected GraphCycle, got %v", err)
	}
}

func TestDescendants(t *testing.T) {
	job := &model.JobMeta{Tasks: []model.TaskMeta{
		taskMeta("a"),
		taskMeta("b", "a"),
		taskMeta("c", "b"),
		taskMeta("d", "a"),
	}}
	g, err := Build(job)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	desc := g.Descendants("a")
	want := map[string]bool{"b": true, "c": true, "d": true}
	if len(desc) != len(want) {
		t.Fatalf("Descendants(a) = %v, want 3 entries", desc)
	}
	for _, id := range desc {
		if !want[id] {
			t.Fatalf("unexpected descendant %q", id)
		}
	}
}
