// Package results implements the result aggregator (C8): it collects
// per-task results in execution order and computes the job's overall
// verdict.
package results

import "github.com/fuzoj/jobrunner/internal/model"

// Pair is one (task_id, TaskResult) entry in execution order.
type Pair struct {
	TaskID string
	Result model.TaskResult
}

// Aggregator collects task results as the execution driver produces
// them and answers the overall job verdict.
type Aggregator struct {
	pairs           []Pair
	fatalFailureHit bool
}

func New() *Aggregator {
	return &Aggregator{}
}

// Add records one task's outcome. fatal marks whether this task is
// both Failed and configured as fatal_failure, which is the only
// condition that turns the overall verdict Failed.
func (a *Aggregator) Add(taskID string, result model.TaskResult, fatal bool) {
	a.pairs = append(a.pairs, Pair{TaskID: taskID, Result: result})
	if fatal {
		a.fatalFailureHit = true
	}
}

// Results returns the collected (task_id, TaskResult) pairs in
// execution order.
func (a *Aggregator) Results() []Pair {
	return a.pairs
}

// OverallOK reports the job verdict: OK unless some task failed with
// fatal_failure set.
func (a *Aggregator) OverallOK() bool {
	return !a.fatalFailureHit
}
