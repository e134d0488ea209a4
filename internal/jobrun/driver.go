// Package jobrun implements the execution driver (C6): it walks the
// priority-linearized task order, expands variables, runs or skips
// each task, propagates fatal and non-fatal failures, and hands every
// outcome to the result aggregator (C8).
package jobrun

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/fuzoj/jobrunner/internal/limits"
	"github.com/fuzoj/jobrunner/internal/model"
	"github.com/fuzoj/jobrunner/internal/results"
	"github.com/fuzoj/jobrunner/internal/taskgraph"
	"github.com/fuzoj/jobrunner/internal/tasks"
	"github.com/fuzoj/jobrunner/internal/topsort"
	"github.com/fuzoj/jobrunner/internal/vars"
)

// Driver ties C2/C3/C5 (job setup) to C4 (task construction and
// execution) and C8 (aggregation), following one job from its parsed
// descriptor to a final verdict.
type Driver struct {
	rc       *tasks.RunContext
	defaults model.Limits
	maxima   model.Limits
	hwgroup  string
	vars     vars.Values
	cb       ProgressCallback
}

// NewDriver builds a Driver for one worker configuration. cb may be
// NoopCallback{} when the caller doesn't need progress events.
func NewDriver(rc *tasks.RunContext, defaults, maxima model.Limits, hwgroup string, values vars.Values, cb ProgressCallback) *Driver {
	if cb == nil {
		cb = NoopCallback{}
	}
	return &Driver{rc: rc, defaults: defaults, maxima: maxima, hwgroup: hwgroup, vars: values, cb: cb}
}

// Run executes job end to end. Errors returned here are job-setup
// failures (C2/C3/C5 or task construction against the unexpanded
// descriptor) — the job never starts and no task results exist.
// Once the execution loop itself begins, failures are carried as
// per-task results instead of Go errors; Run's own error return is nil
// from that point on.
func (d *Driver) Run(ctx context.Context, job *model.JobMeta) (*results.Aggregator, error) {
	graph, err := taskgraph.Build(job)
	if err != nil {
		return nil, err
	}

	order, err := topsort.Sort(graph)
	if err != nil {
		return nil, err
	}

	resolvedLimits := make(map[string]model.Limits, len(order))
	for _, id := range order {
		meta := graph.Nodes[id].Meta
		resolved, err := d.resolveLimits(meta)
		if err != nil {
			return nil, err
		}
		resolvedLimits[id] = resolved

		// Construction-time validation against the unexpanded
		// descriptor: variable expansion never changes argument
		// count, so a BadArguments failure here is real and aborts
		// job setup before any task runs.
		if _, err := tasks.Build(meta, resolved, d.rc); err != nil {
			return nil, err
		}
	}

	defer cleanupJob(d.rc.WorkingDir, d.rc.Log)

	d.cb.JobStarted(job.JobID)

	agg := results.New()
	skip := map[string]bool{}
	abortAll := false

	for _, id := range order {
		node := graph.Nodes[id]

		if abortAll || skip[id] {
			result := model.TaskResult{Status: model.StatusSkipped}
			node.State = taskgraph.Skipped
			node.Result = &result
			for _, desc := range graph.Descendants(id) {
				skip[desc] = true
			}
			d.cb.TaskSkipped(id)
			agg.Add(id, result, false)
			continue
		}

		meta := d.expand(node.Meta)

		result := d.runOne(ctx, meta, resolvedLimits[id])
		node.State = taskgraph.Done
		node.Result = &result

		fatal := false
		if result.Status == model.StatusFailed {
			d.cb.TaskFailed(id, result.ErrorMessage)
			if meta.FatalFailure {
				fatal = true
				abortAll = true
			} else {
				for _, desc := range graph.Descendants(id) {
					skip[desc] = true
				}
			}
		}

		d.cb.TaskCompleted(id, result.Status)
		agg.Add(id, result, fatal)
	}

	d.cb.JobEnded(agg.OverallOK())
	return agg, nil
}

func (d *Driver) resolveLimits(meta model.TaskMeta) (model.Limits, error) {
	if meta.Sandbox == nil {
		return model.Limits{}, nil
	}
	return limits.Resolve(meta.Sandbox, d.hwgroup, d.defaults, d.maxima)
}

// runOne builds the task against the already-expanded meta and runs
// it, converting a construction failure at this stage (which should
// not happen, since setup already validated the unexpanded form with
// the same argument count) into a Failed result rather than aborting
// the whole job.
func (d *Driver) runOne(ctx context.Context, meta model.TaskMeta, taskLimits model.Limits) model.TaskResult {
	t, err := tasks.Build(meta, taskLimits, d.rc)
	if err != nil {
		return model.TaskResult{Status: model.StatusFailed, ErrorMessage: err.Error()}
	}
	return t.Run(ctx)
}

// expand applies the variable expander (C7) to binary and every
// cmd_args entry, per the execution loop's own step — distinct from
// the unexpanded validation pass done during job setup.
func (d *Driver) expand(meta model.TaskMeta) model.TaskMeta {
	meta.Binary = vars.Expand(meta.Binary, d.vars)
	if len(meta.CmdArgs) > 0 {
		expanded := make([]string, len(meta.CmdArgs))
		for i, a := range meta.CmdArgs {
			expanded[i] = vars.Expand(a, d.vars)
		}
		meta.CmdArgs = expanded
	}
	return meta
}

// cleanupJob removes the job's working directory unconditionally
// after the execution loop, regardless of the job's outcome. Failure
// here is a CleanupWarning: logged, never propagated.
func cleanupJob(workingDir string, log *zap.Logger) {
	if workingDir == "" {
		return
	}
	if err := os.RemoveAll(workingDir); err != nil && log != nil {
		log.Warn("job cleanup failed", zap.String("working_dir", workingDir), zap.Error(err))
	}
}
