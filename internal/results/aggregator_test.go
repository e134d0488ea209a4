package results

import (
	"testing"

	"github.com/fuzoj/jobrunner/internal/model"
)

func TestAggregatorOverallOKWithNonFatalFailure(t *testing.T) {
	agg := New()
	agg.Add("t1", model.TaskResult{Status: model.StatusOK}, false)
	agg.Add("t2", model.TaskResult{Status: model.StatusFailed}, false)
	if !agg.OverallOK() {
		t.Fatalf("non-fatal failure should not flip overall verdict")
	}
}

func TestAggregatorOverallFailedOnFatalFailure(t *testing.T) {
	agg := New()
	agg.Add("t1", model.TaskResult{Status: model.StatusOK}, false)
	agg.Add("t2", model.TaskResult{Status: model.StatusFailed}, true)
	if agg.OverallOK() {
		t.Fatalf("fatal failure should flip overall verdict to failed")
	}
}

func TestAggregatorResultsPreserveOrder(t *testing.T) {
	agg := New()
	agg.Add("a", model.TaskResult{Status: model.StatusOK}, false)
	agg.Add("b", model.TaskResult{Status: model.StatusSkipped}, false)

	pairs := agg.Results()
	if len(pairs) != 2 || pairs[0].TaskID != "a" || pairs[1].TaskID != "b" {
		t.Fatalf("unexpected result order: %+v", pairs)
	}
}
