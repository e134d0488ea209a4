// Package sandbox defines the Sandbox capability consumed by external
// (sandboxed) tasks, plus the default "isolate" driver. The driver's
// process-isolation mechanics are platform-gated: a real Linux
// implementation lives in isolate_linux.go, a stub that refuses to run
// anywhere else in isolate_stub.go.
package sandbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fuzoj/jobrunner/internal/model"
)

// Sandbox is the abstract process-isolation capability an external
// task runs its binary through.
type Sandbox interface {
	Run(ctx context.Context, binary string, args []string) (model.SandboxResult, error)
	Close() error
}

// Factory constructs a Sandbox for one task run. workingDir is the
// outside-sandbox scratch directory, evaluationDir the outside-sandbox
// evaluation root used for bound-dir resolution.
type Factory func(spec *model.SandboxSpec, limits model.Limits, workerID, workingDir, evaluationDir string, log *zap.Logger) (Sandbox, error)

// NewFactory returns the Factory for a sandbox.name value. Only
// "isolate" is recognized — anything else is a construction-time
// error, which the caller (task construction) turns into a
// BadArguments failure rather than deferring the problem to run time.
func NewFactory(name string) (Factory, error) {
	if name != "isolate" {
		return nil, fmt.Errorf("unknown sandbox driver %q", name)
	}
	return newIsolateSandbox, nil
}
