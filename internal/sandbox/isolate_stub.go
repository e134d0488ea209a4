//go:build !linux

package sandbox

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fuzoj/jobrunner/internal/model"
)

// ErrSandboxUnsupported is returned by every operation on non-Linux
// platforms; the isolate driver's process-isolation primitives are
// Linux-only.
var ErrSandboxUnsupported = errors.New("sandbox driver is only supported on linux")

type isolateSandbox struct{}

func newIsolateSandbox(spec *model.SandboxSpec, limits model.Limits, workerID, workingDir, evaluationDir string, log *zap.Logger) (Sandbox, error) {
	return nil, ErrSandboxUnsupported
}

func (s *isolateSandbox) Run(ctx context.Context, binary string, args []string) (model.SandboxResult, error) {
	return model.SandboxResult{}, ErrSandboxUnsupported
}

func (s *isolateSandbox) Close() error {
	return ErrSandboxUnsupported
}
