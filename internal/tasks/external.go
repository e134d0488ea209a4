package tasks

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fuzoj/jobrunner/internal/model"
	"github.com/fuzoj/jobrunner/internal/sandbox"
)

type externalTask struct {
	meta   model.TaskMeta
	spec   *model.SandboxSpec
	limits model.Limits
	rc     *RunContext

	factory sandbox.Factory
}

func newExternalTask(meta model.TaskMeta, resolvedLimits model.Limits, rc *RunContext) (Task, error) {
	factory := rc.SandboxFactory
	if factory == nil {
		f, err := sandbox.NewFactory(meta.Sandbox.Name)
		if err != nil {
			return nil, badArgs(meta.TaskID, err.Error())
		}
		factory = f
	}
	return &externalTask{meta: meta, spec: meta.Sandbox, limits: resolvedLimits, rc: rc, factory: factory}, nil
}

func (t *externalTask) ID() string { return t.meta.TaskID }

// Run follows the external task lifecycle: instantiate the sandbox,
// synthesize capture files when needed, fix up the binary's exec
// bits, invoke the sandbox, process captured output and carboncopies,
// clean up synthesized files, and classify the outcome.
func (t *externalTask) Run(ctx context.Context) model.TaskResult {
	sb, err := t.factory(t.spec, t.limits, t.rc.WorkerID, t.rc.WorkingDir, t.rc.EvaluationDir, t.rc.Log)
	if err != nil {
		return runtimeErr(err)
	}
	defer sb.Close()

	stdoutPath, synthStdout := t.resolveCapturePath(t.spec.Stdout, "stdout")
	stderrPath, synthStderr := t.resolveCapturePath(t.spec.Stderr, "stderr")
	defer cleanupSynthesized(synthStdout, stdoutPath, t.rc.Log)
	defer cleanupSynthesized(synthStderr, stderrPath, t.rc.Log)

	if outside := findPathOutsideSandbox(t.meta.Binary, t.spec.Chdir, t.limits.BoundDirs, t.rc.EvaluationDir); outside != "" {
		makeExecutable(outside)
	}

	sandboxResult, err := sb.Run(ctx, t.meta.Binary, t.meta.CmdArgs)
	if err != nil {
		return runtimeErr(err)
	}

	result := model.TaskResult{SandboxStatus: &sandboxResult}

	if t.spec.CaptureOutput {
		result.OutputStdout = readCapture(stdoutPath, t.rc.MaxOutputLength)
		result.OutputStderr = readCapture(stderrPath, t.rc.MaxOutputLength)
	}

	if t.spec.CarboncopyOut != "" {
		copyCapped(stdoutPath, t.spec.CarboncopyOut, t.rc.MaxCarboncopyLength)
	}
	if t.spec.CarboncopyErr != "" {
		copyCapped(stderrPath, t.spec.CarboncopyErr, t.rc.MaxCarboncopyLength)
	}

	switch {
	case sandboxResult.Status != model.SandboxOK:
		result.Status = model.StatusFailed
		result.ErrorMessage = "Sandboxed program failed: " + sandboxResult.Message
	case !t.meta.SuccessExitCodes.Contains(sandboxResult.ExitCode):
		result.Status = model.StatusFailed
		result.ErrorMessage = "exit code not in success set"
	default:
		result.Status = model.StatusOK
	}

	return result
}

// resolveCapturePath returns the capture path to use for the given
// stream, and whether it was synthesized by this task (and therefore
// must be cleaned up). Synthesis only happens when capture or
// carboncopy was requested and no explicit path was given, mirroring
// the worker's OR semantics for when a capture file is needed at all.
func (t *externalTask) resolveCapturePath(explicit, stream string) (string, bool) {
	if explicit != "" {
		return explicit, false
	}

	needed := t.spec.CaptureOutput
	if stream == "stdout" {
		needed = needed || t.spec.CarboncopyOut != ""
	} else {
		needed = needed || t.spec.CarboncopyErr != ""
	}
	if !needed {
		return "", false
	}

	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	name := t.meta.TaskID + "." + nonce + ".output." + stream
	return filepath.Join(t.rc.WorkingDir, name), true
}

func cleanupSynthesized(synthesized bool, path string, log *zap.Logger) {
	if !synthesized || path == "" {
		return
	}
	// Cleanup failures here are a CleanupWarning: logged, never fatal.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) && log != nil {
		log.Warn("capture file cleanup failed", zap.String("path", path), zap.Error(err))
	}
}

func makeExecutable(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mode := info.Mode()
	_ = os.Chmod(path, mode|0o111)
}

// readCapture reads up to maxLen bytes from path and strips
// non-printable characters while keeping \t, \n, \r and valid UTF-8.
func readCapture(path string, maxLen int64) string {
	if path == "" {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	if maxLen <= 0 {
		maxLen = 1 << 20
	}
	buf := make([]byte, maxLen)
	n, _ := io.ReadFull(f, buf)
	return filterPrintable(buf[:n])
}

func filterPrintable(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch c {
		case '\t', '\n', '\r':
			sb.WriteByte(c)
			i++
			continue
		}
		if c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
			i++
			continue
		}
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRune(b[i:])
			if r != utf8.RuneError {
				sb.WriteRune(r)
				i += size
				continue
			}
		}
		i++
	}
	return sb.String()
}

func copyCapped(src, dst string, maxLen int64) {
	if src == "" || dst == "" {
		return
	}
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return
	}
	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer out.Close()

	if maxLen <= 0 {
		maxLen = 1 << 20
	}
	_, _ = io.CopyN(out, in, maxLen)
}
