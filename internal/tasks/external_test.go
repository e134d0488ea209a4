package tasks

import (
	"strings"
	"testing"

	"github.com/fuzoj/jobrunner/internal/model"
)

func newExternalTestTask(spec model.SandboxSpec) *externalTask {
	return &externalTask{
		meta: model.TaskMeta{TaskID: "ext1"},
		spec: &spec,
		rc:   &RunContext{WorkingDir: "/work"},
	}
}

func TestResolveCapturePathExplicit(t *testing.T) {
	task := newExternalTestTask(model.SandboxSpec{Stdout: "/explicit/out.txt"})
	path, synthesized := task.resolveCapturePath(task.spec.Stdout, "stdout")
	if synthesized {
		t.Fatalf("explicit path should not be marked synthesized")
	}
	if path != "/explicit/out.txt" {
		t.Fatalf("got %q", path)
	}
}

func TestResolveCapturePathSynthesizedWhenCaptureSet(t *testing.T) {
	task := newExternalTestTask(model.SandboxSpec{CaptureOutput: true})
	path, synthesized := task.resolveCapturePath("", "stdout")
	if !synthesized {
		t.Fatalf("expected synthesis when capture_output is set")
	}
	if !strings.HasPrefix(path, "/work/ext1.") || !strings.HasSuffix(path, ".output.stdout") {
		t.Fatalf("unexpected synthesized path %q", path)
	}
}

func TestResolveCapturePathSynthesizedWhenCarboncopyOnlySet(t *testing.T) {
	task := newExternalTestTask(model.SandboxSpec{CarboncopyErr: "/copies/err.txt"})
	path, synthesized := task.resolveCapturePath("", "stderr")
	if !synthesized {
		t.Fatalf("expected synthesis when only carboncopy is set (OR semantics)")
	}
	if path == "" {
		t.Fatalf("expected a synthesized path")
	}
}

func TestResolveCapturePathNoneNeeded(t *testing.T) {
	task := newExternalTestTask(model.SandboxSpec{})
	path, synthesized := task.resolveCapturePath("", "stdout")
	if synthesized || path != "" {
		t.Fatalf("expected no synthesis when neither capture nor carboncopy is set")
	}
}

func TestFilterPrintableKeepsWhitespaceAndAscii(t *testing.T) {
	in := []byte("hello\tworld\r\n")
	got := filterPrintable(in)
	if got != "hello\tworld\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestFilterPrintableDropsControlBytes(t *testing.T) {
	in := []byte{'a', 0x01, 0x02, 'b'}
	got := filterPrintable(in)
	if got != "ab" {
		t.Fatalf("got %q, want ab", got)
	}
}

func TestFilterPrintableKeepsValidUTF8(t *testing.T) {
	in := []byte("caf\xc3\xa9")
	got := filterPrintable(in)
	if got != "café" {
		t.Fatalf("got %q", got)
	}
}
