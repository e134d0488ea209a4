package tasks

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/fuzoj/jobrunner/internal/model"
)

// writeEvilArchive builds a zstd+tar stream with a single path-traversal
// entry, since archiveDir itself would never produce one.
func writeEvilArchive(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	content := []byte("evil")
	hdr := &tar.Header{
		Name:     "../escaped.txt",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = tw.Write(content)
	return err
}

func TestArchivateThenExtractRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "nested", "file.txt"), []byte("content"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	archivePath := filepath.Join(dir, "out.tar.zst")
	archiveTask, err := newArchivateTask(model.TaskMeta{TaskID: "a1", CmdArgs: []string{src, archivePath}})
	if err != nil {
		t.Fatalf("newArchivateTask: %v", err)
	}
	if result := archiveTask.Run(context.Background()); result.Status != model.StatusOK {
		t.Fatalf("archivate failed: %+v", result)
	}

	extractDst := filepath.Join(dir, "extracted")
	extractTask, err := newExtractTask(model.TaskMeta{TaskID: "e1", CmdArgs: []string{archivePath, extractDst}})
	if err != nil {
		t.Fatalf("newExtractTask: %v", err)
	}
	if result := extractTask.Run(context.Background()); result.Status != model.StatusOK {
		t.Fatalf("extract failed: %+v", result)
	}

	got, err := os.ReadFile(filepath.Join(extractDst, "nested", "file.txt"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(got) != "content" {
		t.Fatalf("got %q, want content", got)
	}
}

func TestArchivateWrongArgCount(t *testing.T) {
	if _, err := newArchivateTask(model.TaskMeta{TaskID: "a1", CmdArgs: []string{"one"}}); err == nil {
		t.Fatalf("expected BadArguments for wrong arg count")
	}
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst")

	// Build a tar.zst archive containing a ".." entry directly, since
	// archiveDir would never itself produce one.
	archivePath := filepath.Join(dir, "evil.tar.zst")
	if err := writeEvilArchive(archivePath); err != nil {
		t.Fatalf("writeEvilArchive: %v", err)
	}

	if err := extractArchive(archivePath, dst); err == nil {
		t.Fatalf("expected path-traversal entry to be rejected")
	}
}
