package tasks

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/fuzoj/jobrunner/internal/model"
)

type archivateTask struct {
	id, src, dst string
}

func newArchivateTask(meta model.TaskMeta) (Task, error) {
	if len(meta.CmdArgs) != 2 {
		return nil, badArgs(meta.TaskID, "archivate requires exactly 2 arguments: src dst")
	}
	return &archivateTask{id: meta.TaskID, src: meta.CmdArgs[0], dst: meta.CmdArgs[1]}, nil
}

func (t *archivateTask) ID() string { return t.id }

func (t *archivateTask) Run(ctx context.Context) model.TaskResult {
	if err := archiveDir(t.src, t.dst); err != nil {
		return runtimeErr(err)
	}
	return model.TaskResult{Status: model.StatusOK}
}

// archiveDir compresses src (a directory) into dst, a zstd-compressed
// tar stream, regardless of dst's extension — format inference by
// extension is left to the caller of the engine; this task only
// speaks the one archive format the worker's cache layer already uses.
func archiveDir(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return err
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

type extractTask struct {
	id, src, dst string
}

func newExtractTask(meta model.TaskMeta) (Task, error) {
	if len(meta.CmdArgs) != 2 {
		return nil, badArgs(meta.TaskID, "extract requires exactly 2 arguments: src dst")
	}
	return &extractTask{id: meta.TaskID, src: meta.CmdArgs[0], dst: meta.CmdArgs[1]}, nil
}

func (t *extractTask) ID() string { return t.id }

func (t *extractTask) Run(ctx context.Context) model.TaskResult {
	if err := extractArchive(t.src, t.dst); err != nil {
		return runtimeErr(err)
	}
	return model.TaskResult{Status: model.StatusOK}
}

// extractArchive is the inverse of archiveDir, with the same
// path-traversal guard the worker's data-pack cache applies to every
// extracted tar entry before it touches disk.
func extractArchive(src, dst string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(zr)
	cleanDst := filepath.Clean(dst)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Name == "" {
			continue
		}
		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return errors.New("invalid tar entry path: " + hdr.Name)
		}
		target := filepath.Join(cleanDst, cleanName)
		if !strings.HasPrefix(target, cleanDst+string(filepath.Separator)) && target != cleanDst {
			return errors.New("tar entry escapes destination: " + hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
