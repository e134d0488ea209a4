package tasks

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/fuzoj/jobrunner/internal/model"
)

type cpTask struct {
	id, src, dst string
}

func newCpTask(meta model.TaskMeta) (Task, error) {
	if len(meta.CmdArgs) != 2 {
		return nil, badArgs(meta.TaskID, "cp requires exactly 2 arguments: src dst")
	}
	return &cpTask{id: meta.TaskID, src: meta.CmdArgs[0], dst: meta.CmdArgs[1]}, nil
}

func (t *cpTask) ID() string { return t.id }

func (t *cpTask) Run(ctx context.Context) model.TaskResult {
	if err := copyPath(t.src, t.dst); err != nil {
		return runtimeErr(err)
	}
	return model.TaskResult{Status: model.StatusOK}
}

func copyPath(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst, info.Mode())
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := copyDir(s, d); err != nil {
				return err
			}
			continue
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		if err := copyFile(s, d, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

type mkdirTask struct {
	id    string
	paths []string
}

func newMkdirTask(meta model.TaskMeta) (Task, error) {
	if len(meta.CmdArgs) < 1 {
		return nil, badArgs(meta.TaskID, "mkdir requires at least 1 argument")
	}
	return &mkdirTask{id: meta.TaskID, paths: meta.CmdArgs}, nil
}

func (t *mkdirTask) ID() string { return t.id }

func (t *mkdirTask) Run(ctx context.Context) model.TaskResult {
	for _, p := range t.paths {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return runtimeErr(err)
		}
	}
	return model.TaskResult{Status: model.StatusOK}
}

type renameTask struct {
	id, src, dst string
}

func newRenameTask(meta model.TaskMeta) (Task, error) {
	if len(meta.CmdArgs) != 2 {
		return nil, badArgs(meta.TaskID, "rename requires exactly 2 arguments: src dst")
	}
	return &renameTask{id: meta.TaskID, src: meta.CmdArgs[0], dst: meta.CmdArgs[1]}, nil
}

func (t *renameTask) ID() string { return t.id }

func (t *renameTask) Run(ctx context.Context) model.TaskResult {
	if err := os.Rename(t.src, t.dst); err != nil {
		return runtimeErr(err)
	}
	return model.TaskResult{Status: model.StatusOK}
}

type rmTask struct {
	id    string
	paths []string
}

func newRmTask(meta model.TaskMeta) (Task, error) {
	if len(meta.CmdArgs) < 1 {
		return nil, badArgs(meta.TaskID, "rm requires at least 1 argument")
	}
	return &rmTask{id: meta.TaskID, paths: meta.CmdArgs}, nil
}

func (t *rmTask) ID() string { return t.id }

func (t *rmTask) Run(ctx context.Context) model.TaskResult {
	for _, p := range t.paths {
		// Missing path is OK per the task's contract.
		if err := os.RemoveAll(p); err != nil {
			return runtimeErr(err)
		}
	}
	return model.TaskResult{Status: model.StatusOK}
}

type fetchTask struct {
	id, remoteName, localPath string
	fm                        interface {
		Get(ctx context.Context, remoteName, localPath string) error
	}
}

func newFetchTask(meta model.TaskMeta, rc *RunContext) (Task, error) {
	if len(meta.CmdArgs) != 2 {
		return nil, badArgs(meta.TaskID, "fetch requires exactly 2 arguments: remote_name local_path")
	}
	if rc.FileManager == nil {
		return nil, badArgs(meta.TaskID, "fetch requires a configured file manager")
	}
	return &fetchTask{id: meta.TaskID, remoteName: meta.CmdArgs[0], localPath: meta.CmdArgs[1], fm: rc.FileManager}, nil
}

func (t *fetchTask) ID() string { return t.id }

func (t *fetchTask) Run(ctx context.Context) model.TaskResult {
	if err := t.fm.Get(ctx, t.remoteName, t.localPath); err != nil {
		return runtimeErr(err)
	}
	return model.TaskResult{Status: model.StatusOK}
}
