// Package jobspec implements the job descriptor parser (C1): it turns
// a YAML document into a validated model.JobMeta, or a single
// ConfigError pinpointing the first offending node. Optional scalar
// fields given with the wrong type (e.g. a string for "fatal-failure"
// or "stdout") do not raise a ConfigError; they take their defaults.
//
// The parsing rules and their failure semantics — including the silent
// dropping of out-of-range success-exit-code entries and the
// substring-based bound-directory permission matching — are carried
// over unchanged from the worker this engine replaces.
package jobspec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/fuzoj/jobrunner/pkg/errors"
	"github.com/fuzoj/jobrunner/internal/model"
)

// Parse validates and normalizes raw YAML bytes into a model.JobMeta.
func Parse(doc []byte) (*model.JobMeta, error) {
	var root map[string]interface{}
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, configError("$", "invalid YAML: "+err.Error())
	}
	if root == nil {
		return nil, configError("$", "document is empty")
	}
	return buildJobMeta(root)
}

func configError(path, reason string) error {
	return pkgerrors.New(pkgerrors.ConfigInvalid).
		WithMessage(fmt.Sprintf("%s: %s", path, reason)).
		WithDetail("path", path).
		WithDetail("reason", reason)
}

func buildJobMeta(root map[string]interface{}) (*model.JobMeta, error) {
	submissionRaw, ok := root["submission"]
	if !ok {
		return nil, configError("$.submission", "missing required map")
	}
	submission, ok := submissionRaw.(map[string]interface{})
	if !ok {
		return nil, configError("$.submission", "must be a map")
	}

	tasksRaw, ok := root["tasks"]
	if !ok {
		return nil, configError("$.tasks", "missing required sequence")
	}
	tasksSeq, ok := tasksRaw.([]interface{})
	if !ok {
		return nil, configError("$.tasks", "must be a sequence")
	}

	jobID, err := requiredString(submission, "submission.job-id", "job-id")
	if err != nil {
		return nil, err
	}
	fileCollector, err := requiredString(submission, "submission.file-collector", "file-collector")
	if err != nil {
		return nil, err
	}
	hwgroups, err := requiredStringSeq(submission, "submission.hw-groups", "hw-groups")
	if err != nil {
		return nil, err
	}
	logFlag, _ := optionalBool(submission, "log", false)

	tasks := make([]model.TaskMeta, 0, len(tasksSeq))
	for i, raw := range tasksSeq {
		path := fmt.Sprintf("$.tasks[%d]", i)
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, configError(path, "must be a map")
		}
		task, err := buildTaskMeta(path, entry)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return &model.JobMeta{
		JobID:         jobID,
		FileServerURL: fileCollector,
		Log:           logFlag,
		Hwgroups:      hwgroups,
		Tasks:         tasks,
	}, nil
}

func buildTaskMeta(path string, entry map[string]interface{}) (*model.TaskMeta, error) {
	taskID, err := requiredString(entry, path+".task-id", "task-id")
	if err != nil {
		return nil, err
	}

	priority := uint64(1)
	if v, ok := entry["priority"]; ok {
		p, err := toUint64(v)
		if err != nil {
			return nil, configError(path+".priority", "must be an unsigned integer")
		}
		priority = p
	}

	fatalFailure, _ := optionalBool(entry, "fatal-failure", false)

	deps, err := optionalStringSeq(entry, path+".dependencies", "dependencies")
	if err != nil {
		return nil, err
	}

	taskType := model.Inner
	if v, ok := entry["type"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, configError(path+".type", "must be a string")
		}
		taskType = model.ParseTaskType(s)
	}

	testID, _ := optionalString(entry, "test-id", "")

	cmdRaw, ok := entry["cmd"]
	if !ok {
		return nil, configError(path+".cmd", "missing required map")
	}
	cmd, ok := cmdRaw.(map[string]interface{})
	if !ok {
		return nil, configError(path+".cmd", "must be a map")
	}
	binary, err := requiredString(cmd, path+".cmd.bin", "bin")
	if err != nil {
		return nil, err
	}
	cmdArgs, err := optionalStringSeq(cmd, path+".cmd.args", "args")
	if err != nil {
		return nil, err
	}
	exitCodes := parseSuccessExitCodes(cmd["success-exit-codes"])

	var sandbox *model.SandboxSpec
	if sRaw, ok := entry["sandbox"]; ok {
		sMap, ok := sRaw.(map[string]interface{})
		if !ok {
			return nil, configError(path+".sandbox", "must be a map")
		}
		sandbox, err = buildSandboxSpec(path+".sandbox", sMap)
		if err != nil {
			return nil, err
		}
	}

	return &model.TaskMeta{
		TaskID:           taskID,
		Priority:         priority,
		FatalFailure:     fatalFailure,
		Dependencies:     deps,
		Type:             taskType,
		TestID:           testID,
		Binary:           binary,
		CmdArgs:          cmdArgs,
		SuccessExitCodes: exitCodes,
		Sandbox:          sandbox,
	}, nil
}

// parseSuccessExitCodes accepts an absent value (default {0}), a
// single int, or a sequence whose entries are ints or [from,to] pairs.
// Entries outside [0,255] or with from>to are dropped silently — this
// mirrors add_exit_codes in the worker this parser replaces and is a
// deliberate, preserved behavior (see DESIGN.md Open Question 1).
func parseSuccessExitCodes(raw interface{}) model.ExitCodeSet {
	if raw == nil {
		return model.NewExitCodeSet()
	}

	var set model.ExitCodeSet
	add := func(v interface{}) {
		switch t := v.(type) {
		case int:
			set.Add(t)
		case []interface{}:
			if len(t) != 2 {
				return
			}
			from, ok1 := t[0].(int)
			to, ok2 := t[1].(int)
			if !ok1 || !ok2 {
				return
			}
			set.AddRange(from, to)
		}
	}

	switch t := raw.(type) {
	case int:
		add(t)
	case []interface{}:
		for _, item := range t {
			add(item)
		}
	}

	if set.Empty() {
		return model.NewExitCodeSet()
	}
	return set
}

func buildSandboxSpec(path string, m map[string]interface{}) (*model.SandboxSpec, error) {
	name, err := requiredString(m, path+".name", "name")
	if err != nil {
		return nil, err
	}
	stdin, _ := optionalString(m, "stdin", "")
	stdout, _ := optionalString(m, "stdout", "")
	stderr, _ := optionalString(m, "stderr", "")
	stderrToStdout, _ := optionalBool(m, "stderr-to-stdout", false)
	captureOutput, _ := optionalBool(m, "output", false)
	carboncopyStdout, _ := optionalString(m, "carboncopy-stdout", "")
	carboncopyStderr, _ := optionalString(m, "carboncopy-stderr", "")
	chdir, _ := optionalString(m, "chdir", "")
	workingDir, _ := optionalString(m, "working-directory", "")

	if workingDir != "" && !isRelativeNoEscape(workingDir) {
		return nil, configError(path+".working-directory", "must be relative and must not escape via '..'")
	}

	limits := map[string]model.Limits{}
	if lRaw, ok := m["limits"]; ok {
		lSeq, ok := lRaw.([]interface{})
		if !ok {
			return nil, configError(path+".limits", "must be a sequence")
		}
		for i, item := range lSeq {
			lPath := fmt.Sprintf("%s.limits[%d]", path, i)
			lMap, ok := item.(map[string]interface{})
			if !ok {
				return nil, configError(lPath, "must be a map")
			}
			hwGroupID, err := requiredString(lMap, lPath+".hw-group-id", "hw-group-id")
			if err != nil {
				return nil, err
			}
			limit, err := buildLimits(lPath, lMap)
			if err != nil {
				return nil, err
			}
			limits[hwGroupID] = *limit
		}
	}

	return &model.SandboxSpec{
		Name:           name,
		Stdin:          stdin,
		Stdout:         stdout,
		Stderr:         stderr,
		StderrToStdout: stderrToStdout,
		CaptureOutput:  captureOutput,
		CarboncopyOut:  carboncopyStdout,
		CarboncopyErr:  carboncopyStderr,
		Chdir:          chdir,
		WorkingDir:     workingDir,
		LoadedLimits:   limits,
	}, nil
}

func buildLimits(path string, m map[string]interface{}) (*model.Limits, error) {
	limits := model.UndefinedLimits()

	setFloat := func(key string, dst *float32) error {
		v, ok := m[key]
		if !ok {
			return nil
		}
		f, err := toFloat32(v)
		if err != nil {
			return configError(path+"."+key, "must be a number")
		}
		*dst = f
		return nil
	}
	setUint := func(key string, dst *uint64) error {
		v, ok := m[key]
		if !ok {
			return nil
		}
		u, err := toUint64(v)
		if err != nil {
			return configError(path+"."+key, "must be an unsigned integer")
		}
		*dst = u
		return nil
	}

	if err := setFloat("time", &limits.CPUTime); err != nil {
		return nil, err
	}
	if err := setFloat("wall-time", &limits.WallTime); err != nil {
		return nil, err
	}
	if err := setFloat("extra-time", &limits.ExtraTime); err != nil {
		return nil, err
	}
	if err := setUint("stack-size", &limits.StackSize); err != nil {
		return nil, err
	}
	if err := setUint("memory", &limits.MemoryUsage); err != nil {
		return nil, err
	}
	if err := setUint("extra-memory", &limits.ExtraMemory); err != nil {
		return nil, err
	}
	if err := setUint("parallel", &limits.Processes); err != nil {
		return nil, err
	}
	if err := setUint("disk-size", &limits.DiskSize); err != nil {
		return nil, err
	}
	if err := setUint("disk-files", &limits.DiskFiles); err != nil {
		return nil, err
	}
	if v, ok := m["disk-quotas"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, configError(path+".disk-quotas", "must be a bool")
		}
		limits.DiskQuotas = b
	}

	if bdRaw, ok := m["bound-directories"]; ok {
		bdSeq, ok := bdRaw.([]interface{})
		if !ok {
			return nil, configError(path+".bound-directories", "must be a sequence")
		}
		dirs := make([]model.BoundDir, 0, len(bdSeq))
		for i, item := range bdSeq {
			bdPath := fmt.Sprintf("%s.bound-directories[%d]", path, i)
			bdMap, ok := item.(map[string]interface{})
			if !ok {
				return nil, configError(bdPath, "must be a map")
			}
			bd, err := buildBoundDir(bdPath, bdMap)
			if err != nil {
				return nil, err
			}
			dirs = append(dirs, *bd)
		}
		limits.BoundDirs = dirs
	}

	if evRaw, ok := m["environ-variable"]; ok {
		evMap, ok := evRaw.(map[string]interface{})
		if !ok {
			return nil, configError(path+".environ-variable", "must be a map")
		}
		vars := make(map[string]string, len(evMap))
		for k, v := range evMap {
			s, ok := v.(string)
			if !ok {
				return nil, configError(path+".environ-variable."+k, "must be a string")
			}
			vars[k] = s
		}
		limits.EnvironVars = vars
	}

	return &limits, nil
}

// permTokens is scanned as substrings of the lower-cased mode string.
// Every token is checked independently, so the order of this list does
// not matter and one mode string can set several bits.
var permTokens = []struct {
	token string
	flag  model.PermFlag
}{
	{"noexec", model.PermNoExec},
	{"norec", model.PermNoRec},
	{"devin", model.PermDevIn},
	{"devout", model.PermDevOut},
	{"maybe", model.PermMaybe},
	{"tmp", model.PermTmp},
	{"fs", model.PermFS},
	{"rw", model.PermRW},
}

func buildBoundDir(path string, m map[string]interface{}) (*model.BoundDir, error) {
	src, _ := optionalString(m, "src", "")
	dst, _ := optionalString(m, "dst", "")
	mode, _ := optionalString(m, "mode", "")

	lowered := strings.ToLower(mode)
	var perm model.PermFlag
	for _, t := range permTokens {
		if strings.Contains(lowered, t.token) {
			perm |= t.flag
		}
	}

	if perm&model.PermTmp != 0 {
		if perm&model.PermFS != 0 {
			return nil, configError(path+".mode", "tmp and fs are mutually exclusive")
		}
		if src != "" {
			return nil, configError(path+".src", "must be absent for a tmp bound directory")
		}
	}

	if src == "" && dst == "" {
		return nil, configError(path, "both src and dst are empty")
	}
	if src == "" {
		src = dst
	}
	if dst == "" {
		dst = src
	}

	return &model.BoundDir{Src: src, Dst: dst, Perm: perm}, nil
}

func isRelativeNoEscape(p string) bool {
	if strings.HasPrefix(p, "/") {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

func requiredString(m map[string]interface{}, path, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", configError(path, "missing required field")
	}
	s, ok := v.(string)
	if !ok {
		return "", configError(path, "must be a string")
	}
	return s, nil
}

func optionalString(m map[string]interface{}, key, def string) (string, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return def, fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func optionalBool(m map[string]interface{}, key string, def bool) (bool, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, fmt.Errorf("%s must be a bool", key)
	}
	return b, nil
}

func requiredStringSeq(m map[string]interface{}, path, key string) ([]string, error) {
	v, ok := m[key]
	if !ok {
		return nil, configError(path, "missing required sequence")
	}
	return toStringSeq(path, v)
}

func optionalStringSeq(m map[string]interface{}, path, key string) ([]string, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	return toStringSeq(path, v)
}

func toStringSeq(path string, v interface{}) ([]string, error) {
	seq, ok := v.([]interface{})
	if !ok {
		return nil, configError(path, "must be a sequence")
	}
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		s, ok := item.(string)
		if !ok {
			return nil, configError(path, "entries must be strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func toUint64(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case int:
		if t < 0 {
			return 0, fmt.Errorf("negative value")
		}
		return uint64(t), nil
	case uint64:
		return t, nil
	default:
		return 0, fmt.Errorf("not an integer")
	}
}

func toFloat32(v interface{}) (float32, error) {
	switch t := v.(type) {
	case int:
		return float32(t), nil
	case float64:
		return float32(t), nil
	case float32:
		return t, nil
	default:
		return 0, fmt.Errorf("not a number")
	}
}
