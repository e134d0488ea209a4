// Package model holds the typed data model produced by the job
// descriptor parser and shared by every downstream engine component.
package model

import "math"

// TaskType classifies a task's role in the evaluation pipeline.
type TaskType int

const (
	Inner TaskType = iota
	Initiation
	Execution
	Evaluation
)

func (t TaskType) String() string {
	switch t {
	case Initiation:
		return "initiation"
	case Execution:
		return "execution"
	case Evaluation:
		return "evaluation"
	default:
		return "inner"
	}
}

// ParseTaskType maps a descriptor's type string to a TaskType,
// case-insensitively, falling back to Inner for anything unrecognized.
func ParseTaskType(s string) TaskType {
	switch lower(s) {
	case "evaluation":
		return Evaluation
	case "execution":
		return Execution
	case "initiation":
		return Initiation
	default:
		return Inner
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ExitCodeSet is a 256-slot bitset over process exit codes.
type ExitCodeSet [256]bool

// NewExitCodeSet returns the default {0} set.
func NewExitCodeSet() ExitCodeSet {
	var s ExitCodeSet
	s[0] = true
	return s
}

func (s *ExitCodeSet) Add(code int) {
	if code >= 0 && code < len(s) {
		s[code] = true
	}
}

// AddRange adds every code in [from, to] inclusive, silently ignoring
// the range if it is out of [0,255] or inverted — mirrors the
// original worker's add_exit_codes behavior of dropping bad input
// rather than erroring.
func (s *ExitCodeSet) AddRange(from, to int) {
	if from > to || from < 0 || to > 255 {
		return
	}
	for c := from; c <= to; c++ {
		s[c] = true
	}
}

func (s ExitCodeSet) Contains(code int) bool {
	if code < 0 || code >= len(s) {
		return false
	}
	return s[code]
}

func (s ExitCodeSet) Empty() bool {
	for _, v := range s {
		if v {
			return false
		}
	}
	return true
}

// PermFlag is a bitset over bound-directory permission tokens.
type PermFlag uint16

const (
	PermRO PermFlag = 0 // baseline, no bits set
	PermRW PermFlag = 1 << iota
	PermNoExec
	PermFS
	PermMaybe
	PermDevIn
	PermDevOut
	PermTmp
	PermNoRec
)

// BoundDir is one sandbox bind-mount entry.
type BoundDir struct {
	Src  string
	Dst  string
	Perm PermFlag
}

// Undefined sentinels, mirroring the original worker's FLT_MAX/SIZE_MAX
// "unset" markers, kept explicit here rather than silently zero.
const (
	UndefinedFloat = math.MaxFloat32
	UndefinedUint  = ^uint64(0)
)

// Limits is a single hardware-group's resource-limit block. Fields use
// the sentinels above to represent "not specified in the descriptor";
// the limits resolver (C5) replaces sentinels with worker defaults and
// clamps provided values against worker maxima.
type Limits struct {
	CPUTime      float32
	WallTime     float32
	ExtraTime    float32
	StackSize    uint64
	MemoryUsage  uint64
	ExtraMemory  uint64
	Processes    uint64
	DiskSize     uint64
	DiskFiles    uint64
	DiskQuotas   bool
	BoundDirs    []BoundDir
	EnvironVars  map[string]string
}

// UndefinedLimits returns a Limits value with every numeric field set
// to its "undefined" sentinel.
func UndefinedLimits() Limits {
	return Limits{
		CPUTime:     UndefinedFloat,
		WallTime:    UndefinedFloat,
		ExtraTime:   UndefinedFloat,
		StackSize:   UndefinedUint,
		MemoryUsage: UndefinedUint,
		ExtraMemory: UndefinedUint,
		Processes:   UndefinedUint,
		DiskSize:    UndefinedUint,
		DiskFiles:   UndefinedUint,
		DiskQuotas:  false,
		EnvironVars: map[string]string{},
	}
}

// SandboxSpec describes how an external task's sandbox should be set up.
type SandboxSpec struct {
	Name            string
	Stdin           string
	Stdout          string
	Stderr          string
	StderrToStdout  bool
	CaptureOutput   bool
	CarboncopyOut   string
	CarboncopyErr   string
	Chdir           string
	WorkingDir      string
	LoadedLimits    map[string]Limits
}

// TaskMeta is the normalized, per-task descriptor output of C1.
type TaskMeta struct {
	TaskID           string
	Priority         uint64
	FatalFailure     bool
	Dependencies     []string
	Type             TaskType
	TestID           string
	Binary           string
	CmdArgs          []string
	SuccessExitCodes ExitCodeSet
	Sandbox          *SandboxSpec
}

// JobMeta is the top-level, immutable output of the job descriptor
// parser (C1).
type JobMeta struct {
	JobID         string
	FileServerURL string
	Log           bool
	Hwgroups      []string
	Tasks         []TaskMeta
	LogPath       string
}

// TaskStatus is the outcome of running (or skipping) a task.
type TaskStatus int

const (
	StatusOK TaskStatus = iota
	StatusFailed
	StatusSkipped
)

func (s TaskStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusFailed:
		return "Failed"
	default:
		return "Skipped"
	}
}

// SandboxStatus mirrors the sandbox driver's terminal status classes.
type SandboxStatus int

const (
	SandboxOK SandboxStatus = iota
	SandboxRE               // runtime error inside sandboxed program
	SandboxSG               // killed by signal
	SandboxTO               // timed out
	SandboxXX               // internal sandbox failure
)

func (s SandboxStatus) String() string {
	switch s {
	case SandboxOK:
		return "OK"
	case SandboxRE:
		return "RE"
	case SandboxSG:
		return "SG"
	case SandboxTO:
		return "TO"
	default:
		return "XX"
	}
}

// SandboxResult is what a Sandbox.Run call reports back.
type SandboxResult struct {
	ExitCode int
	Killed   bool
	WallTime float32
	CPUTime  float32
	Memory   uint64
	Status   SandboxStatus
	Message  string
}

// TaskResult is the uniform per-task outcome surfaced by C4/C6/C8.
type TaskResult struct {
	Status        TaskStatus
	ErrorMessage  string
	OutputStdout  string
	OutputStderr  string
	SandboxStatus *SandboxResult
}
