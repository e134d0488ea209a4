package tasks

import (
	"strings"

	"github.com/fuzoj/jobrunner/internal/model"
)

// findPathOutsideSandbox maps an inside-sandbox path to its
// host-visible equivalent via bound_dirs, falling back to chdir and
// then to evaluationDir. It refuses to return a path that doesn't
// resolve under a known root, returning "" rather than guess — this is
// the escape guard exercised by the bound-dir escape scenario.
func findPathOutsideSandbox(insidePath, chdir string, boundDirs []model.BoundDir, evaluationDir string) string {
	for _, bd := range boundDirs {
		if rest, ok := stripPrefix(insidePath, bd.Dst); ok {
			return joinClean(bd.Src, rest)
		}
	}

	if chdir != "" {
		candidate := joinClean(chdir, insidePath)
		for _, bd := range boundDirs {
			if rest, ok := stripPrefix(candidate, bd.Dst); ok {
				return joinClean(bd.Src, rest)
			}
		}
	}

	// A relative inside-path with no matching bound dir or chdir is
	// treated as rooted at evaluationDir, provided it cannot escape via
	// "..". An absolute inside-path reaching here matched no known
	// root and is refused outright.
	if !strings.HasPrefix(insidePath, "/") && !escapesViaDotDot(insidePath) {
		return joinClean(evaluationDir, insidePath)
	}

	return ""
}

func escapesViaDotDot(rel string) bool {
	depth := 0
	for _, part := range strings.Split(rel, "/") {
		switch part {
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		case ".", "":
			// no-op
		default:
			depth++
		}
	}
	return false
}

// stripPrefix returns the remainder of path after removing prefix,
// only when prefix is a genuine path-component boundary (not, e.g.,
// "/box" matching "/boxes/x").
func stripPrefix(path, prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	cleanPrefix := strings.TrimSuffix(prefix, "/")
	if path == cleanPrefix {
		return "", true
	}
	if strings.HasPrefix(path, cleanPrefix+"/") {
		return path[len(cleanPrefix)+1:], true
	}
	return "", false
}

func joinClean(base, rel string) string {
	if rel == "" {
		return strings.TrimSuffix(base, "/")
	}
	return strings.TrimSuffix(base, "/") + "/" + rel
}
