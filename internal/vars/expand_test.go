package vars

import "testing"

func testValues() Values {
	return Values{
		WorkerID:  "worker-1",
		JobID:     "job-1",
		SourceDir: "/src",
		EvalDir:   "/eval",
		ResultDir: "/res",
		TempDir:   "/tmp",
		JudgesDir: "/judges",
	}
}

func TestExpandKnownNames(t *testing.T) {
	got := Expand("${SOURCE_DIR}/main.cpp", testValues())
	if got != "/src/main.cpp" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandMultipleOccurrences(t *testing.T) {
	got := Expand("${EVAL_DIR}:${TEMP_DIR}", testValues())
	if got != "/eval:/tmp" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandUnknownNameLeftVerbatim(t *testing.T) {
	got := Expand("${NOT_A_VAR}/x", testValues())
	if got != "${NOT_A_VAR}/x" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandUnterminatedLeftVerbatim(t *testing.T) {
	got := Expand("prefix ${TEMP_DIR", testValues())
	if got != "prefix ${TEMP_DIR" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandNoRescan(t *testing.T) {
	v := testValues()
	v.TempDir = "${JOB_ID}"
	got := Expand("${TEMP_DIR}", v)
	if got != "${JOB_ID}" {
		t.Fatalf("expansion should not be rescanned, got %q", got)
	}
}

func TestExpandIdempotent(t *testing.T) {
	v := testValues()
	once := Expand("${SOURCE_DIR}", v)
	twice := Expand(once, v)
	if once != twice {
		t.Fatalf("expansion should be idempotent: %q vs %q", once, twice)
	}
}

func TestExpandNoPlaceholders(t *testing.T) {
	got := Expand("plain string", testValues())
	if got != "plain string" {
		t.Fatalf("got %q", got)
	}
}
