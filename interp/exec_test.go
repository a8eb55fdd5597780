package interp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/posixsh/posixsh/syntax"
)

func mustParse(t *testing.T, line string) syntax.Node {
	t.Helper()
	node, err := syntax.Parse([]byte(line))
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return node
}

func newTestRunner(t *testing.T, out *bytes.Buffer) *Runner {
	t.Helper()
	r, err := New(StdIO(bytes.NewReader(nil), out, out), Dir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunSimpleCmd(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, &out)
	if err := r.Run(context.Background(), mustParse(t, "echo hello")); err != nil {
		t.Fatal(err)
	}
	if r.LastStatus() != 0 {
		t.Fatalf("status = %d, want 0", r.LastStatus())
	}
	if out.String() != "hello\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestRunPipe(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, &out)
	if err := r.Run(context.Background(), mustParse(t, "echo hi | tr a-z A-Z")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "HI\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestRunAndOrShortCircuit(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, &out)
	if err := r.Run(context.Background(), mustParse(t, "false && echo no || echo yes")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "yes\n" {
		t.Fatalf("got %q", out.String())
	}
	if err := r.Run(context.Background(), mustParse(t, "true && echo first")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "yes\nfirst\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestRunRedirect(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, &out)
	target := filepath.Join(r.Dir, "out.txt")
	if err := r.Run(context.Background(), mustParse(t, "echo hi > "+target)); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hi\n" {
		t.Fatalf("got %q", got)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected shell stdout: %q", out.String())
	}
}

func TestRunExitPropagates(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, &out)
	err := r.Run(context.Background(), mustParse(t, "exit 3"))
	es, ok := err.(ExitStatus)
	if !ok {
		t.Fatalf("got %T, want ExitStatus", err)
	}
	if es != 3 {
		t.Fatalf("got exit status %d, want 3", es)
	}
}

func TestRunBackgroundJobReturnsImmediately(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, &out)
	start := time.Now()
	if err := r.Run(context.Background(), mustParse(t, "sleep 1 &")); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("runBg blocked for %v, want near-instant return", elapsed)
	}
	jobs := r.Jobs.Jobs()
	if len(jobs) != 1 || !jobs[0].IsBg {
		t.Fatalf("expected one background job, got %+v", jobs)
	}
	r.Jobs.KillJobs(&out)
}
