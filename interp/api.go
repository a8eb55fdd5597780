// Package interp executes the AST produced by the syntax package: it
// forks and execs external commands, wires up pipelines, applies
// redirections, and tracks every spawned process group in a [JobTable].
package interp

import (
	"context"
	"io"
	"os"

	"github.com/posixsh/posixsh/syntax"
)

// A Runner interprets shell lines. It can be reused across lines, but it
// is not safe for concurrent use. Use [New] to build one.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Dir string

	// Interactive enables terminal job control: process groups are put in
	// the foreground/background via the controlling terminal. A foreground
	// job that stops ends the wait in either mode; no notice is printed
	// for it.
	Interactive bool

	Jobs *JobTable

	// exe is the path to the running binary, used by the self re-exec
	// path to run a built-in as a real child process inside a pipeline.
	exe string

	// ttyFd is the controlling terminal's fd, or -1 when there is none
	// (piped input, or a non-interactive Runner).
	ttyFd int
	// shellPgid is the shell's own process group, restored as the
	// terminal's foreground group after every foreground job.
	shellPgid int

	lastStatus int
}

// RunnerOption is an option passed to [New].
type RunnerOption func(*Runner) error

// New builds a Runner from opts. Stdin/Stdout/Stderr default to the
// process's own, Dir defaults to the process's working directory.
func New(opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Jobs:   NewJobTable(),
		ttyFd:  -1,
	}
	if wd, err := os.Getwd(); err == nil {
		r.Dir = wd
	}
	if exe, err := os.Executable(); err == nil {
		r.exe = exe
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.Interactive {
		if fd, ok := controllingTTY(); ok {
			r.ttyFd = fd
		}
		r.shellPgid = currentPgrp()
	}
	return r, nil
}

// StdIO sets the Runner's Stdin, Stdout and Stderr.
func StdIO(in io.Reader, out, err io.Writer) RunnerOption {
	return func(r *Runner) error {
		r.Stdin, r.Stdout, r.Stderr = in, out, err
		return nil
	}
}

// Dir sets the Runner's initial working directory.
func Dir(path string) RunnerOption {
	return func(r *Runner) error {
		r.Dir = path
		return nil
	}
}

// Interactive enables or disables terminal job control.
func Interactive(v bool) RunnerOption {
	return func(r *Runner) error {
		r.Interactive = v
		return nil
	}
}

// LastStatus returns the exit status of the most recently run line.
func (r *Runner) LastStatus() int { return r.lastStatus }

// Run executes node, updating r.LastStatus. For a tree produced by
// [syntax.Parse], the only error Run returns is [ExitStatus], raised by
// the exit built-in when it is invoked outside of a forked pipeline child,
// i.e. when it should terminate the whole shell.
func (r *Runner) Run(ctx context.Context, node syntax.Node) error {
	status, err := r.run(ctx, node)
	r.lastStatus = status
	return err
}
