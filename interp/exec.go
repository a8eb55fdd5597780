package interp

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/posixsh/posixsh/syntax"
	"golang.org/x/sys/unix"
)

// run dispatches a single AST node and reports the resulting exit status.
// For a tree produced by [syntax.Parse], the only error it returns is
// [ExitStatus], raised by exit outside of a forked context, which must
// unwind all the way out of the shell. A node type it cannot run, or a
// [syntax.Bg] whose child is not a Cmd or Pipe, yields an internal error.
func (r *Runner) run(ctx context.Context, node syntax.Node) (int, error) {
	switch n := node.(type) {
	case *syntax.Seq:
		status := 0
		for _, child := range n.Children {
			st, err := r.run(ctx, child)
			status = st
			if err != nil {
				return status, err
			}
		}
		return status, nil

	case *syntax.And:
		status, err := r.run(ctx, n.Left)
		if err != nil || status != 0 {
			return status, err
		}
		return r.run(ctx, n.Right)

	case *syntax.Or:
		status, err := r.run(ctx, n.Left)
		if err != nil || status == 0 {
			return status, err
		}
		return r.run(ctx, n.Right)

	case *syntax.Bg:
		return r.runBg(n.Child)

	case *syntax.Pipe:
		return r.runPipe(n, false)

	case *syntax.Cmd:
		return r.runCmd(n)

	default:
		return 0, fmt.Errorf("interp: unknown node %T", n)
	}
}

// runCmd executes a single foreground command: a builtin runs directly in
// the shell's own process (never forked), anything else is spawned as a
// one-process job and waited for.
func (r *Runner) runCmd(n *syntax.Cmd) (int, error) {
	if len(n.Argv) == 0 {
		return 0, nil
	}

	if IsBuiltin(n.Argv[0]) {
		st, err := ApplyRedirs(n.Redirs, Temporary)
		if err != nil {
			fmt.Fprintln(r.Stderr, err)
			return 1, nil
		}
		defer st.Undo()

		status, err := r.callBuiltin(n.Argv)
		if es, ok := asExitStatus(err); ok {
			return status, es
		}
		if err != nil {
			fmt.Fprintln(r.Stderr, err)
		}
		return status, nil
	}

	stdio, err := newStdioPlan(r)
	if err != nil {
		fmt.Fprintln(r.Stderr, err)
		return 1, nil
	}
	if err := stdio.applyRedirs(n.Redirs); err != nil {
		fmt.Fprintln(r.Stderr, err)
		return 1, nil
	}

	cmd, err := r.buildExternalCmd(n.Argv, stdio, 0)
	if err != nil {
		fmt.Fprintln(r.Stderr, err)
		return 127, nil
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(r.Stderr, err)
		return 127, nil
	}
	stdio.closeOpened()

	job := &Job{Pgid: cmd.Process.Pid, Procs: []Process{{Pid: cmd.Process.Pid, State: ProcRun}}}
	if id, err := r.Jobs.NewID(); err == nil {
		job.ID = id
	}
	r.Jobs.Add(job)

	return r.waitForeground(job)
}

// runBg launches child (a Cmd or Pipe) as a background job: it always
// runs as a real OS process, even when child is a builtin, since
// backgrounding means the shell must regain control immediately while the
// job keeps running concurrently.
func (r *Runner) runBg(child syntax.Node) (int, error) {
	switch c := child.(type) {
	case *syntax.Pipe:
		return r.runPipe(c, true)
	case *syntax.Cmd:
		return r.runSingleBg(c)
	default:
		return 0, fmt.Errorf("interp: %T cannot be backgrounded", child)
	}
}

func (r *Runner) runSingleBg(n *syntax.Cmd) (int, error) {
	if len(n.Argv) == 0 {
		return 0, nil
	}

	stdio, err := newStdioPlan(r)
	if err != nil {
		fmt.Fprintln(r.Stderr, err)
		return 1, nil
	}
	if err := stdio.applyRedirs(n.Redirs); err != nil {
		fmt.Fprintln(r.Stderr, err)
		return 1, nil
	}

	cmd, err := r.buildCmd(n.Argv, stdio, 0)
	if err != nil {
		fmt.Fprintln(r.Stderr, err)
		return 127, nil
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(r.Stderr, err)
		return 127, nil
	}
	stdio.closeOpened()

	job := &Job{Pgid: cmd.Process.Pid, IsBg: true, Procs: []Process{{Pid: cmd.Process.Pid, State: ProcRun}}}
	if id, err := r.Jobs.NewID(); err == nil {
		job.ID = id
	}
	r.Jobs.Add(job)
	return 0, nil
}

// runPipe spawns every stage of a pipeline into one process group and
// either waits for it (foreground) or registers it and returns
// immediately (background).
func (r *Runner) runPipe(n *syntax.Pipe, bg bool) (int, error) {
	nstages := len(n.Children)
	readers := make([]*os.File, nstages-1)
	writers := make([]*os.File, nstages-1)
	for i := range readers {
		pr, pw, err := os.Pipe()
		if err != nil {
			fmt.Fprintln(r.Stderr, err)
			return 1, nil
		}
		readers[i], writers[i] = pr, pw
	}

	job := &Job{IsBg: bg}

	for i, stageCmd := range n.Children {
		stdio, err := newStdioPlan(r)
		if err != nil {
			fmt.Fprintln(r.Stderr, err)
			return 1, nil
		}
		if i > 0 {
			stdio.stdin = readers[i-1]
		}
		if i < nstages-1 {
			stdio.stdout = writers[i]
		}
		if err := stdio.applyRedirs(stageCmd.Redirs); err != nil {
			fmt.Fprintln(r.Stderr, err)
			return 1, nil
		}

		pgid := 0
		if job.Pgid != 0 {
			pgid = job.Pgid
		}
		cmd, err := r.buildCmd(stageCmd.Argv, stdio, pgid)
		if err != nil {
			fmt.Fprintln(r.Stderr, err)
			return 127, nil
		}
		if err := cmd.Start(); err != nil {
			fmt.Fprintln(r.Stderr, err)
			return 127, nil
		}
		if job.Pgid == 0 {
			job.Pgid = cmd.Process.Pid
		}
		job.Procs = append(job.Procs, Process{Pid: cmd.Process.Pid, State: ProcRun})
		stdio.closeOpened()

		// The stage that just started has its own copy of the pipe ends
		// it uses; the parent's copies must close now so EOF propagates
		// once every writer of a given pipe is gone.
		if i > 0 {
			readers[i-1].Close()
		}
		if i < nstages-1 {
			writers[i].Close()
		}
	}

	if id, err := r.Jobs.NewID(); err == nil {
		job.ID = id
	}
	r.Jobs.Add(job)

	if bg {
		return 0, nil
	}
	return r.waitForeground(job)
}

// buildCmd constructs the *exec.Cmd for one pipeline/command stage,
// dispatching to the self-reexec path when argv names a builtin.
func (r *Runner) buildCmd(argv []string, stdio *stdioPlan, pgid int) (*exec.Cmd, error) {
	if IsBuiltin(argv[0]) {
		cmd := reexecBuiltinCmd(r.exe, argv)
		stdio.wire(cmd)
		cmd.SysProcAttr = sysProcAttr(pgid)
		return cmd, nil
	}
	return r.buildExternalCmd(argv, stdio, pgid)
}

func (r *Runner) buildExternalCmd(argv []string, stdio *stdioPlan, pgid int) (*exec.Cmd, error) {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, &SpawnError{Op: "lookup " + argv[0], Err: err}
	}
	cmd := exec.Command(path, argv[1:]...)
	cmd.Args[0] = argv[0]
	stdio.wire(cmd)
	cmd.SysProcAttr = sysProcAttr(pgid)
	return cmd, nil
}

// waitForeground hands the terminal to job (if interactive), blocks until
// the job is no longer running (every process done, or any one stopped),
// then restores the shell to the foreground. Every child reaped along the
// way has its status recorded in the job table, as the main loop's
// between-prompts drain does.
func (r *Runner) waitForeground(job *Job) (int, error) {
	if r.Interactive && r.haveTTY() {
		setForegroundPgid(r.ttyFd, job.Pgid)
		defer setForegroundPgid(r.ttyFd, r.shellPgid)
	}

	for {
		job.aggregate()
		if job.State != JobRunning {
			break
		}
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WUNTRACED, nil)
		if err != nil {
			break
		}
		r.Jobs.UpdateProc(pid, ws)
		job.dirty = true
	}

	if job.State == JobDone {
		r.Jobs.RemoveZombies(r.Stderr)
	}
	return job.lastProcStatus(), nil
}

// resumeForeground implements fg: send SIGCONT, hand over the terminal,
// and wait exactly like a freshly spawned foreground job.
func (r *Runner) resumeForeground(j *Job) (int, error) {
	killpg(j.Pgid, int(unix.SIGCONT))
	for i := range j.Procs {
		if j.Procs[i].State != ProcDone {
			j.Procs[i].State = ProcRun
		}
	}
	j.dirty = true
	return r.waitForeground(j)
}

// resumeBackground implements bg: send SIGCONT and return immediately.
func (r *Runner) resumeBackground(j *Job) (int, error) {
	killpg(j.Pgid, int(unix.SIGCONT))
	for i := range j.Procs {
		if j.Procs[i].State != ProcDone {
			j.Procs[i].State = ProcRun
		}
	}
	j.dirty = true
	return 0, nil
}

func (r *Runner) haveTTY() bool { return r.ttyFd >= 0 }
