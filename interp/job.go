package interp

import (
	"fmt"
	"io"
	"slices"
	"time"

	"golang.org/x/sys/unix"
)

// maxJobs bounds the job id pool, per spec.
const maxJobs = 1 << 15

// ProcState is the lifecycle state of one tracked process.
type ProcState int

const (
	ProcRun ProcState = iota
	ProcStop
	ProcDone
)

func (s ProcState) String() string {
	switch s {
	case ProcRun:
		return "PROC_RUN"
	case ProcStop:
		return "PROC_STOP"
	case ProcDone:
		return "PROC_DONE"
	default:
		return "PROC_UNKNOWN"
	}
}

// Process tracks one child process belonging to a [Job].
type Process struct {
	Pid      int
	State    ProcState
	ExitCode int // valid only when State == ProcDone and the process exited normally
	TermSig  int // valid only when State == ProcDone and it was killed by a signal
}

// JobState is the aggregated lifecycle state of a [Job], derived from its
// Procs by the rule in [Job.aggregate].
type JobState int

const (
	JobRunning JobState = iota
	JobStopped
	JobDone
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "JOB_RUNNING"
	case JobStopped:
		return "JOB_STOPPED"
	case JobDone:
		return "JOB_DONE"
	default:
		return "JOB_UNKNOWN"
	}
}

// Job is a process group spawned for one command or pipeline.
type Job struct {
	ID    int
	Pgid  int
	Procs []Process
	State JobState
	IsBg  bool

	dirty bool
}

// aggregate recomputes State from Procs, per the rule: all done -> Done;
// else any stopped -> Stopped; else Running. Lazy: only runs when dirty.
func (j *Job) aggregate() {
	if !j.dirty {
		return
	}
	stopped, running := 0, 0
	for _, p := range j.Procs {
		switch p.State {
		case ProcStop:
			stopped++
		case ProcRun:
			running++
		case ProcDone:
		}
	}
	switch {
	case running == 0 && stopped == 0:
		j.State = JobDone
	case stopped > 0:
		j.State = JobStopped
	default:
		j.State = JobRunning
	}
	j.dirty = false
}

// lastProcStatus derives a shell-style exit status (0-255, 128+sig on
// signal death) from the last process in the job, per spec.
func (j *Job) lastProcStatus() int {
	if len(j.Procs) == 0 {
		return 0
	}
	p := j.Procs[len(j.Procs)-1]
	if p.TermSig >= 0 {
		return 128 + p.TermSig
	}
	return p.ExitCode
}

// JobTable is the shell's process-group registry: it owns every [Job] and
// its Procs from the moment [JobTable.Add] is called, reaps children via
// explicit wait calls driven from the main loop (never from signal
// context), and aggregates job state lazily. All methods assume
// single-threaded access, matching the shell's single-threaded execution
// model.
type JobTable struct {
	jobs []*Job
	pool [maxJobs]bool
}

// NewJobTable returns an empty job table.
func NewJobTable() *JobTable {
	return &JobTable{}
}

// NewID returns the smallest free job id, or an error if the pool is
// exhausted.
func (t *JobTable) NewID() (int, error) {
	for i := range t.pool {
		if !t.pool[i] {
			t.pool[i] = true
			return i, nil
		}
	}
	return 0, ErrJobTableFull
}

func (t *JobTable) freeID(id int) {
	if id >= 0 && id < len(t.pool) {
		t.pool[id] = false
	}
}

// Add registers j, transferring ownership to the table.
func (t *JobTable) Add(j *Job) {
	t.jobs = append(t.jobs, j)
}

// UpdateProc applies a wait status to the process matching pid, across
// every tracked job, and marks that job dirty.
func (t *JobTable) UpdateProc(pid int, ws unix.WaitStatus) bool {
	for _, j := range t.jobs {
		for i := range j.Procs {
			p := &j.Procs[i]
			if p.Pid != pid {
				continue
			}
			switch {
			case ws.Exited():
				p.State, p.ExitCode, p.TermSig = ProcDone, ws.ExitStatus(), -1
			case ws.Signaled():
				p.State, p.ExitCode, p.TermSig = ProcDone, -1, int(ws.Signal())
			case ws.Stopped():
				p.State, p.ExitCode, p.TermSig = ProcStop, -1, -1
			case ws.Continued():
				p.State, p.ExitCode, p.TermSig = ProcRun, -1, -1
			default:
				return false
			}
			j.dirty = true
			return true
		}
	}
	return false
}

// UpdateJob recomputes j's aggregated state if dirty.
func (t *JobTable) UpdateJob(j *Job) { j.aggregate() }

// UpdateJobs recomputes every job's aggregated state.
func (t *JobTable) UpdateJobs() {
	for _, j := range t.jobs {
		j.aggregate()
	}
}

// RemoveZombies deletes every Done job from the table, printing a
// completion notice to w for each one that was backgrounded.
func (t *JobTable) RemoveZombies(w io.Writer) {
	kept := t.jobs[:0]
	for _, j := range t.jobs {
		if j.State != JobDone {
			kept = append(kept, j)
			continue
		}
		if j.IsBg {
			fmt.Fprintf(w, "[%d] Done! %d\n", j.ID, j.Pgid)
		}
		t.freeID(j.ID)
	}
	t.jobs = kept
}

// GetJob looks up a job by id; id == -1 returns the most recently added
// job still in the table.
func (t *JobTable) GetJob(id int) *Job {
	if id == -1 {
		if len(t.jobs) == 0 {
			return nil
		}
		return t.jobs[len(t.jobs)-1]
	}
	for _, j := range t.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// Jobs returns the live job list, most recently added last.
func (t *JobTable) Jobs() []*Job {
	return slices.Clone(t.jobs)
}

// Sprint renders the job table in the format from spec §6:
// [<id>] {<pgid>, <JOB_STATE>} : ({<pid>, <PROC_STATE>} )+
func (t *JobTable) Sprint() string {
	var out []byte
	for _, j := range t.jobs {
		out = append(out, fmt.Sprintf("[%d] {%d, %s} : ", j.ID, j.Pgid, j.State)...)
		for _, p := range j.Procs {
			out = append(out, fmt.Sprintf("{%d, %s} ", p.Pid, p.State)...)
		}
		out = append(out, '\n')
	}
	return string(out)
}

// DrainNonBlocking collects every pending child status change without
// blocking, aggregates job states, and prunes zombies. It is the Go
// equivalent of the reference shell's empty SIGCHLD handler plus the
// waitpid(-1, WNOHANG|WUNTRACED|WCONTINUED) loop run between prompts: the
// real reaping always happens here, in the main loop, never from a signal
// handler.
func (t *JobTable) DrainNonBlocking(w io.Writer) {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil || pid <= 0 {
			break
		}
		t.UpdateProc(pid, ws)
	}
	t.UpdateJobs()
	t.RemoveZombies(w)
}

// KillJobs terminates every remaining job gracefully (SIGTERM), reaping
// opportunistically for up to ~500ms, then force-kills (SIGKILL) and reaps
// synchronously. Called unconditionally on shell shutdown.
func (t *JobTable) KillJobs(w io.Writer) {
	for _, j := range t.jobs {
		unix.Kill(-j.Pgid, unix.SIGTERM)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && len(t.jobs) > 0 {
		t.DrainNonBlocking(w)
		if len(t.jobs) == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, j := range t.jobs {
		unix.Kill(-j.Pgid, unix.SIGKILL)
	}
	for len(t.jobs) > 0 {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, 0, nil)
		if err != nil {
			break
		}
		t.UpdateProc(pid, ws)
		t.UpdateJobs()
		t.RemoveZombies(w)
	}
}
