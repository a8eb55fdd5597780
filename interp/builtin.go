package interp

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// IsBuiltin reports whether name is one of the shell's built-in commands.
// Every other word is looked up on PATH and exec'd.
func IsBuiltin(name string) bool {
	switch name {
	case "cd", "exit", "jobs", "fg", "bg":
		return true
	default:
		return false
	}
}

// callBuiltin runs a built-in in-process, against r's own state (working
// directory, job table, controlling terminal). It never forks: a
// foreground built-in that is not part of a pipeline and not
// backgrounded runs directly inside the shell's own process, as required.
func (r *Runner) callBuiltin(argv []string) (int, error) {
	switch argv[0] {
	case "cd":
		return r.builtinCd(argv)
	case "exit":
		return r.builtinExit(argv)
	case "jobs":
		return r.builtinJobs(argv)
	case "fg":
		return r.builtinFg(argv)
	case "bg":
		return r.builtinBg(argv)
	default:
		return 127, fmt.Errorf("%s: not a builtin", argv[0])
	}
}

// builtinCd implements cd [dir], tracking OLDPWD/PWD the way every POSIX
// shell does: "cd -" returns to OLDPWD and prints it; a bare "cd" or
// "cd ~" goes to HOME; anything else chdirs to the given path.
func (r *Runner) builtinCd(argv []string) (int, error) {
	if len(argv) > 2 {
		return 1, &BuiltinUsageError{Name: "cd", Msg: "too many arguments"}
	}

	target := ""
	printTarget := false
	switch len(argv) {
	case 1:
		target = os.Getenv("HOME")
		if target == "" {
			fmt.Fprintln(r.Stderr, "cd: HOME not set")
			return 1, nil
		}
	case 2:
		switch argv[1] {
		case "-":
			target = os.Getenv("OLDPWD")
			if target == "" {
				fmt.Fprintln(r.Stderr, "cd: OLDPWD not set")
				return 1, nil
			}
			printTarget = true
		case "~":
			target = os.Getenv("HOME")
			if target == "" {
				fmt.Fprintln(r.Stderr, "cd: HOME not set")
				return 1, nil
			}
		default:
			target = argv[1]
		}
	}

	old := r.Dir
	if old == "" {
		old, _ = os.Getwd()
	}

	if err := os.Chdir(target); err != nil {
		fmt.Fprintf(r.Stderr, "cd: %v\n", err)
		return 1, nil
	}

	newDir, err := os.Getwd()
	if err != nil {
		newDir = target
	}
	r.Dir = newDir
	os.Setenv("OLDPWD", old)
	os.Setenv("PWD", newDir)

	if printTarget {
		fmt.Fprintln(r.Stdout, newDir)
	}
	return 0, nil
}

// builtinExit implements exit [n]. Outside of a forked pipeline child,
// this must unwind the whole shell: it returns an [ExitStatus] error,
// which the caller (the pipeline/re-exec entry point, or cmd/posixsh's
// main loop) turns into process termination. Inside a forked pipeline
// child, the process running this code IS the child, so ExitStatus
// propagating out of Run and into os.Exit has exactly the right effect:
// only that child dies.
func (r *Runner) builtinExit(argv []string) (int, error) {
	code := 0
	if len(argv) > 2 {
		return 1, &BuiltinUsageError{Name: "exit", Msg: "too many arguments"}
	}
	if len(argv) == 2 {
		n, err := strconv.Atoi(argv[1])
		if err != nil {
			return 1, &BuiltinUsageError{Name: "exit", Msg: argv[1] + ": numeric argument required"}
		}
		code = n
	}
	status := ExitStatus(uint8(code % 256))
	return int(status), status
}

// builtinJobs implements jobs: lists every tracked job.
func (r *Runner) builtinJobs(argv []string) (int, error) {
	fmt.Fprint(r.Stdout, r.Jobs.Sprint())
	return 0, nil
}

// parseJobArg parses an optional "%N" job-id argument, defaulting to -1
// (most recently added job) when absent.
func parseJobArg(argv []string, name string) (int, error) {
	if len(argv) == 1 {
		return -1, nil
	}
	if len(argv) > 2 {
		return 0, &BuiltinUsageError{Name: name, Msg: "too many arguments"}
	}
	s := strings.TrimPrefix(argv[1], "%")
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, &BuiltinUsageError{Name: name, Msg: "invalid job id: " + argv[1]}
	}
	return id, nil
}

// builtinFg implements fg [%N]: resumes a stopped job (if any) and brings
// it to the foreground, waiting for it the same way a freshly launched
// foreground job is waited for.
func (r *Runner) builtinFg(argv []string) (int, error) {
	id, err := parseJobArg(argv, "fg")
	if err != nil {
		return 1, err
	}
	j := r.Jobs.GetJob(id)
	if j == nil {
		fmt.Fprintln(r.Stderr, "fg: no such job")
		return 1, nil
	}
	j.IsBg = false
	return r.resumeForeground(j)
}

// builtinBg implements bg [%N]: resumes a stopped job and lets it
// continue running in the background.
func (r *Runner) builtinBg(argv []string) (int, error) {
	id, err := parseJobArg(argv, "bg")
	if err != nil {
		return 1, err
	}
	j := r.Jobs.GetJob(id)
	if j == nil {
		fmt.Fprintln(r.Stderr, "bg: no such job")
		return 1, nil
	}
	j.IsBg = true
	return r.resumeBackground(j)
}
