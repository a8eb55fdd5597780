// Command posixsh is a small interactive POSIX-style shell built on top
// of [interp].
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/posixsh/posixsh/interp"
	"github.com/posixsh/posixsh/syntax"
)

var command = flag.String("c", "", "command to run instead of reading from stdin")

func main() {
	// A re-exec'd process is a builtin running as its own child, not a
	// shell; this must be checked before any flag parsing or prompt setup.
	interp.MaybeRunReexecBuiltin()

	flag.Parse()
	os.Exit(run())
}

func run() int {
	ignoreJobControlSignals()

	interactive := *command == "" && term.IsTerminal(int(os.Stdin.Fd()))

	r, err := interp.New(
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.Interactive(interactive),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *command != "" {
		status, _ := execLine(r, *command)
		r.Jobs.KillJobs(r.Stderr)
		return status
	}
	return runLoop(r, os.Stdin, os.Stdout)
}

// ignoreJobControlSignals puts the shell's own signal dispositions in the
// state every job-control shell needs: SIGINT/SIGTSTP are ignored so
// Ctrl-C/Ctrl-Z affect the foreground job, not the shell itself, and
// SIGTTOU/SIGTTIN are ignored so the shell backgrounding itself around a
// tcsetpgrp call never stops it.
func ignoreJobControlSignals() {
	signal.Ignore(syscall.SIGINT, syscall.SIGTSTP, syscall.SIGTTOU, syscall.SIGTTIN)
}

// runLoop is the shell's read-eval loop. A goroutine feeds scanned lines
// into a channel; SIGCHLD delivery feeds a second channel. The select
// below is this shell's equivalent of the reference implementation's
// blocking getline() interrupted by an empty SIGCHLD handler: here,
// nothing is reaped from signal context, it only wakes the loop up to
// drain child state non-blockingly.
func runLoop(r *interp.Runner, in io.Reader, out io.Writer) int {
	lines, lineErrs := startLineReader(in)

	sigchld := make(chan os.Signal, 1)
	signal.Notify(sigchld, syscall.SIGCHLD)
	defer signal.Stop(sigchld)

	status := 0
	printPrompt(out, r)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				r.Jobs.KillJobs(r.Stderr)
				if err := <-lineErrs; err != nil {
					fmt.Fprintln(r.Stderr, err)
					return 1
				}
				return status
			}
			exit := false
			status, exit = execLine(r, line)
			if exit {
				r.Jobs.KillJobs(r.Stderr)
				return status
			}
			r.Jobs.DrainNonBlocking(r.Stderr)
			printPrompt(out, r)

		case <-sigchld:
			r.Jobs.DrainNonBlocking(r.Stderr)
		}
	}
}

func printPrompt(out io.Writer, r *interp.Runner) {
	fmt.Fprintf(out, "%s> ", r.Dir)
}

// startLineReader scans in line by line on its own goroutine, so the main
// loop's select can watch for SIGCHLD without blocking on input.
func startLineReader(in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		errs <- sc.Err()
		close(lines)
	}()
	return lines, errs
}

// execLine parses and runs a single line, returning the exit status and
// whether the exit built-in requested that the whole shell terminate.
func execLine(r *interp.Runner, line string) (status int, exit bool) {
	node, err := syntax.Parse([]byte(line))
	if err != nil {
		fmt.Fprintln(r.Stderr, err)
		return 1, false
	}

	err = r.Run(context.Background(), node)
	if es, ok := err.(interp.ExitStatus); ok {
		return int(es), true
	}
	if err != nil {
		fmt.Fprintln(r.Stderr, err)
	}
	return r.LastStatus(), false
}
