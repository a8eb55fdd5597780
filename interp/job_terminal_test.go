package interp

import (
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/creack/pty"
)

// ptyHelperEnv, when set, makes the test binary itself act as the
// controlling process of a pty instead of running the package's test
// suite: TIOCSPGRP only succeeds for a process whose controlling terminal
// is the target tty, so exercising setForegroundPgid/foregroundPgid for
// real requires a dedicated child that actually owns the pty as its
// controlling terminal, not the outer test process.
const ptyHelperEnv = "POSIXSH_TEST_PTY_HELPER"

func TestMain(m *testing.M) {
	if os.Getenv(ptyHelperEnv) == "1" {
		os.Exit(runPtyHelper())
	}
	os.Exit(m.Run())
}

func runPtyHelper() int {
	fd, ok := controllingTTY()
	if !ok {
		return 2
	}
	pgid := currentPgrp()
	if err := setForegroundPgid(fd, pgid); err != nil {
		return 3
	}
	got, err := foregroundPgid(fd)
	if err != nil || got != pgid {
		return 4
	}
	return 0
}

// TestForegroundPgid exercises the ioctl-backed terminal handoff helpers
// that waitForeground relies on, via a child process made the session
// leader of a real pty.
func TestForegroundPgid(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer ptmx.Close()

	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command(exe)
	cmd.Env = append(os.Environ(), ptyHelperEnv+"=1")
	cmd.Stdin, cmd.Stdout, cmd.Stderr = tty, tty, tty
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    int(tty.Fd()),
	}

	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	tty.Close()

	if err := cmd.Wait(); err != nil {
		t.Fatalf("pty helper failed: %v", err)
	}
}
