//go:build unix

package interp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr builds the SysProcAttr that puts a spawned process into its
// own (or an existing) process group, matching the reference shell's
// setpgid(pid, pgid) call made right after fork. pgid == 0 means "start a
// new group rooted at this process"; a non-zero pgid joins an
// already-created group, as every process past the first in a pipeline
// does.
func sysProcAttr(pgid int) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    pgid,
	}
}

// controllingTTY returns the fd of the shell's controlling terminal, if
// any. Job control (foreground/background pgid handoff) is only
// meaningful when one exists.
func controllingTTY() (fd int, ok bool) {
	fd, err := unix.Open("/dev/tty", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, false
	}
	return fd, true
}

// setForegroundPgid hands the controlling terminal to pgid. SIGTTOU is
// expected to be ignored by the caller (it would otherwise stop the
// shell itself, since the shell is not in the foreground group while
// this call is made).
func setForegroundPgid(ttyFd, pgid int) error {
	return unix.IoctlSetInt(ttyFd, unix.TIOCSPGRP, pgid)
}

// foregroundPgid reads back the terminal's current foreground process
// group.
func foregroundPgid(ttyFd int) (int, error) {
	return unix.IoctlGetInt(ttyFd, unix.TIOCGPGRP)
}

func killpg(pgid, sig int) error {
	return unix.Kill(-pgid, sig)
}

func currentPgrp() int {
	return unix.Getpgrp()
}
