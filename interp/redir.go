package interp

import (
	"os"

	"github.com/posixsh/posixsh/syntax"
	"golang.org/x/sys/unix"
)

// RedirMode selects whether [ApplyRedirs] can be undone.
type RedirMode int

const (
	// Permanent redirections are applied in a forked/re-exec'd child right
	// before exec and are never undone: the process image is replaced or
	// exits shortly after.
	Permanent RedirMode = iota
	// Temporary redirections are applied around a built-in that runs
	// in-process (not forked), and must be undone once the built-in
	// returns so the shell's own stdio is restored.
	Temporary
)

// fdBackup records how to restore one file descriptor that [ApplyRedirs]
// overwrote. SavedFd is -1 when the target fd was not open beforehand, in
// which case undo closes it instead of restoring it.
type fdBackup struct {
	Fd      int
	SavedFd int
}

// RedirState is the undo stack produced by a Temporary [ApplyRedirs] call.
// It must not outlive the built-in invocation it guards.
type RedirState struct {
	backups []fdBackup
}

// ApplyRedirs opens and installs each of redirs's target file descriptors,
// in order. If one of them fails, those already applied are rolled back
// before the error is returned: a partially applied set never leaks open
// fds.
//
// In Permanent mode the caller must never call Undo; the backups exist
// only to support rollback on a mid-list failure.
func ApplyRedirs(redirs []syntax.Redirect, mode RedirMode) (*RedirState, error) {
	st := &RedirState{}
	for _, r := range redirs {
		if err := st.apply(r); err != nil {
			st.Undo()
			return nil, err
		}
	}
	if mode == Permanent {
		return nil, nil
	}
	return st, nil
}

// openRedirFile opens r.Path with the flags appropriate to r.Kind: input
// redirections are read-only, output redirections truncate-or-create,
// append redirections append-or-create. New files are created mode 0644.
func openRedirFile(r syntax.Redirect) (*os.File, error) {
	var flags int
	switch r.Kind {
	case syntax.RedirIn:
		flags = os.O_RDONLY
	case syntax.RedirOut:
		flags = os.O_WRONLY | os.O_CREAT | os.O_TRUNC
	case syntax.RedirAppend:
		flags = os.O_WRONLY | os.O_CREAT | os.O_APPEND
	}
	f, err := os.OpenFile(r.Path, flags, 0o644)
	if err != nil {
		return nil, &RedirError{Path: r.Path, Err: err}
	}
	return f, nil
}

func (st *RedirState) apply(r syntax.Redirect) error {
	saved, err := unix.Dup(r.Fd)
	if err != nil {
		saved = -1 // target fd wasn't open; nothing to restore
	} else {
		unix.CloseOnExec(saved)
	}

	f, err := openRedirFile(r)
	if err != nil {
		if saved >= 0 {
			unix.Close(saved)
		}
		return err
	}
	defer f.Close()

	if err := unix.Dup2(int(f.Fd()), r.Fd); err != nil {
		if saved >= 0 {
			unix.Close(saved)
		}
		return &RedirError{Path: r.Path, Err: err}
	}

	st.backups = append(st.backups, fdBackup{Fd: r.Fd, SavedFd: saved})
	return nil
}

// Undo restores every fd touched by ApplyRedirs, in reverse order.
func (st *RedirState) Undo() {
	if st == nil {
		return
	}
	for i := len(st.backups) - 1; i >= 0; i-- {
		b := st.backups[i]
		if b.SavedFd >= 0 {
			unix.Dup2(b.SavedFd, b.Fd)
			unix.Close(b.SavedFd)
		} else {
			unix.Close(b.Fd)
		}
	}
	st.backups = nil
}
