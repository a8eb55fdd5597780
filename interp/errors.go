package interp

import "fmt"

// ExitStatus is a sentinel error used to unwind the interpreter when the
// shell itself should exit, carrying the process exit code. cmd/posixsh
// dispatches on it with a type assertion, mirroring how the shell's "exit"
// built-in terminates the process directly in every POSIX implementation.
type ExitStatus uint8

func (s ExitStatus) Error() string { return fmt.Sprintf("exit status %d", s) }

// SpawnError wraps a fork/exec/setpgid/dup2 failure.
type SpawnError struct {
	Op  string
	Err error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// RedirError wraps an open/dup failure while applying a redirection.
type RedirError struct {
	Path string
	Err  error
}

func (e *RedirError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *RedirError) Unwrap() error { return e.Err }

// ErrJobTableFull is returned by the job table when its fixed-capacity id
// pool is exhausted.
var ErrJobTableFull = fmt.Errorf("job table: no free job ids")

// BuiltinUsageError is returned by a built-in on malformed arguments. The
// built-ins leave Status unset; the exit status the shell reports for the
// line is the int each built-in returns alongside the error.
type BuiltinUsageError struct {
	Name   string
	Msg    string
	Status int
}

func (e *BuiltinUsageError) Error() string { return fmt.Sprintf("%s: %s", e.Name, e.Msg) }
