package interp

import (
	"io"
	"os"
	"os/exec"

	"github.com/posixsh/posixsh/syntax"
)

// stdioPlan collects the fds a spawned command should run with: the
// Runner's own stdio by default, overridden by pipeline wiring and then
// by any redirections on the command itself, in that order.
type stdioPlan struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	extra  []*os.File // index i is fd 3+i

	opened []*os.File // opened by applyRedirs; must be closed after Start
}

func newStdioPlan(r *Runner) (*stdioPlan, error) {
	return &stdioPlan{stdin: r.Stdin, stdout: r.Stdout, stderr: r.Stderr}, nil
}

// applyRedirs layers redirs on top of the plan's current fds, in order,
// so a later redirect on the same fd wins, matching shell semantics.
func (p *stdioPlan) applyRedirs(redirs []syntax.Redirect) error {
	for _, rd := range redirs {
		f, err := openRedirFile(rd)
		if err != nil {
			return err
		}
		p.opened = append(p.opened, f)
		switch rd.Fd {
		case 0:
			p.stdin = f
		case 1:
			p.stdout = f
		case 2:
			p.stderr = f
		default:
			idx := rd.Fd - 3
			for len(p.extra) <= idx {
				p.extra = append(p.extra, nil)
			}
			p.extra[idx] = f
		}
	}
	return nil
}

// wire assigns the plan's fds onto cmd. Any gap in extra (a higher fd
// redirected without the ones below it) is filled with /dev/null so
// os/exec never sees a nil *os.File.
func (p *stdioPlan) wire(cmd *exec.Cmd) {
	cmd.Stdin = p.stdin
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	if len(p.extra) == 0 {
		return
	}
	extra := make([]*os.File, len(p.extra))
	for i, f := range p.extra {
		if f != nil {
			extra[i] = f
			continue
		}
		null, err := os.Open(os.DevNull)
		if err == nil {
			p.opened = append(p.opened, null)
			extra[i] = null
		}
	}
	cmd.ExtraFiles = extra
}

// closeOpened releases every fd this plan opened for redirection, once
// the spawned process has started and inherited its own copies.
func (p *stdioPlan) closeOpened() {
	for _, f := range p.opened {
		f.Close()
	}
}
