package syntax

import (
	"fmt"
	"strconv"

	"github.com/posixsh/posixsh/token"
)

// Parse lexes and parses a single line of input, yielding the [Seq] at its
// root. Parse errors discard the whole line: the returned Node is nil
// whenever err is non-nil.
func Parse(input []byte) (Node, error) {
	toks, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	seq := p.parseSeq()
	if p.err != nil {
		return nil, p.err
	}
	if p.tok().Kind != token.EOF {
		p.errf(EmptySegment, "unexpected %s", p.tok())
		return nil, p.err
	}
	return seq, nil
}

type parser struct {
	toks []Token
	pos  int
	err  error
}

func (p *parser) tok() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: token.EOF, Pos: p.eofPos()}
	}
	return p.toks[p.pos]
}

func (p *parser) eofPos() int {
	if len(p.toks) == 0 {
		return 0
	}
	return p.toks[len(p.toks)-1].Pos + 1
}

func (p *parser) advance() Token {
	t := p.tok()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) errf(kind ParseErrorKind, format string, args ...any) {
	if p.err != nil {
		return
	}
	text := ""
	if format != "" {
		text = fmt.Sprintf(format, args...)
	}
	p.err = &ParseError{Kind: kind, Pos: p.tok().Pos, Text: text}
}

// parseSeq implements: seq := andor ( (SEMI | AMP) andor )* (SEMI | AMP)?
func (p *parser) parseSeq() *Seq {
	seq := &Seq{}
	for p.err == nil {
		if p.atSeqEnd() {
			break
		}
		child := p.parseAndOr()
		if p.err != nil {
			return nil
		}
		if p.tok().Kind == token.AMP {
			p.advance()
			if !isBgCandidate(child) {
				p.errf(BackgroundOfControlNode, "")
				return nil
			}
			seq.Children = append(seq.Children, &Bg{Child: child})
			if p.atSeqEnd() {
				break
			}
			continue
		}
		seq.Children = append(seq.Children, child)
		if p.tok().Kind == token.SEMI {
			p.advance()
			if p.atSeqEnd() {
				break
			}
			continue
		}
		break
	}
	if p.err != nil {
		return nil
	}
	return seq
}

func isBgCandidate(n Node) bool {
	switch n.(type) {
	case *Cmd, *Pipe:
		return true
	default:
		return false
	}
}

func (p *parser) atSeqEnd() bool {
	return p.tok().Kind == token.EOF
}

// parseAndOr implements: andor := pipe ( (ANDAND | OROR) pipe )*, left
// associative.
func (p *parser) parseAndOr() Node {
	left := p.parsePipe()
	for p.err == nil {
		switch p.tok().Kind {
		case token.ANDAND:
			p.advance()
			right := p.parsePipe()
			if p.err != nil {
				return nil
			}
			left = &And{Left: left, Right: right}
		case token.OROR:
			p.advance()
			right := p.parsePipe()
			if p.err != nil {
				return nil
			}
			left = &Or{Left: left, Right: right}
		default:
			return left
		}
	}
	return nil
}

// parsePipe implements: pipe := cmd ( PIPE cmd )*
func (p *parser) parsePipe() Node {
	first := p.parseCmd()
	if p.err != nil {
		return nil
	}
	if p.tok().Kind != token.PIPE {
		return first
	}
	pipe := &Pipe{Children: []*Cmd{first}}
	for p.tok().Kind == token.PIPE {
		p.advance()
		if p.isCmdTerminator() {
			p.errf(MissingPipeSide, "expected a command after '|'")
			return nil
		}
		next := p.parseCmd()
		if p.err != nil {
			return nil
		}
		pipe.Children = append(pipe.Children, next)
	}
	return pipe
}

// parseCmd implements: cmd := ( WORD | redir )+
func (p *parser) parseCmd() *Cmd {
	cmd := &Cmd{}
	sawAny := false
	for {
		t := p.tok()
		switch t.Kind {
		case token.WORD:
			if n, ok := p.fdPrefix(t); ok && p.peekIsRedirOp(1) {
				p.advance()
				if err := p.parseRedir(cmd, n); err != nil {
					return nil
				}
				sawAny = true
				continue
			}
			p.advance()
			cmd.Argv = append(cmd.Argv, t.Value)
			sawAny = true
		case token.LT, token.GT, token.GTGT:
			if err := p.parseRedir(cmd, -1); err != nil {
				return nil
			}
			sawAny = true
		default:
			if !sawAny {
				p.errf(EmptySegment, "expected a command")
				return nil
			}
			return cmd
		}
	}
}

// fdPrefix reports whether t looks like a bare non-negative integer glued
// (no intervening whitespace) to the following redirection operator.
func (p *parser) fdPrefix(t Token) (int, bool) {
	if !t.AdjacentNext {
		return 0, false
	}
	n, err := strconv.Atoi(t.Value)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (p *parser) peekIsRedirOp(off int) bool {
	idx := p.pos + off
	if idx >= len(p.toks) {
		return false
	}
	switch p.toks[idx].Kind {
	case token.LT, token.GT, token.GTGT:
		return true
	default:
		return false
	}
}

// parseRedir consumes the current redirection operator and its filename
// word, appending the result to cmd.Redirs. explicitFd is -1 when no fd
// prefix was attached.
func (p *parser) parseRedir(cmd *Cmd, explicitFd int) error {
	op := p.advance()
	var kind RedirKind
	defaultFd := 0
	switch op.Kind {
	case token.LT:
		kind = RedirIn
		defaultFd = 0
	case token.GT:
		kind = RedirOut
		defaultFd = 1
	case token.GTGT:
		kind = RedirAppend
		defaultFd = 1
	}
	word := p.tok()
	if word.Kind != token.WORD {
		p.errf(RedirMissingWord, "expected a filename after %s", op.Kind)
		return p.err
	}
	p.advance()
	fd := defaultFd
	if explicitFd >= 0 {
		fd = explicitFd
	}
	cmd.Redirs = append(cmd.Redirs, Redirect{Fd: fd, Kind: kind, Path: word.Value})
	return nil
}

func (p *parser) isCmdTerminator() bool {
	switch p.tok().Kind {
	case token.EOF, token.SEMI, token.AMP, token.PIPE, token.ANDAND, token.OROR:
		return true
	default:
		return false
	}
}
