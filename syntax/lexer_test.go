package syntax

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/posixsh/posixsh/token"
)

func kinds(toks []Token) []token.Token {
	out := make([]token.Token, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexOperators(t *testing.T) {
	c := qt.New(t)
	toks, err := Lex([]byte(`echo a && echo b || echo c; sleep 1 & ls | wc -l`))
	c.Assert(err, qt.IsNil)
	c.Assert(kinds(toks), qt.DeepEquals, []token.Token{
		token.WORD, token.WORD, token.ANDAND,
		token.WORD, token.WORD, token.OROR,
		token.WORD, token.WORD, token.SEMI,
		token.WORD, token.WORD, token.AMP,
		token.WORD, token.PIPE, token.WORD, token.WORD,
	})
}

func TestLexRedirOperators(t *testing.T) {
	c := qt.New(t)
	toks, err := Lex([]byte(`cmd <in >out 2>>err`))
	c.Assert(err, qt.IsNil)
	c.Assert(kinds(toks), qt.DeepEquals, []token.Token{
		token.WORD, token.LT, token.WORD, token.GT, token.WORD,
		token.WORD, token.GTGT, token.WORD,
	})
	// the "2" glued to ">>" must be a WORD marked adjacent, for the
	// parser to pick up as an explicit fd.
	var two Token
	for _, tk := range toks {
		if tk.Kind == token.WORD && tk.Value == "2" {
			two = tk
		}
	}
	c.Assert(two.AdjacentNext, qt.IsTrue)
}

func TestLexSingleQuote(t *testing.T) {
	c := qt.New(t)
	toks, err := Lex([]byte(`echo 'a b $c \n'`))
	c.Assert(err, qt.IsNil)
	c.Assert(toks[1].Value, qt.Equals, `a b $c \n`)
}

func TestLexDoubleQuoteEscapes(t *testing.T) {
	c := qt.New(t)
	toks, err := Lex([]byte(`echo "a \"b\" \$c \\d \q"`))
	c.Assert(err, qt.IsNil)
	// \" and \\ unescape; \$ and \q are not recognized and keep the backslash.
	c.Assert(toks[1].Value, qt.Equals, `a "b" \$c \d \q`)
}

func TestLexUnterminated(t *testing.T) {
	c := qt.New(t)
	for _, in := range []string{`echo 'abc`, `echo "abc`, "echo abc\\"} {
		_, err := Lex([]byte(in))
		c.Assert(err, qt.Not(qt.IsNil), qt.Commentf("input %q", in))
		var lerr *LexError
		c.Assert(err, qt.ErrorAs, &lerr)
	}
}

func TestLexAdjacency(t *testing.T) {
	c := qt.New(t)
	toks, err := Lex([]byte(`echo foo>bar`))
	c.Assert(err, qt.IsNil)
	// "foo" is adjacent to ">"; ">" is adjacent to "bar".
	c.Assert(toks[1].AdjacentNext, qt.IsTrue)
}
