package syntax

import "github.com/posixsh/posixsh/token"

// Token is a single lexical token produced by [Lex].
//
// Value is meaningful only when Kind is [token.WORD]. AdjacentNext is true
// when the byte immediately following this token in the source had no
// intervening whitespace; the parser uses it to recognize an explicit file
// descriptor glued to a redirection operator, e.g. the "2" in "2>file".
type Token struct {
	Kind         token.Token
	Value        string
	Pos          int // byte offset of the token's first byte
	AdjacentNext bool
}

func (t Token) String() string {
	if t.Kind == token.WORD {
		return t.Value
	}
	return t.Kind.String()
}
