package parser

import "fmt"

// TokenType represents the type of a source token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenDirective // .decl, .type, .input, ...
	TokenNumber
	TokenUnsigned
	TokenFloat
	TokenString
	TokenLeftParen
	TokenRightParen
	TokenLeftBracket
	TokenRightBracket
	TokenLeftBrace
	TokenRightBrace
	TokenComma
	TokenDot
	TokenColon
	TokenSemicolon
	TokenPipe
	TokenIf // :-
	TokenBang
	TokenDollar
	TokenAt
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenPercent
	TokenCaret
	TokenEq
	TokenNe
	TokenLt
	TokenLe
	TokenGt
	TokenGe
)

// Token represents a lexical token with its source position.
type Token struct {
	Type  TokenType
	Value string
	Line  int
	Col   int
}

// String returns a string representation of the token.
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return fmt.Sprintf("EOF[%d:%d]", t.Line, t.Col)
	case TokenIdent:
		return fmt.Sprintf("Ident[%d:%d]:%s", t.Line, t.Col, t.Value)
	case TokenDirective:
		return fmt.Sprintf("Directive[%d:%d]:.%s", t.Line, t.Col, t.Value)
	case TokenNumber, TokenUnsigned, TokenFloat:
		return fmt.Sprintf("Number[%d:%d]:%s", t.Line, t.Col, t.Value)
	case TokenString:
		return fmt.Sprintf("String[%d:%d]:%q", t.Line, t.Col, t.Value)
	default:
		if t.Value != "" {
			return fmt.Sprintf("Punct[%d:%d]:%s", t.Line, t.Col, t.Value)
		}
		return fmt.Sprintf("Punct[%d:%d]:#%d", t.Line, t.Col, int(t.Type))
	}
}
