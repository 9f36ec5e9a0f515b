package parser

import (
	"fmt"
	"strings"
	"unicode"
)

// Lexer tokenizes Datalog source text.
type Lexer struct {
	file  string
	input string
	pos   int
	line  int
	col   int

	tokens  []Token
	current int
}

// NewLexer creates a new lexer for the given input. The file name is used in
// positions only.
func NewLexer(file, input string) *Lexer {
	return &Lexer{
		file:  file,
		input: input,
		pos:   0,
		line:  1,
		col:   1,
	}
}

// Lex tokenizes the entire input.
func (l *Lexer) Lex() error {
	for l.pos < len(l.input) {
		if err := l.skipWhitespaceAndComments(); err != nil {
			return err
		}
		if l.pos >= len(l.input) {
			break
		}

		startLine := l.line
		startCol := l.col
		ch := l.peek()

		switch {
		case ch == '"':
			str, err := l.readString()
			if err != nil {
				return err
			}
			l.emit(Token{Type: TokenString, Value: str, Line: startLine, Col: startCol})

		case isDigit(ch):
			tok, err := l.readNumber()
			if err != nil {
				return err
			}
			tok.Line, tok.Col = startLine, startCol
			l.emit(tok)

		case isIdentStart(ch):
			l.emit(Token{Type: TokenIdent, Value: l.readIdent(), Line: startLine, Col: startCol})

		case ch == '.':
			// A dot followed by a letter opens a directive keyword;
			// otherwise it terminates a clause.
			if isIdentStart(l.peekAt(1)) {
				l.advance()
				l.emit(Token{Type: TokenDirective, Value: l.readIdent(), Line: startLine, Col: startCol})
			} else {
				l.advance()
				l.emit(Token{Type: TokenDot, Line: startLine, Col: startCol})
			}

		case ch == ':':
			l.advance()
			if l.peek() == '-' {
				l.advance()
				l.emit(Token{Type: TokenIf, Value: ":-", Line: startLine, Col: startCol})
			} else {
				l.emit(Token{Type: TokenColon, Value: ":", Line: startLine, Col: startCol})
			}

		case ch == '!':
			l.advance()
			if l.peek() == '=' {
				l.advance()
				l.emit(Token{Type: TokenNe, Value: "!=", Line: startLine, Col: startCol})
			} else {
				l.emit(Token{Type: TokenBang, Value: "!", Line: startLine, Col: startCol})
			}

		case ch == '<':
			l.advance()
			if l.peek() == '=' {
				l.advance()
				l.emit(Token{Type: TokenLe, Value: "<=", Line: startLine, Col: startCol})
			} else {
				l.emit(Token{Type: TokenLt, Value: "<", Line: startLine, Col: startCol})
			}

		case ch == '>':
			l.advance()
			if l.peek() == '=' {
				l.advance()
				l.emit(Token{Type: TokenGe, Value: ">=", Line: startLine, Col: startCol})
			} else {
				l.emit(Token{Type: TokenGt, Value: ">", Line: startLine, Col: startCol})
			}

		default:
			single := map[byte]TokenType{
				'(': TokenLeftParen,
				')': TokenRightParen,
				'[': TokenLeftBracket,
				']': TokenRightBracket,
				'{': TokenLeftBrace,
				'}': TokenRightBrace,
				',': TokenComma,
				';': TokenSemicolon,
				'|': TokenPipe,
				'$': TokenDollar,
				'@': TokenAt,
				'+': TokenPlus,
				'-': TokenMinus,
				'*': TokenStar,
				'/': TokenSlash,
				'%': TokenPercent,
				'^': TokenCaret,
				'=': TokenEq,
			}
			tt, ok := single[ch]
			if !ok {
				return fmt.Errorf("%s:%d:%d: unexpected character %q", l.file, startLine, startCol, ch)
			}
			l.advance()
			l.emit(Token{Type: tt, Value: string(ch), Line: startLine, Col: startCol})
		}
	}
	l.emit(Token{Type: TokenEOF, Line: l.line, Col: l.col})
	return nil
}

// Next returns the next token and advances.
func (l *Lexer) Next() Token {
	tok := l.Peek()
	if l.current < len(l.tokens)-1 {
		l.current++
	}
	return tok
}

// Peek returns the next token without advancing.
func (l *Lexer) Peek() Token {
	if l.current >= len(l.tokens) {
		return Token{Type: TokenEOF, Line: l.line, Col: l.col}
	}
	return l.tokens[l.current]
}

// PeekAhead returns the token n positions past the next one.
func (l *Lexer) PeekAhead(n int) Token {
	idx := l.current + n
	if idx >= len(l.tokens) {
		return Token{Type: TokenEOF, Line: l.line, Col: l.col}
	}
	return l.tokens[idx]
}

func (l *Lexer) emit(tok Token) {
	l.tokens = append(l.tokens, tok)
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case unicode.IsSpace(rune(ch)):
			l.advance()
		case ch == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		case ch == '/' && l.peekAt(1) == '*':
			startLine, startCol := l.line, l.col
			l.advance()
			l.advance()
			for {
				if l.pos >= len(l.input) {
					return fmt.Errorf("%s:%d:%d: unterminated block comment", l.file, startLine, startCol)
				}
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

// readIdent reads an identifier, folding in dotted qualified-name segments:
// a '.' tightly surrounded by identifier characters continues the name.
func (l *Lexer) readIdent() string {
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.peek()
		if isIdentPart(ch) {
			sb.WriteByte(ch)
			l.advance()
			continue
		}
		if ch == '.' && isIdentStart(l.peekAt(1)) {
			sb.WriteByte(ch)
			l.advance()
			continue
		}
		break
	}
	return sb.String()
}

// readNumber reads a decimal, hexadecimal (0x), binary (0b), or floating
// point literal. A trailing 'u' marks the literal unsigned.
func (l *Lexer) readNumber() (Token, error) {
	start := l.pos
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X' || l.peekAt(1) == 'b' || l.peekAt(1) == 'B') {
		l.advance()
		l.advance()
		for l.pos < len(l.input) && isHexDigit(l.peek()) {
			l.advance()
		}
		lit := l.input[start:l.pos]
		if l.peek() == 'u' {
			l.advance()
			return Token{Type: TokenUnsigned, Value: lit}, nil
		}
		return Token{Type: TokenNumber, Value: lit}, nil
	}

	for l.pos < len(l.input) && isDigit(l.peek()) {
		l.advance()
	}
	isFloat := false
	// Only a digit after the dot makes this a float; a bare dot belongs to
	// the clause terminator.
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for l.pos < len(l.input) && isDigit(l.peek()) {
			l.advance()
		}
	}
	lit := l.input[start:l.pos]
	if isFloat {
		return Token{Type: TokenFloat, Value: lit}, nil
	}
	if l.peek() == 'u' {
		l.advance()
		return Token{Type: TokenUnsigned, Value: lit}, nil
	}
	return Token{Type: TokenNumber, Value: lit}, nil
}

func (l *Lexer) readString() (string, error) {
	startLine, startCol := l.line, l.col
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return "", fmt.Errorf("%s:%d:%d: unterminated string", l.file, startLine, startCol)
		}
		ch := l.peek()
		if ch == '"' {
			l.advance()
			return sb.String(), nil
		}
		if ch == '\\' {
			l.advance()
			esc := l.peek()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '"':
				sb.WriteByte(esc)
			default:
				return "", fmt.Errorf("%s:%d:%d: unknown escape \\%c", l.file, l.line, l.col, esc)
			}
			l.advance()
			continue
		}
		sb.WriteByte(ch)
		l.advance()
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '?' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
