// Package lexer implements spec.md §4.1: raw characters to a token stream,
// one file at a time. It recognizes identifiers/keywords, the full operator
// and punctuator set, preprocessor directives, the four numeric literal
// radixes, character and string literals with C escapes, and preserves
// whitespace/tab/newline/backslash as first-class tokens for the
// preprocessor. Comments are consumed and produce no token.
package lexer

import (
	"fmt"

	"cc32.dev/cc32/internal/arena"
	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/source"
	"cc32.dev/cc32/internal/token"
)

// maxTokenLen matches spec.md §4.1's "token-too-long (>~256 bytes)" limit
// and §8's boundary test: 256 bytes accepted, 257 rejected.
const maxTokenLen = 256

type Lexer struct {
	file   string
	src    []byte
	pos    int
	line   int
	col    int
	arena  *arena.Arena[token.Token]
	tokens []*token.Token
}

func New(file string, src []byte) *Lexer {
	return &Lexer{
		file:  file,
		src:   src,
		line:  1,
		col:   1,
		arena: arena.New[token.Token](),
	}
}

// Lex tokenizes the whole file and returns the head of the linked stream.
func (l *Lexer) Lex() (*token.Token, error) {
	var head, tail *token.Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			continue // consumed comment, produced no token
		}
		if head == nil {
			head = tok
		} else {
			tail.Next = tok
		}
		tail = tok
		if tok.Kind == token.EOF {
			break
		}
	}
	return head, nil
}

func (l *Lexer) loc(startOff, startLine, startCol, length int) source.Loc {
	return source.Loc{Offset: startOff, Len: length, Line: startLine, Col: startCol, File: l.file}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) mk(kind token.Kind, startOff, startLine, startCol int, lit string) *token.Token {
	t := l.arena.Alloc()
	t.Kind = kind
	t.Literal = lit
	t.Loc = l.loc(startOff, startLine, startCol, l.pos-startOff)
	return t
}

// next scans a single token, or nil if a comment was consumed, or an error.
func (l *Lexer) next() (*token.Token, error) {
	if l.pos >= len(l.src) {
		return l.mk(token.EOF, l.pos, l.line, l.col, ""), nil
	}

	startOff, startLine, startCol := l.pos, l.line, l.col
	c := l.peek()

	switch {
	case c == ' ':
		for l.peek() == ' ' {
			l.advance()
		}
		return l.mk(token.Whitespace, startOff, startLine, startCol, ""), nil
	case c == '\t':
		for l.peek() == '\t' {
			l.advance()
		}
		return l.mk(token.Tab, startOff, startLine, startCol, ""), nil
	case c == '\n':
		l.advance()
		return l.mk(token.Newline, startOff, startLine, startCol, ""), nil
	case c == '\\':
		l.advance()
		return l.mk(token.Backslash, startOff, startLine, startCol, ""), nil
	case c == '/' && l.peekAt(1) == '/':
		for l.pos < len(l.src) && l.peek() != '\n' {
			l.advance()
		}
		return nil, nil
	case c == '/' && l.peekAt(1) == '*':
		l.advance()
		l.advance()
		closed := false
		for l.pos < len(l.src) {
			if l.peek() == '*' && l.peekAt(1) == '/' {
				l.advance()
				l.advance()
				closed = true
				break
			}
			l.advance()
		}
		if !closed {
			return nil, diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "unterminated comment")
		}
		return nil, nil
	case isIdentStart(c):
		return l.lexIdent(startOff, startLine, startCol)
	case isDigit(c):
		return l.lexNumber(startOff, startLine, startCol)
	case c == '"':
		return l.lexString(startOff, startLine, startCol)
	case c == '\'':
		return l.lexChar(startOff, startLine, startCol)
	case c == '#':
		return l.lexDirective(startOff, startLine, startCol)
	default:
		return l.lexPunct(startOff, startLine, startCol)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *Lexer) lexIdent(startOff, startLine, startCol int) (*token.Token, error) {
	for l.pos < len(l.src) && isIdentCont(l.peek()) {
		l.advance()
	}
	if l.pos-startOff > maxTokenLen {
		return nil, l.tooLong(startOff, startLine, startCol)
	}
	lit := string(l.src[startOff:l.pos])
	kind := token.Ident
	if token.IsKeyword(lit) {
		kind = token.Keyword
	}
	return l.mk(kind, startOff, startLine, startCol, lit), nil
}

func (l *Lexer) tooLong(startOff, startLine, startCol int) error {
	return diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "token too long")
}

// lexNumber handles decimal, octal (leading 0), hex (0x), and binary (0b)
// integer literals per spec.md §4.1.
func (l *Lexer) lexNumber(startOff, startLine, startCol int) (*token.Token, error) {
	radix := 10
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.advance()
		l.advance()
		radix = 16
	} else if l.peek() == '0' && (l.peekAt(1) == 'b' || l.peekAt(1) == 'B') {
		l.advance()
		l.advance()
		radix = 2
	} else if l.peek() == '0' && isDigit(l.peekAt(1)) {
		l.advance()
		radix = 8
	}
	digitsStart := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peek()) {
		c := l.peek()
		if !validDigit(c, radix) {
			return nil, diag.Errorf(l.loc(l.pos, l.line, l.col, 1), diag.Lexical, "invalid digit %q for base %d literal", c, radix)
		}
		l.advance()
	}
	if l.pos-startOff > maxTokenLen {
		return nil, l.tooLong(startOff, startLine, startCol)
	}
	digits := string(l.src[digitsStart:l.pos])
	if digits == "" {
		digits = "0"
	}
	val, err := parseRadix(digits, radix)
	if err != nil {
		return nil, diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "%v", err)
	}
	t := l.mk(token.IntLit, startOff, startLine, startCol, string(l.src[startOff:l.pos]))
	t.IntVal = val
	return t, nil
}

func validDigit(c byte, radix int) bool {
	var v int
	switch {
	case c >= '0' && c <= '9':
		v = int(c - '0')
	case c >= 'a' && c <= 'f':
		v = int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		v = int(c-'A') + 10
	default:
		return false
	}
	return v < radix
}

func parseRadix(digits string, radix int) (int64, error) {
	var v int64
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		}
		v = v*int64(radix) + d
	}
	return v, nil
}

// lexEscape decodes a single backslash escape starting at the current
// position (the backslash itself must already have been consumed).
// Supported: \n \r \t \\ \' \" \0 \a \b \v \f \e \? \xHH \ooo.
func (l *Lexer) lexEscape(startOff, startLine, startCol int) (byte, error) {
	if l.pos >= len(l.src) {
		return 0, diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "unterminated escape sequence")
	}
	c := l.advance()
	switch c {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case '\\':
		return '\\', nil
	case '\'':
		return '\'', nil
	case '"':
		return '"', nil
	case 'a':
		return 7, nil
	case 'b':
		return 8, nil
	case 'v':
		return 11, nil
	case 'f':
		return 12, nil
	case 'e':
		return 27, nil
	case '?':
		return '?', nil
	case 'x':
		var v int
		n := 0
		for n < 2 && isHex(l.peek()) {
			v = v*16 + hexVal(l.advance())
			n++
		}
		if n == 0 {
			return 0, diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "\\x used with no following hex digits")
		}
		return byte(v), nil
	default:
		if c >= '0' && c <= '7' {
			v := int(c - '0')
			n := 1
			for n < 3 && l.peek() >= '0' && l.peek() <= '7' {
				v = v*8 + int(l.advance()-'0')
				n++
			}
			return byte(v), nil
		}
		return 0, diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "unknown escape sequence '\\%c'", c)
	}
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

func (l *Lexer) lexChar(startOff, startLine, startCol int) (*token.Token, error) {
	l.advance() // opening quote
	var v byte
	if l.pos >= len(l.src) {
		return nil, diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "unterminated character literal")
	}
	if l.peek() == '\\' {
		l.advance()
		var err error
		v, err = l.lexEscape(startOff, startLine, startCol)
		if err != nil {
			return nil, err
		}
	} else {
		v = l.advance()
	}
	if l.pos >= len(l.src) || l.peek() != '\'' {
		return nil, diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "unterminated character literal")
	}
	l.advance()
	if l.pos-startOff > maxTokenLen {
		return nil, l.tooLong(startOff, startLine, startCol)
	}
	t := l.mk(token.CharLit, startOff, startLine, startCol, string(l.src[startOff:l.pos]))
	t.IntVal = int64(v)
	return t, nil
}

func (l *Lexer) lexString(startOff, startLine, startCol int) (*token.Token, error) {
	l.advance() // opening quote
	var buf []byte
	for {
		if l.pos >= len(l.src) {
			return nil, diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "unterminated string literal")
		}
		if l.peek() == '"' {
			l.advance()
			break
		}
		if l.peek() == '\n' {
			return nil, diag.Errorf(l.loc(startOff, startLine, startCol, l.pos-startOff), diag.Lexical, "unterminated string literal")
		}
		if l.peek() == '\\' {
			l.advance()
			v, err := l.lexEscape(startOff, startLine, startCol)
			if err != nil {
				return nil, err
			}
			buf = append(buf, v)
			continue
		}
		buf = append(buf, l.advance())
	}
	if l.pos-startOff > maxTokenLen {
		return nil, l.tooLong(startOff, startLine, startCol)
	}
	return l.mk(token.StringLit, startOff, startLine, startCol, string(buf)), nil
}

var directives = map[string]token.Kind{
	"include": token.HashInclude,
	"define":  token.HashDefine,
	"undef":   token.HashUndef,
	"if":      token.HashIf,
	"ifdef":   token.HashIfdef,
	"ifndef":  token.HashIfndef,
	"elif":    token.HashElif,
	"else":    token.HashElse,
	"endif":   token.HashEndif,
	"error":   token.HashError,
	"pragma":  token.HashPragma,
}

// lexDirective recognizes '#' followed (after optional spaces, no newline)
// by a directive name, classifying the whole "#name" as one directive token.
// A bare '#' or unknown word yields Hash so the preprocessor can report
// "unknown directive" with a precise location (spec.md §4.2).
func (l *Lexer) lexDirective(startOff, startLine, startCol int) (*token.Token, error) {
	l.advance() // '#'
	save := l.pos
	for l.peek() == ' ' || l.peek() == '\t' {
		l.advance()
	}
	nameStart := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peek()) {
		l.advance()
	}
	name := string(l.src[nameStart:l.pos])
	if kind, ok := directives[name]; ok {
		return l.mk(kind, startOff, startLine, startCol, name), nil
	}
	l.pos = save
	return l.mk(token.Hash, startOff, startLine, startCol, "#"), nil
}

type punctRule struct {
	s    string
	kind token.Kind
}

// Longest-match-first punctuator table, covering every operator in
// spec.md §4.1 including compound assignments, shifts, and '...'.
var punctRules = []punctRule{
	{"<<=", token.ShlEq}, {">>=", token.ShrEq}, {"...", token.Ellipsis},
	{"->", token.Arrow}, {"++", token.PlusPlus}, {"--", token.MinusMinus},
	{"+=", token.PlusEq}, {"-=", token.MinusEq}, {"*=", token.StarEq},
	{"/=", token.SlashEq}, {"%=", token.PercentEq}, {"&=", token.AmpEq},
	{"|=", token.PipeEq}, {"^=", token.CaretEq}, {"<<", token.Shl},
	{">>", token.Shr}, {"==", token.Eq}, {"!=", token.Neq},
	{"<=", token.Leq}, {">=", token.Geq}, {"&&", token.AndAnd},
	{"||", token.OrOr},
	{"+", token.Plus}, {"-", token.Minus}, {"*", token.Star},
	{"/", token.Slash}, {"%", token.Percent}, {"&", token.Amp},
	{"|", token.Pipe}, {"^", token.Caret}, {"~", token.Tilde},
	{"!", token.Bang}, {"<", token.Lt}, {">", token.Gt},
	{"=", token.Assign}, {";", token.Semicolon}, {",", token.Comma},
	{".", token.Dot}, {"(", token.LParen}, {")", token.RParen},
	{"{", token.LBrace}, {"}", token.RBrace}, {"[", token.LBracket},
	{"]", token.RBracket}, {"?", token.Question}, {":", token.Colon},
}

func (l *Lexer) lexPunct(startOff, startLine, startCol int) (*token.Token, error) {
	rem := l.src[l.pos:]
	for _, r := range punctRules {
		if len(rem) >= len(r.s) && string(rem[:len(r.s)]) == r.s {
			for range r.s {
				l.advance()
			}
			return l.mk(r.kind, startOff, startLine, startCol, r.s), nil
		}
	}
	c := l.advance()
	return nil, diag.Errorf(l.loc(startOff, startLine, startCol, 1), diag.Lexical, "stray %q in program", fmt.Sprintf("%c", c))
}
