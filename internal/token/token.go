// Package token defines the tagged token record spec.md §3/§4.1 describes:
// kind, optional owned literal, source location, and an intrusive next
// pointer forming a singly-linked stream.
package token

import "cc32.dev/cc32/internal/source"

type Kind int

const (
	EOF Kind = iota
	Ident
	Keyword
	IntLit
	CharLit
	StringLit

	// Punctuators and operators.
	Plus
	Minus
	Star
	Slash
	Percent
	Amp
	Pipe
	Caret
	Tilde
	Bang
	Lt
	Gt
	Assign
	Semicolon
	Comma
	Dot
	Arrow
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Question
	Colon
	Ellipsis

	PlusPlus
	MinusMinus
	PlusEq
	MinusEq
	StarEq
	SlashEq
	PercentEq
	AmpEq
	PipeEq
	CaretEq
	ShlEq
	ShrEq
	Shl
	Shr
	Eq
	Neq
	Leq
	Geq
	AndAnd
	OrOr

	// Preprocessor directives (recognized only at the start of a logical
	// line by the lexer; the preprocessor consumes them).
	HashInclude
	HashDefine
	HashUndef
	HashIf
	HashIfdef
	HashIfndef
	HashElif
	HashElse
	HashEndif
	HashError
	HashPragma
	Hash // any other '#' introducer, retained for diagnostics

	// Whitespace family: preserved until the preprocessor consumes them,
	// skipped transparently by the parser (spec.md §4.1).
	Whitespace
	Tab
	Newline
	Backslash

	// PPNumber covers any digit-leading token the lexer hasn't yet decided
	// is a plain IntLit; used internally by the preprocessor's number
	// pasting path. Not surfaced to the parser.
	PPNumber
)

// kindNames backs String, mirroring the teacher's own tokenName lookup
// table for diagnostic rendering.
var kindNames = map[Kind]string{
	EOF: "EOF", Ident: "identifier", Keyword: "keyword", IntLit: "integer literal",
	CharLit: "character literal", StringLit: "string literal",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	Amp: "&", Pipe: "|", Caret: "^", Tilde: "~", Bang: "!",
	Lt: "<", Gt: ">", Assign: "=", Semicolon: ";", Comma: ",",
	Dot: ".", Arrow: "->", LParen: "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", RBracket: "]", Question: "?", Colon: ":", Ellipsis: "...",
	PlusPlus: "++", MinusMinus: "--", PlusEq: "+=", MinusEq: "-=",
	StarEq: "*=", SlashEq: "/=", PercentEq: "%=", AmpEq: "&=", PipeEq: "|=",
	CaretEq: "^=", ShlEq: "<<=", ShrEq: ">>=", Shl: "<<", Shr: ">>",
	Eq: "==", Neq: "!=", Leq: "<=", Geq: ">=", AndAnd: "&&", OrOr: "||",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "token"
}

var keywords = map[string]bool{
	"if": true, "else": true, "while": true, "for": true, "do": true,
	"return": true, "typedef": true, "enum": true, "struct": true,
	"union": true, "sizeof": true, "switch": true, "case": true,
	"break": true, "default": true, "continue": true, "goto": true,
	"const": true, "void": true, "char": true, "int": true,
}

// IsKeyword reports whether ident names a keyword, using the spec's
// described fast path: a length check then a map probe (a small hash map in
// the original; Go's builtin map is the idiomatic equivalent here, grounded
// on the rest of the pack's preference for map-based symbol tables over
// hand-rolled hash tables — see DESIGN.md).
func IsKeyword(ident string) bool {
	if len(ident) == 0 || len(ident) > 8 {
		return false
	}
	return keywords[ident]
}

// Token is arena-allocated (see internal/arena) and linked via Next into a
// singly-linked stream, per spec.md §3.
type Token struct {
	Kind    Kind
	Literal string // owned string payload: identifier text, string/char contents, number text
	IntVal  int64  // decoded value for IntLit/CharLit
	Loc     source.Loc
	Next    *Token

	// ExpandedFrom records the macro invocation a token was spliced from,
	// for diagnostics; nil for tokens that came straight from the lexer.
	// A plain back-reference within the same arena lifetime (spec.md §5).
	ExpandedFrom *Token

	// HideSet is the per-expansion set of macro names that must not
	// re-expand at this token (spec.md §4.2).
	HideSet *HideSet
}

// HideSet is a persistent (structurally shared) linked set so union is O(1)
// and independent expansions never alias each other's mutations.
type HideSet struct {
	Name   string
	Parent *HideSet
}

func (h *HideSet) Contains(name string) bool {
	for n := h; n != nil; n = n.Parent {
		if n.Name == name {
			return true
		}
	}
	return false
}

// Union extends h with name, returning a new HideSet (or h unchanged if
// name is already present).
func (h *HideSet) Union(name string) *HideSet {
	if h.Contains(name) {
		return h
	}
	return &HideSet{Name: name, Parent: h}
}

// UnionSet unions two hide-sets structurally: every name in b is added atop a.
func UnionSet(a, b *HideSet) *HideSet {
	if b == nil {
		return a
	}
	var names []string
	for n := b; n != nil; n = n.Parent {
		names = append(names, n.Name)
	}
	result := a
	for i := len(names) - 1; i >= 0; i-- {
		result = result.Union(names[i])
	}
	return result
}

// IsSpace reports whether k is one of the whitespace-family kinds the
// parser skips transparently but the preprocessor must preserve.
func IsSpace(k Kind) bool {
	return k == Whitespace || k == Tab || k == Newline || k == Backslash
}
