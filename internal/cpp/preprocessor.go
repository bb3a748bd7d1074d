// Package cpp implements spec.md §4.2: a token-to-token preprocessor.
// Given an input token stream it returns a stream with directives removed,
// macros fully expanded, and #include'd files spliced in order.
package cpp

import (
	"fmt"

	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/lexer"
	"cc32.dev/cc32/internal/source"
	"cc32.dev/cc32/internal/srccache"
	"cc32.dev/cc32/internal/token"
)

// selfMacro is the builtin self-identification macro (spec.md §4.2 names
// it __SHECC__; this project renames it to its own identity, as DESIGN.md
// records).
const selfMacro = "__CC32__"

type condFrame struct {
	taken  bool // some branch in this chain has already been emitted
	active bool // the currently-open branch is being emitted
	inElse bool
	loc    source.Loc
}

// Preprocessor holds the global, write-mostly-during-preprocessing tables
// of spec.md §3: macro definitions, the #pragma once inclusion set, and
// the source/token cache (SRC_FILE_MAP/TOKEN_CACHE).
type Preprocessor struct {
	macros   map[string]*Macro
	once     map[string]bool // INCLUSION_MAP
	cache    *srccache.Cache
	includer Includer
	out      []*token.Token
	cond     []condFrame
}

func New(includer Includer) *Preprocessor {
	p := &Preprocessor{
		macros:   make(map[string]*Macro),
		once:     make(map[string]bool),
		cache:    srccache.New(),
		includer: includer,
	}
	p.macros[selfMacro] = &Macro{Name: selfMacro, Body: []*token.Token{intLit(1, source.Loc{})}}
	return p
}

func (p *Preprocessor) isMacroActive(name string) bool {
	m, ok := p.macros[name]
	return ok && !m.Disabled
}

// ProcessFile lexes filename's source (reusing the cache) and runs the
// preprocessor over it, appending output tokens to p.out. It recurses for
// each #include encountered.
func (p *Preprocessor) ProcessFile(filename string, data []byte) error {
	digest := srccache.Digest(data)
	head, ok := p.cache.LookupTokens(digest)
	if !ok {
		p.cache.PutSource(filename, data)
		lx := lexer.New(filename, data)
		var err error
		head, err = lx.Lex()
		if err != nil {
			return err
		}
		p.cache.PutTokens(digest, head)
	}
	var toks []*token.Token
	for t := head; t != nil; t = t.Next {
		if t.Kind == token.EOF {
			break
		}
		toks = append(toks, t)
	}
	return p.processTokens(filename, toks)
}

func (p *Preprocessor) processTokens(filename string, toks []*token.Token) error {
	lines, err := splitLogicalLines(toks)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := p.processLine(filename, line); err != nil {
			return err
		}
	}
	return nil
}

// Output returns the final expanded stream as a linked list, terminated by
// an EOF token.
func (p *Preprocessor) Output() *token.Token {
	var head, tail *token.Token
	for _, t := range p.out {
		t.Next = nil
		if head == nil {
			head = t
		} else {
			tail.Next = t
		}
		tail = t
	}
	eof := &token.Token{Kind: token.EOF}
	if head == nil {
		head = eof
	} else {
		tail.Next = eof
	}
	return head
}

func (p *Preprocessor) skipping() bool {
	for _, f := range p.cond {
		if !f.active {
			return true
		}
	}
	return false
}

// splitLogicalLines groups tokens into physical-line runs (delimited by
// Newline tokens), joining a line onto the next when it ends with a
// Backslash token (line continuation). A Backslash not immediately
// followed by Newline is a preprocessing error (spec.md §4.2).
func splitLogicalLines(toks []*token.Token) ([][]*token.Token, error) {
	var lines [][]*token.Token
	var cur []*token.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == token.Backslash {
			if i+1 < len(toks) && toks[i+1].Kind == token.Newline {
				i++ // swallow backslash+newline: join lines
				continue
			}
			return nil, diag.Errorf(t.Loc, diag.Preprocessing, "backslash not immediately followed by newline")
		}
		if t.Kind == token.Newline {
			lines = append(lines, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return lines, nil
}

func firstNonSpace(line []*token.Token) int {
	for i, t := range line {
		if !token.IsSpace(t.Kind) {
			return i
		}
	}
	return -1
}

// stripLeading drops leading whitespace/tab tokens only, preserving
// adjacency information for whatever comes right after (used to detect
// "NAME(" vs "NAME (" when classifying a #define as function-like).
func stripLeading(line []*token.Token) []*token.Token {
	i := 0
	for i < len(line) && token.IsSpace(line[i].Kind) {
		i++
	}
	return line[i:]
}

func stripSpace(line []*token.Token) []*token.Token {
	var out []*token.Token
	for _, t := range line {
		if !token.IsSpace(t.Kind) {
			out = append(out, t)
		}
	}
	return out
}

var directiveKinds = map[token.Kind]bool{
	token.HashInclude: true, token.HashDefine: true, token.HashUndef: true,
	token.HashIf: true, token.HashIfdef: true, token.HashIfndef: true,
	token.HashElif: true, token.HashElse: true, token.HashEndif: true,
	token.HashError: true, token.HashPragma: true, token.Hash: true,
}

func (p *Preprocessor) processLine(filename string, line []*token.Token) error {
	idx := firstNonSpace(line)
	if idx < 0 {
		return nil
	}
	// A directive-kind token appearing anywhere but the first non-space
	// position on its line is an error (spec.md §4.2/§7).
	for i, t := range line {
		if i == idx {
			continue
		}
		if directiveKinds[t.Kind] {
			return diag.Errorf(t.Loc, diag.Preprocessing, "directive must begin in column 1")
		}
	}
	if !directiveKinds[line[idx].Kind] {
		if p.skipping() {
			return nil
		}
		return p.expandLineToOutput(stripSpace(line[idx:]))
	}
	dtok := line[idx]
	if dtok.Kind == token.HashDefine {
		return p.doDefine(dtok, line[idx+1:])
	}
	rest := stripSpace(line[idx+1:])
	switch dtok.Kind {
	case token.HashInclude:
		return p.doInclude(filename, dtok, rest)
	case token.HashUndef:
		return p.doUndef(dtok, rest)
	case token.HashIf:
		return p.doIf(dtok, rest)
	case token.HashIfdef:
		return p.doIfdef(dtok, rest, true)
	case token.HashIfndef:
		return p.doIfdef(dtok, rest, false)
	case token.HashElif:
		return p.doElif(dtok, rest)
	case token.HashElse:
		return p.doElse(dtok, rest)
	case token.HashEndif:
		return p.doEndif(dtok, rest)
	case token.HashError:
		return p.doError(dtok, rest)
	case token.HashPragma:
		return p.doPragma(dtok, rest)
	case token.Hash:
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "unknown directive")
	}
	return nil
}

func (p *Preprocessor) expandLineToOutput(line []*token.Token) error {
	if len(line) == 0 {
		return nil
	}
	expanded, err := p.expandSlice(line, nil)
	if err != nil {
		return err
	}
	p.out = append(p.out, expanded...)
	return nil
}

func (p *Preprocessor) doError(dtok *token.Token, rest []*token.Token) error {
	if p.skipping() {
		return nil
	}
	msg := ""
	for i, t := range rest {
		if i > 0 {
			msg += " "
		}
		msg += tokenText(t)
	}
	return diag.Errorf(dtok.Loc, diag.Preprocessing, "#error %s", msg)
}

func (p *Preprocessor) doPragma(dtok *token.Token, rest []*token.Token) error {
	if p.skipping() {
		return nil
	}
	if len(rest) == 1 && rest[0].Kind == token.Ident && rest[0].Literal == "once" {
		p.once[dtok.Loc.File] = true
	}
	return nil
}

func tokenText(t *token.Token) string {
	switch t.Kind {
	case token.StringLit:
		return fmt.Sprintf("%q", t.Literal)
	case token.IntLit, token.Ident, token.Keyword:
		return t.Literal
	default:
		return t.Literal
	}
}
