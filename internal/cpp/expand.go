package cpp

import (
	"fmt"

	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/source"
	"cc32.dev/cc32/internal/token"
)

// expandSlice expands macros in toks to a fixed point, threading a per-call
// hide-set (callerHS) through recursive argument/body expansion so nested
// invocations union hide-sets correctly (spec.md §4.2).
func (p *Preprocessor) expandSlice(toks []*token.Token, callerHS *token.HideSet) ([]*token.Token, error) {
	var out []*token.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		hs := t.HideSet
		if hs == nil {
			hs = callerHS
		}

		switch {
		case t.Kind == token.Ident && t.Literal == "__FILE__":
			out = append(out, &token.Token{Kind: token.StringLit, Literal: t.Loc.File, Loc: t.Loc})
			continue
		case t.Kind == token.Ident && t.Literal == "__LINE__":
			out = append(out, &token.Token{Kind: token.IntLit, IntVal: int64(t.Loc.Line), Literal: fmt.Sprint(t.Loc.Line), Loc: t.Loc})
			continue
		}

		if t.Kind != token.Ident {
			out = append(out, t)
			continue
		}
		m, ok := p.macros[t.Literal]
		if !ok || m.Disabled || (hs != nil && hs.Contains(t.Literal)) {
			out = append(out, t)
			continue
		}

		if !m.IsFunctionLike {
			newHS := hsUnion(hs, t.Literal)
			body := stampHideSet(m.Body, newHS, t)
			expandedBody, err := p.expandSlice(body, newHS)
			if err != nil {
				return nil, err
			}
			out = append(out, expandedBody...)
			continue
		}

		// Function-like macro: only invoked if followed by '(' (skipping
		// intervening space is unnecessary here since whitespace tokens
		// were already stripped by the caller for all but #define bodies).
		j := i + 1
		if j >= len(toks) || toks[j].Kind != token.LParen {
			out = append(out, t)
			continue
		}
		args, endIdx, err := parseArgs(toks, j, t.Loc)
		if err != nil {
			return nil, err
		}
		if err := checkArity(m, args, t.Loc); err != nil {
			return nil, err
		}
		newHS := hsUnion(hs, t.Literal)
		expandedArgs := make([][]*token.Token, len(args))
		for k, a := range args {
			ea, err := p.expandSlice(a, hs)
			if err != nil {
				return nil, err
			}
			expandedArgs[k] = ea
		}
		substituted := substitute(m, args, expandedArgs)
		body := stampHideSet(substituted, newHS, t)
		expandedBody, err := p.expandSlice(body, newHS)
		if err != nil {
			return nil, err
		}
		out = append(out, expandedBody...)
		i = endIdx
	}
	return out, nil
}

func hsUnion(hs *token.HideSet, name string) *token.HideSet {
	if hs == nil {
		return (&token.HideSet{}).Union(name)
	}
	return hs.Union(name)
}

// stampHideSet splices a fresh copy of toks (macro body/substituted args),
// unioning in hs and relocating each copy to invocationLoc so diagnostics
// and __LINE__/__FILE__ point at the expansion site rather than the
// #define site, while ExpandedFrom keeps the original for tracing.
func stampHideSet(toks []*token.Token, hs *token.HideSet, invocation *token.Token) []*token.Token {
	out := make([]*token.Token, len(toks))
	for i, t := range toks {
		cp := *t
		cp.HideSet = token.UnionSet(hs, t.HideSet)
		cp.ExpandedFrom = invocation
		cp.Loc = invocation.Loc
		out[i] = &cp
	}
	return out
}

// parseArgs splits a function-like macro invocation's argument list,
// respecting nested parentheses and treating commas only at depth 0 as
// separators (spec.md §4.2). toks[openIdx] must be the opening '('.
func parseArgs(toks []*token.Token, openIdx int, loc source.Loc) (args [][]*token.Token, closeIdx int, err error) {
	depth := 0
	var cur []*token.Token
	i := openIdx
	for ; i < len(toks); i++ {
		t := toks[i]
		switch t.Kind {
		case token.LParen:
			depth++
			if depth == 1 {
				continue
			}
		case token.RParen:
			depth--
			if depth == 0 {
				args = append(args, cur)
				return args, i, nil
			}
		case token.Comma:
			if depth == 1 {
				args = append(args, cur)
				cur = nil
				continue
			}
		}
		if depth >= 1 && !(t.Kind == token.LParen && depth == 1) {
			cur = append(cur, t)
		}
	}
	return nil, 0, diag.Errorf(loc, diag.Preprocessing, "unterminated macro argument list")
}

func checkArity(m *Macro, args [][]*token.Token, loc source.Loc) error {
	if len(args) == 1 && len(args[0]) == 0 && len(m.Params) == 0 && !m.Variadic {
		return nil
	}
	if m.Variadic {
		if len(args) < len(m.Params) {
			return diag.Errorf(loc, diag.Preprocessing, "macro %q requires at least %d arguments, got %d", m.Name, len(m.Params), len(args))
		}
		return nil
	}
	if len(args) != len(m.Params) {
		return diag.Errorf(loc, diag.Preprocessing, "macro %q requires %d arguments, got %d", m.Name, len(m.Params), len(args))
	}
	return nil
}

// substitute binds m's parameters to expandedArgs and splices a fresh copy
// of the body. Extra variadic arguments beyond the named parameters are
// concatenated with intervening commas into __VA_ARGS__ (spec.md §4.2).
func substitute(m *Macro, rawArgs, expandedArgs [][]*token.Token) []*token.Token {
	var varArgs []*token.Token
	if m.Variadic && len(expandedArgs) > len(m.Params) {
		for k := len(m.Params); k < len(expandedArgs); k++ {
			if k > len(m.Params) {
				varArgs = append(varArgs, &token.Token{Kind: token.Comma, Literal: ","})
			}
			varArgs = append(varArgs, expandedArgs[k]...)
		}
	}
	var out []*token.Token
	for _, bt := range m.Body {
		if bt.Kind == token.Ident {
			if bt.Literal == "__VA_ARGS__" && m.Variadic {
				out = append(out, varArgs...)
				continue
			}
			if idx := paramIndex(m.Params, bt.Literal); idx >= 0 && idx < len(expandedArgs) {
				out = append(out, expandedArgs[idx]...)
				continue
			}
		}
		cp := *bt
		out = append(out, &cp)
	}
	return out
}

func paramIndex(params []string, name string) int {
	for i, p := range params {
		if p == name {
			return i
		}
	}
	return -1
}
