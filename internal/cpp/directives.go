package cpp

import (
	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/token"
)

func (p *Preprocessor) doInclude(filename string, dtok *token.Token, rest []*token.Token) error {
	if p.skipping() {
		return nil
	}
	if len(rest) == 0 {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "#include expects \"FILENAME\" or <FILENAME>")
	}
	var path string
	var angled bool
	if rest[0].Kind == token.StringLit {
		path = rest[0].Literal
		angled = false
	} else if rest[0].Kind == token.Lt {
		angled = true
		for i := 1; i < len(rest); i++ {
			if rest[i].Kind == token.Gt {
				break
			}
			path += tokenText(rest[i])
		}
	} else {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "#include expects \"FILENAME\" or <FILENAME>")
	}
	name, data, ok := p.includer.Resolve(filename, path, angled)
	if !ok {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "cannot find include file %q", path)
	}
	if p.once[name] {
		return nil
	}
	return p.ProcessFile(name, data)
}

func (p *Preprocessor) doDefine(dtok *token.Token, rest []*token.Token) error {
	if p.skipping() {
		return nil
	}
	raw := stripLeading(rest)
	if len(raw) == 0 || raw[0].Kind != token.Ident {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "macro name missing")
	}
	name := raw[0].Literal
	raw = raw[1:]

	m := &Macro{Name: name}
	// Function-like iff '(' immediately follows the name with no
	// intervening whitespace token (spec.md §4.2); "NAME (" with a space
	// is an object-like macro whose body happens to start with '('.
	if len(raw) > 0 && raw[0].Kind == token.LParen {
		m.IsFunctionLike = true
		raw = stripLeading(raw[1:])
		for len(raw) > 0 && raw[0].Kind != token.RParen {
			if raw[0].Kind == token.Ellipsis {
				m.Variadic = true
				raw = stripLeading(raw[1:])
				break
			}
			if raw[0].Kind != token.Ident {
				return diag.Errorf(raw[0].Loc, diag.Preprocessing, "expected parameter name")
			}
			m.Params = append(m.Params, raw[0].Literal)
			raw = stripLeading(raw[1:])
			if len(raw) > 0 && raw[0].Kind == token.Comma {
				raw = stripLeading(raw[1:])
			}
		}
		if len(raw) == 0 || raw[0].Kind != token.RParen {
			return diag.Errorf(dtok.Loc, diag.Preprocessing, "missing ')' in macro parameter list")
		}
		raw = raw[1:]
	}
	m.Body = stripSpace(raw)

	if existing, ok := p.macros[name]; ok && !existing.Disabled {
		if existing.IsFunctionLike != m.IsFunctionLike ||
			!sameParams(existing.Params, m.Params) ||
			existing.Variadic != m.Variadic ||
			!sameBody(existing.Body, m.Body) {
			return diag.Errorf(dtok.Loc, diag.Preprocessing, "macro %q redefined with a different body", name)
		}
	}
	p.macros[name] = m
	return nil
}

func (p *Preprocessor) doUndef(dtok *token.Token, rest []*token.Token) error {
	if p.skipping() {
		return nil
	}
	if len(rest) == 0 || rest[0].Kind != token.Ident {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "macro name missing")
	}
	if m, ok := p.macros[rest[0].Literal]; ok {
		m.Disabled = true
	}
	return nil
}

func (p *Preprocessor) doIf(dtok *token.Token, rest []*token.Token) error {
	if p.skipping() {
		p.cond = append(p.cond, condFrame{active: false, taken: true, loc: dtok.Loc})
		return nil
	}
	v, err := p.evalConstExpr(rest, dtok.Loc)
	if err != nil {
		return err
	}
	p.cond = append(p.cond, condFrame{active: v != 0, taken: v != 0, loc: dtok.Loc})
	return nil
}

func (p *Preprocessor) doIfdef(dtok *token.Token, rest []*token.Token, wantDefined bool) error {
	if p.skipping() {
		p.cond = append(p.cond, condFrame{active: false, taken: true, loc: dtok.Loc})
		return nil
	}
	if len(rest) == 0 || rest[0].Kind != token.Ident {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "macro name missing")
	}
	active := p.isMacroActive(rest[0].Literal) == wantDefined
	p.cond = append(p.cond, condFrame{active: active, taken: active, loc: dtok.Loc})
	return nil
}

func (p *Preprocessor) doElif(dtok *token.Token, rest []*token.Token) error {
	if len(p.cond) == 0 {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "#elif without #if")
	}
	top := &p.cond[len(p.cond)-1]
	if top.inElse {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "#elif after #else")
	}
	// Skip state from any enclosing (outer) frame still applies.
	outerSkip := false
	for _, f := range p.cond[:len(p.cond)-1] {
		if !f.active {
			outerSkip = true
			break
		}
	}
	if outerSkip || top.taken {
		top.active = false
		return nil
	}
	v, err := p.evalConstExpr(rest, dtok.Loc)
	if err != nil {
		return err
	}
	top.active = v != 0
	top.taken = top.taken || top.active
	return nil
}

func (p *Preprocessor) doElse(dtok *token.Token, rest []*token.Token) error {
	if len(p.cond) == 0 {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "#else without #if")
	}
	top := &p.cond[len(p.cond)-1]
	if top.inElse {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "duplicate #else")
	}
	top.inElse = true
	outerSkip := false
	for _, f := range p.cond[:len(p.cond)-1] {
		if !f.active {
			outerSkip = true
			break
		}
	}
	top.active = !outerSkip && !top.taken
	top.taken = true
	return nil
}

func (p *Preprocessor) doEndif(dtok *token.Token, rest []*token.Token) error {
	if len(p.cond) == 0 {
		return diag.Errorf(dtok.Loc, diag.Preprocessing, "#endif without #if")
	}
	p.cond = p.cond[:len(p.cond)-1]
	return nil
}

// CheckUnterminated reports an error anchored at the originating #if/#ifdef
// if any conditional block is still open at end of file (spec.md §4.2).
func (p *Preprocessor) CheckUnterminated() error {
	if len(p.cond) > 0 {
		return diag.Errorf(p.cond[0].loc, diag.Preprocessing, "unterminated #if")
	}
	return nil
}
