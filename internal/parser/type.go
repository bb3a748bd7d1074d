package parser

import (
	"strconv"

	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/token"
)

// parseTypeSpecifier consumes a base type — a builtin keyword, a typedef
// name, or a struct/union/enum (with an optional inline body) — and returns
// its Type entry. It does not consume declarator stars, array suffixes, or
// the variable/function name that follows; spec.md §4.3's dialect allows
// "int *a, b;" where only a is a pointer, so pointer depth is per-declarator.
func (p *Parser) parseTypeSpecifier() (*ir.Type, error) {
	for p.atKeyword("const") {
		p.advance() // const is accepted and ignored (spec.md §6: no enforcement)
	}
	switch {
	case p.atKeyword("struct"):
		return p.parseAggregate(ir.KindStruct)
	case p.atKeyword("union"):
		return p.parseAggregate(ir.KindUnion)
	case p.atKeyword("enum"):
		return p.parseEnum()
	case p.atKeyword("void"), p.atKeyword("char"), p.atKeyword("int"):
		name := p.advance().Literal
		return p.ctx.Sym.Types[name], nil
	case p.at(token.Ident):
		if ty, ok := p.ctx.Sym.Types[p.peek().Literal]; ok && ty.Kind == ir.KindTypedef {
			p.advance()
			return ty, nil
		}
		return nil, p.errorf("unknown type name %q", p.peek().Literal)
	default:
		return nil, p.errorf("expected a type, got %q", p.peek().Literal)
	}
}

// parseAggregate parses "struct|union NAME? ( { field-list } )?". A name
// with no body is either a forward reference (recorded in p.forward) or a
// use of a previously completed tag.
func (p *Parser) parseAggregate(kind ir.BaseKind) (*ir.Type, error) {
	p.advance() // struct | union
	name := ""
	if p.at(token.Ident) {
		name = p.advance().Literal
	}
	key := name
	tagPrefix := "struct "
	if kind == ir.KindUnion {
		tagPrefix = "union "
	}
	if name != "" {
		key = tagPrefix + name
	}

	if !p.at(token.LBrace) {
		if key == "" {
			return nil, p.errorf("expected a tag name or '{' after struct/union")
		}
		if ty, ok := p.ctx.Sym.Types[key]; ok {
			return ty, nil
		}
		// Forward reference: record an incomplete placeholder, to be
		// completed (or diagnosed as never-completed) later.
		ty := &ir.Type{Name: key, Kind: kind, Complete: false}
		p.ctx.Sym.Types[key] = ty
		p.forward[key] = true
		return ty, nil
	}

	p.advance() // {
	ty, existed := p.ctx.Sym.Types[key]
	if !existed || key == "" {
		ty = &ir.Type{Name: key, Kind: kind}
	}
	if ty.Complete {
		return nil, p.errorf("redefinition of %q", key)
	}

	offset := 0
	maxSize := 0
	for !p.at(token.RBrace) {
		fieldTy, err := p.parseTypeSpecifier()
		if err != nil {
			return nil, err
		}
		for {
			ptrDepth := 0
			for p.match(token.Star) {
				ptrDepth++
			}
			fname, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			arraySize := 0
			if p.match(token.LBracket) {
				n, err := p.parseArrayBound()
				if err != nil {
					return nil, err
				}
				arraySize = n
				if _, err := p.expect(token.RBracket); err != nil {
					return nil, err
				}
			}
			f := &ir.Field{Name: fname.Literal, TypeName: fieldTy.Name, Offset: offset, IsPtr: ptrDepth > 0, ArraySize: arraySize}
			fieldSize := fieldSizeOf(fieldTy, ptrDepth, arraySize)
			ty.Fields = append(ty.Fields, f)
			offset += fieldSize
			if kind == ir.KindUnion {
				offset = 0
				if fieldSize > maxSize {
					maxSize = fieldSize
				}
			}
			if !p.match(token.Comma) {
				break
			}
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return nil, err
		}
	}
	p.advance() // }
	if kind == ir.KindUnion {
		ty.Size = maxSize
	} else {
		ty.Size = offset
	}
	ty.Complete = true
	if key != "" {
		p.ctx.Sym.Types[key] = ty
		delete(p.forward, key)
	}
	return ty, nil
}

func fieldSizeOf(ty *ir.Type, ptrDepth, arraySize int) int {
	sz := ir.PointerSize
	if ptrDepth == 0 {
		sz = ty.SizeOf()
	}
	if arraySize > 0 {
		sz *= arraySize
	}
	return sz
}

// parseEnum parses "enum NAME? { IDENT ( = const-expr )? , ... }". Every
// enumerator becomes a folded entry in SymbolTable.Constants, matching
// spec.md §6's treatment of enum constants as compile-time integers with no
// runtime type distinct from int.
func (p *Parser) parseEnum() (*ir.Type, error) {
	p.advance() // enum
	name := ""
	if p.at(token.Ident) {
		name = p.advance().Literal
	}
	intTy := p.ctx.Sym.Types["int"]
	if !p.at(token.LBrace) {
		return intTy, nil // reference to a previously declared enum tag
	}
	p.advance() // {
	next := int64(0)
	for !p.at(token.RBrace) {
		ident, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		val := next
		if p.match(token.Assign) {
			v, err := p.parseConstExpr()
			if err != nil {
				return nil, err
			}
			val = v
		}
		p.ctx.Sym.Constants[ident.Literal] = val
		next = val + 1
		if !p.match(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	if name != "" {
		p.ctx.Sym.Types["enum "+name] = intTy
	}
	return intTy, nil
}

// parseArrayBound parses a constant array bound, or zero for "[]" which is
// only legal as a parameter declarator (decaying to a pointer).
func (p *Parser) parseArrayBound() (int, error) {
	if p.at(token.RBracket) {
		return 0, nil
	}
	v, err := p.parseConstExpr()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// parseTypedef handles "typedef TYPE declarator ;", registering the new
// name as a Type entry whose Kind is KindTypedef and whose ForwardTo names
// the underlying type (spec.md §3's ALIASES/TYPES tables).
func (p *Parser) parseTypedef() error {
	p.advance() // typedef
	base, err := p.parseTypeSpecifier()
	if err != nil {
		return err
	}
	ptrDepth := 0
	for p.match(token.Star) {
		ptrDepth++
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return err
	}
	alias := &ir.Type{
		Name:      name.Literal,
		Kind:      ir.KindTypedef,
		Size:      fieldSizeOf(base, ptrDepth, 0),
		Complete:  base.Complete,
		ForwardTo: base,
		PtrDepth:  ptrDepth,
	}
	p.ctx.Sym.Types[name.Literal] = alias
	return nil
}

// resolveDeclared folds a typedef's own pointer depth into a declarator's,
// and chases ForwardTo down to the first non-typedef type so later size and
// field lookups see the real aggregate.
func resolveDeclared(base *ir.Type, ptrDepth int) (*ir.Type, int) {
	for base != nil && base.Kind == ir.KindTypedef {
		ptrDepth += base.PtrDepth
		if base.ForwardTo == nil {
			break
		}
		base = base.ForwardTo
	}
	return base, ptrDepth
}

// parseConstExpr evaluates a compile-time integer constant expression using
// the same grammar as ordinary expressions, but refusing anything that is
// not foldable (spec.md §4.3 requires folding array bounds and enum values
// at parse time; full expression folding for general globals happens via
// the SSA constant folder over the implicit initializer function).
func (p *Parser) parseConstExpr() (int64, error) {
	start := p.pos
	v, ok, err := p.tryFoldConstant(p.parseTernaryExprConst)
	if err != nil {
		return 0, err
	}
	if !ok {
		p.pos = start
		return 0, p.errorf("expected a constant expression")
	}
	return v, nil
}

func (p *Parser) tryFoldConstant(parse func() (int64, bool, error)) (int64, bool, error) {
	return parse()
}

// parseTernaryExprConst is a constant-folding-only expression parser used
// for array bounds, enum values, and case labels; it shares no state with
// the IR-emitting expression parser in expr.go.
func (p *Parser) parseTernaryExprConst() (int64, bool, error) {
	cond, ok, err := p.parseOrExprConst()
	if err != nil || !ok {
		return 0, ok, err
	}
	if p.match(token.Question) {
		a, ok, err := p.parseTernaryExprConst()
		if err != nil || !ok {
			return 0, false, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return 0, false, err
		}
		b, ok, err := p.parseTernaryExprConst()
		if err != nil || !ok {
			return 0, false, err
		}
		if cond != 0 {
			return a, true, nil
		}
		return b, true, nil
	}
	return cond, true, nil
}

func (p *Parser) parseOrExprConst() (int64, bool, error) {
	return p.parseConstBinary(0)
}

var constPrec = map[token.Kind]int{
	token.OrOr: 1, token.AndAnd: 2,
	token.Pipe: 3, token.Caret: 4, token.Amp: 5,
	token.Eq: 6, token.Neq: 6,
	token.Lt: 7, token.Gt: 7, token.Leq: 7, token.Geq: 7,
	token.Shl: 8, token.Shr: 8,
	token.Plus: 9, token.Minus: 9,
	token.Star: 10, token.Slash: 10, token.Percent: 10,
}

func (p *Parser) parseConstBinary(minPrec int) (int64, bool, error) {
	lhs, ok, err := p.parseConstUnary()
	if err != nil || !ok {
		return 0, ok, err
	}
	for {
		prec, isBin := constPrec[p.peek().Kind]
		if !isBin || prec < minPrec {
			return lhs, true, nil
		}
		op := p.advance()
		rhs, ok, err := p.parseConstBinary(prec + 1)
		if err != nil || !ok {
			return 0, false, err
		}
		lhs, err = applyConstBinOp(op.Kind, lhs, rhs, op)
		if err != nil {
			return 0, false, err
		}
	}
}

func applyConstBinOp(op token.Kind, a, b int64, tok *token.Token) (int64, error) {
	switch op {
	case token.Plus:
		return a + b, nil
	case token.Minus:
		return a - b, nil
	case token.Star:
		return a * b, nil
	case token.Slash:
		if b == 0 {
			return 0, diag.Errorf(tok.Loc, diag.Semantic, "division by zero in constant expression")
		}
		return a / b, nil
	case token.Percent:
		if b == 0 {
			return 0, diag.Errorf(tok.Loc, diag.Semantic, "division by zero in constant expression")
		}
		return a % b, nil
	case token.Amp:
		return a & b, nil
	case token.Pipe:
		return a | b, nil
	case token.Caret:
		return a ^ b, nil
	case token.Shl:
		return a << uint(b), nil
	case token.Shr:
		return a >> uint(b), nil
	case token.Eq:
		return boolToInt(a == b), nil
	case token.Neq:
		return boolToInt(a != b), nil
	case token.Lt:
		return boolToInt(a < b), nil
	case token.Gt:
		return boolToInt(a > b), nil
	case token.Leq:
		return boolToInt(a <= b), nil
	case token.Geq:
		return boolToInt(a >= b), nil
	case token.AndAnd:
		return boolToInt(a != 0 && b != 0), nil
	case token.OrOr:
		return boolToInt(a != 0 || b != 0), nil
	}
	return 0, diag.Internalf(tok.Loc, "unhandled constant operator %v", op)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (p *Parser) parseConstUnary() (int64, bool, error) {
	switch {
	case p.match(token.Minus):
		v, ok, err := p.parseConstUnary()
		return -v, ok, err
	case p.match(token.Bang):
		v, ok, err := p.parseConstUnary()
		return boolToInt(v == 0), ok, err
	case p.match(token.Tilde):
		v, ok, err := p.parseConstUnary()
		return ^v, ok, err
	case p.atKeyword("sizeof"):
		return p.parseConstSizeof()
	}
	return p.parseConstPrimary()
}

func (p *Parser) parseConstSizeof() (int64, bool, error) {
	p.advance() // sizeof
	paren := p.match(token.LParen)
	if paren && p.isTypeStart() {
		ty, err := p.parseTypeSpecifier()
		if err != nil {
			return 0, false, err
		}
		ptrDepth := 0
		for p.match(token.Star) {
			ptrDepth++
		}
		if _, err := p.expect(token.RParen); err != nil {
			return 0, false, err
		}
		return int64(fieldSizeOf(ty, ptrDepth, 0)), true, nil
	}
	if paren {
		_, ok, err := p.parseTernaryExprConst()
		if err != nil || !ok {
			return 0, false, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return 0, false, err
		}
		return 4, true, nil // a constant expression is an int
	}
	_, ok, err := p.parseConstUnary()
	return 4, ok, err // a run-time expression's constant size is unknown here; caller falls back to expr.go
}

func (p *Parser) parseConstPrimary() (int64, bool, error) {
	t := p.peek()
	switch t.Kind {
	case token.IntLit:
		p.advance()
		return t.IntVal, true, nil
	case token.CharLit:
		p.advance()
		return t.IntVal, true, nil
	case token.Ident:
		if v, ok := p.ctx.Sym.Constants[t.Literal]; ok {
			p.advance()
			return v, true, nil
		}
		return 0, false, nil
	case token.LParen:
		p.advance()
		v, ok, err := p.parseTernaryExprConst()
		if err != nil || !ok {
			return 0, false, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return 0, false, err
		}
		return v, true, nil
	}
	return 0, false, nil
}

// isTypeStart reports whether the token at the cursor begins a type name,
// used to disambiguate "(int)x" casts and "sizeof(int)" from parenthesized
// expressions.
func (p *Parser) isTypeStart() bool {
	t := p.peek()
	if t.Kind == token.Keyword {
		switch t.Literal {
		case "struct", "union", "enum", "void", "char", "int", "const":
			return true
		}
		return false
	}
	if t.Kind == token.Ident {
		ty, ok := p.ctx.Sym.Types[t.Literal]
		return ok && ty.Kind == ir.KindTypedef
	}
	return false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
