package parser

import (
	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/token"
)

// exprResult is the value an expression-grammar rule hands back to its
// caller. Most results carry a plain value in val. A result that denotes an
// assignable location instead sets one of lvDirect (a named variable,
// assigned with a plain ir.OpAssign move) or lvAddr (a computed memory
// address — pointer dereference, array index, struct/union field —
// assigned with ir.OpWrite and read with ir.OpRead). fn is set when the
// expression names a function, for calls and function-pointer values.
type exprResult struct {
	val      *ir.Var
	lvDirect *ir.Var
	lvAddr   *ir.Var
	size     int
	ty       *ir.Type
	ptrDepth int
	fn       *ir.Func
}

func (p *Parser) valueOf(r exprResult) *ir.Var {
	if r.val != nil {
		return r.val
	}
	if r.lvAddr != nil {
		tmp := p.newTemp(r.ty, r.ptrDepth)
		p.emit(&ir.Insn{Op: ir.OpRead, Dest: tmp, Src0: r.lvAddr, Size: r.size})
		return tmp
	}
	if r.lvDirect != nil {
		return r.lvDirect
	}
	return nil
}

func (p *Parser) store(r exprResult, val *ir.Var) error {
	switch {
	case r.lvAddr != nil:
		p.emit(&ir.Insn{Op: ir.OpWrite, Dest: r.lvAddr, Src0: val, Size: r.size})
		return nil
	case r.lvDirect != nil:
		p.emit(&ir.Insn{Op: ir.OpAssign, Dest: r.lvDirect, Src0: val})
		return nil
	default:
		return p.errorf("expression is not assignable")
	}
}

func simpleResult(v *ir.Var) exprResult {
	if v == nil {
		return exprResult{}
	}
	return exprResult{val: v, ty: v.Type, ptrDepth: v.PtrDepth}
}

// parseExpr parses the comma operator: a sequence of assignment-expressions
// evaluated left to right, yielding the last one's value. Each comma is a
// sequence point; spec.md §4.3 requires deferred post-inc/dec side effects
// to be flushed here.
func (p *Parser) parseExpr() (*ir.Var, error) {
	v, err := p.parseAssignExpr()
	if err != nil {
		return nil, err
	}
	for p.match(token.Comma) {
		v, err = p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

var assignOps = map[token.Kind]ir.Opcode{
	token.PlusEq: ir.OpAdd, token.MinusEq: ir.OpSub, token.StarEq: ir.OpMul,
	token.SlashEq: ir.OpDiv, token.PercentEq: ir.OpMod, token.AmpEq: ir.OpBitAnd,
	token.PipeEq: ir.OpBitOr, token.CaretEq: ir.OpBitXor, token.ShlEq: ir.OpLshift,
	token.ShrEq: ir.OpRshift,
}

// parseAssignExpr implements right-associative assignment sitting just
// above the ternary operator in C's precedence table.
func (p *Parser) parseAssignExpr() (*ir.Var, error) {
	lhs, err := p.parseCondExprResult()
	if err != nil {
		return nil, err
	}
	if p.match(token.Assign) {
		rhs, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		if err := p.store(lhs, rhs); err != nil {
			return nil, err
		}
		return rhs, nil
	}
	if op, ok := assignOps[p.peek().Kind]; ok {
		p.advance()
		rhs, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		cur := p.valueOf(lhs)
		result := p.newTemp(lhs.ty, lhs.ptrDepth)
		p.emit(&ir.Insn{Op: op, Dest: result, Src0: cur, Src1: rhs})
		if err := p.store(lhs, result); err != nil {
			return nil, err
		}
		return result, nil
	}
	return p.valueOf(lhs), nil
}

func (p *Parser) parseCondExprResult() (exprResult, error) {
	cond, err := p.parseLogOrExpr()
	if err != nil {
		return exprResult{}, err
	}
	if !p.at(token.Question) {
		return cond, nil
	}
	p.advance()
	condVal := p.valueOf(cond)

	condBlock := p.cur
	thenBlock := p.ctx.NewBasicBlock(p.fn.Name+".cond.then", p.fn, p.scope)
	elseBlock := p.ctx.NewBasicBlock(p.fn.Name+".cond.else", p.fn, p.scope)
	merge := p.ctx.NewBasicBlock(p.fn.Name+".cond.end", p.fn, p.scope)
	p.emit(&ir.Insn{Op: ir.OpBranch, Src0: condVal, ThenLabel: thenBlock.Label, ElseLabel: elseBlock.Label})
	condBlock.ConnectBranch(thenBlock, elseBlock)

	p.cur = thenBlock
	a, err := p.parseAssignExpr()
	if err != nil {
		return exprResult{}, err
	}
	result := p.ctx.NewVar("")
	result.Type, result.PtrDepth = a.Type, a.PtrDepth
	result.IsTernaryRet = true
	p.emit(&ir.Insn{Op: ir.OpAssign, Dest: result, Src0: a})
	p.cur.ConnectNext(merge)

	if _, err := p.expect(token.Colon); err != nil {
		return exprResult{}, err
	}
	p.cur = elseBlock
	b, err := p.parseAssignExpr()
	if err != nil {
		return exprResult{}, err
	}
	p.emit(&ir.Insn{Op: ir.OpAssign, Dest: result, Src0: b})
	p.cur.ConnectNext(merge)

	p.cur = merge
	return simpleResult(result), nil
}

// parseLogOrExpr/parseLogAndExpr build short-circuit diamonds: the result
// is a fresh IsLogicalRet-marked variable assigned 0/1 on each path, so
// neither DCE nor register allocation mistakes it for dead just because
// control merges before any ordinary instruction consumes it (spec.md §4.4).
func (p *Parser) parseLogOrExpr() (exprResult, error) {
	lhs, err := p.parseLogAndExpr()
	if err != nil {
		return exprResult{}, err
	}
	if !p.at(token.OrOr) {
		return lhs, nil
	}
	result := p.ctx.NewVar("")
	result.Type = p.ctx.Sym.Types["int"]
	result.IsLogicalRet = true
	lv := p.valueOf(lhs)
	p.emit(&ir.Insn{Op: ir.OpAssign, Dest: result, Src0: lv})

	shortCircuit := p.cur
	evalRHS := p.ctx.NewBasicBlock(p.fn.Name+".or.rhs", p.fn, p.scope)
	merge := p.ctx.NewBasicBlock(p.fn.Name+".or.end", p.fn, p.scope)
	p.emit(&ir.Insn{Op: ir.OpBranch, Src0: lv, ThenLabel: merge.Label, ElseLabel: evalRHS.Label})
	shortCircuit.ConnectBranch(merge, evalRHS)

	for p.match(token.OrOr) {
		p.cur = evalRHS
		rhs, err := p.parseLogAndExpr()
		if err != nil {
			return exprResult{}, err
		}
		rv := p.valueOf(rhs)
		boolv := p.newTemp(p.ctx.Sym.Types["int"], 0)
		zero := p.newTemp(p.ctx.Sym.Types["int"], 0)
		p.emit(&ir.Insn{Op: ir.OpLoadConstant, Dest: zero, Const: 0})
		p.emit(&ir.Insn{Op: ir.OpNeq, Dest: boolv, Src0: rv, Src1: zero})
		p.emit(&ir.Insn{Op: ir.OpAssign, Dest: result, Src0: boolv})
		evalRHS.ConnectNext(merge)
		break
	}
	p.cur = merge
	return simpleResult(result), nil
}

func (p *Parser) parseLogAndExpr() (exprResult, error) {
	lhs, err := p.parseBitOrExpr()
	if err != nil {
		return exprResult{}, err
	}
	if !p.at(token.AndAnd) {
		return lhs, nil
	}
	result := p.ctx.NewVar("")
	result.Type = p.ctx.Sym.Types["int"]
	result.IsLogicalRet = true
	lv := p.valueOf(lhs)
	p.emit(&ir.Insn{Op: ir.OpAssign, Dest: result, Src0: lv})

	shortCircuit := p.cur
	evalRHS := p.ctx.NewBasicBlock(p.fn.Name+".and.rhs", p.fn, p.scope)
	merge := p.ctx.NewBasicBlock(p.fn.Name+".and.end", p.fn, p.scope)
	p.emit(&ir.Insn{Op: ir.OpBranch, Src0: lv, ThenLabel: evalRHS.Label, ElseLabel: merge.Label})
	shortCircuit.ConnectBranch(evalRHS, merge)

	for p.match(token.AndAnd) {
		p.cur = evalRHS
		rhs, err := p.parseBitOrExpr()
		if err != nil {
			return exprResult{}, err
		}
		rv := p.valueOf(rhs)
		boolv := p.newTemp(p.ctx.Sym.Types["int"], 0)
		zero := p.newTemp(p.ctx.Sym.Types["int"], 0)
		p.emit(&ir.Insn{Op: ir.OpLoadConstant, Dest: zero, Const: 0})
		p.emit(&ir.Insn{Op: ir.OpNeq, Dest: boolv, Src0: rv, Src1: zero})
		p.emit(&ir.Insn{Op: ir.OpAssign, Dest: result, Src0: boolv})
		evalRHS.ConnectNext(merge)
		break
	}
	p.cur = merge
	return simpleResult(result), nil
}

// parseBinaryLevel implements one precedence tier of the non-short-
// circuiting binary operators: parse the next tier on both sides, emit one
// IR instruction per operator token consumed.
func (p *Parser) parseBinaryLevel(ops map[token.Kind]ir.Opcode, next func(*Parser) (exprResult, error)) (exprResult, error) {
	lhs, err := next(p)
	if err != nil {
		return exprResult{}, err
	}
	for {
		op, ok := ops[p.peek().Kind]
		if !ok {
			return lhs, nil
		}
		p.advance()
		rhs, err := next(p)
		if err != nil {
			return exprResult{}, err
		}
		lv, rv := p.valueOf(lhs), p.valueOf(rhs)
		result := p.newTemp(resultType(op, lv, rv), 0)
		p.emit(&ir.Insn{Op: op, Dest: result, Src0: lv, Src1: rv})
		lhs = simpleResult(result)
	}
}

// resultType picks the static type of a binary operation's result: pointer
// arithmetic keeps the pointer's type, and every other operation, including
// a comparison, takes the left operand's type (the right operand's when
// there is no left one).
func resultType(op ir.Opcode, lhs, rhs *ir.Var) *ir.Type {
	if (op == ir.OpAdd || op == ir.OpSub) && lhs != nil && lhs.PtrDepth > 0 {
		return lhs.Type
	}
	if lhs != nil {
		return lhs.Type
	}
	return rhs.Type
}

var bitOrOps = map[token.Kind]ir.Opcode{token.Pipe: ir.OpBitOr}
var bitXorOps = map[token.Kind]ir.Opcode{token.Caret: ir.OpBitXor}
var bitAndOps = map[token.Kind]ir.Opcode{token.Amp: ir.OpBitAnd}
var eqOps = map[token.Kind]ir.Opcode{token.Eq: ir.OpEq, token.Neq: ir.OpNeq}
var relOps = map[token.Kind]ir.Opcode{token.Lt: ir.OpLt, token.Gt: ir.OpGt, token.Leq: ir.OpLeq, token.Geq: ir.OpGeq}
var shiftOps = map[token.Kind]ir.Opcode{token.Shl: ir.OpLshift, token.Shr: ir.OpRshift}
var addOps = map[token.Kind]ir.Opcode{token.Plus: ir.OpAdd, token.Minus: ir.OpSub}
var mulOps = map[token.Kind]ir.Opcode{token.Star: ir.OpMul, token.Slash: ir.OpDiv, token.Percent: ir.OpMod}

func (p *Parser) parseBitOrExpr() (exprResult, error) {
	return p.parseBinaryLevel(bitOrOps, (*Parser).parseBitXorExpr)
}
func (p *Parser) parseBitXorExpr() (exprResult, error) {
	return p.parseBinaryLevel(bitXorOps, (*Parser).parseBitAndExpr)
}
func (p *Parser) parseBitAndExpr() (exprResult, error) {
	return p.parseBinaryLevel(bitAndOps, (*Parser).parseEqExpr)
}
func (p *Parser) parseEqExpr() (exprResult, error) {
	return p.parseBinaryLevel(eqOps, (*Parser).parseRelExpr)
}
func (p *Parser) parseRelExpr() (exprResult, error) {
	return p.parseBinaryLevel(relOps, (*Parser).parseShiftExpr)
}
func (p *Parser) parseShiftExpr() (exprResult, error) {
	return p.parseBinaryLevel(shiftOps, (*Parser).parseAddExpr)
}

// parseAddExpr special-cases pointer arithmetic: adding/subtracting an int
// to/from a pointer scales the int by the pointee size (spec.md §6).
func (p *Parser) parseAddExpr() (exprResult, error) {
	lhs, err := p.parseMulExpr()
	if err != nil {
		return exprResult{}, err
	}
	for {
		op, ok := addOps[p.peek().Kind]
		if !ok {
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parseMulExpr()
		if err != nil {
			return exprResult{}, err
		}
		lv, rv := p.valueOf(lhs), p.valueOf(rhs)
		if lhs.ptrDepth > 0 && rhs.ptrDepth == 0 {
			rv = p.scalePointerOffset(rv, lhs.ptrDepth, lhs.ty)
		} else if op == ir.OpAdd && rhs.ptrDepth > 0 && lhs.ptrDepth == 0 {
			lv, rv = rv, p.scalePointerOffset(lv, rhs.ptrDepth, rhs.ty)
			lhs.ptrDepth, lhs.ty = rhs.ptrDepth, rhs.ty
		}
		result := p.newTemp(resultType(op, lv, rv), maxInt(lhs.ptrDepth, 0))
		p.emit(&ir.Insn{Op: op, Dest: result, Src0: lv, Src1: rv})
		result.PtrDepth = lhs.ptrDepth
		lhs = simpleResult(result)
	}
}

func (p *Parser) scalePointerOffset(idx *ir.Var, ptrDepth int, ty *ir.Type) *ir.Var {
	elemSize := ir.PointerSize
	if ptrDepth == 1 && ty != nil {
		elemSize = ty.SizeOf()
	}
	if elemSize == 1 {
		return idx
	}
	szVar := p.newTemp(p.ctx.Sym.Types["int"], 0)
	p.emit(&ir.Insn{Op: ir.OpLoadConstant, Dest: szVar, Const: int64(elemSize)})
	scaled := p.newTemp(p.ctx.Sym.Types["int"], 0)
	p.emit(&ir.Insn{Op: ir.OpMul, Dest: scaled, Src0: idx, Src1: szVar})
	return scaled
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *Parser) parseMulExpr() (exprResult, error) {
	return p.parseBinaryLevel(mulOps, (*Parser).parseCastExpr)
}

// parseCastExpr handles "(type) unary-expr"; spec.md §6 treats a cast as a
// reinterpretation with no representation change (every scalar is
// pointer-sized or smaller), so it only needs to retag the static type.
func (p *Parser) parseCastExpr() (exprResult, error) {
	if p.at(token.LParen) {
		save := p.pos
		p.advance()
		if p.isTypeStart() {
			ty, err := p.parseTypeSpecifier()
			if err != nil {
				return exprResult{}, err
			}
			ptrDepth := 0
			for p.match(token.Star) {
				ptrDepth++
			}
			if p.match(token.RParen) {
				resolvedTy, resolvedPtr := resolveDeclared(ty, ptrDepth)
				operand, err := p.parseCastExpr()
				if err != nil {
					return exprResult{}, err
				}
				v := p.valueOf(operand)
				result := p.newTemp(resolvedTy, resolvedPtr)
				p.emit(&ir.Insn{Op: ir.OpAssign, Dest: result, Src0: v})
				return simpleResult(result), nil
			}
		}
		p.pos = save
	}
	return p.parseUnaryExpr()
}

// parseUnaryExpr handles prefix operators: &, *, unary -, !, ~, ++, --, and
// sizeof (spec.md §4.3/§6).
func (p *Parser) parseUnaryExpr() (exprResult, error) {
	switch {
	case p.match(token.Amp):
		operand, err := p.parseCastExpr()
		if err != nil {
			return exprResult{}, err
		}
		return p.addressOf(operand)
	case p.match(token.Star):
		operand, err := p.parseCastExpr()
		if err != nil {
			return exprResult{}, err
		}
		return p.dereference(operand)
	case p.match(token.Minus):
		operand, err := p.parseCastExpr()
		if err != nil {
			return exprResult{}, err
		}
		v := p.valueOf(operand)
		result := p.newTemp(v.Type, 0)
		p.emit(&ir.Insn{Op: ir.OpNegate, Dest: result, Src0: v})
		return simpleResult(result), nil
	case p.match(token.Bang):
		operand, err := p.parseCastExpr()
		if err != nil {
			return exprResult{}, err
		}
		v := p.valueOf(operand)
		result := p.newTemp(p.ctx.Sym.Types["int"], 0)
		p.emit(&ir.Insn{Op: ir.OpLogNot, Dest: result, Src0: v})
		return simpleResult(result), nil
	case p.match(token.Tilde):
		operand, err := p.parseCastExpr()
		if err != nil {
			return exprResult{}, err
		}
		v := p.valueOf(operand)
		result := p.newTemp(v.Type, 0)
		p.emit(&ir.Insn{Op: ir.OpBitNot, Dest: result, Src0: v})
		return simpleResult(result), nil
	case p.at(token.PlusPlus), p.at(token.MinusMinus):
		dec := p.at(token.MinusMinus)
		p.advance()
		operand, err := p.parseUnaryExpr()
		if err != nil {
			return exprResult{}, err
		}
		return p.incDec(operand, dec, true)
	case p.atKeyword("sizeof"):
		return p.parseSizeofExpr()
	default:
		return p.parsePostfixExpr()
	}
}

func (p *Parser) parseSizeofExpr() (exprResult, error) {
	p.advance() // sizeof
	if p.at(token.LParen) {
		save := p.pos
		p.advance()
		if p.isTypeStart() {
			ty, err := p.parseTypeSpecifier()
			if err != nil {
				return exprResult{}, err
			}
			ptrDepth := 0
			for p.match(token.Star) {
				ptrDepth++
			}
			if _, err := p.expect(token.RParen); err != nil {
				return exprResult{}, err
			}
			result := p.newTemp(p.ctx.Sym.Types["int"], 0)
			p.emit(&ir.Insn{Op: ir.OpLoadConstant, Dest: result, Const: int64(fieldSizeOf(ty, ptrDepth, 0))})
			return simpleResult(result), nil
		}
		p.pos = save
	}
	operand, err := p.parseUnaryExpr()
	if err != nil {
		return exprResult{}, err
	}
	sz := operand.size
	if sz == 0 {
		sz = fieldSizeOf(orVoid(operand.ty), operand.ptrDepth, 0)
	}
	result := p.newTemp(p.ctx.Sym.Types["int"], 0)
	p.emit(&ir.Insn{Op: ir.OpLoadConstant, Dest: result, Const: int64(sz)})
	return simpleResult(result), nil
}

func orVoid(ty *ir.Type) *ir.Type {
	if ty == nil {
		return &ir.Type{Kind: ir.KindVoid}
	}
	return ty
}

func (p *Parser) addressOf(r exprResult) (exprResult, error) {
	if r.lvAddr != nil {
		return exprResult{val: r.lvAddr, ty: r.ty, ptrDepth: r.ptrDepth + 1}, nil
	}
	if r.lvDirect != nil {
		result := p.newTemp(r.lvDirect.Type, r.lvDirect.PtrDepth+1)
		p.emit(&ir.Insn{Op: ir.OpAddressOf, Dest: result, Src0: r.lvDirect})
		return simpleResult(result), nil
	}
	return exprResult{}, p.errorf("cannot take the address of this expression")
}

func (p *Parser) dereference(r exprResult) (exprResult, error) {
	ptr := p.valueOf(r)
	if ptr.PtrDepth == 0 && r.ptrDepth == 0 {
		return exprResult{}, p.errorf("cannot dereference a non-pointer")
	}
	elemDepth := r.ptrDepth - 1
	size := fieldSizeOf(orVoid(r.ty), elemDepth, 0)
	return exprResult{lvAddr: ptr, size: size, ty: r.ty, ptrDepth: elemDepth}, nil
}

// incDec applies ++/-- to r, returning the pre- or post-value per post.
func (p *Parser) incDec(r exprResult, dec bool, prefix bool) (exprResult, error) {
	old := p.valueOf(r)
	one := p.newTemp(p.ctx.Sym.Types["int"], 0)
	step := int64(1)
	if r.ptrDepth > 0 && r.ty != nil {
		step = int64(r.ty.SizeOf())
	}
	p.emit(&ir.Insn{Op: ir.OpLoadConstant, Dest: one, Const: step})
	newVal := p.newTemp(old.Type, old.PtrDepth)
	op := ir.OpAdd
	if dec {
		op = ir.OpSub
	}
	p.emit(&ir.Insn{Op: op, Dest: newVal, Src0: old, Src1: one})
	if err := p.store(r, newVal); err != nil {
		return exprResult{}, err
	}
	if prefix {
		return simpleResult(newVal), nil
	}
	saved := p.newTemp(old.Type, old.PtrDepth)
	p.emit(&ir.Insn{Op: ir.OpAssign, Dest: saved, Src0: old})
	return simpleResult(saved), nil
}

// parsePostfixExpr handles calls, indexing, member access, and postfix
// ++/-- applied to a primary expression (spec.md §4.3/§6).
func (p *Parser) parsePostfixExpr() (exprResult, error) {
	base, err := p.parsePrimaryExpr()
	if err != nil {
		return exprResult{}, err
	}
	for {
		switch {
		case p.at(token.LParen):
			base, err = p.parseCallArgs(base)
			if err != nil {
				return exprResult{}, err
			}
		case p.match(token.LBracket):
			idx, err := p.parseExpr()
			if err != nil {
				return exprResult{}, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return exprResult{}, err
			}
			basePtr := p.arrayBaseAddress(base)
			elemDepth := base.ptrDepth - 1
			if base.ptrDepth == 0 {
				elemDepth = 0
			}
			scaled := p.scalePointerOffset(idx, maxInt(base.ptrDepth, 1), base.ty)
			addr := p.newTemp(base.ty, base.ptrDepth)
			p.emit(&ir.Insn{Op: ir.OpAdd, Dest: addr, Src0: basePtr, Src1: scaled})
			size := fieldSizeOf(orVoid(base.ty), elemDepth, 0)
			base = exprResult{lvAddr: addr, size: size, ty: base.ty, ptrDepth: elemDepth}
		case p.at(token.Dot), p.at(token.Arrow):
			arrow := p.at(token.Arrow)
			p.advance()
			field, err := p.expect(token.Ident)
			if err != nil {
				return exprResult{}, err
			}
			base, err = p.memberAccess(base, field.Literal, arrow)
			if err != nil {
				return exprResult{}, err
			}
		case p.at(token.PlusPlus), p.at(token.MinusMinus):
			dec := p.at(token.MinusMinus)
			p.advance()
			base, err = p.incDec(base, dec, false)
			if err != nil {
				return exprResult{}, err
			}
		default:
			return base, nil
		}
	}
}

// arrayBaseAddress returns the pointer value used as an index expression's
// base: the stored pointer value for a pointer variable, or the array's own
// address (array-to-pointer decay) for a fixed-size array.
func (p *Parser) arrayBaseAddress(r exprResult) *ir.Var {
	if r.lvDirect != nil && r.lvDirect.ArraySize > 0 && r.lvDirect.PtrDepth == 0 {
		addr := p.newTemp(r.lvDirect.Type, 1)
		p.emit(&ir.Insn{Op: ir.OpAddressOf, Dest: addr, Src0: r.lvDirect})
		return addr
	}
	return p.valueOf(r)
}

func (p *Parser) memberAccess(base exprResult, name string, arrow bool) (exprResult, error) {
	var structAddr *ir.Var
	structTy := base.ty
	if arrow {
		structAddr = p.valueOf(base)
	} else if base.lvDirect != nil {
		structAddr = p.newTemp(base.lvDirect.Type, 1)
		p.emit(&ir.Insn{Op: ir.OpAddressOf, Dest: structAddr, Src0: base.lvDirect})
	} else if base.lvAddr != nil {
		structAddr = base.lvAddr
	} else {
		return exprResult{}, p.errorf("member access on a non-addressable value")
	}
	if structTy == nil {
		return exprResult{}, p.errorf("member access on an incomplete type")
	}
	field := structTy.FieldByName(name)
	if field == nil {
		return exprResult{}, p.errorf("%q has no member named %q", structTy.Name, name)
	}
	fieldTy := p.ctx.Sym.Types[field.TypeName]
	addr := structAddr
	if field.Offset != 0 {
		off := p.newTemp(p.ctx.Sym.Types["int"], 0)
		p.emit(&ir.Insn{Op: ir.OpLoadConstant, Dest: off, Const: int64(field.Offset)})
		addr = p.newTemp(fieldTy, 1)
		p.emit(&ir.Insn{Op: ir.OpAdd, Dest: addr, Src0: structAddr, Src1: off})
	}
	ptrDepth := 0
	if field.IsPtr {
		ptrDepth = 1
	}
	size := fieldSizeOf(fieldTy, ptrDepth, field.ArraySize)
	return exprResult{lvAddr: addr, size: size, ty: fieldTy, ptrDepth: ptrDepth}, nil
}

func (p *Parser) parseCallArgs(callee exprResult) (exprResult, error) {
	p.advance() // (
	var args []*ir.Var
	if !p.at(token.RParen) {
		for {
			a, err := p.parseAssignExpr()
			if err != nil {
				return exprResult{}, err
			}
			args = append(args, a)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return exprResult{}, err
	}
	// Arguments are pushed in reverse so the callee's prologue pops them in
	// declaration order (spec.md §4.5's push-liveness extension keys off
	// this convention).
	for i := len(args) - 1; i >= 0; i-- {
		p.emit(&ir.Insn{Op: ir.OpPush, Src0: args[i], Size: i + 1})
	}
	if callee.fn != nil {
		var result *ir.Var
		if callee.fn.RetVar != nil && callee.fn.RetVar.Type != nil && callee.fn.RetVar.Type.Kind != ir.KindVoid {
			result = p.newTemp(callee.fn.RetVar.Type, callee.fn.RetVar.PtrDepth)
		}
		p.emit(&ir.Insn{Op: ir.OpCall, Dest: result, Str: callee.fn.Name})
		return simpleResult(result), nil
	}
	fnPtr := p.valueOf(callee)
	result := p.newTemp(p.ctx.Sym.Types["int"], 0)
	p.emit(&ir.Insn{Op: ir.OpIndirect, Dest: result, Src0: fnPtr})
	return simpleResult(result), nil
}

// parsePrimaryExpr handles identifiers (variables and function designators),
// literals, and parenthesized sub-expressions.
func (p *Parser) parsePrimaryExpr() (exprResult, error) {
	t := p.peek()
	switch t.Kind {
	case token.IntLit, token.CharLit:
		p.advance()
		v := p.newTemp(p.ctx.Sym.Types["int"], 0)
		p.emit(&ir.Insn{Op: ir.OpLoadConstant, Dest: v, Const: t.IntVal})
		return simpleResult(v), nil
	case token.StringLit:
		p.advance()
		idx := p.ctx.Sym.InternString(t.Literal)
		v := p.newTemp(p.ctx.Sym.Types["char"], 1)
		v.StrIndex = idx
		p.emit(&ir.Insn{Op: ir.OpLoadDataAddress, Dest: v, Const: int64(idx)})
		return simpleResult(v), nil
	case token.LParen:
		p.advance()
		r, err := p.parseExprResult()
		if err != nil {
			return exprResult{}, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return exprResult{}, err
		}
		return r, nil
	case token.Ident:
		p.advance()
		if v := p.scope.Lookup(t.Literal); v != nil {
			return exprResult{lvDirect: v, ty: v.Type, ptrDepth: v.PtrDepth}, nil
		}
		if v, ok := p.ctx.Sym.LookupGlobal(t.Literal); ok {
			return exprResult{lvDirect: v, ty: v.Type, ptrDepth: v.PtrDepth}, nil
		}
		if fn, ok := p.ctx.Sym.Funcs[t.Literal]; ok {
			return exprResult{fn: fn}, nil
		}
		if v, ok := p.ctx.Sym.Constants[t.Literal]; ok {
			temp := p.newTemp(p.ctx.Sym.Types["int"], 0)
			p.emit(&ir.Insn{Op: ir.OpLoadConstant, Dest: temp, Const: v})
			return simpleResult(temp), nil
		}
		return exprResult{}, diag.Errorf(t.Loc, diag.Semantic, "unknown identifier %q", t.Literal)
	default:
		return exprResult{}, p.errorf("unexpected token %q in expression", t.Literal)
	}
}

// parseExprResult is parseExpr's exprResult-returning counterpart, used
// where a parenthesized sub-expression might itself be an lvalue (e.g.
// "(*p) = 1").
func (p *Parser) parseExprResult() (exprResult, error) {
	r, err := p.parseAssignExprResult()
	if err != nil {
		return exprResult{}, err
	}
	for p.match(token.Comma) {
		r, err = p.parseAssignExprResult()
		if err != nil {
			return exprResult{}, err
		}
	}
	return r, nil
}

func (p *Parser) parseAssignExprResult() (exprResult, error) {
	lhs, err := p.parseCondExprResult()
	if err != nil {
		return exprResult{}, err
	}
	if p.match(token.Assign) {
		rhs, err := p.parseAssignExpr()
		if err != nil {
			return exprResult{}, err
		}
		if err := p.store(lhs, rhs); err != nil {
			return exprResult{}, err
		}
		return simpleResult(rhs), nil
	}
	if op, ok := assignOps[p.peek().Kind]; ok {
		p.advance()
		rhs, err := p.parseAssignExpr()
		if err != nil {
			return exprResult{}, err
		}
		cur := p.valueOf(lhs)
		result := p.newTemp(lhs.ty, lhs.ptrDepth)
		p.emit(&ir.Insn{Op: op, Dest: result, Src0: cur, Src1: rhs})
		if err := p.store(lhs, result); err != nil {
			return exprResult{}, err
		}
		return simpleResult(result), nil
	}
	return lhs, nil
}
