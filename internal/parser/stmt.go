package parser

import (
	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/token"
)

// newDeadBlock starts a fresh, predecessor-less block after an
// unconditional transfer (return/break/continue/goto), so later statement
// parsers always have a non-nil p.cur to append to. It is naturally
// unreachable and later passes discard it (spec.md invariant 1).
func (p *Parser) newDeadBlock() *ir.BasicBlock {
	return p.ctx.NewBasicBlock(p.fn.Name+".dead", p.fn, p.scope)
}

// parseStmt dispatches on the next token per spec.md §4.3's statement grammar.
func (p *Parser) parseStmt() error {
	switch {
	case p.at(token.LBrace):
		return p.parseBlockStmt()
	case p.at(token.Semicolon):
		p.advance() // null statement
		return nil
	case p.atKeyword("if"):
		return p.parseIfStmt()
	case p.atKeyword("while"):
		return p.parseWhileStmt()
	case p.atKeyword("do"):
		return p.parseDoWhileStmt()
	case p.atKeyword("for"):
		return p.parseForStmt()
	case p.atKeyword("switch"):
		return p.parseSwitchStmt()
	case p.atKeyword("break"):
		return p.parseBreakStmt()
	case p.atKeyword("continue"):
		return p.parseContinueStmt()
	case p.atKeyword("return"):
		return p.parseReturnStmt()
	case p.atKeyword("goto"):
		return p.parseGotoStmt()
	case p.atKeyword("typedef"):
		return p.parseTypedef()
	case p.isLocalDeclStart():
		return p.parseLocalDecl()
	case p.at(token.Ident) && p.peekN(1).Kind == token.Colon:
		return p.parseLabelStmt()
	default:
		if _, err := p.parseExpr(); err != nil {
			return err
		}
		_, err := p.expect(token.Semicolon)
		return err
	}
}

func (p *Parser) isLocalDeclStart() bool {
	if p.atKeyword("struct") || p.atKeyword("union") || p.atKeyword("enum") ||
		p.atKeyword("void") || p.atKeyword("char") || p.atKeyword("int") || p.atKeyword("const") {
		return true
	}
	if p.at(token.Ident) {
		ty, ok := p.ctx.Sym.Types[p.peek().Literal]
		return ok && ty.Kind == ir.KindTypedef
	}
	return false
}

func (p *Parser) parseBlockStmt() error {
	if _, err := p.expect(token.LBrace); err != nil {
		return err
	}
	savedScope := p.scope
	p.scope = p.ctx.NewScope(savedScope, p.fn)
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if err := p.parseStmt(); err != nil {
			return err
		}
	}
	p.scope = savedScope
	_, err := p.expect(token.RBrace)
	return err
}

func (p *Parser) parseLocalDecl() error {
	ty, err := p.parseTypeSpecifier()
	if err != nil {
		return err
	}
	for {
		ptrDepth := 0
		for p.match(token.Star) {
			ptrDepth++
		}
		name, err := p.expect(token.Ident)
		if err != nil {
			return err
		}
		resolvedTy, resolvedPtr := resolveDeclared(ty, ptrDepth)
		arraySize := 0
		if p.match(token.LBracket) {
			n, err := p.parseArrayBound()
			if err != nil {
				return err
			}
			arraySize = n
			if _, err := p.expect(token.RBracket); err != nil {
				return err
			}
		}
		v := p.ctx.NewVar(name.Literal)
		v.TypeName = resolvedTy.Name
		v.Type = resolvedTy
		v.PtrDepth = resolvedPtr
		v.ArraySize = arraySize
		if !p.scope.AddLocal(v) {
			return diag.Errorf(name.Loc, diag.Semantic, "too many locals in scope")
		}
		if arraySize > 0 {
			p.emit(&ir.Insn{Op: ir.OpAllocat, Dest: v, Size: v.Size()})
		}
		if p.match(token.Assign) {
			val, err := p.parseAssignExpr()
			if err != nil {
				return err
			}
			p.emit(&ir.Insn{Op: ir.OpAssign, Dest: v, Src0: val})
		}
		if !p.match(token.Comma) {
			break
		}
	}
	_, err = p.expect(token.Semicolon)
	return err
}

func (p *Parser) parseIfStmt() error {
	p.advance() // if
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	condBlock := p.cur
	thenBlock := p.ctx.NewBasicBlock(p.fn.Name+".if.then", p.fn, p.scope)
	merge := p.ctx.NewBasicBlock(p.fn.Name+".if.end", p.fn, p.scope)

	hasElse := p.atKeyword("else")
	var elseBlock *ir.BasicBlock
	if hasElse {
		elseBlock = p.ctx.NewBasicBlock(p.fn.Name+".if.else", p.fn, p.scope)
	} else {
		elseBlock = merge
	}
	p.emit(&ir.Insn{Op: ir.OpBranch, Src0: cond, ThenLabel: thenBlock.Label, ElseLabel: elseBlock.Label})
	condBlock.ConnectBranch(thenBlock, elseBlock)

	p.cur = thenBlock
	if err := p.parseStmt(); err != nil {
		return err
	}
	if p.cur != nil {
		p.cur.ConnectNext(merge)
	}

	if hasElse {
		p.advance() // else
		p.cur = elseBlock
		if err := p.parseStmt(); err != nil {
			return err
		}
		if p.cur != nil {
			p.cur.ConnectNext(merge)
		}
	}
	p.cur = merge
	return nil
}

func (p *Parser) parseWhileStmt() error {
	p.advance() // while
	header := p.ctx.NewBasicBlock(p.fn.Name+".while.cond", p.fn, p.scope)
	p.cur.ConnectNext(header)
	p.cur = header

	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	body := p.ctx.NewBasicBlock(p.fn.Name+".while.body", p.fn, p.scope)
	after := p.ctx.NewBasicBlock(p.fn.Name+".while.end", p.fn, p.scope)
	p.emit(&ir.Insn{Op: ir.OpBranch, Src0: cond, ThenLabel: body.Label, ElseLabel: after.Label})
	header.ConnectBranch(body, after)

	p.loops = append(p.loops, loopCtx{breakTarget: after, continueTarget: header})
	p.cur = body
	if err := p.parseStmt(); err != nil {
		return err
	}
	if p.cur != nil {
		p.cur.ConnectNext(header)
	}
	p.loops = p.loops[:len(p.loops)-1]
	p.cur = after
	return nil
}

func (p *Parser) parseDoWhileStmt() error {
	p.advance() // do
	body := p.ctx.NewBasicBlock(p.fn.Name+".do.body", p.fn, p.scope)
	condBlk := p.ctx.NewBasicBlock(p.fn.Name+".do.cond", p.fn, p.scope)
	after := p.ctx.NewBasicBlock(p.fn.Name+".do.end", p.fn, p.scope)

	p.cur.ConnectNext(body)
	p.loops = append(p.loops, loopCtx{breakTarget: after, continueTarget: condBlk})
	p.cur = body
	if err := p.parseStmt(); err != nil {
		return err
	}
	if p.cur != nil {
		p.cur.ConnectNext(condBlk)
	}
	p.loops = p.loops[:len(p.loops)-1]

	if !p.atKeyword("while") {
		return p.errorf("expected 'while' after do-block")
	}
	p.advance()
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	p.cur = condBlk
	cond, err := p.parseExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return err
	}
	p.emit(&ir.Insn{Op: ir.OpBranch, Src0: cond, ThenLabel: body.Label, ElseLabel: after.Label})
	condBlk.ConnectBranch(body, after)
	p.cur = after
	return nil
}

func (p *Parser) parseForStmt() error {
	p.advance() // for
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	savedScope := p.scope
	p.scope = p.ctx.NewScope(savedScope, p.fn)

	if !p.at(token.Semicolon) {
		if p.isLocalDeclStart() {
			if err := p.parseLocalDecl(); err != nil {
				return err
			}
		} else {
			if _, err := p.parseExpr(); err != nil {
				return err
			}
			if _, err := p.expect(token.Semicolon); err != nil {
				return err
			}
		}
	} else {
		p.advance()
	}

	header := p.ctx.NewBasicBlock(p.fn.Name+".for.cond", p.fn, p.scope)
	p.cur.ConnectNext(header)
	p.cur = header

	body := p.ctx.NewBasicBlock(p.fn.Name+".for.body", p.fn, p.scope)
	post := p.ctx.NewBasicBlock(p.fn.Name+".for.post", p.fn, p.scope)
	after := p.ctx.NewBasicBlock(p.fn.Name+".for.end", p.fn, p.scope)

	if !p.at(token.Semicolon) {
		cond, err := p.parseExpr()
		if err != nil {
			return err
		}
		p.emit(&ir.Insn{Op: ir.OpBranch, Src0: cond, ThenLabel: body.Label, ElseLabel: after.Label})
		header.ConnectBranch(body, after)
	} else {
		header.ConnectNext(body)
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return err
	}

	// The post-expression's tokens come before the body in C's grammar but
	// must run after the body executes; stash its token range and parse it
	// a second time positioned inside the post block.
	hasPost := !p.at(token.RParen)
	postStart := p.pos
	if hasPost {
		if err := p.skipExpr(); err != nil {
			return err
		}
	}
	postEnd := p.pos
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}

	p.loops = append(p.loops, loopCtx{breakTarget: after, continueTarget: post})
	p.cur = body
	if err := p.parseStmt(); err != nil {
		return err
	}
	if p.cur != nil {
		p.cur.ConnectNext(post)
	}
	p.loops = p.loops[:len(p.loops)-1]

	if hasPost {
		resume := p.pos
		p.pos = postStart
		p.cur = post
		if _, err := p.parseExpr(); err != nil {
			return err
		}
		if p.pos != postEnd {
			return p.errorf("internal: for-loop post-expression reparse mismatch")
		}
		p.pos = resume
	}
	post.ConnectNext(header)

	p.scope = savedScope
	p.cur = after
	return nil
}

// skipExpr advances past one expression without emitting IR, used by
// parseForStmt to keep the post-expression's raw tokens reparsable once the
// loop body's blocks exist.
func (p *Parser) skipExpr() error {
	depth := 0
	for {
		t := p.peek()
		if depth == 0 && (t.Kind == token.RParen || t.Kind == token.EOF) {
			return nil
		}
		if t.Kind == token.LParen || t.Kind == token.LBracket {
			depth++
		}
		if t.Kind == token.RParen || t.Kind == token.RBracket {
			if depth == 0 {
				return nil
			}
			depth--
		}
		p.advance()
	}
}

type switchCase struct {
	isDefault bool
	value     int64
	block     *ir.BasicBlock
}

func (p *Parser) parseSwitchStmt() error {
	p.advance() // switch
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	val, err := p.parseExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return err
	}

	dispatchEntry := p.ctx.NewBasicBlock(p.fn.Name+".switch.dispatch", p.fn, p.scope)
	p.cur.ConnectNext(dispatchEntry)
	after := p.ctx.NewBasicBlock(p.fn.Name+".switch.end", p.fn, p.scope)

	var cases []switchCase
	p.loops = append(p.loops, loopCtx{breakTarget: after, isSwitch: true})
	p.cur = nil // nothing before the first case label is reachable

	for !p.at(token.RBrace) && !p.at(token.EOF) {
		switch {
		case p.atKeyword("case"):
			p.advance()
			cv, err := p.parseConstExpr()
			if err != nil {
				return err
			}
			if _, err := p.expect(token.Colon); err != nil {
				return err
			}
			blk := p.ctx.NewBasicBlock(p.fn.Name+".switch.case", p.fn, p.scope)
			if p.cur != nil {
				p.cur.ConnectNext(blk)
			}
			p.cur = blk
			cases = append(cases, switchCase{value: cv, block: blk})
		case p.atKeyword("default"):
			p.advance()
			if _, err := p.expect(token.Colon); err != nil {
				return err
			}
			blk := p.ctx.NewBasicBlock(p.fn.Name+".switch.default", p.fn, p.scope)
			if p.cur != nil {
				p.cur.ConnectNext(blk)
			}
			p.cur = blk
			cases = append(cases, switchCase{isDefault: true, block: blk})
		default:
			if p.cur == nil {
				return p.errorf("statement outside of any case label")
			}
			if err := p.parseStmt(); err != nil {
				return err
			}
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return err
	}
	if p.cur != nil {
		p.cur.ConnectNext(after)
	}
	p.loops = p.loops[:len(p.loops)-1]

	p.buildSwitchDispatch(dispatchEntry, val, cases, after)
	p.cur = after
	return nil
}

// buildSwitchDispatch emits a linear compare-and-branch chain testing val
// against each case constant in encounter order, falling through to
// default's block (or after, if no default) when nothing matches. A linear
// chain is a correct, simple dispatch strategy; spec.md does not mandate a
// jump table.
func (p *Parser) buildSwitchDispatch(entry *ir.BasicBlock, val *ir.Var, cases []switchCase, after *ir.BasicBlock) {
	fallback := after
	for _, c := range cases {
		if c.isDefault {
			fallback = c.block
			break
		}
	}
	cur := entry
	nonDefault := make([]switchCase, 0, len(cases))
	for _, c := range cases {
		if !c.isDefault {
			nonDefault = append(nonDefault, c)
		}
	}
	for i, c := range nonDefault {
		cmp := p.newTemp(p.ctx.Sym.Types["int"], 0)
		lit := p.newTemp(p.ctx.Sym.Types["int"], 0)
		p.fn.Emit(cur, &ir.Insn{Op: ir.OpLoadConstant, Dest: lit, Const: c.value})
		p.fn.Emit(cur, &ir.Insn{Op: ir.OpEq, Dest: cmp, Src0: val, Src1: lit})
		var next *ir.BasicBlock
		elseTarget := fallback
		if i < len(nonDefault)-1 {
			next = p.ctx.NewBasicBlock(p.fn.Name+".switch.test", p.fn, p.scope)
			elseTarget = next
		}
		p.fn.Emit(cur, &ir.Insn{Op: ir.OpBranch, Src0: cmp, ThenLabel: c.block.Label, ElseLabel: elseTarget.Label})
		cur.ConnectBranch(c.block, elseTarget)
		if next != nil {
			cur = next
		}
	}
	if len(nonDefault) == 0 {
		cur.ConnectNext(fallback)
	}
}

func (p *Parser) parseBreakStmt() error {
	loc := p.peek().Loc
	p.advance()
	if _, err := p.expect(token.Semicolon); err != nil {
		return err
	}
	if len(p.loops) == 0 {
		return diag.Errorf(loc, diag.Semantic, "'break' outside of loop or switch")
	}
	target := p.loops[len(p.loops)-1].breakTarget
	p.emit(&ir.Insn{Op: ir.OpJump, Str: target.Label})
	p.cur.ConnectNext(target)
	p.cur = p.newDeadBlock()
	return nil
}

func (p *Parser) parseContinueStmt() error {
	loc := p.peek().Loc
	p.advance()
	if _, err := p.expect(token.Semicolon); err != nil {
		return err
	}
	var target *ir.BasicBlock
	for i := len(p.loops) - 1; i >= 0; i-- {
		if !p.loops[i].isSwitch {
			target = p.loops[i].continueTarget
			break
		}
	}
	if target == nil {
		return diag.Errorf(loc, diag.Semantic, "'continue' outside of loop")
	}
	p.emit(&ir.Insn{Op: ir.OpJump, Str: target.Label})
	p.cur.ConnectNext(target)
	p.cur = p.newDeadBlock()
	return nil
}

func (p *Parser) parseReturnStmt() error {
	p.advance() // return
	if !p.at(token.Semicolon) {
		val, err := p.parseExpr()
		if err != nil {
			return err
		}
		p.emit(&ir.Insn{Op: ir.OpAssign, Dest: p.fn.RetVar, Src0: val})
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return err
	}
	p.emit(&ir.Insn{Op: ir.OpJump, Str: p.fn.Exit.Label})
	p.cur.ConnectNext(p.fn.Exit)
	p.cur = p.newDeadBlock()
	return nil
}

func (p *Parser) parseGotoStmt() error {
	p.advance() // goto
	name, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return err
	}
	ins := &ir.Insn{Op: ir.OpJump}
	p.emit(ins)
	if target, ok := p.labels[name.Literal]; ok {
		ins.Str = target.Label
		p.cur.ConnectNext(target)
	} else {
		p.gotos = append(p.gotos, pendingGoto{insn: ins, loc: name.Loc, name: name.Literal})
		// The target block doesn't exist yet; connect once seen via
		// resolveGotos patching the forward edge in too.
		p.forwardGotoEdges = append(p.forwardGotoEdges, forwardGoto{from: p.cur, name: name.Literal})
	}
	p.cur = p.newDeadBlock()
	return nil
}

func (p *Parser) parseLabelStmt() error {
	name := p.advance()
	p.advance() // :
	blk := p.ctx.NewBasicBlock(name.Literal, p.fn, p.scope)
	if p.cur != nil {
		p.cur.ConnectNext(blk)
	}
	p.labels[name.Literal] = blk
	for i, fg := range p.forwardGotoEdges {
		if fg.name == name.Literal {
			fg.from.ConnectNext(blk)
			p.forwardGotoEdges[i].name = "" // consumed
		}
	}
	p.cur = blk
	return p.parseStmt()
}
