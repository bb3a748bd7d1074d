package parser

import (
	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/token"
)

// parseDeclAfterType parses one or more comma-separated declarators sharing
// baseTy: "TYPE *a, b[4], c = 1;" or a single function declarator "TYPE
// f(...) { ... }". initFn is the implicit global-initializer function that
// global variable initializers are folded into (spec.md §4.3).
func (p *Parser) parseDeclAfterType(initFn *ir.Func, baseTy *ir.Type) error {
	for {
		ptrDepth := 0
		for p.match(token.Star) {
			ptrDepth++
		}
		name, err := p.expect(token.Ident)
		if err != nil {
			return err
		}
		resolvedTy, resolvedPtr := resolveDeclared(baseTy, ptrDepth)

		if p.at(token.LParen) {
			return p.parseFunctionDecl(name, resolvedTy, resolvedPtr)
		}

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

		if resolvedTy == nil {
			return diag.Errorf(name.Loc, diag.Semantic, "%q used before its type is complete", name.Literal)
		}

		v := p.ctx.NewVar(name.Literal)
		v.TypeName = resolvedTy.Name
		v.Type = resolvedTy
		v.PtrDepth = resolvedPtr
		v.ArraySize = arraySize
		p.ctx.Sym.AddGlobal(v)

		if p.match(token.Assign) {
			if err := p.foldGlobalInitializer(initFn, v); err != nil {
				return err
			}
		}

		if !p.match(token.Comma) {
			break
		}
	}
	_, err := p.expect(token.Semicolon)
	return err
}

// foldGlobalInitializer evaluates a global's initializer expression inside
// the implicit __global_init function, emitting an assign instruction that
// stores the computed value into dest. A later SSA constant-folding pass
// collapses purely-constant initializers to immediates (spec.md §4.4).
func (p *Parser) foldGlobalInitializer(initFn *ir.Func, dest *ir.Var) error {
	savedFn, savedScope, savedCur := p.fn, p.scope, p.cur
	p.fn, p.scope, p.cur = initFn, initFn.TopScope, initFn.Exit
	val, err := p.parseAssignExpr()
	p.fn, p.scope, p.cur = savedFn, savedScope, savedCur
	if err != nil {
		return err
	}
	initFn.Emit(initFn.Exit, &ir.Insn{Op: ir.OpAssign, Dest: dest, Src0: val})
	return nil
}

// parseFunctionDecl parses the parameter list and either a terminating ';'
// (a prototype/forward declaration) or a '{' block (a definition).
func (p *Parser) parseFunctionDecl(name *token.Token, retTy *ir.Type, retPtrDepth int) error {
	p.advance() // (
	var params []*ir.Var
	variadic := false
	if !p.at(token.RParen) {
		for {
			if p.at(token.Ellipsis) {
				p.advance()
				variadic = true
				break
			}
			pty, err := p.parseTypeSpecifier()
			if err != nil {
				return err
			}
			pptr := 0
			for p.match(token.Star) {
				pptr++
			}
			pname := ""
			if p.at(token.Ident) {
				pname = p.advance().Literal
			}
			resolvedTy, resolvedPtr := resolveDeclared(pty, pptr)
			if p.match(token.LBracket) {
				// Parameter arrays decay to pointers (spec.md §6).
				if !p.at(token.RBracket) {
					if _, err := p.parseArrayBound(); err != nil {
						return err
					}
				}
				if _, err := p.expect(token.RBracket); err != nil {
					return err
				}
				resolvedPtr++
			}
			pv := p.ctx.NewVar(pname)
			pv.TypeName = resolvedTy.Name
			pv.Type = resolvedTy
			pv.PtrDepth = resolvedPtr
			params = append(params, pv)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}

	existing, redeclared := p.ctx.Sym.Funcs[name.Literal]

	if p.match(token.Semicolon) {
		if !redeclared {
			f := p.ctx.NewFunc(name.Literal)
			f.RetVar = p.ctx.NewVar("")
			f.RetVar.TypeName = retTy.Name
			f.RetVar.Type = retTy
			f.RetVar.PtrDepth = retPtrDepth
			f.Params = params
			f.Variadic = variadic
			p.ctx.Sym.Funcs[name.Literal] = f
		}
		return nil
	}

	if !p.at(token.LBrace) {
		return p.errorf("expected function body or ';'")
	}

	var fn *ir.Func
	if redeclared && existing.Entry == nil {
		fn = existing
		fn.Params = params
	} else if !redeclared {
		fn = p.ctx.NewFunc(name.Literal)
		fn.RetVar = p.ctx.NewVar("")
		fn.RetVar.TypeName = retTy.Name
		fn.RetVar.Type = retTy
		fn.RetVar.PtrDepth = retPtrDepth
		fn.Params = params
		fn.Variadic = variadic
		p.ctx.Sym.Funcs[name.Literal] = fn
	} else {
		return diag.Errorf(name.Loc, diag.Semantic, "redefinition of function %q", name.Literal)
	}

	fn.TopScope = p.ctx.NewScope(nil, fn)
	for _, pv := range fn.Params {
		fn.TopScope.AddLocal(pv)
	}
	fn.Entry = p.ctx.NewBasicBlock(name.Literal+".entry", fn, fn.TopScope)
	fn.Exit = p.ctx.NewBasicBlock(name.Literal+".exit", fn, fn.TopScope)
	fn.Exit.Insns.PushBack(&ir.Insn{Op: ir.OpReturn, Dest: fn.RetVar})

	savedFn, savedScope, savedCur, savedLoops, savedLabels, savedGotos, savedFwd :=
		p.fn, p.scope, p.cur, p.loops, p.labels, p.gotos, p.forwardGotoEdges
	p.fn, p.scope, p.cur = fn, fn.TopScope, fn.Entry
	p.loops = nil
	p.labels = make(map[string]*ir.BasicBlock)
	p.gotos = nil
	p.forwardGotoEdges = nil

	if err := p.parseBlockStmt(); err != nil {
		return err
	}
	if p.cur != nil {
		p.cur.ConnectNext(fn.Exit)
	}
	if err := p.resolveGotos(); err != nil {
		return err
	}

	p.fn, p.scope, p.cur, p.loops, p.labels, p.gotos, p.forwardGotoEdges =
		savedFn, savedScope, savedCur, savedLoops, savedLabels, savedGotos, savedFwd
	return nil
}

func (p *Parser) resolveGotos() error {
	for _, g := range p.gotos {
		target, ok := p.labels[g.name]
		if !ok {
			return diag.Errorf(g.loc, diag.Parse, "undefined label %q", g.name)
		}
		g.insn.Str = target.Label
	}
	return nil
}

// emit appends ins to the function's first-phase IR and the current block.
func (p *Parser) emit(ins *ir.Insn) {
	p.fn.Emit(p.cur, ins)
}

func (p *Parser) newTemp(ty *ir.Type, ptrDepth int) *ir.Var {
	v := p.ctx.NewVar("")
	v.Type = ty
	if ty != nil {
		v.TypeName = ty.Name
	}
	v.PtrDepth = ptrDepth
	return v
}
