// Package parser implements spec.md §4.3: a single-pass, recursive-descent
// parser that builds the declaration tables, the linear first-phase IR, and
// the authoritative CFG simultaneously — there is no separate AST. This
// mirrors the teacher's own parser, which walks a flat token slice with a
// cursor and emits its result structure directly from each grammar rule
// rather than building an intermediate tree first.
package parser

import (
	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/source"
	"cc32.dev/cc32/internal/token"
)

// loopCtx carries the break/continue targets for the innermost enclosing
// loop or switch (spec.md §4.3: "break/continue target stacks carrying both
// label and CFG block").
type loopCtx struct {
	breakTarget    *ir.BasicBlock
	continueTarget *ir.BasicBlock
	isSwitch       bool
}

// pendingGoto remembers a goto seen before its label was defined, so it can
// be wired once the label's block exists.
type pendingGoto struct {
	insn *ir.Insn
	loc  source.Loc
	name string
}

// forwardGoto pairs a goto's source block with the label name it targets,
// resolved to a CFG edge the moment that label's block is created.
type forwardGoto struct {
	from *ir.BasicBlock
	name string
}

// Parser holds all per-compilation parsing state. It is constructed fresh
// for each translation unit and threads everything through ctx rather than
// package-level globals (spec.md §9).
type Parser struct {
	ctx *ir.Context

	toks []*token.Token
	pos  int

	fn      *ir.Func
	scope   *ir.Block
	cur     *ir.BasicBlock // the basic block new instructions append to
	loops   []loopCtx
	labels  map[string]*ir.BasicBlock
	gotos   []pendingGoto
	forwardGotoEdges []forwardGoto

	// forward records a tag name ("struct foo") seen but not yet completed;
	// completing the tag removes its entry. Nothing reads it to diagnose a
	// use of the tag before completion.
	forward map[string]bool
}

// New constructs a Parser over head's token stream (typically the output of
// a cpp.Preprocessor), sharing ctx's arenas and symbol table.
func New(ctx *ir.Context, head *token.Token) *Parser {
	var toks []*token.Token
	for t := head; t != nil; t = t.Next {
		toks = append(toks, t)
		if t.Kind == token.EOF {
			break
		}
	}
	return &Parser{ctx: ctx, toks: toks, forward: make(map[string]bool)}
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[p.pos]
}

func (p *Parser) peekN(n int) *token.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) advance() *token.Token {
	t := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.peek().Kind == k }

func (p *Parser) atKeyword(lit string) bool {
	t := p.peek()
	return t.Kind == token.Keyword && t.Literal == lit
}

func (p *Parser) match(k token.Kind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k token.Kind) (*token.Token, error) {
	if !p.at(k) {
		return nil, diag.Errorf(p.peek().Loc, diag.Parse, "expected %v, got %q", k, p.peek().Literal)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return diag.Errorf(p.peek().Loc, diag.Parse, format, args...)
}

// ParseProgram consumes the whole token stream, populating ctx's symbol
// table and building every function's IR/CFG. It returns the compiler's
// implicit global-initializer function (spec.md §4.3), which runs all
// folded global initializers before main.
func (p *Parser) ParseProgram() (*ir.Func, error) {
	initFn := p.ctx.NewFunc("__global_init")
	initFn.Builtin = true
	initFn.TopScope = p.ctx.NewScope(nil, initFn)
	initFn.Entry = p.ctx.NewBasicBlock("__global_init.entry", initFn, initFn.TopScope)
	initFn.Exit = initFn.Entry

	p.registerSyscallBuiltin()

	for !p.at(token.EOF) {
		if err := p.parseTopLevel(initFn); err != nil {
			return nil, err
		}
	}
	initFn.Exit.Insns.PushBack(&ir.Insn{Op: ir.OpReturn})
	return initFn, nil
}

// registerSyscallBuiltin installs the variadic `__syscall` builtin spec.md
// §6 requires as a forward-declared, compiler-known function: callers may
// invoke it with any number of arguments beyond the syscall number.
func (p *Parser) registerSyscallBuiltin() {
	f := p.ctx.NewFunc("__syscall")
	f.Builtin = true
	f.Variadic = true
	f.RetVar = p.ctx.NewVar("")
	f.RetVar.TypeName = "int"
	f.RetVar.Type = p.ctx.Sym.Types["int"]
	p.ctx.Sym.Funcs["__syscall"] = f
}

func (p *Parser) parseTopLevel(initFn *ir.Func) error {
	if p.atKeyword("typedef") {
		return p.parseTypedef()
	}
	ty, err := p.parseTypeSpecifier()
	if err != nil {
		return err
	}
	if p.match(token.Semicolon) {
		// A type-only declaration, e.g. "struct point { int x, y; };".
		return nil
	}
	return p.parseDeclAfterType(initFn, ty)
}
