package ir

import "cc32.dev/cc32/internal/arena"

// Context is the compiler instance spec.md §5 requires state be threaded
// through rather than kept in package-level globals, so repeated
// in-process compilations never leak state across runs. It owns the four
// arenas spec.md §3 names (general/tokens/basic-blocks/per-function IR;
// the token arena lives in internal/lexer, one per file) and the global
// symbol tables.
type Context struct {
	Vars   *arena.Arena[Var]
	Insns  *arena.Arena[Insn]
	Blocks *arena.Arena[BasicBlock]
	Scopes *arena.Arena[Block]
	Funcs  *arena.Arena[Func]

	Sym *SymbolTable
}

func NewContext() *Context {
	c := &Context{
		Vars:   arena.New[Var](),
		Insns:  arena.New[Insn](),
		Blocks: arena.New[BasicBlock](),
		Scopes: arena.New[Block](),
		Funcs:  arena.New[Func](),
		Sym:    NewSymbolTable(),
	}
	c.Sym.InstallBuiltinTypes()
	return c
}

// Release drops every arena's backing storage (spec.md §5: "Arenas are
// released at program exit").
func (c *Context) Release() {
	c.Vars.Release()
	c.Insns.Release()
	c.Blocks.Release()
	c.Scopes.Release()
	c.Funcs.Release()
}

func (c *Context) NewVar(name string) *Var {
	v := c.Vars.Alloc()
	v.Name = name
	v.Reg = -1
	v.StrIndex = -1
	return v
}

func (c *Context) NewInsn(op Opcode) *Insn {
	ins := c.Insns.Alloc()
	ins.Op = op
	return ins
}

func (c *Context) NewScope(parent *Block, fn *Func) *Block {
	b := c.Scopes.Alloc()
	b.Parent = parent
	b.Func = fn
	return b
}

func (c *Context) NewBasicBlock(label string, fn *Func, scope *Block) *BasicBlock {
	bb := c.Blocks.Alloc()
	bb.Label = label
	bb.Func = fn
	bb.Scope = scope
	bb.Def = make(map[*Var]bool)
	bb.Use = make(map[*Var]bool)
	if fn != nil {
		fn.Blocks = append(fn.Blocks, bb)
	}
	return bb
}

func (c *Context) NewFunc(name string) *Func {
	f := c.Funcs.Alloc()
	f.Name = name
	return f
}
