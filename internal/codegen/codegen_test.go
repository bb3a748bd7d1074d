package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/liveness"
	"cc32.dev/cc32/internal/peephole"
	"cc32.dev/cc32/internal/regalloc"
	"cc32.dev/cc32/internal/ssa"
	"cc32.dev/cc32/internal/target"
)

// buildReturnConstant builds a single-block function that loads a constant
// into the return variable and returns, the smallest program that exercises
// load_constant, assign, and return across the whole emission pipeline.
func buildReturnConstant() *ir.Func {
	fn := ir.NewFunc("main")
	entry := fn.NewBasicBlock("main.entry", nil)
	exit := fn.NewBasicBlock("main.exit", nil)
	entry.ConnectNext(exit)
	fn.Entry = entry
	fn.Exit = exit

	fn.RetVar = &ir.Var{Name: "", Reg: -1}
	tmp := &ir.Var{Name: "", Reg: -1}
	fn.Emit(entry, &ir.Insn{Op: ir.OpLoadConstant, Dest: tmp, Const: 9})
	fn.Emit(entry, &ir.Insn{Op: ir.OpAssign, Dest: fn.RetVar, Src0: tmp})
	fn.Emit(exit, &ir.Insn{Op: ir.OpReturn, Dest: fn.RetVar})

	return fn
}

func allocateAndFlatten(t *testing.T, fn *ir.Func, tgt target.Target) []*ir.BasicBlock {
	t.Helper()
	rpo := ssa.ReversePostorder(fn)
	liveness.Compute(fn, rpo)
	res := regalloc.Allocate(fn, tgt)
	require.Empty(t, res.Spilled)
	return peephole.Flatten(fn, rpo)
}

func TestEmitFunctionARMProducesNonEmptyCode(t *testing.T) {
	fn := buildReturnConstant()
	order := allocateAndFlatten(t, fn, target.NewARM())

	out, err := EmitFunction(fn, target.NewARM(), order)
	require.NoError(t, err)
	assert.Equal(t, "main", out.Name)
	assert.NotEmpty(t, out.Code)
}

func TestEmitFunctionRISCVProducesNonEmptyCode(t *testing.T) {
	fn := buildReturnConstant()
	order := allocateAndFlatten(t, fn, target.NewRISCV32())

	out, err := EmitFunction(fn, target.NewRISCV32(), order)
	require.NoError(t, err)
	assert.Equal(t, "main", out.Name)
	assert.NotEmpty(t, out.Code)
}

func TestEmitFunctionRejectsTargetWithTooFewScratchRegisters(t *testing.T) {
	fn := buildReturnConstant()
	order := allocateAndFlatten(t, fn, target.NewARM())

	_, err := EmitFunction(fn, oneRegTarget{target.NewARM()}, order)
	assert.Error(t, err)
}

type oneRegTarget struct {
	*target.ARM
}

func (o oneRegTarget) Regs() target.RegSet {
	rs := o.ARM.Regs()
	rs.General = rs.General[:1]
	return rs
}
