package riscv

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

func TestEmitLowersReturnConstantFunction(t *testing.T) {
	fn := ir.NewFunc("main")
	entry := fn.NewBasicBlock("main.entry", nil)
	exit := fn.NewBasicBlock("main.exit", nil)
	entry.ConnectNext(exit)
	fn.Entry = entry
	fn.Exit = exit

	fn.RetVar = &ir.Var{Reg: -1}
	tmp := &ir.Var{Reg: -1}
	fn.Emit(entry, &ir.Insn{Op: ir.OpLoadConstant, Dest: tmp, Const: 5})
	fn.Emit(entry, &ir.Insn{Op: ir.OpAssign, Dest: fn.RetVar, Src0: tmp})
	fn.Emit(exit, &ir.Insn{Op: ir.OpReturn, Dest: fn.RetVar})

	rpo := ssa.ReversePostorder(fn)
	liveness.Compute(fn, rpo)
	res := regalloc.Allocate(fn, target.NewRISCV32())
	require.Empty(t, res.Spilled)
	order := peephole.Flatten(fn, rpo)

	out, err := Emit(fn, order)
	require.NoError(t, err)
	assert.Equal(t, "main", out.Name)
	assert.NotEmpty(t, out.Code)
}
