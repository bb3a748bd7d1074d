package ssa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc32.dev/cc32/internal/ir"
)

// buildDiamond builds entry -(THEN)-> then -> merge, entry -(ELSE)-> els ->
// merge, with x assigned a different constant on each side and read back
// in merge — the canonical case that needs exactly one phi.
func buildDiamond(ctx *ir.Context) (*ir.Func, *ir.Var) {
	fn := ctx.NewFunc("f")
	entry := ctx.NewBasicBlock("entry", fn, nil)
	thenB := ctx.NewBasicBlock("then", fn, nil)
	elseB := ctx.NewBasicBlock("else", fn, nil)
	merge := ctx.NewBasicBlock("merge", fn, nil)
	fn.Entry = entry

	entry.ConnectBranch(thenB, elseB)
	thenB.ConnectNext(merge)
	elseB.ConnectNext(merge)

	x := ctx.NewVar("x")
	fn.Emit(thenB, &ir.Insn{Op: ir.OpLoadConstant, Dest: x, Const: 1})
	fn.Emit(elseB, &ir.Insn{Op: ir.OpLoadConstant, Dest: x, Const: 2})

	result := ctx.NewVar("r")
	fn.Emit(merge, &ir.Insn{Op: ir.OpAssign, Dest: result, Src0: x})

	return fn, x
}

func TestReversePostorderPrunesUnreachable(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Release()
	fn := ctx.NewFunc("f")
	entry := ctx.NewBasicBlock("entry", fn, nil)
	dead := ctx.NewBasicBlock("dead", fn, nil)
	fn.Entry = entry
	_ = dead // never connected, must not appear in the result

	rpo := ReversePostorder(fn)
	require.Len(t, rpo, 1)
	assert.Equal(t, entry, rpo[0])
	assert.False(t, dead.Reachable)
}

func TestDominatorTreeAndFrontierOnDiamond(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Release()
	fn, _ := buildDiamond(ctx)
	rpo := ReversePostorder(fn)
	BuildDominatorTree(fn, rpo)

	entry, thenB, elseB, merge := fn.Blocks[0], fn.Blocks[1], fn.Blocks[2], fn.Blocks[3]

	assert.True(t, Dominates(entry, merge))
	assert.False(t, Dominates(thenB, merge), "then alone must not dominate merge, else also reaches it")
	assert.Equal(t, entry, merge.Idom)
	assert.Contains(t, thenB.DomFrontier, merge)
	assert.Contains(t, elseB.DomFrontier, merge)
}

func TestConstructInsertsPhiAtMerge(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Release()
	fn, _ := buildDiamond(ctx)

	Construct(ctx, fn)

	merge := fn.Blocks[3]
	require.NotNil(t, merge.Insns.Head)
	assert.Equal(t, ir.OpPhi, merge.Insns.Head.Op, "merge must start with the inserted phi")
	phi := merge.Insns.Head
	require.NotNil(t, phi.Src0)
	require.NotNil(t, phi.Src1)
	assert.NotEqual(t, phi.Src0, phi.Src1, "phi's two operands must be the distinct then/else SSA definitions")
}

func TestOptimizeFoldsConstantArithmetic(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Release()
	fn := ctx.NewFunc("f")
	entry := ctx.NewBasicBlock("entry", fn, nil)
	fn.Entry = entry

	a := ctx.NewVar("a")
	b := ctx.NewVar("b")
	sum := ctx.NewVar("sum")
	fn.Emit(entry, &ir.Insn{Op: ir.OpLoadConstant, Dest: a, Const: 3})
	fn.Emit(entry, &ir.Insn{Op: ir.OpLoadConstant, Dest: b, Const: 4})
	addIns := &ir.Insn{Op: ir.OpAdd, Dest: sum, Src0: a, Src1: b}
	fn.Emit(entry, addIns)

	rpo := ReversePostorder(fn)
	Optimize(fn, rpo)

	assert.Equal(t, ir.OpLoadConstant, addIns.Op)
	assert.EqualValues(t, 7, addIns.Const)
}

func TestOptimizeEliminatesDeadStore(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Release()
	fn := ctx.NewFunc("f")
	entry := ctx.NewBasicBlock("entry", fn, nil)
	fn.Entry = entry

	dead := ctx.NewVar("dead")
	fn.Emit(entry, &ir.Insn{Op: ir.OpLoadConstant, Dest: dead, Const: 42})

	rpo := ReversePostorder(fn)
	Optimize(fn, rpo)

	assert.Equal(t, 0, entry.Insns.Len(), "a load with no consumer must be deleted as dead code")
}
