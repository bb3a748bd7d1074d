package peephole

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc32.dev/cc32/internal/ir"
)

func TestSelfAssignRemoved(t *testing.T) {
	fn := ir.NewFunc("f")
	b := fn.NewBasicBlock("entry", nil)
	x := &ir.Var{Name: "x"}
	self := &ir.Insn{Op: ir.OpAssign, Dest: x, Src0: x}
	fn.Emit(b, self)
	other := &ir.Insn{Op: ir.OpLoadConstant, Dest: &ir.Var{Name: "y"}, Const: 1}
	fn.Emit(b, other)

	rewriteLocal([]*ir.BasicBlock{b})

	assert.Equal(t, 1, b.Insns.Len())
	assert.Equal(t, other, b.Insns.Head)
}

func TestRedundantReadAfterWriteRemoved(t *testing.T) {
	fn := ir.NewFunc("f")
	b := fn.NewBasicBlock("entry", nil)
	addr := &ir.Var{Name: "p"}
	val := &ir.Var{Name: "v"}
	dest := &ir.Var{Name: "d"}

	write := &ir.Insn{Op: ir.OpWrite, Dest: addr, Src0: val, Size: 4}
	read := &ir.Insn{Op: ir.OpRead, Dest: dest, Src0: addr, Size: 4}
	fn.Emit(b, write)
	fn.Emit(b, read)

	rewriteLocal([]*ir.BasicBlock{b})

	require.Equal(t, 1, b.Insns.Len())
	assert.Equal(t, write, b.Insns.Head)
}

func TestDoubleNegateCollapsed(t *testing.T) {
	fn := ir.NewFunc("f")
	b := fn.NewBasicBlock("entry", nil)
	orig := &ir.Var{Name: "x"}
	mid := &ir.Var{Name: "t0"}
	final := &ir.Var{Name: "t1"}

	neg1 := &ir.Insn{Op: ir.OpNegate, Dest: mid, Src0: orig}
	neg2 := &ir.Insn{Op: ir.OpNegate, Dest: final, Src0: mid}
	fn.Emit(b, neg1)
	fn.Emit(b, neg2)

	for rewriteLocal([]*ir.BasicBlock{b}) {
	}

	require.Equal(t, 2, b.Insns.Len())
	assert.Equal(t, ir.OpAssign, b.Insns.Tail.Op)
	assert.Equal(t, orig, b.Insns.Tail.Src0)
}

// buildDiamond builds entry -(THEN)-> then -> merge, entry -(ELSE)-> els ->
// merge, exercising Flatten's Then-before-Else-before-Next preference.
func buildDiamond() (*ir.Func, []*ir.BasicBlock) {
	fn := ir.NewFunc("f")
	entry := fn.NewBasicBlock("entry", nil)
	thenB := fn.NewBasicBlock("then", nil)
	elseB := fn.NewBasicBlock("else", nil)
	merge := fn.NewBasicBlock("merge", nil)

	entry.ConnectBranch(thenB, elseB)
	thenB.ConnectNext(merge)
	elseB.ConnectNext(merge)

	return fn, []*ir.BasicBlock{entry, thenB, elseB, merge}
}

func TestFlattenPrefersThenBeforeElse(t *testing.T) {
	fn, rpo := buildDiamond()
	order := Flatten(fn, rpo)
	require.Len(t, order, 4)
	assert.Equal(t, rpo[0], order[0]) // entry
	assert.Equal(t, rpo[1], order[1]) // then
	assert.Equal(t, rpo[3], order[2]) // merge reached via then's fallthrough
	assert.Equal(t, rpo[2], order[3]) // else, visited last since merge is already seen
}

func TestNeedsExplicitJumpWhenFallthroughBroken(t *testing.T) {
	fn, rpo := buildDiamond()
	order := Flatten(fn, rpo)
	// else's Next is merge, but merge was already placed right after then,
	// so else (the last block in the order) needs an explicit jump to merge.
	elseIdx := 3
	require.Equal(t, rpo[2], order[elseIdx])
	target, needed := NeedsExplicitJump(order[elseIdx], order, elseIdx)
	assert.True(t, needed)
	assert.Equal(t, rpo[3], target)
}
