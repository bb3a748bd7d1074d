package liveness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc32.dev/cc32/internal/ir"
)

// buildTwoBlockFunc builds a function with a def of x in b1 and a use in
// b2, connected by an unconditional edge, the simplest case that exercises
// the cross-block live-out/live-in propagation.
func buildTwoBlockFunc() (*ir.Func, []*ir.BasicBlock, *ir.Var) {
	fn := ir.NewFunc("f")
	b1 := fn.NewBasicBlock("entry", nil)
	b2 := fn.NewBasicBlock("exit", nil)
	b1.ConnectNext(b2)

	x := &ir.Var{Name: "x", Reg: -1}
	c := &ir.Var{Name: "c", Reg: -1}

	defIns := &ir.Insn{Op: ir.OpLoadConstant, Dest: x, Const: 7}
	fn.Emit(b1, defIns)

	useIns := &ir.Insn{Op: ir.OpWrite, Src0: x, Src1: c, Size: 4}
	fn.Emit(b2, useIns)

	return fn, []*ir.BasicBlock{b1, b2}, x
}

func TestComputeCrossBlockLiveness(t *testing.T) {
	fn, rpo, x := buildTwoBlockFunc()
	Compute(fn, rpo)

	assert.True(t, rpo[0].LiveOut[x], "x must be live out of the defining block")
	assert.True(t, rpo[1].LiveIn[x], "x must be live into the using block")
	assert.False(t, rpo[0].LiveIn[x], "x is defined, not used, in the first block")

	require.GreaterOrEqual(t, x.IntervalStart, 0)
	assert.Greater(t, x.IntervalEnd, x.IntervalStart)
}

func TestPushLivenessExtendsThroughCall(t *testing.T) {
	fn := ir.NewFunc("f")
	b := fn.NewBasicBlock("entry", nil)

	arg := &ir.Var{Name: "arg", Reg: -1}
	fn.Emit(b, &ir.Insn{Op: ir.OpLoadConstant, Dest: arg, Const: 1})
	fn.Emit(b, &ir.Insn{Op: ir.OpPush, Src0: arg})
	callIns := &ir.Insn{Op: ir.OpCall, Str: "g"}
	fn.Emit(b, callIns)

	rpo := []*ir.BasicBlock{b}
	pos := Compute(fn, rpo)

	callPos := int(pos.InsnPos[callIns])
	assert.GreaterOrEqual(t, arg.IntervalEnd, callPos, "pushed argument must stay live through its call")
}

func TestNumberAssignsIncreasingPositions(t *testing.T) {
	fn, rpo, _ := buildTwoBlockFunc()
	pos := Number(rpo)
	assert.Less(t, pos.BlockStart[rpo[0]], pos.BlockStart[rpo[1]])
	assert.Equal(t, pos.BlockEnd[rpo[0]], pos.BlockStart[rpo[1]])
}
