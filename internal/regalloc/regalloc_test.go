package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/target"
)

// narrowTarget wraps ARM but exposes only two general registers, small
// enough to force the spill path deterministically without constructing
// dozens of overlapping live ranges.
type narrowTarget struct {
	*target.ARM
}

func (n narrowTarget) Regs() target.RegSet {
	rs := n.ARM.Regs()
	rs.General = rs.General[:2]
	return rs
}

func varWithInterval(name string, start, end int) *ir.Var {
	return &ir.Var{Name: name, Reg: -1, IntervalStart: start, IntervalEnd: end}
}

func funcWithVars(vars ...*ir.Var) *ir.Func {
	fn := ir.NewFunc("f")
	b := fn.NewBasicBlock("entry", nil)
	for _, v := range vars {
		fn.Emit(b, &ir.Insn{Op: ir.OpAssign, Dest: v})
	}
	return fn
}

func TestAllocateFitsWithinRegisterBudget(t *testing.T) {
	a := varWithInterval("a", 0, 10)
	b := varWithInterval("b", 2, 4)
	fn := funcWithVars(a, b)

	res := Allocate(fn, narrowTarget{target.NewARM()})
	assert.Empty(t, res.Spilled)
	assert.NotEqual(t, -1, a.Reg)
	assert.NotEqual(t, -1, b.Reg)
	assert.NotEqual(t, a.Reg, b.Reg)
}

func TestAllocateSpillsFarthestEndpointOnPressure(t *testing.T) {
	// Three mutually overlapping intervals contending for two registers:
	// the allocator must spill one of them rather than fail.
	a := varWithInterval("a", 0, 100)
	b := varWithInterval("b", 1, 2)
	c := varWithInterval("c", 1, 3)
	fn := funcWithVars(a, b, c)

	res := Allocate(fn, narrowTarget{target.NewARM()})
	require.Len(t, res.Spilled, 1)
	// a's interval (0-100) outlives both b and c, so linear scan's
	// farthest-endpoint heuristic evicts a rather than the shorter-lived
	// arrival.
	assert.Equal(t, a, res.Spilled[0])
	assert.True(t, a.Spilled)
	assert.Equal(t, -1, a.Reg)
	assert.Less(t, a.SpillSlot, 0)
}

func TestAllocateSetsFrameSizeAligned(t *testing.T) {
	a := varWithInterval("a", 0, 100)
	b := varWithInterval("b", 1, 2)
	c := varWithInterval("c", 1, 3)
	fn := funcWithVars(a, b, c)

	res := Allocate(fn, narrowTarget{target.NewARM()})
	assert.Equal(t, 0, res.FrameSize%8)
	assert.Equal(t, fn.FrameSize, res.FrameSize)
}
