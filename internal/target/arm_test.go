package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/arm/armasm"

	"cc32.dev/cc32/internal/ir"
)

// decodeARM disassembles the single 4-byte instruction at the start of code
// using the same decoder `go tool objdump` is built on, so these tests check
// the encoder against an independent reader rather than re-deriving the bit
// layout by hand.
func decodeARM(t *testing.T, code []byte) armasm.Inst {
	t.Helper()
	require.GreaterOrEqual(t, len(code), 4)
	inst, err := armasm.Decode(code[:4], armasm.ModeARM)
	require.NoError(t, err)
	return inst
}

func TestARMEncodeArithAdd(t *testing.T) {
	a := NewARM()
	code, err := a.EncodeArith(&ir.Insn{Op: ir.OpAdd}, 0, 1, 2)
	require.NoError(t, err)
	inst := decodeARM(t, code)
	assert.Equal(t, armasm.ADD, inst.Op)
}

func TestARMEncodeArithSub(t *testing.T) {
	a := NewARM()
	code, err := a.EncodeArith(&ir.Insn{Op: ir.OpSub}, 3, 4, 5)
	require.NoError(t, err)
	inst := decodeARM(t, code)
	assert.Equal(t, armasm.SUB, inst.Op)
}

func TestARMEncodeArithMul(t *testing.T) {
	a := NewARM()
	code, err := a.EncodeArith(&ir.Insn{Op: ir.OpMul}, 0, 1, 2)
	require.NoError(t, err)
	inst := decodeARM(t, code)
	assert.Equal(t, armasm.MUL, inst.Op)
}

func TestARMEncodeArithDivRejected(t *testing.T) {
	a := NewARM()
	_, err := a.EncodeArith(&ir.Insn{Op: ir.OpDiv}, 0, 1, 2)
	assert.Error(t, err)
}

func TestARMEncodeMemLoadConstant(t *testing.T) {
	a := NewARM()
	code, err := a.EncodeMem(&ir.Insn{Op: ir.OpLoadConstant, Const: 7}, 0, 0, 0)
	require.NoError(t, err)
	inst := decodeARM(t, code)
	assert.Equal(t, armasm.MOVW, inst.Op)
}

func TestARMEncodeBranchReturn(t *testing.T) {
	a := NewARM()
	code, err := a.EncodeBranch(&ir.Insn{Op: ir.OpReturn}, 0, 0)
	require.NoError(t, err)
	inst := decodeARM(t, code)
	assert.Equal(t, armasm.BX, inst.Op)
}

func TestARMEncodeBranchCall(t *testing.T) {
	a := NewARM()
	code, err := a.EncodeBranch(&ir.Insn{Op: ir.OpCall}, 0, 16)
	require.NoError(t, err)
	inst := decodeARM(t, code)
	assert.Equal(t, armasm.BL, inst.Op)
}

func TestARMSyscallNumbers(t *testing.T) {
	n, ok := ARMSyscallNumber("exit")
	require.True(t, ok)
	assert.EqualValues(t, 1, n)

	_, ok = ARMSyscallNumber("nonsense")
	assert.False(t, ok)
}

func TestARMEncodeFrameAddr(t *testing.T) {
	a := NewARM()
	code := a.EncodeFrameAddr(0, a.FramePointer(), 8)
	inst := decodeARM(t, code)
	assert.Equal(t, armasm.ADD, inst.Op)
}
