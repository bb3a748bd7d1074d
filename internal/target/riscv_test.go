package target

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc32.dev/cc32/internal/ir"
)

func decodeRV(t *testing.T, code []byte) uint32 {
	t.Helper()
	require.GreaterOrEqual(t, len(code), 4)
	return binary.LittleEndian.Uint32(code[:4])
}

func rvOpcodeField(w uint32) uint32 { return w & 0x7F }
func rvFunct3Field(w uint32) uint32 { return (w >> 12) & 0x7 }
func rvFunct7Field(w uint32) uint32 { return (w >> 25) & 0x7F }

func TestRISCVEncodeArithAdd(t *testing.T) {
	r := NewRISCV32()
	code, err := r.EncodeArith(&ir.Insn{Op: ir.OpAdd}, 5, 6, 7)
	require.NoError(t, err)
	w := decodeRV(t, code)
	assert.EqualValues(t, rvOpReg, rvOpcodeField(w))
	assert.EqualValues(t, 0b000, rvFunct3Field(w))
	assert.EqualValues(t, 0b0000000, rvFunct7Field(w))
}

func TestRISCVEncodeArithMul(t *testing.T) {
	r := NewRISCV32()
	code, err := r.EncodeArith(&ir.Insn{Op: ir.OpMul}, 5, 6, 7)
	require.NoError(t, err)
	w := decodeRV(t, code)
	assert.EqualValues(t, rvOpReg, rvOpcodeField(w))
	assert.EqualValues(t, 0b0000001, rvFunct7Field(w)) // RV32M extension bit pattern
}

func TestRISCVEncodeMemLoadConstant(t *testing.T) {
	r := NewRISCV32()
	code, err := r.EncodeMem(&ir.Insn{Op: ir.OpLoadConstant, Const: 4096}, 5, 0, 0)
	require.NoError(t, err)
	require.Len(t, code, 8) // LUI+ADDI pair
	lui := decodeRV(t, code[:4])
	assert.EqualValues(t, rvOpLUI, rvOpcodeField(lui))
}

func TestRISCVEncodeBranchReturn(t *testing.T) {
	r := NewRISCV32()
	code, err := r.EncodeBranch(&ir.Insn{Op: ir.OpReturn}, 0, 0)
	require.NoError(t, err)
	w := decodeRV(t, code)
	assert.EqualValues(t, rvOpJALR, rvOpcodeField(w))
}

func TestRISCVEncodeBranchJump(t *testing.T) {
	r := NewRISCV32()
	code, err := r.EncodeBranch(&ir.Insn{Op: ir.OpJump}, 0, 64)
	require.NoError(t, err)
	w := decodeRV(t, code)
	assert.EqualValues(t, rvOpJAL, rvOpcodeField(w))
}

func TestRISCVSyscallNumbers(t *testing.T) {
	n, ok := RISCVSyscallNumber("exit")
	require.True(t, ok)
	assert.EqualValues(t, 93, n)

	_, ok = RISCVSyscallNumber("bogus")
	assert.False(t, ok)
}

func TestRISCVEncodeFrameAddr(t *testing.T) {
	r := NewRISCV32()
	code := r.EncodeFrameAddr(5, r.FramePointer(), -16)
	w := decodeRV(t, code)
	assert.EqualValues(t, rvOpImm, rvOpcodeField(w))
}
