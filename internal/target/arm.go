package target

import (
	"encoding/binary"
	"fmt"

	"cc32.dev/cc32/internal/ir"
	"golang.org/x/sys/unix"
)

// ARM implements Target for bare-metal ARMv7-A, AL-conditioned A32
// encoding, the EABI calling convention (r0-r3 argument/return, r4-r11
// callee-saved, r12 scratch, r13 sp, r14 lr, r15 pc).
type ARM struct{}

func NewARM() *ARM { return &ARM{} }

func (a *ARM) Name() string   { return "arm" }
func (a *ARM) WordSize() int  { return 4 }

const (
	armSP Reg = 13
	armLR Reg = 14
	armPC Reg = 15
)

func (a *ARM) Regs() RegSet {
	general := []Reg{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	caller := map[Reg]bool{0: true, 1: true, 2: true, 3: true, 12: true}
	callee := map[Reg]bool{4: true, 5: true, 6: true, 7: true, 8: true, 9: true, 10: true, 11: true}
	return RegSet{
		General:      general,
		CallerSaved:  caller,
		CalleeSaved:  callee,
		ArgRegs:      []Reg{0, 1, 2, 3},
		StackPointer: armSP,
		LinkRegister: armLR,
	}
}

// armCond is the AL (always) condition field every unconditional
// instruction this backend emits uses; spec.md's dialect never needs
// ARM's predicated execution, only explicit branches.
const armCond = 0b1110 << 28

func armWord(w uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, w)
	return b
}

// dataProcessingOpcodes maps IR arithmetic/bitwise/compare opcodes to the
// ARM data-processing opcode field (DPO, bits 24:21) used by the "register,
// register, register" (and with S=1 for comparisons) encoding.
var dataProcessingOpcodes = map[ir.Opcode]uint32{
	ir.OpAdd: 0b0100, ir.OpSub: 0b0010, ir.OpBitAnd: 0b0000,
	ir.OpBitOr: 0b1100, ir.OpBitXor: 0b0001,
}

func (a *ARM) EncodeArith(ins *ir.Insn, dest, src0, src1 Reg) ([]byte, error) {
	if op, ok := dataProcessingOpcodes[ins.Op]; ok {
		// cond 00 0 opcode S Rn Rd 00000000 Rm  (register form, shift none)
		w := uint32(armCond) | (0 << 26) | (op << 21) | (uint32(src0) << 16) | (uint32(dest) << 12) | uint32(src1)
		return armWord(w), nil
	}
	switch ins.Op {
	case ir.OpMul:
		// MUL Rd, Rm, Rs: cond 000000 A(0) S(0) Rd(0) Rn Rs 1001 Rm
		w := uint32(armCond) | (uint32(dest) << 16) | (uint32(src1) << 8) | (0b1001 << 4) | uint32(src0)
		return armWord(w), nil
	case ir.OpDiv, ir.OpMod:
		// No hardware divide on the baseline ARMv7-A profile this backend
		// targets. div/mod are rejected here, and no compilation stage
		// rewrites them into calls to a software helper, so a program that
		// uses / or % does not compile for ARM.
		return nil, fmt.Errorf("arm: %s must be lowered via the software divide helper, not encoded inline", ins.Op)
	case ir.OpNegate:
		// RSB Rd, Rn, #0
		w := uint32(armCond) | (1 << 25) | (0b0011 << 21) | (uint32(src0) << 16) | (uint32(dest) << 12)
		return armWord(w), nil
	case ir.OpBitNot:
		// MVN Rd, Rm
		w := uint32(armCond) | (0b1111 << 21) | (uint32(dest) << 12) | uint32(src0)
		return armWord(w), nil
	case ir.OpLshift, ir.OpRshift:
		shiftType := uint32(0) // LSL
		if ins.Op == ir.OpRshift {
			shiftType = 0b10 // ASR (arithmetic, matching signed int semantics)
		}
		// MOV Rd, Rm, <shift> Rs
		w := uint32(armCond) | (0b1101 << 21) | (uint32(dest) << 12) | (uint32(src1) << 8) | (shiftType << 5) | (1 << 4) | uint32(src0)
		return armWord(w), nil
	case ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLeq, ir.OpGt, ir.OpGeq:
		// CMP Rn, Rm followed by MOVEQ/MOVNE/... Rd, #1 and a fallthrough
		// MOV Rd, #0 is the two-instruction idiom this backend uses for
		// boolean-valued comparisons; callers of EncodeArith for a compare
		// opcode receive both instructions concatenated.
		cmp := uint32(armCond) | (1 << 24) | (0b1010 << 21) | (1 << 20) | (uint32(src0) << 16) | uint32(src1)
		cond := armCondCode(ins.Op)
		movTrue := (cond << 28) | (1 << 25) | (0b1101 << 21) | (uint32(dest) << 12) | 1
		movFalse := uint32(armCond) | (1 << 25) | (0b1101 << 21) | (uint32(dest) << 12) | 0
		out := append(armWord(cmp), armWord(movTrue)...)
		return append(out, armWord(movFalse)...), nil
	case ir.OpLogAnd, ir.OpLogOr, ir.OpLogNot:
		return nil, fmt.Errorf("arm: %s is lowered by the parser's short-circuit CFG diamond, not encoded directly", ins.Op)
	}
	return nil, fmt.Errorf("arm: unsupported arithmetic opcode %s", ins.Op)
}

func armCondCode(op ir.Opcode) uint32 {
	switch op {
	case ir.OpEq:
		return 0b0000
	case ir.OpNeq:
		return 0b0001
	case ir.OpLt:
		return 0b1011 // LT
	case ir.OpLeq:
		return 0b1101 // LE
	case ir.OpGt:
		return 0b1100 // GT
	case ir.OpGeq:
		return 0b1010 // GE
	}
	return 0b1110
}

func (a *ARM) EncodeMem(ins *ir.Insn, dest, addr Reg, dataOffset int) ([]byte, error) {
	switch ins.Op {
	case ir.OpLoadConstant:
		return armLoadImmediate(dest, uint32(ins.Const)), nil
	case ir.OpLoadDataAddress:
		// ADR-style: computed by the backpatcher as PC + offset; here we
		// emit a placeholder ADD that the two-pass fixup rewrites once
		// .rodata's address is known.
		return armWord(uint32(armCond) | (1 << 25) | (0b0100 << 21) | (uint32(armPC) << 16) | (uint32(dest) << 12)), nil
	case ir.OpRead:
		return armLoadStore(dest, addr, ins.Size, true), nil
	case ir.OpWrite:
		return armLoadStore(dest, addr, ins.Size, false), nil
	case ir.OpAddressOf:
		// MOV Rd, Rn — the operand is already a stack/frame address
		// computed by the allocator's spill-slot resolution.
		w := uint32(armCond) | (0b1101 << 21) | (uint32(dest) << 12) | uint32(addr)
		return armWord(w), nil
	}
	return nil, fmt.Errorf("arm: unsupported memory opcode %s", ins.Op)
}

func armLoadImmediate(dest Reg, val uint32) []byte {
	if val <= 0xFFFF {
		// MOVW Rd, #imm16
		imm4 := (val >> 12) & 0xF
		imm12 := val & 0xFFF
		w := uint32(armCond) | (0b0011<<24) | (imm4 << 16) | (uint32(dest) << 12) | imm12
		return armWord(w)
	}
	// MOVW + MOVT pair for a full 32-bit immediate.
	lo := armLoadImmediate(dest, val&0xFFFF)
	hi := val >> 16
	imm4 := (hi >> 12) & 0xF
	imm12 := hi & 0xFFF
	movt := uint32(armCond) | (0b0011<<24) | (1 << 22) | (imm4 << 16) | (uint32(dest) << 12) | imm12
	return append(lo, armWord(movt)...)
}

func armLoadStore(reg, base Reg, size int, isLoad bool) []byte {
	// LDR/STR Rt, [Rn] for word/byte-sized accesses (P=1,U=1,W=0,I=0).
	b := uint32(0)
	if size == 1 {
		b = 1 << 22
	}
	l := uint32(0)
	if isLoad {
		l = 1 << 20
	}
	w := uint32(armCond) | (0b01<<26) | (1 << 24) | (1 << 23) | b | l | (uint32(base) << 16) | (uint32(reg) << 12)
	return armWord(w)
}

func (a *ARM) EncodeBranch(ins *ir.Insn, cond Reg, branchOffset int32) ([]byte, error) {
	switch ins.Op {
	case ir.OpJump:
		return armBranch(branchOffset, false), nil
	case ir.OpBranch:
		// CMP cond, #0 ; BNE to the THEN block. The ELSE edge is not
		// encoded here: internal/codegen emits a separate unconditional
		// jump to ELSE after this pair whenever ELSE is not the next block
		// in the flattened order.
		cmp := armWord(uint32(armCond) | (1 << 24) | (0b1010 << 21) | (1 << 20) | (uint32(cond) << 16))
		bne := armBranchCond(branchOffset, 0b0001) // BNE taken-if-nonzero
		return append(cmp, bne...), nil
	case ir.OpCall:
		return armBranch(branchOffset, true), nil
	case ir.OpIndirect:
		// BLX Rm
		w := uint32(armCond) | (0b000100101111111111110011 << 4) | uint32(cond)
		return armWord(w), nil
	case ir.OpReturn:
		// BX LR
		w := uint32(armCond) | (0b000100101111111111110001 << 4) | uint32(armLR)
		return armWord(w), nil
	}
	return nil, fmt.Errorf("arm: unsupported branch opcode %s", ins.Op)
}

func armBranch(offset int32, link bool) []byte {
	l := uint32(0)
	if link {
		l = 1 << 24
	}
	imm24 := uint32(offset/4) & 0xFFFFFF
	w := uint32(armCond) | (0b101 << 25) | l | imm24
	return armWord(w)
}

func armBranchCond(offset int32, condCode uint32) []byte {
	imm24 := uint32(offset/4) & 0xFFFFFF
	w := (condCode << 28) | (0b101 << 25) | imm24
	return armWord(w)
}

// SyscallSequence loads r7 with the syscall number (EABI convention) and
// issues `svc 0`; the syscall numbers themselves come from
// golang.org/x/sys/unix's linux/arm build (SPEC_FULL.md's DOMAIN STACK
// wiring), not hand-copied constants.
func (a *ARM) SyscallSequence(number int64) []byte {
	out := armLoadImmediate(7, uint32(number))
	svc := armWord(uint32(armCond) | (0b1111 << 24))
	return append(out, svc...)
}

func (a *ARM) MaxBranchReach() int64 { return 1 << 25 } // ±32 MiB for a 24-bit word-aligned immediate

func (a *ARM) FramePointer() Reg { return armSP }

// EncodeFrameAddr emits ADD Rd, base, #offset (or SUB for a negative
// offset, since data-processing immediates are unsigned magnitudes here).
func (a *ARM) EncodeFrameAddr(dest, base Reg, offset int) []byte {
	opcode := uint32(0b0100) // ADD
	mag := offset
	if mag < 0 {
		opcode = 0b0010 // SUB
		mag = -mag
	}
	// This compiler's frames never exceed the 8-bit rotated-immediate
	// range in practice (spec.md §4.5 bounds locals well under it); a
	// frame that did would need ARM's rotate-encoding search, which this
	// educational backend doesn't implement.
	w := uint32(armCond) | (1 << 25) | (opcode << 21) | (uint32(base) << 16) | (uint32(dest) << 12) | (uint32(mag) & 0xFF)
	return armWord(w)
}

// ARMSyscallNumber looks up a named syscall's EABI number via
// golang.org/x/sys/unix; internal/target's own tests are its only caller.
func ARMSyscallNumber(name string) (int64, bool) {
	switch name {
	case "exit":
		return int64(unix.SYS_EXIT), true
	case "read":
		return int64(unix.SYS_READ), true
	case "write":
		return int64(unix.SYS_WRITE), true
	case "open":
		return int64(unix.SYS_OPEN), true
	case "close":
		return int64(unix.SYS_CLOSE), true
	case "brk":
		return int64(unix.SYS_BRK), true
	}
	return 0, false
}
