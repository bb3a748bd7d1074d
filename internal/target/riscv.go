package target

import (
	"encoding/binary"
	"fmt"

	"cc32.dev/cc32/internal/ir"
)

// RISCV32 implements Target for bare-metal RV32I, the integer base ISA
// spec.md §4.7 names as the second supported target, plus the M
// extension's MUL/DIV/REM for multiply, divide and modulo. Registers are
// named by their x-number; the ABI reserves x0 (zero), x1 (ra), x2 (sp),
// x3 (gp), x4 (tp), x8 (s0/fp).
type RISCV32 struct{}

func NewRISCV32() *RISCV32 { return &RISCV32{} }

func (r *RISCV32) Name() string  { return "riscv32" }
func (r *RISCV32) WordSize() int { return 4 }

const (
	rvZero Reg = 0
	rvRA   Reg = 1
	rvSP   Reg = 2
	rvA0   Reg = 10
)

func (r *RISCV32) Regs() RegSet {
	// x5-x7 and x28-x31 (temporaries), then x9 and x18-x27 (saved
	// registers); the argument registers x10-x17 and the fixed roles above
	// are left out of the general pool.
	general := []Reg{5, 6, 7, 28, 29, 30, 31, 9, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27}
	caller := map[Reg]bool{5: true, 6: true, 7: true, 10: true, 11: true, 12: true, 13: true, 14: true, 15: true, 16: true, 17: true, 28: true, 29: true, 30: true, 31: true}
	callee := map[Reg]bool{8: true, 9: true, 18: true, 19: true, 20: true, 21: true, 22: true, 23: true, 24: true, 25: true, 26: true, 27: true}
	return RegSet{
		General:      general,
		CallerSaved:  caller,
		CalleeSaved:  callee,
		ArgRegs:      []Reg{10, 11, 12, 13, 14, 15, 16, 17},
		StackPointer: rvSP,
		LinkRegister: rvRA,
	}
}

func rvWord(w uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, w)
	return b
}

func rvRType(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func rvIType(imm uint32, rs1, funct3, rd, opcode uint32) uint32 {
	return (imm&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

var rvArithFunct = map[ir.Opcode][2]uint32{
	// {funct7, funct3}
	ir.OpAdd:    {0b0000000, 0b000},
	ir.OpSub:    {0b0100000, 0b000},
	ir.OpBitAnd: {0b0000000, 0b111},
	ir.OpBitOr:  {0b0000000, 0b110},
	ir.OpBitXor: {0b0000000, 0b100},
	ir.OpMul:    {0b0000001, 0b000}, // RV32M
	ir.OpDiv:    {0b0000001, 0b100}, // RV32M DIV
	ir.OpMod:    {0b0000001, 0b110}, // RV32M REM
	ir.OpLshift: {0b0000000, 0b001},
	ir.OpRshift: {0b0100000, 0b101}, // SRA, arithmetic right shift
}

const (
	rvOpReg  = 0b0110011
	rvOpImm  = 0b0010011
	rvOpLoad = 0b0000011
	rvOpStore = 0b0100011
	rvOpBranch = 0b1100011
	rvOpJAL   = 0b1101111
	rvOpJALR  = 0b1100111
	rvOpLUI   = 0b0110111
	rvOpAUIPC = 0b0010111
	rvOpSystem = 0b1110011
)

func (r *RISCV32) EncodeArith(ins *ir.Insn, dest, src0, src1 Reg) ([]byte, error) {
	if f, ok := rvArithFunct[ins.Op]; ok {
		w := rvRType(f[0], uint32(src1), uint32(src0), f[1], uint32(dest), rvOpReg)
		return rvWord(w), nil
	}
	switch ins.Op {
	case ir.OpNegate:
		// SUB Rd, x0, Rs
		w := rvRType(0b0100000, uint32(src0), uint32(rvZero), 0b000, uint32(dest), rvOpReg)
		return rvWord(w), nil
	case ir.OpBitNot:
		// XORI Rd, Rs, -1
		w := rvIType(uint32(int32(-1)), uint32(src0), 0b100, uint32(dest), rvOpImm)
		return rvWord(w), nil
	case ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLeq, ir.OpGt, ir.OpGeq:
		return rvEncodeCompare(ins.Op, dest, src0, src1), nil
	case ir.OpLogAnd, ir.OpLogOr, ir.OpLogNot:
		return nil, fmt.Errorf("riscv32: %s is lowered by the parser's short-circuit CFG diamond, not encoded directly", ins.Op)
	}
	return nil, fmt.Errorf("riscv32: unsupported arithmetic opcode %s", ins.Op)
}

// rvEncodeCompare emits SLT/SLTU-based sequences since RV32I has no direct
// boolean-compare instruction beyond set-less-than; equality is built from
// XOR + SLTIU, matching the idiom RISC-V toolchains themselves emit.
func rvEncodeCompare(op ir.Opcode, dest, src0, src1 Reg) []byte {
	switch op {
	case ir.OpLt:
		return rvWord(rvRType(0, uint32(src1), uint32(src0), 0b010, uint32(dest), rvOpReg)) // SLT
	case ir.OpGt:
		return rvWord(rvRType(0, uint32(src0), uint32(src1), 0b010, uint32(dest), rvOpReg)) // SLT swapped
	case ir.OpGeq:
		slt := rvWord(rvRType(0, uint32(src1), uint32(src0), 0b010, uint32(dest), rvOpReg))
		xori := rvWord(rvIType(1, uint32(dest), 0b100, uint32(dest), rvOpImm))
		return append(slt, xori...)
	case ir.OpLeq:
		slt := rvWord(rvRType(0, uint32(src0), uint32(src1), 0b010, uint32(dest), rvOpReg))
		xori := rvWord(rvIType(1, uint32(dest), 0b100, uint32(dest), rvOpImm))
		return append(slt, xori...)
	case ir.OpEq:
		xor := rvWord(rvRType(0, uint32(src1), uint32(src0), 0b100, uint32(dest), rvOpReg))
		sltiu := rvWord(rvIType(1, uint32(dest), 0b011, uint32(dest), rvOpImm))
		return append(xor, sltiu...)
	case ir.OpNeq:
		xor := rvWord(rvRType(0, uint32(src1), uint32(src0), 0b100, uint32(dest), rvOpReg))
		sltu := rvWord(rvRType(0, uint32(dest), uint32(rvZero), 0b011, uint32(dest), rvOpReg))
		return append(xor, sltu...)
	}
	return nil
}

func (r *RISCV32) EncodeMem(ins *ir.Insn, dest, addr Reg, dataOffset int) ([]byte, error) {
	switch ins.Op {
	case ir.OpLoadConstant:
		return rvLoadImmediate(dest, uint32(ins.Const)), nil
	case ir.OpLoadDataAddress:
		// AUIPC + ADDI pair, patched by the two-pass backpatcher once the
		// data section's final address is known.
		auipc := rvWord(uint32(dataOffset)&0xFFFFF000 | uint32(dest)<<7 | rvOpAUIPC)
		addi := rvWord(rvIType(uint32(dataOffset)&0xFFF, uint32(dest), 0b000, uint32(dest), rvOpImm))
		return append(auipc, addi...), nil
	case ir.OpRead:
		funct3 := uint32(0b010) // LW
		if ins.Size == 1 {
			funct3 = 0b100 // LBU
		}
		return rvWord(rvIType(0, uint32(addr), funct3, uint32(dest), rvOpLoad)), nil
	case ir.OpWrite:
		funct3 := uint32(0b010) // SW
		if ins.Size == 1 {
			funct3 = 0b000 // SB
		}
		imm := uint32(0)
		w := (imm>>5)<<25 | uint32(dest)<<20 | uint32(addr)<<15 | funct3<<12 | (imm&0x1F)<<7 | rvOpStore
		return rvWord(w), nil
	case ir.OpAddressOf:
		// MV Rd, Rn == ADDI Rd, Rn, 0
		return rvWord(rvIType(0, uint32(addr), 0b000, uint32(dest), rvOpImm)), nil
	}
	return nil, fmt.Errorf("riscv32: unsupported memory opcode %s", ins.Op)
}

func rvLoadImmediate(dest Reg, val uint32) []byte {
	upper := (val + 0x800) >> 12
	lower := val - (upper << 12)
	lui := rvWord(upper<<12 | uint32(dest)<<7 | rvOpLUI)
	addi := rvWord(rvIType(lower, uint32(dest), 0b000, uint32(dest), rvOpImm))
	return append(lui, addi...)
}

func (r *RISCV32) EncodeBranch(ins *ir.Insn, cond Reg, branchOffset int32) ([]byte, error) {
	switch ins.Op {
	case ir.OpJump:
		return rvWord(rvJType(branchOffset, rvZero)), nil
	case ir.OpBranch:
		// BNE cond, x0, offset
		return rvWord(rvBType(branchOffset, rvZero, cond, 0b001)), nil
	case ir.OpCall:
		return rvWord(rvJType(branchOffset, rvRA)), nil
	case ir.OpIndirect:
		// JALR ra, cond, 0
		return rvWord(rvIType(0, uint32(cond), 0b000, uint32(rvRA), rvOpJALR)), nil
	case ir.OpReturn:
		// JALR x0, ra, 0
		return rvWord(rvIType(0, uint32(rvRA), 0b000, uint32(rvZero), rvOpJALR)), nil
	}
	return nil, fmt.Errorf("riscv32: unsupported branch opcode %s", ins.Op)
}

func rvJType(offset int32, rd Reg) uint32 {
	imm := uint32(offset)
	bit20 := (imm >> 20) & 1
	bits10_1 := (imm >> 1) & 0x3FF
	bit11 := (imm >> 11) & 1
	bits19_12 := (imm >> 12) & 0xFF
	return bit20<<31 | bits10_1<<21 | bit11<<20 | bits19_12<<12 | uint32(rd)<<7 | rvOpJAL
}

func rvBType(offset int32, rs1, rs2 Reg, funct3 uint32) uint32 {
	imm := uint32(offset)
	bit12 := (imm >> 12) & 1
	bits10_5 := (imm >> 5) & 0x3F
	bits4_1 := (imm >> 1) & 0xF
	bit11 := (imm >> 11) & 1
	return bit12<<31 | bits10_5<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | bits4_1<<8 | bit11<<7 | rvOpBranch
}

// SyscallSequence loads a7 with the syscall number and issues `ecall`,
// RV32I's Linux syscall convention (args in a0-a6, number in a7).
func (r *RISCV32) SyscallSequence(number int64) []byte {
	out := rvLoadImmediate(17, uint32(number))
	ecall := rvWord(rvOpSystem)
	return append(out, ecall...)
}

func (r *RISCV32) MaxBranchReach() int64 { return 1 << 20 } // ±1 MiB, JAL's 21-bit signed immediate

func (r *RISCV32) FramePointer() Reg { return rvSP }

// EncodeFrameAddr emits ADDI Rd, base, offset; RV32I's 12-bit signed
// immediate comfortably covers this compiler's frame sizes.
func (r *RISCV32) EncodeFrameAddr(dest, base Reg, offset int) []byte {
	return rvWord(rvIType(uint32(int32(offset)), uint32(base), 0b000, uint32(dest), rvOpImm))
}

// RISCVSyscallNumber hardcodes a handful of Linux RV32 syscall numbers.
// golang.org/x/sys/unix has no
// linux/riscv32 build (only riscv64), so unlike internal/target's ARM path
// these can't be sourced from that package — they are fixed by the
// upstream Linux asm-generic syscall table instead.
func RISCVSyscallNumber(name string) (int64, bool) {
	switch name {
	case "exit":
		return 93, true
	case "read":
		return 63, true
	case "write":
		return 64, true
	case "openat":
		return 56, true
	case "close":
		return 57, true
	case "brk":
		return 214, true
	}
	return 0, false
}
