// Package codegen implements spec.md §4.7's target-independent emission
// driver: given a peephole-flattened block order and an allocated
// function, it walks every instruction once per pass, asking the
// supplied target.Target to encode it, and backpatches branch
// displacements once every block's final address is known. The per-target
// internal/codegen/arm and internal/codegen/riscv packages provide each
// architecture's Emit entry point and its own tests over this shared
// driver; the golang.org/x/arch/arm/armasm disassembly checks of the ARM
// encoder live in internal/target's tests.
package codegen

import (
	"fmt"

	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/target"
)

// Function is one compiled function's machine code plus the symbol
// information internal/elfwriter and the CLI's --dump-archive need.
type Function struct {
	Name   string
	Code   []byte
	Offset int // filled in by internal/compiler.Compile as it concatenates every function's code
}

// Program is the whole translation unit's codegen output: every function's
// code concatenated in declaration order, plus where main begins.
type Program struct {
	Functions []*Function
	Data      []byte
	EntryName string
}

// operandReg converts an allocated ir.Var's physical register into the target's
// own Reg type, or falls through to address materialization when the
// variable spilled.
func operandReg(t target.Target, v *ir.Var, scratch target.Reg, out *[]byte) target.Reg {
	if v == nil {
		return scratch
	}
	if v.Spilled {
		*out = append(*out, t.EncodeFrameAddr(scratch, t.FramePointer(), v.SpillSlot)...)
		return scratch
	}
	return target.Reg(v.Reg)
}

// EmitFunction lowers fn's flattened instruction order to machine code for
// t. order must already be register-allocated (internal/regalloc) and
// flattened (internal/peephole.Flatten). Two scratch registers (the
// target's last two general-purpose registers) back any spilled operand's
// address materialization: an instruction's two source operands each get
// their own scratch, and its destination uses its allocated register.
func EmitFunction(fn *ir.Func, t target.Target, order []*ir.BasicBlock) (*Function, error) {
	scratch := t.Regs().General
	if len(scratch) < 2 {
		return nil, fmt.Errorf("codegen: target %s needs at least two general-purpose registers for spill materialization", t.Name())
	}
	s0, s1 := scratch[len(scratch)-1], scratch[len(scratch)-2]

	blockAddr := make(map[*ir.BasicBlock]int)
	insnAddr := make(map[*ir.Insn]int)

	encodeOnce := func(placeholderOffset int32) ([]byte, error) {
		addr := 0
		var code []byte
		for _, b := range order {
			blockAddr[b] = addr
			for ins := b.Insns.Head; ins != nil; ins = ins.Next {
				insnAddr[ins] = addr
				bytes, err := encodeInsn(t, ins, b, order, s0, s1, placeholderOffset)
				if err != nil {
					return nil, err
				}
				addr += len(bytes)
				code = append(code, bytes...)
			}
			if _, needed := fallthroughTarget(b, order); needed {
				addr += 4 // one placeholder jump instruction's worth of space
			}
		}
		return code, nil
	}

	// Pass 1: establish addresses with branch offsets as zero.
	if _, err := encodeOnce(0); err != nil {
		return nil, err
	}

	// Pass 2: re-encode now that every block's address is known, computing
	// real branch displacements; this also re-walks order so a change in
	// an earlier block's size (none, in this backend, since instruction
	// length never depends on offset value) would be reflected.
	addr := 0
	var code []byte
	for _, b := range order {
		blockAddr[b] = addr
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			insnAddr[ins] = addr
			displacement := int32(0)
			if tgt := branchTarget(ins, b); tgt != nil {
				displacement = int32(blockAddr[tgt] - addr)
			}
			bytes, err := encodeInsn(t, ins, b, order, s0, s1, displacement)
			if err != nil {
				return nil, err
			}
			if int64(abs(int(displacement))) > t.MaxBranchReach() {
				return nil, fmt.Errorf("codegen: branch in %s exceeds %s's reach (%d bytes)", fn.Name, t.Name(), displacement)
			}
			addr += len(bytes)
			code = append(code, bytes...)
		}
		if fall, needed := fallthroughTarget(b, order); needed {
			jump := &ir.Insn{Op: ir.OpJump}
			body, err := t.EncodeBranch(jump, -1, int32(blockAddr[fall]-addr))
			if err != nil {
				return nil, err
			}
			addr += len(body)
			code = append(code, body...)
		}
	}

	return &Function{Name: fn.Name, Code: code}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// branchTarget returns the CFG successor a control-transfer instruction
// targets, for offset computation, or nil if ins isn't one.
func branchTarget(ins *ir.Insn, b *ir.BasicBlock) *ir.BasicBlock {
	switch ins.Op {
	case ir.OpBranch:
		return b.Then
	case ir.OpJump:
		return b.Next
	}
	return nil
}

// fallthroughTarget reports whether b's linear successor in order differs
// from the block control reaches when b does not jump (its Next, or its
// Else when b ends in a conditional branch), meaning an explicit jump must
// be synthesized (spec.md §4.6's flattening contract).
func fallthroughTarget(b *ir.BasicBlock, order []*ir.BasicBlock) (*ir.BasicBlock, bool) {
	next := b.Next
	if next == nil {
		next = b.Else
	}
	if next == nil {
		return nil, false
	}
	idx := -1
	for i, o := range order {
		if o == b {
			idx = i
			break
		}
	}
	if idx >= 0 && idx+1 < len(order) && order[idx+1] == next {
		return nil, false
	}
	return next, true
}

func encodeInsn(t target.Target, ins *ir.Insn, b *ir.BasicBlock, order []*ir.BasicBlock, s0, s1 target.Reg, displacement int32) ([]byte, error) {
	var pre []byte
	switch {
	case ins.Op.IsArith():
		dest := regOf(ins.Dest)
		src0 := operandReg(t, ins.Src0, s0, &pre)
		src1 := operandReg(t, ins.Src1, s1, &pre)
		body, err := t.EncodeArith(ins, dest, src0, src1)
		return append(pre, body...), err
	case ins.Op == ir.OpRead || ins.Op == ir.OpWrite || ins.Op == ir.OpAddressOf || ins.Op == ir.OpLoadConstant || ins.Op == ir.OpLoadDataAddress:
		dest := regOf(ins.Dest)
		addr := operandReg(t, ins.Src0, s0, &pre)
		body, err := t.EncodeMem(ins, dest, addr, 0)
		return append(pre, body...), err
	case ins.Op == ir.OpAssign:
		// A plain register move; modeled as an EncodeArith add-with-zero
		// would need an immediate, so this backend reuses EncodeFrameAddr
		// (base+0) as the cheapest register-to-register copy both targets
		// already implement.
		dest := regOf(ins.Dest)
		src := operandReg(t, ins.Src0, s0, &pre)
		return append(pre, t.EncodeFrameAddr(dest, src, 0)...), nil
	case ins.Op == ir.OpBranch || ins.Op == ir.OpJump || ins.Op == ir.OpCall || ins.Op == ir.OpIndirect || ins.Op == ir.OpReturn:
		cond := operandReg(t, ins.Src0, s0, &pre)
		body, err := t.EncodeBranch(ins, cond, displacement)
		return append(pre, body...), err
	case ins.Op == ir.OpPush || ins.Op == ir.OpPhi || ins.Op == ir.OpLabel || ins.Op == ir.OpBlockStart || ins.Op == ir.OpBlockEnd || ins.Op == ir.OpFuncRet || ins.Op == ir.OpAllocat:
		return nil, nil // these carry no direct machine encoding of their own (spec.md §4.7): push is folded into the call's argument setup, allocat only reserves frame space
	}
	return nil, fmt.Errorf("codegen: unhandled opcode %s", ins.Op)
}

func regOf(v *ir.Var) target.Reg {
	if v == nil {
		return -1
	}
	return target.Reg(v.Reg)
}
