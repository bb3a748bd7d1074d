// Package riscv exposes internal/codegen's driver bound to the RV32I
// target.Target, and carries that architecture's own tests.
package riscv

import (
	"cc32.dev/cc32/internal/codegen"
	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/target"
)

// Emit lowers fn (already SSA-optimized, register-allocated, and
// peephole-flattened) to RV32I machine code.
func Emit(fn *ir.Func, order []*ir.BasicBlock) (*codegen.Function, error) {
	return codegen.EmitFunction(fn, target.NewRISCV32(), order)
}
