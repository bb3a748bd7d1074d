// Package arm exposes internal/codegen's driver bound to the ARMv7-A
// target.Target, and carries that architecture's own tests.
package arm

import (
	"cc32.dev/cc32/internal/codegen"
	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/target"
)

// Emit lowers fn (already SSA-optimized, register-allocated, and
// peephole-flattened) to ARMv7-A machine code.
func Emit(fn *ir.Func, order []*ir.BasicBlock) (*codegen.Function, error) {
	return codegen.EmitFunction(fn, target.NewARM(), order)
}
