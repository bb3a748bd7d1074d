// Package peephole implements spec.md §4.6: local instruction-window
// rewrites (redundant load/store elision, self-assignment removal,
// double-negation collapse) plus final CFG flattening — a single
// topological linearization of every reachable basic block into the order
// internal/codegen emits machine code in.
package peephole

import "cc32.dev/cc32/internal/ir"

// Run applies every local rewrite to a fixed point, then returns blocks in
// flattened emission order (spec.md §4.6 step 2). Blocks pruned as
// unreachable by internal/ssa's earlier passes are never visited, since
// flattening walks successor edges rather than fn.Blocks directly.
func Run(fn *ir.Func, rpo []*ir.BasicBlock) []*ir.BasicBlock {
	for rewriteLocal(rpo) {
	}
	return Flatten(fn, rpo)
}

// rewriteLocal scans each block's instruction list for the local patterns
// spec.md §4.6 names and returns whether anything changed, so Run can
// iterate to a fixed point (one rewrite sometimes exposes another, e.g.
// collapsing a double negate can turn a subsequent add into x+0).
func rewriteLocal(rpo []*ir.BasicBlock) bool {
	changed := false
	for _, b := range rpo {
		ins := b.Insns.Head
		for ins != nil {
			next := ins.Next
			switch {
			case isSelfAssign(ins):
				b.Insns.Remove(ins)
				changed = true
			case isRedundantReadAfterWrite(ins):
				b.Insns.Remove(ins)
				changed = true
			case isDoubleNegate(ins):
				collapseDoubleNegate(ins)
				changed = true
			}
			ins = next
		}
	}
	return changed
}

// isSelfAssign reports an `assign dest, dest` with dest == src0, a no-op
// left over once copy propagation has chased every real copy to its root.
func isSelfAssign(ins *ir.Insn) bool {
	return ins.Op == ir.OpAssign && ins.Dest != nil && ins.Src0 == ins.Dest
}

// isRedundantReadAfterWrite detects a `read` immediately following a
// `write` to the same address with no intervening instruction that could
// have changed memory, the classic peephole store-then-load elision.
func isRedundantReadAfterWrite(ins *ir.Insn) bool {
	if ins.Op != ir.OpRead || ins.Prev == nil {
		return false
	}
	prev := ins.Prev
	return prev.Op == ir.OpWrite && prev.Dest == ins.Src0 && prev.Size == ins.Size
}

// isDoubleNegate matches `negate (negate x)`: a negate whose operand is
// defined by another negate earlier in the same block.
func isDoubleNegate(ins *ir.Insn) bool {
	if ins.Op != ir.OpNegate || ins.Src0 == nil {
		return false
	}
	def := defOf(ins)
	return def != nil && def.Op == ir.OpNegate
}

// defOf finds the instruction in the same block that defines ins.Src0,
// scanning backward from ins (peephole windows never cross blocks).
func defOf(ins *ir.Insn) *ir.Insn {
	for p := ins.Prev; p != nil; p = p.Prev {
		if p.Dest == ins.Src0 {
			return p
		}
	}
	return nil
}

func collapseDoubleNegate(ins *ir.Insn) {
	def := defOf(ins)
	ins.Op = ir.OpAssign
	ins.Src0 = def.Src0
}

// Flatten linearizes fn's reachable blocks via a depth-first walk that
// follows Then first, then Else, then Next, so the common "fall through the
// happy path" shape needs the fewest inserted unconditional jumps (spec.md
// §4.6's CFG-flattening step).
func Flatten(fn *ir.Func, rpo []*ir.BasicBlock) []*ir.BasicBlock {
	visited := make(map[*ir.BasicBlock]bool)
	var order []*ir.BasicBlock
	var walk func(b *ir.BasicBlock)
	walk = func(b *ir.BasicBlock) {
		if b == nil || visited[b] {
			return
		}
		visited[b] = true
		order = append(order, b)
		if b.Then != nil {
			walk(b.Then)
		}
		if b.Else != nil {
			walk(b.Else)
		}
		if b.Next != nil {
			walk(b.Next)
		}
	}
	walk(fn.Entry)
	for _, b := range rpo {
		walk(b) // any block reachable only via a forward goto that RPO found but the Then/Else/Next walk didn't reach first
	}
	return order
}

// NeedsExplicitJump reports whether the edge from b to its linear
// successor in order requires an emitted unconditional jump, i.e. b's
// fall-through target in the flattened order isn't actually its CFG
// successor.
func NeedsExplicitJump(b *ir.BasicBlock, order []*ir.BasicBlock, idx int) (*ir.BasicBlock, bool) {
	fallsTo := b.Next
	if fallsTo == nil && b.Then == nil && b.Else == nil {
		return nil, false // block ends in return/unreachable; nothing to fall through to
	}
	if fallsTo == nil {
		return nil, false // ends in a conditional branch, handled by EncodeBranch directly
	}
	if idx+1 < len(order) && order[idx+1] == fallsTo {
		return nil, false
	}
	return fallsTo, true
}
