package ssa

import "cc32.dev/cc32/internal/ir"

// Optimize runs spec.md §4.4's optimization suite to a fixed point:
// constant folding, copy propagation, algebraic simplification, branch
// simplification, dead code elimination, and block merging. Each sub-pass
// reports whether it changed anything so the driver can re-run the whole
// suite until none do (optimizations compound: folding a constant often
// exposes a dead branch, and removing a branch often exposes a mergeable
// block pair).
func Optimize(fn *ir.Func, rpo []*ir.BasicBlock) {
	for {
		changed := false
		changed = foldConstants(rpo) || changed
		changed = propagateCopies(rpo) || changed
		changed = simplifyAlgebraic(rpo) || changed
		changed = simplifyBranches(fn, rpo) || changed
		changed = eliminateDeadCode(rpo) || changed
		changed = mergeBlocks(fn, rpo) || changed
		if !changed {
			return
		}
	}
}

func constOf(v *ir.Var, consts map[*ir.Var]int64) (int64, bool) {
	c, ok := consts[v]
	return c, ok
}

// foldConstants propagates load_constant values through pure arithmetic
// chains, rewriting any instruction whose operands are both known-constant
// into a load_constant of the computed result (spec.md §4.4's constant
// folding pass).
func foldConstants(rpo []*ir.BasicBlock) bool {
	consts := make(map[*ir.Var]int64)
	for _, b := range rpo {
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			if ins.Op == ir.OpLoadConstant && ins.Dest != nil {
				consts[ins.Dest] = ins.Const
			}
		}
	}
	changed := false
	for _, b := range rpo {
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			if !ins.Op.IsArith() || ins.Dest == nil {
				continue
			}
			lhs, lok := constOf(ins.Src0, consts)
			if !lok {
				continue
			}
			var rhs int64
			rok := true
			if ins.Src1 != nil {
				rhs, rok = constOf(ins.Src1, consts)
			}
			if !rok {
				continue
			}
			result, ok := foldOp(ins.Op, lhs, rhs)
			if !ok {
				continue
			}
			ins.Op = ir.OpLoadConstant
			ins.Const = result
			ins.Src0, ins.Src1 = nil, nil
			consts[ins.Dest] = result
			changed = true
		}
	}
	return changed
}

func foldOp(op ir.Opcode, a, b int64) (int64, bool) {
	switch op {
	case ir.OpAdd:
		return a + b, true
	case ir.OpSub:
		return a - b, true
	case ir.OpMul:
		return a * b, true
	case ir.OpDiv:
		if b == 0 {
			return 0, false // division by a constant zero is left for runtime to trap, not folded
		}
		return a / b, true
	case ir.OpMod:
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case ir.OpNegate:
		return -a, true
	case ir.OpBitAnd:
		return a & b, true
	case ir.OpBitOr:
		return a | b, true
	case ir.OpBitXor:
		return a ^ b, true
	case ir.OpBitNot:
		return ^a, true
	case ir.OpLshift:
		return a << uint(b), true
	case ir.OpRshift:
		return a >> uint(b), true
	case ir.OpEq:
		return boolToInt64(a == b), true
	case ir.OpNeq:
		return boolToInt64(a != b), true
	case ir.OpLt:
		return boolToInt64(a < b), true
	case ir.OpLeq:
		return boolToInt64(a <= b), true
	case ir.OpGt:
		return boolToInt64(a > b), true
	case ir.OpGeq:
		return boolToInt64(a >= b), true
	case ir.OpLogAnd:
		return boolToInt64(a != 0 && b != 0), true
	case ir.OpLogOr:
		return boolToInt64(a != 0 || b != 0), true
	case ir.OpLogNot:
		return boolToInt64(a == 0), true
	}
	return 0, false
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// propagateCopies forwards assign's source operand to every later use,
// matching spec.md §4.4's copy-propagation pass. A SSA `assign` (e.g. a phi
// with a single live operand, or an explicit `x = y`) is erased once no
// instruction references its destination directly; eliminateDeadCode then
// removes the now-unused assign itself.
func propagateCopies(rpo []*ir.BasicBlock) bool {
	copyOf := make(map[*ir.Var]*ir.Var)
	for _, b := range rpo {
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			if ins.Op == ir.OpAssign && ins.Dest != nil && ins.Src0 != nil {
				copyOf[ins.Dest] = resolveCopy(ins.Src0, copyOf)
			}
		}
	}
	if len(copyOf) == 0 {
		return false
	}
	changed := false
	for _, b := range rpo {
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			if ins.Src0 != nil {
				if r := resolveCopy(ins.Src0, copyOf); r != ins.Src0 {
					ins.Src0 = r
					changed = true
				}
			}
			if ins.Src1 != nil {
				if r := resolveCopy(ins.Src1, copyOf); r != ins.Src1 {
					ins.Src1 = r
					changed = true
				}
			}
		}
	}
	return changed
}

func resolveCopy(v *ir.Var, copyOf map[*ir.Var]*ir.Var) *ir.Var {
	seen := make(map[*ir.Var]bool)
	for {
		next, ok := copyOf[v]
		if !ok || next == v || seen[v] {
			return v
		}
		seen[v] = true
		v = next
	}
}

// simplifyAlgebraic applies the handful of identity rewrites spec.md §4.4
// names explicitly: x+0, x|0, x^0, x-0, x*1, x*0, x&0 and shifts by 0,
// which constant folding alone won't catch because only one operand is
// constant.
func simplifyAlgebraic(rpo []*ir.BasicBlock) bool {
	consts := make(map[*ir.Var]int64)
	for _, b := range rpo {
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			if ins.Op == ir.OpLoadConstant && ins.Dest != nil {
				consts[ins.Dest] = ins.Const
			}
		}
	}
	changed := false
	rewriteToAssign := func(ins *ir.Insn, src *ir.Var) {
		ins.Op = ir.OpAssign
		ins.Src0 = src
		ins.Src1 = nil
		changed = true
	}
	for _, b := range rpo {
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			if ins.Dest == nil {
				continue
			}
			rc, rok := constOf(ins.Src1, consts)
			lc, lok := constOf(ins.Src0, consts)
			switch ins.Op {
			case ir.OpAdd, ir.OpBitOr, ir.OpBitXor:
				if rok && rc == 0 {
					rewriteToAssign(ins, ins.Src0)
				} else if lok && lc == 0 {
					rewriteToAssign(ins, ins.Src1)
				}
			case ir.OpSub:
				if rok && rc == 0 {
					rewriteToAssign(ins, ins.Src0)
				}
			case ir.OpMul:
				if rok && rc == 1 {
					rewriteToAssign(ins, ins.Src0)
				} else if lok && lc == 1 {
					rewriteToAssign(ins, ins.Src1)
				} else if (rok && rc == 0) || (lok && lc == 0) {
					ins.Op = ir.OpLoadConstant
					ins.Const = 0
					ins.Src0, ins.Src1 = nil, nil
					changed = true
				}
			case ir.OpLshift, ir.OpRshift:
				if rok && rc == 0 {
					rewriteToAssign(ins, ins.Src0)
				}
			case ir.OpBitAnd:
				if (rok && rc == 0) || (lok && lc == 0) {
					ins.Op = ir.OpLoadConstant
					ins.Const = 0
					ins.Src0, ins.Src1 = nil, nil
					changed = true
				}
			}
		}
	}
	return changed
}

// simplifyBranches resolves a conditional branch whose condition is a
// known load_constant into an unconditional jump, and drops the now-dead
// side of the diamond; spec.md §4.4's branch simplification.
func simplifyBranches(fn *ir.Func, rpo []*ir.BasicBlock) bool {
	changed := false
	for _, b := range rpo {
		last := b.Insns.Tail
		if last == nil || last.Op != ir.OpBranch {
			continue
		}
		if last.Src0 == nil {
			continue
		}
		var cval int64
		found := false
		for ins := b.Insns.Head; ins != last; ins = ins.Next {
			if ins.Op == ir.OpLoadConstant && ins.Dest == last.Src0 {
				cval = ins.Const
				found = true
			}
		}
		if !found || b.Then == nil || b.Else == nil {
			continue
		}
		target := b.Else
		if cval != 0 {
			target = b.Then
		}
		b.Insns.Remove(last)
		b.Then, b.Else = nil, nil
		b.ConnectNext(target)
		changed = true
	}
	return changed
}

// eliminateDeadCode removes any non-side-effecting instruction whose
// destination is never read and isn't flagged IsLogicalRet/IsTernaryRet
// (spec.md §4.4's DCE contract — those two flags mark merge-block values
// that have no instruction-level use yet but are still live out of the
// diamond they close).
func eliminateDeadCode(rpo []*ir.BasicBlock) bool {
	used := make(map[*ir.Var]bool)
	for _, b := range rpo {
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			if ins.Src0 != nil {
				used[ins.Src0] = true
			}
			if ins.Src1 != nil {
				used[ins.Src1] = true
			}
		}
	}
	changed := false
	for _, b := range rpo {
		ins := b.Insns.Head
		for ins != nil {
			next := ins.Next
			if !ins.Op.HasSideEffect() && ins.Dest != nil && !used[ins.Dest] &&
				!ins.Dest.IsLogicalRet && !ins.Dest.IsTernaryRet && !ins.Dest.IsGlobal {
				b.Insns.Remove(ins)
				changed = true
			}
			ins = next
		}
	}
	return changed
}

// mergeBlocks fuses a block into its sole successor when that successor
// has exactly one predecessor, collapsing the Next-only chains CFG
// flattening would otherwise have to walk through one hop at a time
// (spec.md §4.4's block-merging pass; spec.md §4.6 still runs its own
// flattening afterward over what SSA-level merging leaves).
func mergeBlocks(fn *ir.Func, rpo []*ir.BasicBlock) bool {
	changed := false
	for _, b := range rpo {
		if b.Next == nil || b.Then != nil || b.Else != nil {
			continue
		}
		succ := b.Next
		if succ == fn.Exit || len(succ.Predecessors()) != 1 {
			continue
		}
		if succ.Insns.Len() > 0 && succ.Insns.Head.Op == ir.OpPhi {
			continue // a real phi means succ has other logical predecessors in spirit; leave it alone
		}
		for ins := succ.Insns.Head; ins != nil; {
			next := ins.Next
			succ.Insns.Remove(ins)
			ins.Block = b
			b.Insns.PushBack(ins)
			ins = next
		}
		b.Next, b.Then, b.Else = succ.Next, succ.Then, succ.Else
		if b.Next != nil {
			replacePred(b.Next, succ, b)
		}
		if b.Then != nil {
			replacePred(b.Then, succ, b)
		}
		if b.Else != nil {
			replacePred(b.Else, succ, b)
		}
		changed = true
	}
	return changed
}

func replacePred(b, old, new *ir.BasicBlock) {
	for i := range b.Preds[:b.PredCnt] {
		if b.Preds[i].From == old {
			b.Preds[i].From = new
		}
	}
}
