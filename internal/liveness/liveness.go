// Package liveness implements spec.md §4.5's liveness analysis: per-block
// def/use sets, a backward fixed-point over live-in/live-out, a single
// linear instruction numbering in reverse-postorder, and the live
// intervals internal/regalloc's linear scan consumes.
package liveness

import "cc32.dev/cc32/internal/ir"

// Position is a linear instruction index assigned in reverse-postorder
// block order, the ordering spec.md §4.5 requires live ranges be expressed
// against.
type Position int

// Positions records where every instruction and block boundary falls in
// the single linear order liveness and regalloc share.
type Positions struct {
	InsnPos       map[*ir.Insn]Position
	BlockStart    map[*ir.BasicBlock]Position
	BlockEnd      map[*ir.BasicBlock]Position
}

// Number assigns each instruction in rpo order a strictly increasing
// Position, two units apart so a later pass can insert a half-step
// "use position" before a def at the same instruction without collision.
func Number(rpo []*ir.BasicBlock) *Positions {
	p := &Positions{
		InsnPos:    make(map[*ir.Insn]Position),
		BlockStart: make(map[*ir.BasicBlock]Position),
		BlockEnd:   make(map[*ir.BasicBlock]Position),
	}
	pos := Position(0)
	for _, b := range rpo {
		p.BlockStart[b] = pos
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			p.InsnPos[ins] = pos
			pos += 2
		}
		p.BlockEnd[b] = pos
	}
	return p
}

// computeDefUse fills each block's Def/Use sets (spec.md §4.5 step 1): Use
// holds variables read before any local def; Def holds variables defined
// anywhere in the block, regardless of order, matching the standard
// block-local liveness formulation.
func computeDefUse(rpo []*ir.BasicBlock) {
	for _, b := range rpo {
		b.Def = make(map[*ir.Var]bool)
		b.Use = make(map[*ir.Var]bool)
		use := func(v *ir.Var) {
			if v == nil || v.IsGlobal || v.IsFunc {
				return
			}
			if !b.Def[v] {
				b.Use[v] = true
			}
		}
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			use(ins.Src0)
			use(ins.Src1)
			if ins.Dest != nil && !ins.Dest.IsGlobal && !ins.Dest.IsFunc {
				b.Def[ins.Dest] = true
			}
		}
	}
}

// Compute runs the standard backward live-variable fixed point to
// completion (spec.md §4.5 step 2), then returns the shared linear
// numbering and populates every variable's IntervalStart/IntervalEnd
// (spec.md §4.5 step 3), extending a pushed argument's interval through
// its call per spec.md's push-liveness-extension rule (step 4).
func Compute(fn *ir.Func, rpo []*ir.BasicBlock) *Positions {
	computeDefUse(rpo)
	for _, b := range rpo {
		b.LiveIn = make(map[*ir.Var]bool)
		b.LiveOut = make(map[*ir.Var]bool)
	}

	changed := true
	for changed {
		changed = false
		for i := len(rpo) - 1; i >= 0; i-- {
			b := rpo[i]
			newOut := make(map[*ir.Var]bool)
			for _, s := range b.Successors() {
				for v := range s.LiveIn {
					newOut[v] = true
				}
			}
			newIn := make(map[*ir.Var]bool, len(b.Use)+len(newOut))
			for v := range b.Use {
				newIn[v] = true
			}
			for v := range newOut {
				if !b.Def[v] {
					newIn[v] = true
				}
			}
			if !setEqual(newIn, b.LiveIn) || !setEqual(newOut, b.LiveOut) {
				b.LiveIn, b.LiveOut = newIn, newOut
				changed = true
			}
		}
	}

	pos := Number(rpo)
	for _, v := range allVars(fn) {
		v.IntervalStart, v.IntervalEnd = -1, -1
	}
	extend := func(v *ir.Var, p Position) {
		if v == nil || v.IsGlobal || v.IsFunc {
			return
		}
		if v.IntervalStart == -1 || int(p) < v.IntervalStart {
			v.IntervalStart = int(p)
		}
		if v.IntervalEnd == -1 || int(p) > v.IntervalEnd {
			v.IntervalEnd = int(p)
		}
	}

	for _, b := range rpo {
		for v := range b.LiveIn {
			extend(v, pos.BlockStart[b])
		}
		for v := range b.LiveOut {
			extend(v, pos.BlockEnd[b])
		}
		var pendingPushes []*ir.Var
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			p := pos.InsnPos[ins]
			extend(ins.Src0, p)
			extend(ins.Src1, p)
			if ins.Dest != nil {
				extend(ins.Dest, p)
			}
			if ins.Op == ir.OpPush && ins.Src0 != nil {
				pendingPushes = append(pendingPushes, ins.Src0)
			}
			if ins.Op == ir.OpCall || ins.Op == ir.OpIndirect {
				for _, pv := range pendingPushes {
					extend(pv, p) // spec.md §4.5's push-liveness-extension: args stay live through the call
				}
				pendingPushes = nil
			}
		}
	}

	for _, v := range allVars(fn) {
		if v.KilledIn == nil {
			v.KilledIn = make(map[*ir.BasicBlock]bool)
		}
		for _, b := range rpo {
			if b.LiveOut[v] {
				continue
			}
			if b.LiveIn[v] || b.Def[v] {
				v.KilledIn[b] = true
			}
		}
	}

	return pos
}

func setEqual(a, b map[*ir.Var]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}

func allVars(fn *ir.Func) []*ir.Var {
	seen := make(map[*ir.Var]bool)
	var out []*ir.Var
	add := func(v *ir.Var) {
		if v != nil && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, p := range fn.Params {
		add(p)
	}
	for _, b := range fn.Blocks {
		for ins := b.Insns.Head; ins != nil; ins = ins.Next {
			add(ins.Dest)
			add(ins.Src0)
			add(ins.Src1)
		}
	}
	return out
}
