// Package regalloc implements spec.md §4.5's linear-scan register
// allocator: sort live intervals by start position, walk them maintaining
// an active set, evict the interval with the farthest-away end point when
// out of physical registers, and assign everything that never got a
// register a spill slot in the function's frame.
package regalloc

import (
	"sort"

	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/target"
)

// Result summarizes one function's allocation for internal/codegen: the
// final frame size (spec.md §4.5's frame-layout output) plus which
// variables spilled, kept here instead of only on ir.Var so tests can
// assert on it without re-walking the function.
type Result struct {
	FrameSize int
	Spilled   []*ir.Var
}

type interval struct {
	v          *ir.Var
	start, end int
}

// Allocate assigns a physical register (ir.Var.Reg) or a spill slot
// (ir.Var.SpillSlot, ir.Var.Spilled=true) to every variable in fn with a
// computed live interval (internal/liveness.Compute must run first),
// drawing only on t's general-purpose register list; the callee-saved,
// caller-saved and argument register roles are not consulted.
func Allocate(fn *ir.Func, t target.Target) *Result {
	regs := t.Regs()
	pool := append([]target.Reg(nil), regs.General...)

	intervals := collectIntervals(fn)
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })

	type active struct {
		interval
		reg target.Reg
	}
	var activeList []active
	free := make([]target.Reg, len(pool))
	copy(free, pool)

	res := &Result{}
	frameOffset := 0

	expireOld := func(at int) {
		kept := activeList[:0]
		for _, a := range activeList {
			if a.end < at {
				free = append(free, a.reg)
			} else {
				kept = append(kept, a)
			}
		}
		activeList = kept
	}

	spill := func(v *ir.Var) {
		size := v.Size()
		if size < 4 {
			size = 4
		}
		frameOffset += size
		v.Spilled = true
		v.Reg = -1
		v.SpillSlot = -frameOffset
		res.Spilled = append(res.Spilled, v)
	}

	for _, iv := range intervals {
		expireOld(iv.start)

		if len(free) == 0 {
			// Evict the active interval ending farthest in the future if it
			// outlives iv; otherwise iv itself spills (standard linear-scan
			// spill heuristic, spec.md §4.5).
			worst := -1
			for i, a := range activeList {
				if worst == -1 || a.end > activeList[worst].end {
					worst = i
				}
			}
			if worst >= 0 && activeList[worst].end > iv.end {
				victim := activeList[worst]
				spill(victim.v)
				activeList = append(activeList[:worst], activeList[worst+1:]...)
				free = append(free, victim.reg)
			} else {
				spill(iv.v)
				continue
			}
		}

		r := free[len(free)-1]
		free = free[:len(free)-1]
		iv.v.Reg = int(r)
		activeList = append(activeList, active{iv, r})
	}

	res.FrameSize = alignFrame(frameOffset)
	fn.FrameSize = res.FrameSize
	return res
}

func alignFrame(n int) int {
	const align = 8 // keeps the stack pointer doubleword-aligned per both target ABIs
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}

func collectIntervals(fn *ir.Func) []interval {
	seen := make(map[*ir.Var]bool)
	var out []interval
	add := func(v *ir.Var) {
		if v == nil || v.IsGlobal || v.IsFunc || seen[v] || v.IntervalStart < 0 {
			return
		}
		seen[v] = true
		out = append(out, interval{v: v, start: v.IntervalStart, end: v.IntervalEnd})
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
