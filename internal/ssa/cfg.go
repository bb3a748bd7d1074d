// Package ssa implements spec.md §4.4: dominator-tree construction,
// dominance-frontier computation, φ-function insertion, and variable
// renaming into minimal SSA form, followed by the optimization suite
// (constant folding, copy propagation, dead code elimination, algebraic
// simplification, branch simplification, and block merging) that runs to a
// fixed point over that form.
package ssa

import "cc32.dev/cc32/internal/ir"

// ReversePostorder walks fn's CFG from its entry block and returns blocks
// in reverse postorder, the linearization spec.md §4.4/§4.5 both build on.
// Unreachable blocks (never visited from Entry) are omitted, implementing
// spec.md invariant 1's pruning requirement.
func ReversePostorder(fn *ir.Func) []*ir.BasicBlock {
	visited := make(map[*ir.BasicBlock]bool)
	var post []*ir.BasicBlock
	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		if b == nil || visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Successors() {
			visit(s)
		}
		post = append(post, b)
	}
	visit(fn.Entry)
	out := make([]*ir.BasicBlock, len(post))
	for i, b := range post {
		out[len(post)-1-i] = b
		b.Reachable = true
	}
	for i, b := range out {
		b.RPO = i
	}
	return out
}

// BuildDominatorTree computes each reachable block's immediate dominator
// using the Cooper/Harvey/Kennedy iterative algorithm, then derives
// dominance frontiers and the Idom-children adjacency — spec.md §4.4 steps
// 1-2. rpo must be fn's blocks in the order ReversePostorder returns.
func BuildDominatorTree(fn *ir.Func, rpo []*ir.BasicBlock) {
	if len(rpo) == 0 {
		return
	}
	rpoIndex := make(map[*ir.BasicBlock]int, len(rpo))
	for i, b := range rpo {
		rpoIndex[b] = i
	}
	entry := rpo[0]
	entry.Idom = entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *ir.BasicBlock
			for _, p := range b.Predecessors() {
				if p.From.Idom == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p.From
					continue
				}
				newIdom = intersect(newIdom, p.From, rpoIndex)
			}
			if newIdom != nil && b.Idom != newIdom {
				b.Idom = newIdom
				changed = true
			}
		}
	}
	entry.Idom = nil // the entry block has no dominator, by convention

	for _, b := range rpo {
		b.DomChildren = nil
		b.DomFrontier = nil
	}
	for _, b := range rpo {
		if b.Idom != nil {
			b.Idom.DomChildren = append(b.Idom.DomChildren, b)
		}
	}
	for _, b := range rpo {
		preds := b.Predecessors()
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			runner := p.From
			for runner != nil && runner != b.Idom {
				runner.DomFrontier = append(runner.DomFrontier, b)
				runner = runner.Idom
			}
		}
	}
}

func intersect(a, b *ir.BasicBlock, rpoIndex map[*ir.BasicBlock]int) *ir.BasicBlock {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = a.Idom
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = b.Idom
		}
	}
	return a
}

// Dominates reports whether a dominates b (a == b counts as dominating).
func Dominates(a, b *ir.BasicBlock) bool {
	for b != nil {
		if b == a {
			return true
		}
		b = b.Idom
	}
	return false
}
