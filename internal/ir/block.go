package ir

// EdgeKind tags a control-flow edge the way spec.md §3 requires: NEXT is
// unconditional fall-through, THEN/ELSE are the two sides of a conditional
// branch.
type EdgeKind int

const (
	EdgeNext EdgeKind = iota
	EdgeThen
	EdgeElse
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeThen:
		return "THEN"
	case EdgeElse:
		return "ELSE"
	default:
		return "NEXT"
	}
}

// maxPredecessors bounds the fixed-capacity predecessor array spec.md §3
// describes; real C control flow never approaches this, so overflow is an
// internal-invariant failure rather than a user-facing diagnostic.
const maxPredecessors = 64

// Pred records one incoming edge and the kind that produced it.
type Pred struct {
	From *BasicBlock
	Kind EdgeKind
}

// BasicBlock is basic_block_t from spec.md §3.
type BasicBlock struct {
	Label string
	Func  *Func
	Scope *Block

	Insns InsnList

	Then *BasicBlock
	Else *BasicBlock
	Next *BasicBlock

	Preds    [maxPredecessors]Pred
	PredCnt  int

	// Liveness summary (spec.md §4.5), keyed by pre-SSA root in
	// post-allocation passes or by SSA variable during SSA-level liveness.
	Def     map[*Var]bool
	Use     map[*Var]bool
	LiveIn  map[*Var]bool
	LiveOut map[*Var]bool

	// Dominator tree fields (spec.md §4.4 step 1-2).
	Idom        *BasicBlock
	DomChildren []*BasicBlock
	DomFrontier []*BasicBlock

	// RPO is this block's index in the single reverse-post-order
	// linearization spec.md §4.5 requires for ordering live ranges.
	RPO int

	// Reachable/pruned bookkeeping for spec.md invariant 1.
	Reachable bool

	// Sealed marks a block whose predecessor set is final, used during
	// SSA renaming/phi insertion over irreducible-looking loop headers.
	Sealed bool
}

func NewBasicBlock(label string, fn *Func, scope *Block) *BasicBlock {
	return &BasicBlock{
		Label: label,
		Func:  fn,
		Scope: scope,
		Def:   make(map[*Var]bool),
		Use:   make(map[*Var]bool),
	}
}

// AddPred records an incoming edge, enforcing the fixed predecessor
// capacity (an internal-invariant failure, not a user diagnostic, since no
// real C program approaches it).
func (b *BasicBlock) AddPred(from *BasicBlock, kind EdgeKind) {
	if b.PredCnt >= maxPredecessors {
		panic("basic block exceeded maximum predecessor capacity")
	}
	b.Preds[b.PredCnt] = Pred{From: from, Kind: kind}
	b.PredCnt++
}

func (b *BasicBlock) Predecessors() []Pred {
	return b.Preds[:b.PredCnt]
}

// ConnectNext wires an unconditional fall-through edge from b to to.
func (b *BasicBlock) ConnectNext(to *BasicBlock) {
	b.Next = to
	to.AddPred(b, EdgeNext)
}

// ConnectBranch wires a conditional branch's THEN/ELSE edges.
func (b *BasicBlock) ConnectBranch(then, els *BasicBlock) {
	b.Then = then
	b.Else = els
	then.AddPred(b, EdgeThen)
	els.AddPred(b, EdgeElse)
}

// Successors returns the up-to-two successors in a stable order (Then,
// Else, Next — at most one of {Then,Else} and Next is ever jointly set
// except during incremental CFG construction).
func (b *BasicBlock) Successors() []*BasicBlock {
	var out []*BasicBlock
	if b.Then != nil {
		out = append(out, b.Then)
	}
	if b.Else != nil {
		out = append(out, b.Else)
	}
	if b.Next != nil {
		out = append(out, b.Next)
	}
	return out
}

// --- Lexical scope (block_t) ---

// maxLocals matches spec.md §4.3's "too many locals (>~1024 per scope)"
// failure case.
const maxLocals = 1024

// Block is block_t: a lexical scope, holding the bounded locals table for
// this nesting level.
type Block struct {
	Locals []*Var
	Parent *Block
	Func   *Func

	// MacroCtx is the optional function-like-macro expansion context in
	// effect during parse (spec.md §3); kept untyped here so internal/ir
	// has no dependency on internal/cpp.
	MacroCtx any
}

func NewBlock(parent *Block, fn *Func) *Block {
	return &Block{Parent: parent, Func: fn}
}

// AddLocal appends v to this scope's locals table, enforcing maxLocals.
// Returns false if the scope is full; the caller raises the spec.md §4.3
// "too many locals" diagnostic.
func (b *Block) AddLocal(v *Var) bool {
	if len(b.Locals) >= maxLocals {
		return false
	}
	b.Locals = append(b.Locals, v)
	return true
}

// Lookup searches this scope then each enclosing scope for name.
func (b *Block) Lookup(name string) *Var {
	for s := b; s != nil; s = s.Parent {
		for _, v := range s.Locals {
			if v.Name == name {
				return v
			}
		}
	}
	return nil
}
