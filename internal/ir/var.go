package ir

// Var is var_t from spec.md §3, the central IR operand. Parameters and
// return values are modeled as variables of their owning function;
// variables are arena-allocated inside a Block's local table.
type Var struct {
	Name      string
	TypeName  string
	Type      *Type
	PtrDepth  int
	ArraySize int
	Offset    int // relative to frame (locals) or struct (fields)
	IsGlobal  bool
	IsFunc    bool // holds a function-pointer value

	// StrIndex is the string-literal pool index this variable denotes a
	// load_data_address of, or -1 if it is not a string literal.
	StrIndex int

	// IsLogicalRet/IsTernaryRet mark values that feed a short-circuit or
	// ternary merge block; the allocator and DCE must not treat them as
	// dead just because no ordinary instruction consumes them yet
	// (spec.md §4.4).
	IsLogicalRet bool
	IsTernaryRet bool

	// --- SSA fields (spec.md §3, populated by internal/ssa) ---
	Subscript int   // 0 = pre-SSA; >0 after renaming
	Base      *Var  // the unique pre-SSA root this was renamed from
	DefBlock  *BasicBlock

	// --- liveness fields (spec.md §3/§4.5, populated by internal/liveness) ---
	IntervalStart int
	IntervalEnd   int
	KilledIn      map[*BasicBlock]bool

	// --- register allocation fields (populated by internal/regalloc) ---
	Reg       int  // physical register index, or -1 if spilled
	SpillSlot int  // stack slot offset, valid when Reg == -1
	Spilled   bool
}

// IsPointer reports whether the variable's static type is a pointer.
func (v *Var) IsPointer() bool { return v.PtrDepth > 0 }

// ElemSize returns the size in bytes of what this variable points to (for
// pointer arithmetic) or of the variable itself otherwise.
func (v *Var) ElemSize() int {
	if v.PtrDepth > 1 {
		return PointerSize
	}
	if v.Type != nil {
		return v.Type.SizeOf()
	}
	return PointerSize
}

// Size returns the storage size of the variable itself.
func (v *Var) Size() int {
	if v.PtrDepth > 0 {
		if v.ArraySize > 0 {
			return PointerSize * v.ArraySize
		}
		return PointerSize
	}
	if v.ArraySize > 0 && v.Type != nil {
		return v.Type.SizeOf() * v.ArraySize
	}
	if v.Type != nil {
		return v.Type.SizeOf()
	}
	return PointerSize
}

// Root returns the pre-SSA variable (itself if not yet renamed).
func (v *Var) Root() *Var {
	if v.Base != nil {
		return v.Base
	}
	return v
}
