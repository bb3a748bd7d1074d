package ir

// SymbolTable groups the global, write-mostly-during-parse tables spec.md
// §3 names: FUNCS, TYPES, ALIASES, CONSTANTS. It is threaded through a
// compiler Context rather than kept as package-level state, so repeated
// in-process compilations never leak state across runs (spec.md §9).
type SymbolTable struct {
	Funcs     map[string]*Func
	Types     map[string]*Type
	Aliases   map[string][]string // #define object-like macro name -> replacement text, for diagnostics/dumps
	Constants map[string]int64    // enum constants and integer #defines folded to a value
	Globals   []*Var
	globalIdx map[string]*Var

	// Strings is the pool of distinct string-literal contents encountered
	// during parsing, appended NUL-terminated to the ELF data section
	// (elfwriter.Object.Data) by internal/compiler. Index is the
	// stable identity used by load_data_address.
	Strings   []string
	stringIdx map[string]int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Funcs:     make(map[string]*Func),
		Types:     make(map[string]*Type),
		Aliases:   make(map[string][]string),
		Constants: make(map[string]int64),
		globalIdx: make(map[string]*Var),
		stringIdx: make(map[string]int),
	}
}

// InternString returns the stable index of s in the string pool, adding it
// if this is the first occurrence (spec.md §4.3's literal pooling).
func (s *SymbolTable) InternString(str string) int {
	if idx, ok := s.stringIdx[str]; ok {
		return idx
	}
	idx := len(s.Strings)
	s.Strings = append(s.Strings, str)
	s.stringIdx[str] = idx
	return idx
}

func (s *SymbolTable) AddGlobal(v *Var) {
	v.IsGlobal = true
	s.Globals = append(s.Globals, v)
	s.globalIdx[v.Name] = v
}

func (s *SymbolTable) LookupGlobal(name string) (*Var, bool) {
	v, ok := s.globalIdx[name]
	return v, ok
}

// InstallBuiltinTypes seeds TYPES with void/char/int, matching spec.md §6's
// accepted dialect (no float/double, no long/short — pointer-sized int
// only) and §3's base-kind tag set.
func (s *SymbolTable) InstallBuiltinTypes() {
	s.Types["void"] = &Type{Name: "void", Kind: KindVoid, Size: 0, Complete: true}
	s.Types["char"] = &Type{Name: "char", Kind: KindChar, Size: 1, Complete: true}
	s.Types["int"] = &Type{Name: "int", Kind: KindInt, Size: 4, Complete: true}
	// _Bool is aliased to char of size 1 (spec.md §6).
	s.Types["_Bool"] = &Type{Name: "_Bool", Kind: KindChar, Size: 1, Complete: true}
}
