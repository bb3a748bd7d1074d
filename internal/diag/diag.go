// Package diag implements the error model of spec.md §7: every diagnostic
// carries a source location, is emitted once, and terminates the process —
// there is no recovery and no continue-after-first-error.
package diag

import (
	"fmt"

	"cc32.dev/cc32/internal/source"
)

// Kind distinguishes the error categories spec.md §7 enumerates, so a caller
// (or a bug tracker) can tell an internal-invariant failure from a plain
// user-facing syntax error.
type Kind int

const (
	Lexical Kind = iota
	Preprocessing
	Parse
	Semantic
	Codegen
	Internal
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Preprocessing:
		return "preprocessing"
	case Parse:
		return "parse"
	case Semantic:
		return "semantic"
	case Codegen:
		return "codegen"
	case Internal:
		return "internal"
	default:
		return "error"
	}
}

// Error is the single error type produced anywhere in the pipeline.
type Error struct {
	Loc     source.Loc
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Loc.File, e.Loc.Line, e.Loc.Col, e.Message)
}

func Errorf(loc source.Loc, kind Kind, format string, args ...any) *Error {
	return &Error{Loc: loc, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internalf builds an Internal-kind error: an invariant the compiler itself
// promised to maintain (spec.md §3 "Invariants", §7) was violated.
func Internalf(loc source.Loc, format string, args ...any) *Error {
	return Errorf(loc, Internal, format, args...)
}
