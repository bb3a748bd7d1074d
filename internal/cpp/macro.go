package cpp

import "cc32.dev/cc32/internal/token"

// Macro is one #define entry. Disabled (not deleted) by #undef: a later
// #define re-enables it and replaces its body.
type Macro struct {
	Name           string
	IsFunctionLike bool
	Params         []string
	Variadic       bool
	Body           []*token.Token
	Disabled       bool
}

// sameBody reports whether two replacement lists are token-for-token
// identical (kind + literal), used to decide whether a #define
// redefinition is the silently-allowed identical-body case documented in
// SPEC_FULL.md's preprocessor clarification.
func sameBody(a, b []*token.Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Literal != b[i].Literal {
			return false
		}
	}
	return true
}

func sameParams(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
