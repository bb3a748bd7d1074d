package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc32.dev/cc32/internal/token"
)

func collect(t *testing.T, src string) []*token.Token {
	t.Helper()
	lx := New("t.c", []byte(src))
	head, err := lx.Lex()
	require.NoError(t, err)
	var out []*token.Token
	for tok := head; tok != nil && tok.Kind != token.EOF; tok = tok.Next {
		if token.IsSpace(tok.Kind) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func TestIdentifiersAndKeywords(t *testing.T) {
	toks := collect(t, "int x = if_like;")
	require.Len(t, toks, 5)
	assert.Equal(t, token.Keyword, toks[0].Kind)
	assert.Equal(t, "int", toks[0].Literal)
	assert.Equal(t, token.Ident, toks[1].Kind)
	assert.Equal(t, "x", toks[1].Literal)
}

func TestIntegerLiteralRadixes(t *testing.T) {
	toks := collect(t, "0x1F 010 0b101 42")
	require.Len(t, toks, 4)
	assert.EqualValues(t, 31, toks[0].IntVal)
	assert.EqualValues(t, 8, toks[1].IntVal)
	assert.EqualValues(t, 5, toks[2].IntVal)
	assert.EqualValues(t, 42, toks[3].IntVal)
}

func TestStringEscapes(t *testing.T) {
	toks := collect(t, `"a\nb\x41\0"`)
	require.Len(t, toks, 1)
	assert.Equal(t, token.StringLit, toks[0].Kind)
	assert.Equal(t, "a\nbA\x00", toks[0].Literal)
}

// TestIdentifierLengthBoundary exercises spec.md §8's explicit 256/257-byte
// token boundary: a 256-byte identifier lexes cleanly, a 257-byte one is
// rejected.
func TestIdentifierLengthBoundary(t *testing.T) {
	ok := "a" + strings.Repeat("b", 255) // 256 bytes total
	toks := collect(t, ok)
	require.Len(t, toks, 1)
	assert.Len(t, toks[0].Literal, 256)

	lx := New("t.c", []byte("a"+strings.Repeat("b", 256))) // 257 bytes
	_, err := lx.Lex()
	assert.Error(t, err)
}

func TestPunctuatorLongestMatch(t *testing.T) {
	toks := collect(t, "a<<=b a<<b a<b")
	require.Len(t, toks, 9)
	assert.Equal(t, token.ShlEq, toks[1].Kind)
	assert.Equal(t, token.Shl, toks[4].Kind)
	assert.Equal(t, token.Lt, toks[7].Kind)
}
