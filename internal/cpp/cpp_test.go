package cpp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"cc32.dev/cc32/internal/token"
)

// renderOutput joins every output token's literal with a space, giving a
// stable, whitespace-insensitive rendering to compare against a golden
// fixture without caring about the exact column spacing of the input.
func renderOutput(head *token.Token) string {
	var parts []string
	for t := head; t != nil && t.Kind != token.EOF; t = t.Next {
		lit := t.Literal
		if lit == "" {
			lit = t.Kind.String()
		}
		parts = append(parts, lit)
	}
	return strings.Join(parts, " ")
}

// goldenCases are stored as a txtar archive so each macro-expansion
// scenario's input and expected token rendering live side by side in one
// reviewable fixture (golang.org/x/tools/txtar), rather than one Go string
// literal per case.
var goldenCases = txtar.Parse([]byte(`
-- object-like/input.c --
#define WIDTH 80
int w = WIDTH;
-- object-like/expected --
int w = 80 ;

-- function-like/input.c --
#define MAX(a, b) ((a) > (b) ? (a) : (b))
int m = MAX(1, 2);
-- function-like/expected --
int m = ( ( 1 ) > ( 2 ) ? ( 1 ) : ( 2 ) ) ;

-- if-else/input.c --
#define FLAG 1
#if FLAG
int x = 1;
#else
int x = 2;
#endif
-- if-else/expected --
int x = 1 ;

-- self-macro/input.c --
int v = __CC32__;
-- self-macro/expected --
int v = 1 ;
`))

func fixture(t *testing.T, name string) (string, string) {
	t.Helper()
	var input, expected string
	for _, f := range goldenCases.Files {
		switch f.Name {
		case name + "/input.c":
			input = string(f.Data)
		case name + "/expected":
			expected = strings.TrimSpace(string(f.Data))
		}
	}
	require.NotEmpty(t, input, "missing fixture %s/input.c", name)
	return input, expected
}

func TestObjectLikeMacroExpansion(t *testing.T) {
	input, expected := fixture(t, "object-like")
	p := New(NopIncluder{})
	require.NoError(t, p.ProcessFile("t.c", []byte(input)))
	assert.Equal(t, expected, strings.TrimSpace(renderOutput(p.Output())))
}

func TestFunctionLikeMacroExpansion(t *testing.T) {
	input, expected := fixture(t, "function-like")
	p := New(NopIncluder{})
	require.NoError(t, p.ProcessFile("t.c", []byte(input)))
	assert.Equal(t, expected, strings.TrimSpace(renderOutput(p.Output())))
}

func TestConditionalCompilation(t *testing.T) {
	input, expected := fixture(t, "if-else")
	p := New(NopIncluder{})
	require.NoError(t, p.ProcessFile("t.c", []byte(input)))
	assert.Equal(t, expected, strings.TrimSpace(renderOutput(p.Output())))
}

func TestSelfIdentificationMacro(t *testing.T) {
	input, expected := fixture(t, "self-macro")
	p := New(NopIncluder{})
	require.NoError(t, p.ProcessFile("t.c", []byte(input)))
	assert.Equal(t, expected, strings.TrimSpace(renderOutput(p.Output())))
}
