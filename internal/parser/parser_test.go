package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/lexer"
)

func parseSource(t *testing.T, src string) (*ir.Context, *ir.Func) {
	t.Helper()
	head, err := lexer.New("t.c", []byte(src)).Lex()
	require.NoError(t, err)

	ctx := ir.NewContext()
	t.Cleanup(ctx.Release)

	initFn, err := New(ctx, head).ParseProgram()
	require.NoError(t, err)
	require.NotNil(t, initFn)

	return ctx, initFn
}

func TestParseSimpleReturnBuildsExitEdge(t *testing.T) {
	ctx, _ := parseSource(t, "int main() { return 42; }")

	fn, ok := ctx.Sym.Funcs["main"]
	require.True(t, ok, "main must be registered as a function symbol")
	require.NotNil(t, fn.Entry)
	require.NotNil(t, fn.Exit)

	// the return statement loads the constant into a temp, assigns it into
	// RetVar, and jumps to the function's single exit block.
	var retSrc *ir.Var
	var sawJump bool
	for ins := fn.Entry.Insns.Head; ins != nil; ins = ins.Next {
		if ins.Op == ir.OpAssign && ins.Dest == fn.RetVar {
			retSrc = ins.Src0
		}
		if ins.Op == ir.OpJump && ins.Str == fn.Exit.Label {
			sawJump = true
		}
	}
	require.NotNil(t, retSrc, "return must assign its value into RetVar")

	var loadedConst *ir.Insn
	for ins := fn.Entry.Insns.Head; ins != nil; ins = ins.Next {
		if ins.Op == ir.OpLoadConstant && ins.Dest == retSrc {
			loadedConst = ins
		}
	}
	require.NotNil(t, loadedConst, "the returned temp must come from a load_constant")
	assert.EqualValues(t, 42, loadedConst.Const)
	assert.True(t, sawJump)
	assertHasPredecessor(t, fn.Exit, fn.Entry)
}

func TestParseArithmeticExpressionLowersToAdd(t *testing.T) {
	ctx, _ := parseSource(t, "int main() { return 1 + 2; }")
	fn := ctx.Sym.Funcs["main"]

	var addIns *ir.Insn
	for ins := fn.Entry.Insns.Head; ins != nil; ins = ins.Next {
		if ins.Op == ir.OpAdd {
			addIns = ins
		}
	}
	require.NotNil(t, addIns, "1 + 2 must lower to an OpAdd instruction")
}

func TestParseIfStmtBuildsDiamondCFG(t *testing.T) {
	ctx, _ := parseSource(t, `
		int main() {
			int x;
			if (1) { x = 1; } else { x = 2; }
			return x;
		}
	`)
	fn := ctx.Sym.Funcs["main"]

	// entry branches to if.then/if.else, both of which must reach if.end.
	var branchIns *ir.Insn
	for ins := fn.Entry.Insns.Head; ins != nil; ins = ins.Next {
		if ins.Op == ir.OpBranch {
			branchIns = ins
		}
	}
	require.NotNil(t, branchIns)
	assert.NotEmpty(t, branchIns.ThenLabel)
	assert.NotEmpty(t, branchIns.ElseLabel)
	assert.NotEqual(t, branchIns.ThenLabel, branchIns.ElseLabel)

	// both branches of the if must eventually flow into the function exit.
	found := false
	for _, b := range fn.Blocks {
		if b.Label == branchIns.ThenLabel || b.Label == branchIns.ElseLabel {
			found = true
		}
	}
	assert.True(t, found, "branch targets must exist among the function's blocks")
}

func TestParseWhileLoopConnectsBackEdge(t *testing.T) {
	ctx, _ := parseSource(t, `
		int main() {
			int i;
			i = 0;
			while (i) { i = i; }
			return 0;
		}
	`)
	fn := ctx.Sym.Funcs["main"]

	var header *ir.BasicBlock
	for _, b := range fn.Blocks {
		if b.Label == fn.Name+".while.cond" {
			header = b
		}
	}
	require.NotNil(t, header, "while must allocate a loop-header block")

	var body *ir.BasicBlock
	for _, b := range fn.Blocks {
		if b.Label == fn.Name+".while.body" {
			body = b
		}
	}
	require.NotNil(t, body)
	assertHasPredecessor(t, header, body)
}

func assertHasPredecessor(t *testing.T, b, want *ir.BasicBlock) {
	t.Helper()
	for _, pred := range b.Predecessors() {
		if pred.From == want {
			return
		}
	}
	t.Fatalf("block %q has no predecessor edge from %q", b.Label, want.Label)
}

func TestParseRejectsUndefinedLabelGoto(t *testing.T) {
	head, err := lexer.New("t.c", []byte("int main() { goto nowhere; return 0; }")).Lex()
	require.NoError(t, err)
	ctx := ir.NewContext()
	defer ctx.Release()

	_, err = New(ctx, head).ParseProgram()
	assert.Error(t, err, "a goto to an undefined label must be rejected")
}
