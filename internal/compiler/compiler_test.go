package compiler

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cc32.dev/cc32/internal/clog"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.c")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestCompileProducesStaticELFForARM(t *testing.T) {
	path := writeSource(t, `int main() { return 0; }`)
	log := clog.New(clog.Quiet, io.Discard)

	res, err := Compile(path, Options{Target: "arm"}, log)
	require.NoError(t, err)
	require.NotEmpty(t, res.ELF)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, res.ELF[:4])
	assert.NotEmpty(t, res.Funcs)
}

func TestCompileProducesStaticELFForRISCV32(t *testing.T) {
	path := writeSource(t, `int main() { return 0; }`)
	log := clog.New(clog.Quiet, io.Discard)

	res, err := Compile(path, Options{Target: "riscv32"}, log)
	require.NoError(t, err)
	require.NotEmpty(t, res.ELF)
	assert.NotEmpty(t, res.Funcs)
}

func TestCompileWritesOutputFile(t *testing.T) {
	path := writeSource(t, `int main() { return 1; }`)
	out := filepath.Join(t.TempDir(), "a.out")
	log := clog.New(clog.Quiet, io.Discard)

	_, err := Compile(path, Options{Target: "arm", Output: out}, log)
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.Mode()&0o111 != 0, "emitted binary must be executable")
}

func TestCompileWithArithmeticAndCall(t *testing.T) {
	path := writeSource(t, `
		int add(int a, int b) { return a + b; }
		int main() { return add(1, 2); }
	`)
	log := clog.New(clog.Quiet, io.Discard)

	res, err := Compile(path, Options{Target: "arm"}, log)
	require.NoError(t, err)
	require.NotEmpty(t, res.Funcs)

	names := map[string]bool{}
	for _, f := range res.Funcs {
		names[f.Name] = true
	}
	assert.True(t, names["main"])
	assert.True(t, names["add"])
}

func TestCompileRejectsMissingEntryPoint(t *testing.T) {
	path := writeSource(t, `int notmain() { return 0; }`)
	log := clog.New(clog.Quiet, io.Discard)

	_, err := Compile(path, Options{Target: "arm"}, log)
	assert.Error(t, err)
}

func TestCompileHonorsCustomEntry(t *testing.T) {
	path := writeSource(t, `int start() { return 0; }`)
	log := clog.New(clog.Quiet, io.Discard)

	res, err := Compile(path, Options{Target: "arm", CustomEntry: "start"}, log)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ELF)
}

func TestCompileRejectsUnknownTarget(t *testing.T) {
	path := writeSource(t, `int main() { return 0; }`)
	log := clog.New(clog.Quiet, io.Discard)

	_, err := Compile(path, Options{Target: "made-up-arch"}, log)
	assert.Error(t, err)
}
