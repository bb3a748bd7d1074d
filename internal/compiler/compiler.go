// Package compiler orchestrates spec.md's full pipeline end to end:
// preprocessing, parsing into first-phase IR/CFG, SSA construction and
// optimization, liveness, register allocation, peephole cleanup plus CFG
// flattening, per-target code generation, and ELF emission. cmd/cc32 is a
// thin flag-parsing shell around this package, the way the teacher keeps
// its own driver logic out of main.go.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cc32.dev/cc32/internal/clog"
	"cc32.dev/cc32/internal/codegen"
	"cc32.dev/cc32/internal/codegen/arm"
	"cc32.dev/cc32/internal/codegen/riscv"
	"cc32.dev/cc32/internal/cpp"
	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/elfwriter"
	"cc32.dev/cc32/internal/ir"
	"cc32.dev/cc32/internal/liveness"
	"cc32.dev/cc32/internal/parser"
	"cc32.dev/cc32/internal/peephole"
	"cc32.dev/cc32/internal/regalloc"
	"cc32.dev/cc32/internal/source"
	"cc32.dev/cc32/internal/ssa"
	"cc32.dev/cc32/internal/target"
)

// Options mirrors the CLI surface spec.md §6 specifies.
type Options struct {
	Target       string // "arm" or "riscv32"
	Output       string // -o
	SoftwareMul  bool   // +m: recorded only; no compilation stage reads it
	DumpIR       bool   // --dump-ir
	NoLibc       bool   // --no-libc
	CustomEntry  string // --custom: alternate entry symbol instead of main
	DumpArchive  bool   // --dump-archive: print per-function code size table
}

// DiskIncluder resolves #include paths against the real filesystem,
// relative first to the including file's directory and then to a fixed
// search path list (spec.md §6: "paths are resolved by the driver").
type DiskIncluder struct {
	SearchPaths []string
}

func (d DiskIncluder) Resolve(curFile, path string, angled bool) (string, []byte, bool) {
	candidates := []string{}
	if !angled {
		candidates = append(candidates, filepath.Join(filepath.Dir(curFile), path))
	}
	for _, sp := range d.SearchPaths {
		candidates = append(candidates, filepath.Join(sp, path))
	}
	for _, c := range candidates {
		if data, err := os.ReadFile(c); err == nil {
			return c, data, true
		}
	}
	return "", nil, false
}

// Result is one compiled translation unit's output, ready to write to
// Options.Output.
type Result struct {
	ELF   []byte
	Funcs []*codegen.Function
}

// Compile runs the full pipeline over the file at path.
func Compile(path string, opts Options, log *clog.Logger) (*Result, error) {
	t, err := target.ByName(opts.Target)
	if err != nil {
		return nil, err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compiler: reading %s: %w", path, err)
	}

	log.Verbosef("preprocessing %s", path)
	registry := source.NewRegistry()
	registry.Add(path, src)

	pp := cpp.New(DiskIncluder{SearchPaths: []string{filepath.Dir(path)}})
	if err := pp.ProcessFile(path, src); err != nil {
		return nil, err
	}
	head := pp.Output()
	log.Verbosef("preprocessed into %d source file(s)", len(registry.Names()))

	ctx := ir.NewContext()
	defer ctx.Release()

	log.Verbosef("parsing")
	p := parser.New(ctx, head)
	mainFn, err := p.ParseProgram()
	if err != nil {
		return nil, err
	}

	if opts.DumpIR {
		dumpFirstPhase(mainFn, log)
		for _, fn := range ctx.Sym.Funcs {
			dumpFirstPhase(fn, log)
		}
	}

	entryName := "main"
	if opts.CustomEntry != "" {
		entryName = opts.CustomEntry
	}
	entryFn, ok := ctx.Sym.Funcs[entryName]
	if !ok {
		return nil, diag.Errorf(source.Loc{File: path}, diag.Semantic, "no definition for entry point %q", entryName)
	}

	var funcs []*ir.Func
	funcs = append(funcs, mainFn)
	for _, fn := range ctx.Sym.Funcs {
		if fn.Entry != nil { // only defined (not merely declared/prototype) functions have a body to compile
			funcs = append(funcs, fn)
		}
	}

	var compiled []*codegen.Function
	for _, fn := range funcs {
		log.Verbosef("compiling %s", fn.Name)
		rpo := ssa.Construct(ctx, fn)
		ssa.Optimize(fn, rpo)
		liveness.Compute(fn, rpo)
		regalloc.Allocate(fn, t)
		order := peephole.Run(fn, rpo)

		var out *codegen.Function
		var err error
		switch opts.Target {
		case "arm":
			out, err = arm.Emit(fn, order)
		case "riscv32":
			out, err = riscv.Emit(fn, order)
		}
		if err != nil {
			return nil, fmt.Errorf("compiler: codegen for %s: %w", fn.Name, err)
		}
		compiled = append(compiled, out)
	}

	machine := elfwriter.MachineARM
	if opts.Target == "riscv32" {
		machine = elfwriter.MachineRISCV
	}

	obj := &elfwriter.Object{Machine: machine}
	entryOffset := 0
	for _, f := range compiled {
		if f.Name == entryFn.Name {
			entryOffset = len(obj.Text)
		}
		f.Offset = len(obj.Text)
		obj.Text = append(obj.Text, f.Code...)
	}
	obj.EntryOffset = entryOffset
	for _, s := range ctx.Sym.Strings {
		obj.Data = append(obj.Data, []byte(s)...)
		obj.Data = append(obj.Data, 0)
	}

	if opts.DumpArchive {
		for _, f := range compiled {
			log.Verbosef("  %-24s %6d bytes @ +0x%x", f.Name, len(f.Code), f.Offset)
		}
	}

	elf := elfwriter.Write(obj)

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, elf, 0o755); err != nil {
			return nil, fmt.Errorf("compiler: writing %s: %w", opts.Output, err)
		}
	}

	return &Result{ELF: elf, Funcs: compiled}, nil
}

func dumpFirstPhase(fn *ir.Func, log *clog.Logger) {
	if fn == nil {
		return
	}
	log.Debugf("function %s:", fn.Name)
	for ins := fn.FirstPhase.Head; ins != nil; ins = ins.Next {
		log.Debugf("  %s", ins.Op)
	}
}
