// Command cc32 is the driver binary for spec.md §6: it resolves flags,
// reads one C source file, and runs it through internal/compiler's
// pipeline to a static ELF executable for the chosen target.
package main

import (
	"flag"
	"fmt"
	"os"

	"cc32.dev/cc32/internal/clog"
	"cc32.dev/cc32/internal/compiler"
	"cc32.dev/cc32/internal/diag"
	"cc32.dev/cc32/internal/profile"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// "+m" is recorded in compiler.Options.SoftwareMul, which no
	// compilation stage reads, so it does not change the generated code.
	// It predates getopt-style flags in this dialect's own toolchain; the standard
	// library's flag package only parses "-"-prefixed flags, so it's
	// stripped out of argv before flag.Parse ever sees it.
	softwareMul := false
	rest := args[:0:0]
	for _, a := range args {
		if a == "+m" {
			softwareMul = true
			continue
		}
		rest = append(rest, a)
	}

	fs := flag.NewFlagSet("cc32", flag.ContinueOnError)
	output := fs.String("o", "a.out", "output executable path")
	dumpIR := fs.Bool("dump-ir", false, "dump first-phase IR for every function to stderr")
	noLibc := fs.Bool("no-libc", false, "accepted for compatibility; no libc is bundled, so the output is always freestanding")
	custom := fs.String("custom", "", "use NAME instead of main as the program entry point")
	targetName := fs.String("target", "arm", `target architecture: "arm" or "riscv32"`)
	verbose := fs.Bool("v", false, "print per-stage compilation progress")
	debug := fs.Bool("vv", false, "print first-phase IR and pass output (implies -v)")
	profilePath := fs.String("profile-compile", "", "capture a CPU profile of the compile itself to FILE")
	goldenUpdate := fs.Bool("golden-update", false, "write a .golden companion file next to the output for regression fixtures")
	dumpArchive := fs.Bool("dump-archive", false, "print each function's compiled size and offset")

	if err := fs.Parse(rest); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cc32 [flags] FILE.c")
		return 2
	}

	level := clog.Quiet
	if *verbose {
		level = clog.Verbose
	}
	if *debug || *dumpIR {
		level = clog.Debug
	}
	if *dumpArchive && level < clog.Verbose {
		level = clog.Verbose
	}
	log := clog.New(level, os.Stderr)

	var rec *profile.Recorder
	if *profilePath != "" {
		var err error
		rec, err = profile.Start()
		if err != nil {
			log.Errorf("starting profile: %v", err)
			return 1
		}
	}

	opts := compiler.Options{
		Target:      *targetName,
		Output:      *output,
		SoftwareMul: softwareMul,
		DumpIR:      *dumpIR || *debug,
		NoLibc:      *noLibc,
		CustomEntry: *custom,
		DumpArchive: *dumpArchive,
	}

	result, err := compiler.Compile(fs.Arg(0), opts, log)

	if rec != nil {
		summary, serr := rec.StopAndWrite(*profilePath)
		if serr != nil {
			log.Errorf("writing profile: %v", serr)
		} else if *verbose || *debug {
			log.Verbosef("profile: %d samples captured", summary.TotalSamples)
			for _, f := range summary.TopFunctions {
				log.Verbosef("  %-40s %d", f.Name, f.Samples)
			}
		}
	}

	if err != nil {
		if derr, ok := err.(*diag.Error); ok {
			fmt.Fprintln(os.Stderr, derr.Error())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}

	if *goldenUpdate {
		if werr := os.WriteFile(*output+".golden", result.ELF, 0o644); werr != nil {
			log.Errorf("writing golden fixture: %v", werr)
			return 1
		}
	}

	return 0
}
