// Package profile wires the compiler driver's --profile-compile=FILE flag
// (spec.md §6) to Go's runtime CPU profiler and
// github.com/google/pprof/profile for the post-run summary this driver
// prints when -v is also set — the DOMAIN STACK wiring for a dependency
// ymm135-go's build already carries but tinyrange-rtg's own driver never
// needed.
package profile

import (
	"bytes"
	"fmt"
	"os"
	"runtime/pprof"
	"sort"

	gprofile "github.com/google/pprof/profile"
)

// Recorder wraps one compile invocation's CPU profile capture.
type Recorder struct {
	buf *bytes.Buffer
}

// Start begins CPU profiling into an in-memory buffer; compilation runs
// are short enough that buffering the whole profile before writing it out
// is simpler than streaming to disk.
func Start() (*Recorder, error) {
	r := &Recorder{buf: &bytes.Buffer{}}
	if err := pprof.StartCPUProfile(r.buf); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return r, nil
}

// FunctionTime is one line of the --profile-compile summary: a compiler
// function and the number of CPU profile samples attributed to it.
type FunctionTime struct {
	Name    string
	Samples int64
}

// Summary is what cmd/cc32 prints to stderr under -v after a profiled run.
type Summary struct {
	TotalSamples int64
	TopFunctions []FunctionTime
}

// StopAndWrite stops CPU profiling, optionally persists the raw pprof
// protobuf to path (empty skips the write), and returns a summary parsed
// back via github.com/google/pprof/profile — the same library `go tool
// pprof` itself is built from, reused here to read what runtime/pprof
// wrote rather than hand-parsing the protobuf.
func (r *Recorder) StopAndWrite(path string) (*Summary, error) {
	pprof.StopCPUProfile()
	data := r.buf.Bytes()

	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("profile: writing %s: %w", path, err)
		}
	}

	prof, err := gprofile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("profile: parsing captured profile: %w", err)
	}
	return summarize(prof), nil
}

func summarize(prof *gprofile.Profile) *Summary {
	totals := make(map[string]int64)
	var total int64
	for _, s := range prof.Sample {
		if len(s.Value) == 0 {
			continue
		}
		v := s.Value[0]
		total += v
		for _, loc := range s.Location {
			for _, ln := range loc.Line {
				if ln.Function != nil {
					totals[ln.Function.Name] += v
				}
			}
		}
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return totals[names[i]] > totals[names[j]] })
	if len(names) > 10 {
		names = names[:10]
	}
	out := &Summary{TotalSamples: total}
	for _, n := range names {
		out.TopFunctions = append(out.TopFunctions, FunctionTime{Name: n, Samples: totals[n]})
	}
	return out
}
