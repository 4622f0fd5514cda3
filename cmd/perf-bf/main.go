// Command perf-bf times a Brainfuck program's interpreted execution, with
// and without the optimizer, to make the optimizer's effect measurable.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xyproto/brainpluck"
	"github.com/xyproto/env/v2"
)

func main() {
	optTimeout := flag.Float64("opt-timeout", env.Float64("BRAINPLUCK_OPT_TIMEOUT", 2.0), "BF optimizer fixed-point timeout in seconds; 0 disables optimization")
	flag.Parse()

	brainpluck.Verbose = env.Bool("BRAINPLUCK_VERBOSE")

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: perf-bf <file.bf>")
		os.Exit(2)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "perf-bf: %v\n", err)
		os.Exit(1)
	}

	ops, err := brainpluck.ParseBf(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "perf-bf: parse error: %v\n", err)
		os.Exit(1)
	}

	tapeLimit := env.Int("BRAINPLUCK_TAPE_LIMIT", 0)

	unoptDur, err := timeRun(ops, tapeLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "perf-bf: unoptimized run: %v\n", err)
		os.Exit(1)
	}

	optOps, err := brainpluck.OptimizeBf(ops, *optTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "perf-bf: optimizer: %v\n", err)
		os.Exit(1)
	}

	optDur, err := timeRun(optOps, tapeLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "perf-bf: optimized run: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("unoptimized: %d ops, %s\n", countOps(ops), unoptDur)
	fmt.Printf("optimized:   %d ops, %s\n", countOps(optOps), optDur)
	if optDur > 0 {
		fmt.Printf("speedup:     %.2fx\n", float64(unoptDur)/float64(optDur))
	}
}

func timeRun(ops []brainpluck.BfOp, tapeLimit int) (time.Duration, error) {
	state := brainpluck.NewState().WithTapeLimit(tapeLimit)
	start := time.Now()
	err := state.RunOps(ops, discardReader{}, io.Discard)
	return time.Since(start), err
}

func countOps(ops []brainpluck.BfOp) int {
	n := len(ops)
	for _, op := range ops {
		if loop, ok := op.(brainpluck.OpLoop); ok {
			n += countOps(loop.Body)
		}
	}
	return n
}

// discardReader feeds EOF to any , encountered during a perf run: timing is
// about execution cost, not about exercising a real input stream.
type discardReader struct{}

func (discardReader) Read([]byte) (int, error) { return 0, io.EOF }
