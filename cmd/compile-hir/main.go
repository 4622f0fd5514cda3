// Command compile-hir compiles an HIR source file down through SAM and LIR
// into Brainfuck text, optionally optimizing and/or running it immediately.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/brainpluck"
	"github.com/xyproto/env/v2"
)

func main() {
	optTimeout := flag.Float64("opt-timeout", env.Float64("BRAINPLUCK_OPT_TIMEOUT", 2.0), "BF optimizer fixed-point timeout in seconds; 0 disables optimization")
	run := flag.Bool("run", false, "run the compiled program against stdin/stdout instead of printing its BF text")
	flag.Parse()

	brainpluck.Verbose = env.Bool("BRAINPLUCK_VERBOSE")

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: compile-hir [-run] <file.hir>")
		os.Exit(2)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile-hir: %v\n", err)
		os.Exit(1)
	}

	ops, err := compile(string(src), *optTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile-hir: %v\n", err)
		os.Exit(1)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if *run {
		state := brainpluck.NewState().WithTapeLimit(env.Int("BRAINPLUCK_TAPE_LIMIT", 0))
		if err := state.RunOps(ops, os.Stdin, out); err != nil {
			fmt.Fprintf(os.Stderr, "compile-hir: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintln(out, brainpluck.OpsToString(ops))
}

// compile runs the full HIR -> SAM -> LIR -> BF pipeline, then optionally
// folds the result through the BF optimizer.
func compile(src string, optTimeout float64) ([]brainpluck.BfOp, error) {
	prog, err := brainpluck.ParseHir(src)
	if err != nil {
		return nil, fmt.Errorf("hir parse: %w", err)
	}

	fns, err := brainpluck.HirToSam(prog)
	if err != nil {
		return nil, fmt.Errorf("hir2sam: %w", err)
	}

	img, err := brainpluck.LinkSamFns(fns)
	if err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}

	lir, _ := brainpluck.SamToLir(img)
	ops := brainpluck.LowerLirToBf(lir)

	return brainpluck.OptimizeBf(ops, optTimeout)
}
