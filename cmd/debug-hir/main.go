// Command debug-hir compiles an HIR source file to a linked SAM image and
// single-steps it, printing register state after every instruction.
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
	flag.Parse()
	brainpluck.Verbose = env.Bool("BRAINPLUCK_VERBOSE")

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: debug-hir <file.hir>")
		os.Exit(2)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug-hir: %v\n", err)
		os.Exit(1)
	}

	prog, err := brainpluck.ParseHir(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug-hir: hir parse: %v\n", err)
		os.Exit(1)
	}

	fns, err := brainpluck.HirToSam(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug-hir: hir2sam: %v\n", err)
		os.Exit(1)
	}

	img, err := brainpluck.LinkSamFns(fns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug-hir: link: %v\n", err)
		os.Exit(1)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	state := brainpluck.NewSamState(img)
	step := 0
	for !state.Halted {
		ip, a, b, x, y := state.InstrPtr, state.A, state.B, state.X, state.Y
		op := state.DecodeNextOp()
		if err := state.Step(os.Stdin, out); err != nil {
			out.Flush()
			fmt.Fprintf(os.Stderr, "debug-hir: step %d at ip=%d: %v\n", step, ip, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "%4d  ip=%-6d %-20T A=%-10d B=%-10d X=%-3d Y=%-3d\n", step, ip, op, a, b, x, y)
		step++
	}
}
