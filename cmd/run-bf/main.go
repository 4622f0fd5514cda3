// Command run-bf executes a Brainfuck source file against stdin/stdout.
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
	flag.Parse()

	brainpluck.Verbose = env.Bool("BRAINPLUCK_VERBOSE")

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: run-bf <file.bf>")
		os.Exit(2)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "run-bf: %v\n", err)
		os.Exit(1)
	}

	ops, err := brainpluck.ParseBf(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "run-bf: parse error: %v\n", err)
		os.Exit(1)
	}

	ops, err = brainpluck.OptimizeBf(ops, *optTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run-bf: optimizer: %v\n", err)
		os.Exit(1)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	state := brainpluck.NewState().WithTapeLimit(env.Int("BRAINPLUCK_TAPE_LIMIT", 0))
	if err := state.RunOps(ops, os.Stdin, out); err != nil {
		fmt.Fprintf(os.Stderr, "run-bf: %v\n", err)
		os.Exit(1)
	}
}
