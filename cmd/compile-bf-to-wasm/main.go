// Command compile-bf-to-wasm compiles a Brainfuck source file into a
// standalone WASM module exporting run_bf (see bf2wasm.go).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/brainpluck"
	"github.com/xyproto/env/v2"
)

func main() {
	optTimeout := flag.Float64("opt-timeout", env.Float64("BRAINPLUCK_OPT_TIMEOUT", 2.0), "BF optimizer fixed-point timeout in seconds; 0 disables optimization")
	outPath := flag.String("o", "", "output path for the .wasm module (default: stdout)")
	flag.Parse()

	brainpluck.Verbose = env.Bool("BRAINPLUCK_VERBOSE")

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: compile-bf-to-wasm [-o out.wasm] <file.bf>")
		os.Exit(2)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile-bf-to-wasm: %v\n", err)
		os.Exit(1)
	}

	ops, err := brainpluck.ParseBf(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile-bf-to-wasm: parse error: %v\n", err)
		os.Exit(1)
	}

	ops, err = brainpluck.OptimizeBf(ops, *optTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile-bf-to-wasm: optimizer: %v\n", err)
		os.Exit(1)
	}

	module := brainpluck.BfToWasm(ops)

	if *outPath == "" {
		if _, err := os.Stdout.Write(module); err != nil {
			fmt.Fprintf(os.Stderr, "compile-bf-to-wasm: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := os.WriteFile(*outPath, module, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "compile-bf-to-wasm: %v\n", err)
		os.Exit(1)
	}
}
