package brainpluck

import (
	"fmt"
	"os"
	"time"
)

// optimizer.go is the BF optimizer: pattern rewrites applied bottom-up over
// a BfOp tree, producing the extended forms (Clr, Shift, Add, MoveAdd,
// MoveAdd2, MoveAddMul) the WASM backend understands as single-step ops.
// The pass/fixed-point architecture mirrors the teacher's whole-program
// optimizer: a list of OptimizationPass, run to a fixed point bounded by
// maxIter and a wall-clock timeout, logging through the package's Verbose
// switch rather than printing unconditionally.

// Program is the optimizer's mutable unit: a pass rewrites Ops in place.
type Program struct {
	Ops []BfOp
}

// OptimizationPass is one bottom-up rewrite over a Program's ops.
type OptimizationPass interface {
	Name() string
	Run(program *Program) (changed bool, err error)
}

// Optimizer runs a fixed sequence of passes to a fixed point or timeout.
type Optimizer struct {
	passes  []OptimizationPass
	maxIter int
	timeout time.Duration
}

// NewOptimizer builds the standard pass pipeline. timeoutSeconds <= 0
// disables optimization entirely (BRAINPLUCK_OPT_TIMEOUT=0 in cmd/).
func NewOptimizer(timeoutSeconds float64) *Optimizer {
	return &Optimizer{
		passes: []OptimizationPass{
			&FuseRuns{},
			&ClearLoops{},
			&CopyLoops{},
		},
		maxIter: 10,
		timeout: time.Duration(timeoutSeconds * float64(time.Second)),
	}
}

// Optimize rewrites program.Ops in place, running every pass each
// iteration until none reports a change, maxIter is hit, or the timeout
// elapses.
func (opt *Optimizer) Optimize(program *Program) error {
	if opt.timeout <= 0 {
		if Verbose {
			fmt.Fprintf(os.Stderr, "-> Skipping BF optimizer (disabled via --opt-timeout=0)\n")
		}
		return nil
	}

	if Verbose {
		fmt.Fprintf(os.Stderr, "-> Starting BF optimizer (timeout: %.1fs)\n", opt.timeout.Seconds())
	}

	startTime := time.Now()

	for i := 0; i < opt.maxIter; i++ {
		if time.Since(startTime) > opt.timeout {
			if Verbose {
				fmt.Fprintf(os.Stderr, "-> Optimizer stopped: timeout reached (%.1fs)\n", opt.timeout.Seconds())
			}
			break
		}

		anyChanged := false
		for _, pass := range opt.passes {
			if Verbose {
				fmt.Fprintf(os.Stderr, "   Running %s (iteration %d)\n", pass.Name(), i+1)
			}
			changed, err := pass.Run(program)
			if err != nil {
				return fmt.Errorf("%s failed: %w", pass.Name(), err)
			}
			if changed {
				anyChanged = true
				if Verbose {
					fmt.Fprintf(os.Stderr, "   %s made changes\n", pass.Name())
				}
			}
		}
		if !anyChanged {
			if Verbose {
				fmt.Fprintf(os.Stderr, "-> Optimizer converged after %d iterations (%.3fs)\n", i+1, time.Since(startTime).Seconds())
			}
			break
		}
	}

	return nil
}

// OptimizeBf is the convenience entry point cmd/ binaries call on already
// parsed ops: optimize, done.
func OptimizeBf(ops []BfOp, timeoutSeconds float64) ([]BfOp, error) {
	program := &Program{Ops: ops}
	if err := NewOptimizer(timeoutSeconds).Optimize(program); err != nil {
		return nil, err
	}
	return program.Ops, nil
}

// FuseRuns collapses runs of +/- with no intervening shift into a single
// Add(Σδ), and runs of </> with no intervening +/- into a single
// Shift(Σ), recursing into loop bodies first.
type FuseRuns struct{}

func (f *FuseRuns) Name() string { return "Run-Length Fusion" }

func (f *FuseRuns) Run(program *Program) (bool, error) {
	newOps, changed := f.rewrite(program.Ops)
	program.Ops = newOps
	return changed, nil
}

func (f *FuseRuns) rewrite(ops []BfOp) ([]BfOp, bool) {
	changed := false
	out := make([]BfOp, 0, len(ops))

	flushAdd := func(sum int) {
		if sum == 0 {
			return
		}
		out = append(out, OpAdd{Delta: int8(byte(sum))})
	}
	flushShift := func(sum int) {
		if sum == 0 {
			return
		}
		out = append(out, OpShift{Delta: sum})
	}

	i := 0
	for i < len(ops) {
		switch op := ops[i].(type) {
		case OpInc, OpDec, OpAdd:
			sum := 0
			j := i
		addRun:
			for j < len(ops) {
				switch o := ops[j].(type) {
				case OpInc:
					sum++
				case OpDec:
					sum--
				case OpAdd:
					sum += int(o.Delta)
				default:
					break addRun
				}
				j++
			}
			if j-i > 1 || (j-i == 1 && int(int8(byte(sum))) != sum) {
				changed = true
			} else if j-i == 1 {
				// single primitive Inc/Dec normalizes to Add; that alone
				// counts as a change on the first pass.
				if _, isAdd := op.(OpAdd); !isAdd {
					changed = true
				}
			}
			flushAdd(sum)
			i = j

		case OpLeft, OpRight, OpShift:
			sum := 0
			j := i
		shiftRun:
			for j < len(ops) {
				switch o := ops[j].(type) {
				case OpLeft:
					sum--
				case OpRight:
					sum++
				case OpShift:
					sum += o.Delta
				default:
					break shiftRun
				}
				j++
			}
			if j-i > 1 {
				changed = true
			} else if j-i == 1 {
				if _, isShift := op.(OpShift); !isShift {
					changed = true
				}
			}
			flushShift(sum)
			i = j

		case OpLoop:
			body, bodyChanged := f.rewrite(op.Body)
			if bodyChanged {
				changed = true
			}
			out = append(out, OpLoop{Body: body})
			i++

		default:
			out = append(out, op)
			i++
		}
	}

	return out, changed
}

// ClearLoops rewrites `[-]` and `[+]` - a loop whose fused body is exactly
// one Add(-1) or Add(1) - into Clr.
type ClearLoops struct{}

func (c *ClearLoops) Name() string { return "Clear-Loop Folding" }

func (c *ClearLoops) Run(program *Program) (bool, error) {
	newOps, changed := c.rewrite(program.Ops)
	program.Ops = newOps
	return changed, nil
}

func (c *ClearLoops) rewrite(ops []BfOp) ([]BfOp, bool) {
	changed := false
	out := make([]BfOp, 0, len(ops))
	for _, op := range ops {
		loop, ok := op.(OpLoop)
		if !ok {
			out = append(out, op)
			continue
		}
		body, bodyChanged := c.rewrite(loop.Body)
		if bodyChanged {
			changed = true
		}
		if len(body) == 1 {
			if add, ok := body[0].(OpAdd); ok && (add.Delta == 1 || add.Delta == -1) {
				out = append(out, OpClr{})
				changed = true
				continue
			}
		}
		out = append(out, OpLoop{Body: body})
	}
	return out, changed
}

// CopyLoops recognizes the copy-loop family: a loop that opens by
// decrementing its own cell, then walks a net-zero sequence of shifts and
// adds touching only other cells, and distributes the source value into
// those cells scaled by each one's per-iteration delta. One target folds
// to MoveAdd, two unit-factor targets fold to MoveAdd2, anything else
// (more targets, or any non-unit factor) folds to MoveAddMul.
type CopyLoops struct{}

func (m *CopyLoops) Name() string { return "Copy-Loop Folding" }

func (m *CopyLoops) Run(program *Program) (bool, error) {
	newOps, changed := m.rewrite(program.Ops)
	program.Ops = newOps
	return changed, nil
}

func (m *CopyLoops) rewrite(ops []BfOp) ([]BfOp, bool) {
	changed := false
	out := make([]BfOp, 0, len(ops))
	for _, op := range ops {
		loop, ok := op.(OpLoop)
		if !ok {
			out = append(out, op)
			continue
		}
		body, bodyChanged := m.rewrite(loop.Body)
		if bodyChanged {
			changed = true
		}
		if fused, ok := m.tryFold(body); ok {
			out = append(out, fused)
			changed = true
			continue
		}
		out = append(out, OpLoop{Body: body})
	}
	return out, changed
}

// tryFold matches `[ - (shift|add)* ]` with net-zero shift and at least
// one off-cell target; it never touches the guard cell itself.
func (m *CopyLoops) tryFold(body []BfOp) (BfOp, bool) {
	if len(body) < 2 {
		return nil, false
	}
	guard, ok := body[0].(OpAdd)
	if !ok || guard.Delta != -1 {
		return nil, false
	}

	var order []int
	factor := map[int]int{}
	offset := 0
	for _, op := range body[1:] {
		switch o := op.(type) {
		case OpShift:
			offset += o.Delta
		case OpAdd:
			if offset == 0 {
				// touches the guard cell beyond the initial decrement:
				// not a pure copy loop.
				return nil, false
			}
			if _, seen := factor[offset]; !seen {
				order = append(order, offset)
			}
			factor[offset] += int(o.Delta)
		default:
			return nil, false
		}
	}
	if offset != 0 || len(order) == 0 {
		return nil, false
	}

	if len(order) == 1 && factor[order[0]] == 1 {
		return OpMoveAdd{Delta: order[0]}, true
	}
	if len(order) == 2 && factor[order[0]] == 1 && factor[order[1]] == 1 {
		return OpMoveAdd2{Delta1: order[0], Delta2: order[1]}, true
	}
	targets := make([]MulTarget, 0, len(order))
	for _, delta := range order {
		targets = append(targets, MulTarget{Delta: delta, Factor: factor[delta]})
	}
	return OpMoveAddMul{Targets: targets}, true
}
