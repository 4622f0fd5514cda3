package brainpluck

import (
	"fmt"
	"sort"
)

// PreLinkOp is one not-yet-fully-resolved instruction in a function's SAM
// body: either a concrete SamOp, or a reference to another function's code
// address (PreLinkCall) or data frame (PreLinkSetBFrame) that the linker
// resolves once every function's layout is known.
type PreLinkOp interface{ preLinkLen() int }

type PreLinkSimple struct{ Op SamOp }

func (p PreLinkSimple) preLinkLen() int { return p.Op.Len() }

// PreLinkCall is `Call(name)`: resolved to OpCall{Addr: codeStart(name)}.
type PreLinkCall struct{ FnName string }

func (p PreLinkCall) preLinkLen() int { return 5 }

// PreLinkSetBFrame sets B to another function's frame base plus Offset;
// resolved to OpSetB{Val: frameBase(FnName) + Offset}.
type PreLinkSetBFrame struct {
	FnName string
	Offset uint32
}

func (p PreLinkSetBFrame) preLinkLen() int { return 5 }

// SamFn is one function's pre-link SAM body, as produced by HirToSam (or
// hand-assembled directly for programs that bypass the HIR front end).
type SamFn struct {
	Name      string
	ArgSizes  []uint32
	RetSize   uint32
	FrameSize uint32
	Instrs    []PreLinkOp
}

// LinkedImage is the flat byte image spec.md §6 describes: code for every
// function concatenated, with a name->start-offset map. The trailing HALT
// byte and return-address word are appended by NewSamState, not here.
// DataSize is one past the highest cell address this program can ever touch (every
// function's frame, laid out right after the code and the HALT byte) -
// sam2lir.go sizes its data track from it, since a compiled BF tape has no
// notion of the interpreter's lazy cell growth NewSamState relies on.
type LinkedImage struct {
	Bytes    []byte
	FnStarts map[string]uint32
	DataSize uint32
}

// LinkSamFns lays out every function's code in sorted-by-name order (the
// source this was distilled from iterates an unordered map, so layout was
// nondeterministic; SPEC_FULL.md §12 specifies sorting instead) and assigns
// each function a disjoint data frame, resolving Call and SetBFrame
// references in a second pass. main's frame is pinned to start at the
// image's own return-address-to-HALT word: main is never
// reached via our own Call opcode, so its frame must alias the address the
// harness already wrote main's one true return address into.
func LinkSamFns(fns map[string]*SamFn) (*LinkedImage, error) {
	if _, ok := fns["main"]; !ok {
		return nil, fmt.Errorf("brainpluck: link: no main function")
	}
	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	sort.Strings(names)

	codeStarts := map[string]uint32{}
	var codeLen uint32
	for _, name := range names {
		codeStarts[name] = codeLen
		for _, instr := range fns[name].Instrs {
			codeLen += uint32(instr.preLinkLen())
		}
	}

	frameBases := map[string]uint32{}
	mainRetAddrWord := codeLen + 1
	frameBases["main"] = mainRetAddrWord
	frameCursor := mainRetAddrWord + fns["main"].FrameSize
	for _, name := range names {
		if name == "main" {
			continue
		}
		frameBases[name] = frameCursor
		frameCursor += fns[name].FrameSize
	}

	bytes := make([]byte, 0, codeLen)
	for _, name := range names {
		for _, instr := range fns[name].Instrs {
			switch op := instr.(type) {
			case PreLinkSimple:
				bytes = append(bytes, op.Op.Encode()...)
			case PreLinkCall:
				target, ok := codeStarts[op.FnName]
				if !ok {
					return nil, fmt.Errorf("brainpluck: link: %q calls unknown function %q", name, op.FnName)
				}
				bytes = append(bytes, OpCall{Addr: target}.Encode()...)
			case PreLinkSetBFrame:
				base, ok := frameBases[op.FnName]
				if !ok {
					return nil, fmt.Errorf("brainpluck: link: %q references unknown frame %q", name, op.FnName)
				}
				bytes = append(bytes, OpSetB{Val: base + op.Offset}.Encode()...)
			default:
				return nil, fmt.Errorf("brainpluck: link: unhandled pre-link op %T", instr)
			}
		}
	}

	return &LinkedImage{Bytes: bytes, FnStarts: codeStarts, DataSize: frameCursor}, nil
}
