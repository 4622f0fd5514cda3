package brainpluck

import "bytes"

// bf2wasm.go hand-encodes a BF op tree as a standalone WASM binary module,
// mirroring bf2wasm.rs's block/loop nesting over a linear-memory tape. It
// targets wazero's public runtime API (see bf2wasm_test.go), not wazero's
// own internal WAT compiler, so the module is built byte by byte here.
//
// Unlike bf2wasm.rs this emits synchronous I/O calls directly rather than
// asyncifying the op tree into a resumable state machine: that rewrite
// exists in the original to let a single input byte arrive across separate
// JS event-loop turns in a browser, a concern this module's host interface
// (a plain io.Reader/io.Writer pair, see bf2wasm_test.go) doesn't have. The
// cost is that a blocking read blocks the WASM call straight through,
// which is exactly how every other backend in this package already
// behaves (see bf.go's OpIn).
//
// Every cell access computes its address as cellPtr+Δ with a runtime
// i32.add rather than folding Δ into the load/store instruction's static
// offset immediate: WASM memargs take an unsigned offset, so a negative Δ
// (a MoveAdd to a lower cell) can't be expressed that way without the
// cur_shift bookkeeping bf2wasm.rs uses to keep a running shift
// non-negative. Computing the address on the stack sidesteps that
// bookkeeping at the cost of a few redundant instructions per access -
// again, fine for a module that is only ever exercised for correctness.

const (
	wasmOpBlock     = 0x02
	wasmOpLoopInstr = 0x03
	wasmOpIf        = 0x04
	wasmOpEnd       = 0x0B
	wasmOpBr        = 0x0C
	wasmOpBrIf      = 0x0D
	wasmOpCall      = 0x10
	wasmOpLocalGet  = 0x20
	wasmOpLocalSet  = 0x21
	wasmOpI32Load8U = 0x2D
	wasmOpI32Store8 = 0x3A
	wasmOpI32Const  = 0x41
	wasmOpI32Eqz    = 0x45
	wasmOpI32Ne     = 0x47
	wasmOpI32Add    = 0x6A
	wasmOpI32Sub    = 0x6B
	wasmOpI32Mul    = 0x6C
)

const (
	wasmValTypeI32    = 0x7F
	wasmBlockTypeVoid = 0x40
)

const (
	wasmSecType     = 1
	wasmSecImport   = 2
	wasmSecFunction = 3
	wasmSecExport   = 7
	wasmSecCode     = 10
)

const (
	wasmImportKindFunc   = 0x00
	wasmImportKindMemory = 0x02
	wasmExportKindFunc   = 0x00
)

// Import layout: the module imports one memory and two host functions, in
// this order, so their indices are fixed.
const (
	wasmFuncReadInputByte  = 0 // () -> i32
	wasmFuncWriteOutputByte = 1 // (i32) -> ()
	wasmFuncRunBf          = 2 // our own function, defined below
)

// run_bf's locals: no params, so these are local indices 0 and 1.
const (
	wasmLocalCellPtr = 0
	wasmLocalTmp     = 1
)

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

func sleb128(v int32) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func wasmString(s string) []byte {
	out := uleb128(uint32(len(s)))
	return append(out, s...)
}

func wasmSection(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint32(len(content)))...)
	return append(out, content...)
}

// BfToWasm compiles a BF op tree (may already contain the optimizer's
// extended forms) into a standalone WASM module exporting run_bf, which
// imports a linear memory "env"."tape" and two host functions,
// "env"."read_input_byte" () -> i32 and "env"."write_output_byte" (i32).
func BfToWasm(ops []BfOp) []byte {
	var module bytes.Buffer
	module.WriteString("\x00asm")
	module.Write([]byte{1, 0, 0, 0})

	// Type section: type0 = () -> (i32), type1 = (i32) -> ().
	var types bytes.Buffer
	types.Write(uleb128(2))
	types.Write([]byte{0x60, 0x00, 0x01, wasmValTypeI32})
	types.Write([]byte{0x60, 0x01, wasmValTypeI32, 0x00})
	module.Write(wasmSection(wasmSecType, types.Bytes()))

	// Import section: memory, then the two host functions (func index
	// space only counts funcs, so they land at 0 and 1).
	var imports bytes.Buffer
	imports.Write(uleb128(3))
	imports.Write(wasmString("env"))
	imports.Write(wasmString("tape"))
	imports.WriteByte(wasmImportKindMemory)
	imports.WriteByte(0x00) // limits: min only
	imports.Write(uleb128(1))
	imports.Write(wasmString("env"))
	imports.Write(wasmString("read_input_byte"))
	imports.WriteByte(wasmImportKindFunc)
	imports.Write(uleb128(0))
	imports.Write(wasmString("env"))
	imports.Write(wasmString("write_output_byte"))
	imports.WriteByte(wasmImportKindFunc)
	imports.Write(uleb128(1))
	module.Write(wasmSection(wasmSecImport, imports.Bytes()))

	// Function section: run_bf has type0.
	var funcs bytes.Buffer
	funcs.Write(uleb128(1))
	funcs.Write(uleb128(0))
	module.Write(wasmSection(wasmSecFunction, funcs.Bytes()))

	// Export section: export run_bf.
	var exports bytes.Buffer
	exports.Write(uleb128(1))
	exports.Write(wasmString("run_bf"))
	exports.WriteByte(wasmExportKindFunc)
	exports.Write(uleb128(wasmFuncRunBf))
	module.Write(wasmSection(wasmSecExport, exports.Bytes()))

	// Code section: run_bf's body.
	var body bytes.Buffer
	body.Write(uleb128(2)) // two local groups
	body.Write(uleb128(1))
	body.WriteByte(wasmValTypeI32) // cellPtr
	body.Write(uleb128(1))
	body.WriteByte(wasmValTypeI32) // tmp
	emitBfOps(&body, ops)
	body.WriteByte(wasmOpI32Const)
	body.Write(sleb128(0))
	body.WriteByte(wasmOpEnd)

	var code bytes.Buffer
	code.Write(uleb128(1))
	code.Write(uleb128(uint32(body.Len())))
	code.Write(body.Bytes())
	module.Write(wasmSection(wasmSecCode, code.Bytes()))

	return module.Bytes()
}

func emitAddr(buf *bytes.Buffer, delta int) {
	buf.WriteByte(wasmOpLocalGet)
	buf.Write(uleb128(wasmLocalCellPtr))
	if delta != 0 {
		buf.WriteByte(wasmOpI32Const)
		buf.Write(sleb128(int32(delta)))
		buf.WriteByte(wasmOpI32Add)
	}
}

func emitLoad8u(buf *bytes.Buffer) {
	buf.WriteByte(wasmOpI32Load8U)
	buf.Write(uleb128(0))
	buf.Write(uleb128(0))
}

func emitStore8(buf *bytes.Buffer) {
	buf.WriteByte(wasmOpI32Store8)
	buf.Write(uleb128(0))
	buf.Write(uleb128(0))
}

func emitConst(buf *bytes.Buffer, v int32) {
	buf.WriteByte(wasmOpI32Const)
	buf.Write(sleb128(v))
}

func emitLocalGet(buf *bytes.Buffer, idx uint32) {
	buf.WriteByte(wasmOpLocalGet)
	buf.Write(uleb128(idx))
}

func emitLocalSet(buf *bytes.Buffer, idx uint32) {
	buf.WriteByte(wasmOpLocalSet)
	buf.Write(uleb128(idx))
}

func emitShiftPointer(buf *bytes.Buffer, delta int) {
	emitAddr(buf, delta)
	emitLocalSet(buf, wasmLocalCellPtr)
}

// emitAddConst does cell[delta] += amount (mod 256, via store8 truncation).
func emitAddConst(buf *bytes.Buffer, delta int, amount int32) {
	emitAddr(buf, delta)
	emitAddr(buf, delta)
	emitLoad8u(buf)
	emitConst(buf, amount)
	buf.WriteByte(wasmOpI32Add)
	emitStore8(buf)
}

func emitStoreConst(buf *bytes.Buffer, delta int, value int32) {
	emitAddr(buf, delta)
	emitConst(buf, value)
	emitStore8(buf)
}

func emitIn(buf *bytes.Buffer) {
	buf.WriteByte(wasmOpCall)
	buf.Write(uleb128(wasmFuncReadInputByte))
	emitLocalSet(buf, wasmLocalTmp)
	emitLocalGet(buf, wasmLocalTmp)
	emitConst(buf, 13)
	buf.WriteByte(wasmOpI32Ne)
	buf.WriteByte(wasmOpIf)
	buf.WriteByte(wasmBlockTypeVoid)
	emitAddr(buf, 0)
	emitLocalGet(buf, wasmLocalTmp)
	emitStore8(buf)
	buf.WriteByte(wasmOpEnd)
}

func emitOut(buf *bytes.Buffer) {
	emitAddr(buf, 0)
	emitLoad8u(buf)
	buf.WriteByte(wasmOpCall)
	buf.Write(uleb128(wasmFuncWriteOutputByte))
}

func emitLoop(buf *bytes.Buffer, body []BfOp) {
	buf.WriteByte(wasmOpBlock)
	buf.WriteByte(wasmBlockTypeVoid)
	buf.WriteByte(wasmOpLoopInstr)
	buf.WriteByte(wasmBlockTypeVoid)
	emitAddr(buf, 0)
	emitLoad8u(buf)
	buf.WriteByte(wasmOpI32Eqz)
	buf.WriteByte(wasmOpBrIf)
	buf.Write(uleb128(1))
	emitBfOps(buf, body)
	buf.WriteByte(wasmOpBr)
	buf.Write(uleb128(0))
	buf.WriteByte(wasmOpEnd) // loop
	buf.WriteByte(wasmOpEnd) // block
}

func emitMoveAdd(buf *bytes.Buffer, delta int) {
	emitAddr(buf, 0)
	emitLoad8u(buf)
	emitLocalSet(buf, wasmLocalTmp)
	emitAddr(buf, delta)
	emitAddr(buf, delta)
	emitLoad8u(buf)
	emitLocalGet(buf, wasmLocalTmp)
	buf.WriteByte(wasmOpI32Add)
	emitStore8(buf)
	emitStoreConst(buf, 0, 0)
}

func emitMoveAdd2(buf *bytes.Buffer, delta1, delta2 int) {
	emitAddr(buf, 0)
	emitLoad8u(buf)
	emitLocalSet(buf, wasmLocalTmp)
	for _, d := range [2]int{delta1, delta2} {
		emitAddr(buf, d)
		emitAddr(buf, d)
		emitLoad8u(buf)
		emitLocalGet(buf, wasmLocalTmp)
		buf.WriteByte(wasmOpI32Add)
		emitStore8(buf)
	}
	emitStoreConst(buf, 0, 0)
}

func emitMoveAddMul(buf *bytes.Buffer, targets []MulTarget) {
	emitAddr(buf, 0)
	emitLoad8u(buf)
	emitLocalSet(buf, wasmLocalTmp)
	for _, t := range targets {
		emitAddr(buf, t.Delta)
		emitAddr(buf, t.Delta)
		emitLoad8u(buf)
		switch t.Factor {
		case 1:
			emitLocalGet(buf, wasmLocalTmp)
			buf.WriteByte(wasmOpI32Add)
		case -1:
			emitLocalGet(buf, wasmLocalTmp)
			buf.WriteByte(wasmOpI32Sub)
		default:
			emitLocalGet(buf, wasmLocalTmp)
			emitConst(buf, int32(t.Factor))
			buf.WriteByte(wasmOpI32Mul)
			buf.WriteByte(wasmOpI32Add)
		}
		emitStore8(buf)
	}
	emitStoreConst(buf, 0, 0)
}

func emitBfOps(buf *bytes.Buffer, ops []BfOp) {
	for _, op := range ops {
		switch o := op.(type) {
		case OpLeft:
			emitShiftPointer(buf, -1)
		case OpRight:
			emitShiftPointer(buf, 1)
		case OpShift:
			emitShiftPointer(buf, o.Delta)
		case OpInc:
			emitAddConst(buf, 0, 1)
		case OpDec:
			emitAddConst(buf, 0, -1)
		case OpAdd:
			emitAddConst(buf, 0, int32(o.Delta))
		case OpClr:
			emitStoreConst(buf, 0, 0)
		case OpIn:
			emitIn(buf)
		case OpOut:
			emitOut(buf)
		case OpLoop:
			emitLoop(buf, o.Body)
		case OpMoveAdd:
			emitMoveAdd(buf, o.Delta)
		case OpMoveAdd2:
			emitMoveAdd2(buf, o.Delta1, o.Delta2)
		case OpMoveAddMul:
			emitMoveAddMul(buf, o.Targets)
		case OpComment, OpDebugMessage, OpCrash, OpBreakpoint, OpPrintRegisters, OpCheckScratchIsEmptyFromHere:
			// diagnostic/no-op forms; bf2wasm.rs drops these identically.
		}
	}
}
