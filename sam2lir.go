package brainpluck

import "encoding/binary"

// sam2lir.go lowers a linked SAM image into LIR: a Brainfuck interpreter for
// the 31-opcode SAM machine, synthesized once as a single bracketed loop.
// The interpreter's own registers (IPTR, A, B, X, Y) live on a dedicated
// track; the linked image, plus every function's data frame, lives on a
// second track addressed as a flat array of cells whose size
// (LinkedImage.DataSize) is fixed once linking is done.
//
// Dereferencing a SAM pointer (B for a data access, IPTR for instruction
// fetch) has no native "jump to a runtime offset" primitive on a tape, so
// both are resolved by scanAndAct: a compile-time-unrolled walk over every
// cell the program can ever address, decrementing a scratch copy of the
// pointer once per candidate and running the access at the cell where it
// hits zero. See DESIGN.md for why this trades emitted code size for
// avoiding the sliding-scratch-window bookkeeping a faster pointer walk
// would need - emitted code size is not a goal here, so the simpler
// technique wins.

const (
	dataTrackNum         = int(TrackStack)
	registerTrackNum     = int(TrackScratch2)
	macroScratchTrackNum = int(TrackScratch1)
)

// Register bases on registerTrackNum: the SAM machine's own state.
const (
	regIptrBase      = 0
	regABase         = 4
	regBBase         = 8
	regXBase         = 12
	regYBase         = 13
	regNotHaltedBase = 14
)

// Scratch bases on macroScratchTrackNum, reserved above the ranges
// cpu_registers.go's own macros already use (0-18, 30-31, 200-340, 500-531).
const (
	byteCopyScratchBase   = 600
	scratchPtrCopyBase    = 610 // 4 bytes: scanAndAct's running pointer copy
	scratchInstrCpyBase   = 620
	scratchIncIptrByBase  = 621
	scratchInstrDataBase  = 622 // 4 bytes: the fetched instruction's operand
	binWorkABase          = 630 // 32 bits
	binWorkBBase          = 670 // 32 bits
	binWorkCBase          = 710 // 32 bits
	swapScratchBase       = 750 // 4 bytes
	callRetValBase        = 760 // 4 bytes
	memStage1Base         = 770 // 1 byte
	memStage4Base         = 780 // 4 bytes
	printDecimalScratchBase = 800 // 32 bits
	stdinRawBase          = 840 // raw, copyScratch, isCR
)

// SamToLir compiles a linked SAM image into a flat LIR program plus the
// CpuConfig it was synthesized against.
func SamToLir(img *LinkedImage) ([]Lir, CpuConfig) {
	cfg := CpuConfig{NumTracks: 5}
	cpu := NewCpu(cfg)

	dataTrack := Track{Num: dataTrackNum}
	regTrack := Track{Num: registerTrackNum}
	scratch := ScratchTrack{Track: Track{Num: macroScratchTrackNum}}

	iptr := Register{Track: regTrack, Size: 4, Base: regIptrBase}
	aReg := Register{Track: regTrack, Size: 4, Base: regABase}
	bReg := Register{Track: regTrack, Size: 4, Base: regBBase}
	xReg := Register{Track: regTrack, Size: 1, Base: regXBase}
	yReg := Register{Track: regTrack, Size: 1, Base: regYBase}
	notHalted := regTrack.At(regNotHaltedBase)

	mainAddr, ok := img.FnStarts["main"]
	if !ok {
		panic("brainpluck: sam2lir: linked image has no main function")
	}

	cpu.Comment("materialize linked image onto the data track")
	haltAddr := uint32(len(img.Bytes))
	for i, b := range img.Bytes {
		if b != 0 {
			cpu.AddConstToByte(dataTrack.At(i), b)
		}
	}
	cpu.AddConstToByte(dataTrack.At(int(haltAddr)), OpcodeHalt)
	retAddrFrame := int(haltAddr) + 1
	var retAddrBytes [4]byte
	binary.BigEndian.PutUint32(retAddrBytes[:], haltAddr)
	for k, b := range retAddrBytes {
		if b != 0 {
			cpu.AddConstToByte(dataTrack.At(retAddrFrame+k), b)
		}
	}

	// n is every cell the program can ever address, plus four cells of
	// padding so an instruction fetch near the tail can always read its full
	// 5-byte window (opcode + operand) without running past the segment.
	n := img.DataSize + 4

	cpu.setRegisterConst(iptr, mainAddr)
	cpu.setRegisterConst(bReg, uint32(retAddrFrame))

	instrCpy := scratch.At(scratchInstrCpyBase)
	incIptrBy := scratch.At(scratchIncIptrByBase)
	instrData := Register{Track: scratch.Track, Size: 4, Base: scratchInstrDataBase}

	cpu.IncAt(notHalted)
	cpu.Comment("fetch-execute loop")
	cpu.LoopWhile(notHalted, func(cpu *Cpu) {
		cpu.ZeroByte(instrCpy)
		cpu.ZeroRegister(instrData)
		cpu.scanAndAct(iptr, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
			cpu.CopyByte(cellPos, instrCpy, scratch.At(byteCopyScratchBase))
			for k := 0; k < 4; k++ {
				cpu.CopyByte(Pos{Frame: cellPos.Frame + 1 + k, Track: cellPos.Track}, instrData.At(k), scratch.At(byteCopyScratchBase))
			}
		})

		dispatch := func(body func(*Cpu)) {
			cpu.IfZero(instrCpy, scratch, body)
			cpu.DecAt(instrCpy)
		}

		dispatch(func(cpu *Cpu) { // 0: Halt
			cpu.ZeroByte(notHalted)
		})
		dispatch(func(cpu *Cpu) { // 1: SwapXY
			cpu.swapRegisters(xReg, yReg, scratch)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 2: SwapAB
			cpu.swapRegisters(aReg, bReg, scratch)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 3: SetX
			cpu.ZeroRegister(xReg)
			cpu.MoveaddByte(instrData.At(0), xReg.At(0))
			cpu.AddConstToByte(incIptrBy, 2)
		})
		dispatch(func(cpu *Cpu) { // 4: SetY
			cpu.ZeroRegister(yReg)
			cpu.MoveaddByte(instrData.At(0), yReg.At(0))
			cpu.AddConstToByte(incIptrBy, 2)
		})
		dispatch(func(cpu *Cpu) { // 5: SetA
			cpu.ZeroRegister(aReg)
			cpu.MoveOntoZeroRegister(instrData, aReg)
			cpu.AddConstToByte(incIptrBy, 5)
		})
		dispatch(func(cpu *Cpu) { // 6: SetB
			cpu.ZeroRegister(bReg)
			cpu.MoveOntoZeroRegister(instrData, bReg)
			cpu.AddConstToByte(incIptrBy, 5)
		})
		dispatch(func(cpu *Cpu) { // 7: ReadAAtB
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.readCellsIntoRegister(cellPos, aReg, scratch)
			})
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 8: ReadXAtB
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.readCellsIntoRegister(cellPos, xReg, scratch)
			})
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 9: ReadYAtB
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.readCellsIntoRegister(cellPos, yReg, scratch)
			})
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 10: WriteAAtB
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.writeRegisterIntoCells(aReg, cellPos, scratch)
			})
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 11: WriteXAtB
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.writeRegisterIntoCells(xReg, cellPos, scratch)
			})
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 12: WriteYAtB
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.writeRegisterIntoCells(yReg, cellPos, scratch)
			})
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 13: AddAToB (B += A, A unchanged)
			cpu.addRegisterToRegisterSameSize(aReg, bReg, scratch)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 14: SubAFromB (B -= A)
			cpu.subRegisterFromRegisterSameSize(aReg, bReg, scratch)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 15: PrintCharX
			cpu.Goto(xReg.At(0))
			cpu.Out()
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 16: StdinX
			cpu.stdinIntoX(xReg, scratch)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 17: AddConstToB
			cpu.addRegisterToRegisterSameSize(instrData, bReg, scratch)
			cpu.AddConstToByte(incIptrBy, 5)
		})
		dispatch(func(cpu *Cpu) { // 18: SubConstFromB
			cpu.subRegisterFromRegisterSameSize(instrData, bReg, scratch)
			cpu.AddConstToByte(incIptrBy, 5)
		})
		dispatch(func(cpu *Cpu) { // 19: PrintA
			cpu.printRegisterDecimal(aReg, scratch)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 20: Call (writes IPTR+5 at B, jumps to the operand)
			retVal := Register{Track: scratch.Track, Size: 4, Base: callRetValBase}
			cpu.ZeroRegister(retVal)
			cpu.CopyRegister(iptr, retVal, scratch)
			for i := 0; i < 5; i++ {
				cpu.IncRegister(retVal, scratch)
			}
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.writeRegisterIntoCells(retVal, cellPos, scratch)
			})
			cpu.ZeroRegister(retVal)
			cpu.ZeroRegister(iptr)
			cpu.MoveOntoZeroRegister(instrData, iptr)
			// no incIptrBy: IPTR was just set directly
		})
		dispatch(func(cpu *Cpu) { // 21: Ret (IPTR := the 4 bytes at B)
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.readCellsIntoRegister(cellPos, iptr, scratch)
			})
		})
		dispatch(func(cpu *Cpu) { // 22: Jump (IPTR += signed operand, mod 2^32)
			cpu.addRegisterToRegisterSameSize(instrData, iptr, scratch)
		})
		dispatch(func(cpu *Cpu) { // 23: JumpIfX
			cpu.IfNonzeroElse(xReg.At(0), scratch, func(cpu *Cpu) {
				cpu.addRegisterToRegisterSameSize(instrData, iptr, scratch)
			}, func(cpu *Cpu) {
				cpu.AddConstToByte(incIptrBy, 5)
			})
		})
		dispatch(func(cpu *Cpu) { // 24: AddU8AtBToX (X += mem[B] as u8)
			stage := Register{Track: scratch.Track, Size: 1, Base: memStage1Base}
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.readCellsIntoRegister(cellPos, stage, scratch)
			})
			cpu.addRegisterToRegisterSameSize(stage, xReg, scratch)
			cpu.ZeroRegister(stage)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 25: MulU8AtBToX (X *= mem[B] as u8)
			stage := Register{Track: scratch.Track, Size: 1, Base: memStage1Base}
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.readCellsIntoRegister(cellPos, stage, scratch)
			})
			cpu.mulRegisterIntoRegisterSameSize(stage, xReg, scratch)
			cpu.ZeroRegister(stage)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 26: AddU32AtBToA (A += mem[B] as u32)
			stage := Register{Track: scratch.Track, Size: 4, Base: memStage4Base}
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.readCellsIntoRegister(cellPos, stage, scratch)
			})
			cpu.addRegisterToRegisterSameSize(stage, aReg, scratch)
			cpu.ZeroRegister(stage)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 27: MulU32AtBToA (A *= mem[B] as u32)
			stage := Register{Track: scratch.Track, Size: 4, Base: memStage4Base}
			cpu.scanAndAct(bReg, dataTrack, n, scratch, func(cpu *Cpu, cellPos Pos) {
				cpu.readCellsIntoRegister(cellPos, stage, scratch)
			})
			cpu.mulRegisterIntoRegisterSameSize(stage, aReg, scratch)
			cpu.ZeroRegister(stage)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 28: NegA
			cpu.negateRegister(aReg, scratch)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 29: NegX
			cpu.negateRegister(xReg, scratch)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		dispatch(func(cpu *Cpu) { // 30: MoveXToA
			cpu.moveByteToRegisterZeroExtend(xReg, aReg, scratch)
			cpu.AddConstToByte(incIptrBy, 1)
		})
		cpu.ZeroByte(instrCpy)
		cpu.ZeroRegister(instrData)

		cpu.IfNonzero(incIptrBy, scratch, func(cpu *Cpu) {
			incByte := Register{Track: scratch.Track, Size: 1, Base: scratchIncIptrByBase}
			cpu.addByteToRegister(incByte, iptr, scratch)
		})
		cpu.ZeroByte(incIptrBy)
	})

	return cpu.IntoOps(), cfg
}

// ifRegisterZero runs body iff every byte of r is 0, by nesting IfZero one
// byte at a time; r is left unchanged.
func (c *Cpu) ifRegisterZero(r Register, scratch ScratchTrack, body func(*Cpu)) {
	if r.Size == 0 {
		body(c)
		return
	}
	c.IfZero(r.At(0), scratch, func(cpu *Cpu) {
		cpu.ifRegisterZero(r.Subview(1, r.Size-1), scratch, body)
	})
}

// scanAndAct is the file's one genuinely new technique (see the file doc
// comment): walk every candidate cell 0..n-1 at compile time, decrementing a
// scratch copy of ptr once per candidate, and invoke act at the cell where
// the copy reaches zero. cellPos's frame is a Go-level constant inside each
// iteration, so act can Goto it directly without any dynamic bookkeeping.
func (c *Cpu) scanAndAct(ptr Register, dataTrack Track, n uint32, scratch ScratchTrack, act func(cpu *Cpu, cellPos Pos)) {
	remaining := Register{Track: scratch.Track, Size: ptr.Size, Base: scratchPtrCopyBase}
	c.ZeroRegister(remaining)
	c.CopyRegister(ptr, remaining, scratch)
	for i := uint32(0); i < n; i++ {
		cellPos := dataTrack.At(int(i))
		c.ifRegisterZero(remaining, scratch, func(cpu *Cpu) {
			act(cpu, cellPos)
		})
		if i+1 < n {
			c.DecRegister(remaining, scratch)
		}
	}
	c.ZeroRegister(remaining)
}

func (c *Cpu) setRegisterConst(r Register, val uint32) {
	buf := make([]byte, r.Size)
	switch r.Size {
	case 1:
		buf[0] = byte(val)
	case 4:
		binary.BigEndian.PutUint32(buf, val)
	default:
		panic("brainpluck: sam2lir: setRegisterConst supports only 1- or 4-byte registers")
	}
	for k, b := range buf {
		if b != 0 {
			c.AddConstToByte(r.At(k), b)
		}
	}
}

func (c *Cpu) swapRegisters(r1, r2 Register, scratch ScratchTrack) {
	tmp := Register{Track: scratch.Track, Size: r1.Size, Base: swapScratchBase}
	c.CopyRegister(r1, tmp, scratch)
	c.ZeroRegister(r1)
	c.CopyRegister(r2, r1, scratch)
	c.ZeroRegister(r2)
	c.CopyRegister(tmp, r2, scratch)
	c.ZeroRegister(tmp)
}

func (c *Cpu) readCellsIntoRegister(start Pos, dest Register, scratch ScratchTrack) {
	c.ZeroRegister(dest)
	for k := 0; k < dest.Size; k++ {
		c.CopyByte(Pos{Frame: start.Frame + k, Track: start.Track}, dest.At(k), scratch.At(byteCopyScratchBase))
	}
}

func (c *Cpu) writeRegisterIntoCells(src Register, start Pos, scratch ScratchTrack) {
	for k := 0; k < src.Size; k++ {
		c.CopyByte(src.At(k), Pos{Frame: start.Frame + k, Track: start.Track}, scratch.At(byteCopyScratchBase))
	}
}

func (c *Cpu) addRegisterToRegisterSameSize(src, dst Register, scratch ScratchTrack) {
	if src.Size != dst.Size {
		panic("brainpluck: sam2lir: register size mismatch in addRegisterToRegisterSameSize")
	}
	srcBin := BinRegister{Track: scratch.Track, Bits: src.Size * 8, Base: binWorkABase}
	dstBin := BinRegister{Track: scratch.Track, Bits: dst.Size * 8, Base: binWorkBBase}
	c.UnpackRegister(src, srcBin, scratch)
	c.UnpackRegister(dst, dstBin, scratch)
	c.AddBinregisterToBinregister(srcBin, dstBin, scratch)
	c.ZeroRegister(dst)
	c.PackBinregister(dstBin, dst, scratch)
	c.ClrBinregister(srcBin)
	c.ClrBinregister(dstBin)
}

func (c *Cpu) subRegisterFromRegisterSameSize(src, dst Register, scratch ScratchTrack) {
	if src.Size != dst.Size {
		panic("brainpluck: sam2lir: register size mismatch in subRegisterFromRegisterSameSize")
	}
	srcBin := BinRegister{Track: scratch.Track, Bits: src.Size * 8, Base: binWorkABase}
	dstBin := BinRegister{Track: scratch.Track, Bits: dst.Size * 8, Base: binWorkBBase}
	c.UnpackRegister(src, srcBin, scratch)
	c.UnpackRegister(dst, dstBin, scratch)
	c.SubBinregisterFromBinregister(srcBin, dstBin, scratch)
	c.ZeroRegister(dst)
	c.PackBinregister(dstBin, dst, scratch)
	c.ClrBinregister(srcBin)
	c.ClrBinregister(dstBin)
}

func (c *Cpu) mulRegisterIntoRegisterSameSize(src, dst Register, scratch ScratchTrack) {
	if src.Size != dst.Size {
		panic("brainpluck: sam2lir: register size mismatch in mulRegisterIntoRegisterSameSize")
	}
	srcBin := BinRegister{Track: scratch.Track, Bits: src.Size * 8, Base: binWorkABase}
	dstBin := BinRegister{Track: scratch.Track, Bits: dst.Size * 8, Base: binWorkBBase}
	outBin := BinRegister{Track: scratch.Track, Bits: dst.Size * 8, Base: binWorkCBase}
	c.UnpackRegister(src, srcBin, scratch)
	c.UnpackRegister(dst, dstBin, scratch)
	c.MulBinregisters(srcBin, dstBin, outBin, scratch)
	c.ZeroRegister(dst)
	c.PackBinregister(outBin, dst, scratch)
	c.ClrBinregister(srcBin)
	c.ClrBinregister(dstBin)
	c.ClrBinregister(outBin)
}

func (c *Cpu) negateRegister(r Register, scratch ScratchTrack) {
	valueBin := BinRegister{Track: scratch.Track, Bits: r.Size * 8, Base: binWorkABase}
	zeroBin := BinRegister{Track: scratch.Track, Bits: r.Size * 8, Base: binWorkBBase}
	c.UnpackRegister(r, valueBin, scratch)
	c.SubBinregisterFromBinregister(valueBin, zeroBin, scratch)
	c.ZeroRegister(r)
	c.PackBinregister(zeroBin, r, scratch)
	c.ClrBinregister(valueBin)
	c.ClrBinregister(zeroBin)
}

// addByteToRegister zero-extends a 1-byte register and adds it into a
// bigger one (used for IPTR += incIptrBy, a runtime byte in [1,5]).
func (c *Cpu) addByteToRegister(byteReg, target Register, scratch ScratchTrack) {
	widened := BinRegister{Track: scratch.Track, Bits: target.Size * 8, Base: binWorkABase}
	c.ClrBinregister(widened)
	low := widened.Subview(widened.Bits-8, 8)
	c.UnpackRegister(byteReg, low, scratch)
	targetBin := BinRegister{Track: scratch.Track, Bits: target.Size * 8, Base: binWorkBBase}
	c.UnpackRegister(target, targetBin, scratch)
	c.AddBinregisterToBinregister(widened, targetBin, scratch)
	c.ZeroRegister(target)
	c.PackBinregister(targetBin, target, scratch)
	c.ClrBinregister(widened)
	c.ClrBinregister(targetBin)
}

func (c *Cpu) moveByteToRegisterZeroExtend(byteReg, target Register, scratch ScratchTrack) {
	widened := BinRegister{Track: scratch.Track, Bits: target.Size * 8, Base: binWorkABase}
	c.ClrBinregister(widened)
	low := widened.Subview(widened.Bits-8, 8)
	c.UnpackRegister(byteReg, low, scratch)
	c.ZeroRegister(target)
	c.PackBinregister(widened, target, scratch)
	c.ClrBinregister(widened)
}

func (c *Cpu) printRegisterDecimal(r Register, scratch ScratchTrack) {
	bin := BinRegister{Track: scratch.Track, Bits: r.Size * 8, Base: printDecimalScratchBase}
	c.UnpackRegister(r, bin, scratch)
	c.PrintBinregisterInDecimal(bin, scratch)
	c.ClrBinregister(bin)
}

// stdinIntoX replicates SamState's StdinX: a carriage return leaves X
// unchanged, anything else (including the simplified 0-on-EOF case this
// compiled form doesn't distinguish from a literal NUL byte - see
// DESIGN.md) overwrites it.
func (c *Cpu) stdinIntoX(x Register, scratch ScratchTrack) {
	raw := scratch.At(stdinRawBase)
	copyScratch := scratch.At(stdinRawBase + 1)
	isCR := scratch.At(stdinRawBase + 2)
	// Preload 13: BF's ',' leaves the cell untouched on a carriage return,
	// so raw still reads 13 afterwards and X is left alone.
	c.AddConstToByte(raw, 13)
	c.Goto(raw)
	c.In()
	c.CopyByte(raw, isCR, copyScratch)
	c.SubConstFromByte(isCR, 13)
	c.IfNonzeroElse(isCR, scratch, func(cpu *Cpu) {
		cpu.ZeroByte(isCR)
		cpu.ZeroRegister(x)
		cpu.MoveaddByte(raw, x.At(0))
	}, func(cpu *Cpu) {
		cpu.ZeroByte(isCR)
		cpu.ZeroByte(raw)
	})
}
