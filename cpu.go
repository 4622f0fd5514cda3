package brainpluck

import (
	"fmt"
	"os"
)

// TrackId names a logical track role; CpuConfig assigns each to a concrete
// track index before compilation starts.
type TrackId int

const (
	TrackStack TrackId = iota
	TrackHeap
	TrackScratch1
	TrackScratch2
	TrackCurDataPtr
)

// Track is a concrete track index: tape cells for track t live at
// {t, t+N, t+2N, ...} where N is the frame size.
type Track struct {
	Num int
}

func (t Track) At(frame int) Pos { return Pos{Frame: frame, Track: t.Num} }

// Register is a big-endian Size-byte integer hosted at one frame offset on
// one track, spanning Size consecutive frames starting at Base.
type Register struct {
	Track Track
	Size  int
	Base  int
}

func (r Register) At(frame int) Pos { return r.Track.At(r.Base + frame) }

// Subview returns the size-byte slice of r starting at byte offset off,
// still big-endian within itself (e.g. Subview(1, Size-1) drops the most
// significant byte).
func (r Register) Subview(off, size int) Register {
	return Register{Track: r.Track, Size: size, Base: r.Base + off}
}

// BinRegister is a Bits-wide integer stored one bit per cell on one track,
// big-endian: bit i lives at frame Base+i, with bit 0 the most significant.
// Base defaults to 0; macros that need scratch binregister workspace place
// several on the same track at disjoint Base windows.
type BinRegister struct {
	Track Track
	Bits  int
	Base  int
}

func (r BinRegister) At(i int) Pos { return r.Track.At(r.Base + i) }

// Subview returns the bits-wide slice of r starting at bit offset off.
func (r BinRegister) Subview(off, bits int) BinRegister {
	return BinRegister{Track: r.Track, Bits: bits, Base: r.Base + off}
}

// ScratchTrack is a track whose cells are all 0 outside macro execution.
type ScratchTrack struct {
	Track Track
}

func (s ScratchTrack) At(frame int) Pos { return s.Track.At(frame) }

// CpuConfig fixes the frame size (number of tracks) for an entire
// compilation; once frozen it never changes.
type CpuConfig struct {
	NumTracks int
}

func (c CpuConfig) FrameSize() int { return c.NumTracks }

// Pos is a tape position as (frame, track); its absolute cell index is
// frame*frameSize + track.
type Pos struct {
	Frame, Track int
}

func (p Pos) index(cfg CpuConfig) int { return p.Frame*cfg.FrameSize() + p.Track }

// CurFrame is the emitter's believed frame component: Known after any
// position-anchored emission, Unknown after a sentinel-seek loop whose net
// shift is data-dependent. Every position-using emitter requires Known.
type CurFrame struct {
	known bool
	frame int
}

func KnownFrame(f int) CurFrame { return CurFrame{known: true, frame: f} }
func UnknownFrame() CurFrame    { return CurFrame{} }

func (c CurFrame) IsKnown() bool { return c.known }

// Unwrap panics if the frame is Unknown; this is a synthesis-internal
// invariant violation (the caller forgot to re-anchor), never user error.
func (c CurFrame) Unwrap() int {
	if !c.known {
		panic("brainpluck: cur_frame is Unknown; emitter must re-anchor with Goto/GotoFrame")
	}
	return c.frame
}

// Cpu emits LIR while tracking a believed cursor position. It prepends a
// 3*N cell shift at construction so every position gets a 3-frame left
// margin, making negative frame indices legal for scratch.
type Cpu struct {
	cfg      CpuConfig
	curTrack int
	curFrame CurFrame
	lir      []Lir
}

func NewCpu(cfg CpuConfig) *Cpu {
	cpu := &Cpu{cfg: cfg, curTrack: 0, curFrame: KnownFrame(0)}
	for i := 0; i < cfg.NumTracks*3; i++ {
		cpu.lir = append(cpu.lir, LirRight{})
	}
	return cpu
}

func (c *Cpu) IntoOps() []Lir { return c.lir }

func (c *Cpu) Config() CpuConfig { return c.cfg }

func (c *Cpu) Inc() { c.lir = append(c.lir, LirInc{}) }
func (c *Cpu) Dec() { c.lir = append(c.lir, LirDec{}) }
func (c *Cpu) Out()  { c.lir = append(c.lir, LirOut{}) }
func (c *Cpu) In()  { c.lir = append(c.lir, LirIn{}) }

func (c *Cpu) Comment(text string)      { c.lir = append(c.lir, LirComment{Text: text}) }
func (c *Cpu) DebugMessage(text string) { c.lir = append(c.lir, LirDebugMessage{Text: text}) }
func (c *Cpu) Crash(text string)        { c.lir = append(c.lir, LirCrash{Text: text}) }
func (c *Cpu) Breakpoint()              { c.lir = append(c.lir, LirBreakpoint{}) }

func (c *Cpu) IncAt(pos Pos) { c.Goto(pos); c.Inc() }
func (c *Cpu) DecAt(pos Pos) { c.Goto(pos); c.Dec() }

// ShiftCursorUntracked emits raw Left/Right without any position bookkeeping
// other than marking the frame Unknown; used internally by Goto and by the
// sentinel idioms that move by a data-dependent amount.
func (c *Cpu) ShiftCursorUntracked(shift int) {
	if shift < 0 {
		for i := 0; i < -shift; i++ {
			c.lir = append(c.lir, LirLeft{})
		}
	} else {
		for i := 0; i < shift; i++ {
			c.lir = append(c.lir, LirRight{})
		}
	}
	c.curFrame = UnknownFrame()
}

func (c *Cpu) ShiftFrameUntracked(shift int) {
	c.ShiftCursorUntracked(shift * c.cfg.FrameSize())
}

// GoClearSentinelLeft consumes a "1" sentinel placed one frame to the left
// on the current track by sweeping left one frame per iteration; the frame
// is Unknown afterward (the number of iterations is data-dependent).
func (c *Cpu) GoClearSentinelLeft() {
	c.Dec()
	c.RawLoop(func(cpu *Cpu) {
		cpu.Inc()
		cpu.ShiftFrameUntracked(-1)
	})
}

func (c *Cpu) GoClearSentinelRight() {
	c.Dec()
	c.RawLoop(func(cpu *Cpu) {
		cpu.Inc()
		cpu.ShiftFrameUntracked(1)
	})
}

func (c *Cpu) GotoTrack(track int) {
	c.ShiftCursorUntracked(track - c.curTrack)
	c.curTrack = track
}

func (c *Cpu) GotoFrame(frame int) {
	cur := c.curFrame.Unwrap()
	c.ShiftCursorUntracked((frame - cur) * c.cfg.FrameSize())
	c.curFrame = KnownFrame(frame)
}

// Goto moves the cursor to pos from the believed current position, updating
// both components. Panics if the current frame is Unknown.
func (c *Cpu) Goto(pos Pos) {
	cur := c.curFrame.Unwrap()
	c.ShiftCursorUntracked((pos.Track - c.curTrack) + (pos.Frame-cur)*c.cfg.FrameSize())
	c.curFrame = KnownFrame(pos.Frame)
	c.curTrack = pos.Track
}

// LoopWhile seeks to at, emits a bracketed loop whose body runs in a child
// emitter, then re-seeks the child back to at before closing the bracket.
func (c *Cpu) LoopWhile(at Pos, body func(*Cpu)) {
	c.Goto(at)
	child := &Cpu{cfg: c.cfg, curTrack: c.curTrack, curFrame: c.curFrame}
	body(child)
	child.Goto(at)
	c.lir = append(c.lir, LirLoop{Body: child.lir})
}

// RawLoop emits a bracketed loop without seeking first; the body must be
// cursor-balanced (same position before and after, modulo sentinel
// unknowns) and track-balanced (synthesis-internal invariant, panics if
// violated).
func (c *Cpu) RawLoop(body func(*Cpu)) {
	child := &Cpu{cfg: c.cfg, curTrack: c.curTrack, curFrame: c.curFrame}
	body(child)
	if c.curFrame.IsKnown() && child.curFrame.IsKnown() && c.curFrame.Unwrap() == child.curFrame.Unwrap() {
		// unchanged, frame stays Known
	} else {
		c.curFrame = UnknownFrame()
	}
	if c.curTrack != child.curTrack {
		panic("brainpluck: raw_loop body left the cursor on a different track")
	}
	c.lir = append(c.lir, LirLoop{Body: child.lir})
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// GetPosOnTrackBetween picks the frame on track whose absolute distance to
// both a and b is smallest, for use as an autoscratch cell.
func (c *Cpu) GetPosOnTrackBetween(a, b Pos, track Track) Pos {
	eval := func(p Pos) int {
		return absInt(a.index(c.cfg)-p.index(c.cfg)) + absInt(b.index(c.cfg)-p.index(c.cfg))
	}
	bestPos := track.At(a.Frame)
	bestScore := eval(bestPos)
	lo, hi := a.Frame, b.Frame
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := lo; i <= hi+1; i++ {
		pos := track.At(i)
		if score := eval(pos); score < bestScore {
			bestPos, bestScore = pos, score
		}
	}
	return bestPos
}

func (c *Cpu) ZeroByte(pos Pos) {
	c.LoopWhile(pos, func(cpu *Cpu) { cpu.Dec() })
}

// Clr zeros the current cell without seeking (raw_loop form of ZeroByte).
func (c *Cpu) Clr() {
	c.RawLoop(func(cpu *Cpu) { cpu.Dec() })
}

func (c *Cpu) AddConstToByte(pos Pos, val byte) {
	for i := byte(0); i < val; i++ {
		c.IncAt(pos)
	}
}

// SubConstFromByte is AddConstToByte's mirror: val decrements, wrapping.
func (c *Cpu) SubConstFromByte(pos Pos, val byte) {
	for i := byte(0); i < val; i++ {
		c.DecAt(pos)
	}
}

func (c *Cpu) ZeroSlice(slice Pos, size int) {
	for i := 0; i < size; i++ {
		c.ZeroByte(Pos{Frame: slice.Frame + i, Track: slice.Track})
	}
}

func (c *Cpu) ZeroRegister(r Register) {
	c.ZeroSlice(r.At(0), r.Size)
}

func (c *Cpu) ClearRegisterTrackToScratchTrack(r Register) ScratchTrack {
	c.ZeroRegister(r)
	return ScratchTrack{Track: r.Track}
}

// MoveaddByte destructively moves from onto to: while from != 0, from--,
// to++. Post: from == 0, to += old from.
func (c *Cpu) MoveaddByte(from, to Pos) {
	if from == to {
		return
	}
	c.LoopWhile(from, func(cpu *Cpu) {
		cpu.Dec()
		cpu.IncAt(to)
	})
}

func (c *Cpu) MovesubByte(from, to Pos) {
	if from == to {
		panic("brainpluck: movesub_byte requires from != to")
	}
	c.LoopWhile(from, func(cpu *Cpu) {
		cpu.Dec()
		cpu.DecAt(to)
	})
}

func (c *Cpu) MoveSliceOntoZeroSlice(slice Pos, size int, to Pos) {
	if slice == to {
		return
	}
	if slice.Frame < to.Frame {
		for i := 0; i < size; i++ {
			c.MoveaddByte(Pos{Frame: slice.Frame + i, Track: slice.Track}, Pos{Frame: to.Frame + i, Track: to.Track})
		}
	} else {
		for i := size - 1; i >= 0; i-- {
			c.MoveaddByte(Pos{Frame: slice.Frame + i, Track: slice.Track}, Pos{Frame: to.Frame + i, Track: to.Track})
		}
	}
}

func (c *Cpu) MoveOntoZeroRegister(from, to Register) {
	if from.Size != to.Size {
		panic("brainpluck: register size mismatch in MoveOntoZeroRegister")
	}
	c.MoveSliceOntoZeroSlice(from.At(0), from.Size, to.At(0))
}

// CopyByte copies from onto to via scratch without destroying from: moves
// from into scratch, then moves scratch back into both from and to.
// Requires scratch distinct from both and pre-zero.
func (c *Cpu) CopyByte(from, to, scratch Pos) {
	if from == to {
		return
	}
	if from == scratch || to == scratch {
		panic("brainpluck: copy_byte scratch must be distinct from from/to")
	}
	c.MoveaddByte(from, scratch)
	c.LoopWhile(scratch, func(cpu *Cpu) {
		cpu.Dec()
		cpu.IncAt(from)
		cpu.IncAt(to)
	})
}

func (c *Cpu) CopyByteAutoscratch(from, to Pos, scratchTrack ScratchTrack) {
	if from == to {
		return
	}
	scratch := c.GetPosOnTrackBetween(from, to, scratchTrack.Track)
	if from == scratch {
		scratch.Frame++
		if to == scratch {
			scratch.Frame++
		}
	} else if to == scratch {
		scratch.Frame++
		if from == scratch {
			scratch.Frame++
		}
	}
	c.CopyByte(from, to, scratch)
}

func (c *Cpu) CopySlice(slice Pos, size int, to Pos, scratchTrack ScratchTrack) {
	if slice == to {
		return
	}
	if slice.Frame < to.Frame {
		for i := 0; i < size; i++ {
			c.CopyByteAutoscratch(Pos{Frame: slice.Frame + i, Track: slice.Track}, Pos{Frame: to.Frame + i, Track: to.Track}, scratchTrack)
		}
	} else {
		for i := size - 1; i >= 0; i-- {
			c.CopyByteAutoscratch(Pos{Frame: slice.Frame + i, Track: slice.Track}, Pos{Frame: to.Frame + i, Track: to.Track}, scratchTrack)
		}
	}
}

func (c *Cpu) CopyRegister(from, to Register, scratchTrack ScratchTrack) {
	if from.Size != to.Size {
		panic("brainpluck: register size mismatch in CopyRegister")
	}
	c.CopySlice(from.At(0), from.Size, to.At(0), scratchTrack)
}

func (c *Cpu) moveaddByteWithCarrySlow(a, b, carry, scratch Pos) {
	c.LoopWhile(a, func(cpu *Cpu) {
		cpu.Dec()
		cpu.IncAt(carry)
		cpu.IncAt(b)
		cpu.LoopWhile(b, func(cpu *Cpu) {
			cpu.MoveaddByte(b, scratch)
			cpu.DecAt(carry)
		})
		cpu.MoveaddByte(scratch, b)
	})
}

func allTracksDifferent(tracks ...Track) bool {
	for i := range tracks {
		for j := i + 1; j < len(tracks); j++ {
			if tracks[i] == tracks[j] {
				return false
			}
		}
	}
	return true
}

// MoveaddRegisters destructively adds big-endian byte array a into b,
// propagating carry with a sentinel-and-carry technique: scratchTrack1
// hosts a "1" sentinel used to find the way home after an overflow, and
// scratchTrack2 hosts the carry byte for the byte currently being summed.
// All scratch bytes end at 0.
func (c *Cpu) MoveaddRegisters(a, b Register, scratchTrack1, scratchTrack2 ScratchTrack) {
	if a.Size != b.Size {
		panic("brainpluck: register size mismatch in MoveaddRegisters")
	}
	if !allTracksDifferent(a.Track, b.Track, scratchTrack1.Track, scratchTrack2.Track) {
		panic("brainpluck: MoveaddRegisters requires four distinct tracks")
	}

	sentinelTrack := scratchTrack1
	carryTrack := scratchTrack2

	c.IncAt(sentinelTrack.At(-2))
	for i := a.Size - 1; i >= 1; i-- {
		c.IncAt(sentinelTrack.At(i))
		c.LoopWhile(a.At(i), func(cpu *Cpu) {
			cpu.Dec()
			x := i
			cpu.IncAt(carryTrack.At(x))
			cpu.LoopWhile(carryTrack.At(x), func(cpu *Cpu) {
				cpu.Dec()
				cpu.IncAt(carryTrack.At(x - 1))
				cpu.IncAt(b.At(x))
				cpu.RawLoop(func(cpu *Cpu) {
					cpu.DecAt(carryTrack.At(x - 1))
					cpu.Goto(sentinelTrack.At(x - 1))
					cpu.GoClearSentinelLeft()
					cpu.Inc()
					cpu.GotoTrack(b.Track.Num)
				})
				cpu.ShiftFrameUntracked(-1)
				cpu.curFrame = KnownFrame(x - 1)
			})
			cpu.Goto(sentinelTrack.At(x + 1))
			cpu.GoClearSentinelRight()
			cpu.Inc()
			cpu.curFrame = KnownFrame(i)
		})
		c.DecAt(sentinelTrack.At(i))
	}
	c.MoveaddByte(a.At(0), b.At(0))
	c.ZeroByte(b.At(-1))
	c.DecAt(sentinelTrack.At(-2))
}

// MovedivByteOntoZeros divides a (destructively) by a compile-time constant
// divisor >= 2, leaving the quotient at divResult and remainder at
// remResult. scratchTrack needs four pre-zero cells: [0] divisor-1 counter,
// [1] remainder accumulator, [2] and [3] always-zero sentinels.
func (c *Cpu) MovedivByteOntoZeros(a Pos, divisor byte, divResult, remResult Pos, scratchTrack ScratchTrack) {
	if divisor == 0 || divisor == 1 {
		panic("brainpluck: MovedivByteOntoZeros requires divisor >= 2")
	}
	c.AddConstToByte(scratchTrack.At(0), divisor-1)
	c.LoopWhile(a, func(cpu *Cpu) {
		cpu.Dec()
		cpu.Goto(scratchTrack.At(0))
		cpu.RawLoop(func(cpu *Cpu) {
			cpu.Dec()
			cpu.IncAt(scratchTrack.At(1))
			cpu.Goto(scratchTrack.At(2))
		})
		cpu.ShiftFrameUntracked(1) // now at 1 or 3
		cpu.RawLoop(func(cpu *Cpu) {
			cpu.curFrame = KnownFrame(1)
			cpu.MoveaddByte(scratchTrack.At(1), scratchTrack.At(0))
			cpu.IncAt(divResult)
			cpu.Goto(scratchTrack.At(3))
		})
		cpu.curFrame = KnownFrame(3)
	})
	c.MoveaddByte(scratchTrack.At(1), remResult)
	c.ZeroByte(scratchTrack.At(0))
}

// MoveprintByte destructively prints a byte as three ASCII decimal digits
// (with leading zeros), via two divmod-10 passes.
func (c *Cpu) MoveprintByte(pos Pos, resultScratchTrack, divisionInternalScratchTrack ScratchTrack) {
	singles := resultScratchTrack.At(0)
	temp := resultScratchTrack.At(1)
	tens := resultScratchTrack.At(2)
	hundreds := resultScratchTrack.At(3)
	c.MovedivByteOntoZeros(pos, 10, temp, singles, divisionInternalScratchTrack)
	c.MovedivByteOntoZeros(temp, 10, hundreds, tens, divisionInternalScratchTrack)
	c.AddConstToByte(hundreds, 48)
	c.Out()
	c.Clr()
	c.AddConstToByte(tens, 48)
	c.Out()
	c.Clr()
	c.AddConstToByte(singles, 48)
	c.Out()
	c.Clr()
}

// PrintState renders the tape grouped by track to stderr, for OpBreakpoint.
// A development aid; format is not part of any external contract.
func (s *State) PrintState(cfg *CpuConfig) {
	n := cfg.FrameSize()
	frames := (len(s.cells) + n - 1) / n
	for t := 0; t < n; t++ {
		fmt.Fprintf(os.Stderr, "track %d:", t)
		for f := 0; f < frames; f++ {
			if idx := f*n + t; idx < len(s.cells) {
				fmt.Fprintf(os.Stderr, " %d", s.cells[idx])
			}
		}
		fmt.Fprintln(os.Stderr)
	}
}
