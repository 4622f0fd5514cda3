package brainpluck

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SAM opcode bytes, per the fixed 31-entry table; order here is dispatch
// order in sam2lir.go's decode chain.
const (
	OpcodeHalt            = 0
	OpcodeSwapXY          = 1
	OpcodeSwapAB          = 2
	OpcodeSetX            = 3
	OpcodeSetY            = 4
	OpcodeSetA            = 5
	OpcodeSetB            = 6
	OpcodeReadAAtB        = 7
	OpcodeReadXAtB        = 8
	OpcodeReadYAtB        = 9
	OpcodeWriteAAtB       = 10
	OpcodeWriteXAtB       = 11
	OpcodeWriteYAtB       = 12
	OpcodeAddAToB         = 13
	OpcodeSubAFromB       = 14
	OpcodePrintCharX      = 15
	OpcodeStdinX          = 16
	OpcodeAddConstToB     = 17
	OpcodeSubConstFromB   = 18
	OpcodePrintA          = 19
	OpcodeCall            = 20
	OpcodeRet             = 21
	OpcodeJump            = 22
	OpcodeJumpIfX         = 23
	OpcodeAddU8AtBToX     = 24
	OpcodeMulU8AtBToX     = 25
	OpcodeAddU32AtBToA    = 26
	OpcodeMulU32AtBToA    = 27
	OpcodeNegA            = 28
	OpcodeNegX            = 29
	OpcodeMoveXToA        = 30
)

// SamOp is one encoded SAM instruction.
type SamOp interface {
	Encode() []byte
	Len() int
	isSamOp()
}

type (
	OpHalt       struct{}
	OpSwapXY     struct{}
	OpSwapAB     struct{}
	OpSetX       struct{ Val uint8 }
	OpSetY       struct{ Val uint8 }
	OpSetA       struct{ Val uint32 }
	OpSetB       struct{ Val uint32 }
	OpReadAAtB   struct{}
	OpReadXAtB   struct{}
	OpReadYAtB   struct{}
	OpWriteAAtB  struct{}
	OpWriteXAtB  struct{}
	OpWriteYAtB  struct{}
	OpAddAToB    struct{}
	OpSubAFromB  struct{}
	OpPrintCharX struct{}
	OpStdinX     struct{}
	OpAddConstToB   struct{ Val uint32 }
	OpSubConstFromB struct{ Val uint32 }
	OpPrintA     struct{}
	OpCall       struct{ Addr uint32 }
	OpRet        struct{}
	OpJump       struct{ Offset int32 }
	OpJumpIfX    struct{ Offset int32 }
	OpAddU8AtBToX  struct{}
	OpMulU8AtBToX  struct{}
	OpAddU32AtBToA struct{}
	OpMulU32AtBToA struct{}
	OpNegA       struct{}
	OpNegX       struct{}
	OpMoveXToA   struct{}
)

func (OpHalt) isSamOp()           {}
func (OpSwapXY) isSamOp()         {}
func (OpSwapAB) isSamOp()         {}
func (OpSetX) isSamOp()           {}
func (OpSetY) isSamOp()           {}
func (OpSetA) isSamOp()           {}
func (OpSetB) isSamOp()           {}
func (OpReadAAtB) isSamOp()       {}
func (OpReadXAtB) isSamOp()       {}
func (OpReadYAtB) isSamOp()       {}
func (OpWriteAAtB) isSamOp()      {}
func (OpWriteXAtB) isSamOp()      {}
func (OpWriteYAtB) isSamOp()      {}
func (OpAddAToB) isSamOp()        {}
func (OpSubAFromB) isSamOp()      {}
func (OpPrintCharX) isSamOp()     {}
func (OpStdinX) isSamOp()         {}
func (OpAddConstToB) isSamOp()    {}
func (OpSubConstFromB) isSamOp()  {}
func (OpPrintA) isSamOp()         {}
func (OpCall) isSamOp()           {}
func (OpRet) isSamOp()            {}
func (OpJump) isSamOp()           {}
func (OpJumpIfX) isSamOp()        {}
func (OpAddU8AtBToX) isSamOp()    {}
func (OpMulU8AtBToX) isSamOp()    {}
func (OpAddU32AtBToA) isSamOp()   {}
func (OpMulU32AtBToA) isSamOp()   {}
func (OpNegA) isSamOp()           {}
func (OpNegX) isSamOp()           {}
func (OpMoveXToA) isSamOp()       {}

func putU32BE(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func (o OpHalt) Encode() []byte       { return []byte{OpcodeHalt} }
func (o OpSwapXY) Encode() []byte     { return []byte{OpcodeSwapXY} }
func (o OpSwapAB) Encode() []byte     { return []byte{OpcodeSwapAB} }
func (o OpSetX) Encode() []byte       { return []byte{OpcodeSetX, o.Val} }
func (o OpSetY) Encode() []byte       { return []byte{OpcodeSetY, o.Val} }
func (o OpSetA) Encode() []byte       { return putU32BE([]byte{OpcodeSetA}, o.Val) }
func (o OpSetB) Encode() []byte       { return putU32BE([]byte{OpcodeSetB}, o.Val) }
func (o OpReadAAtB) Encode() []byte   { return []byte{OpcodeReadAAtB} }
func (o OpReadXAtB) Encode() []byte   { return []byte{OpcodeReadXAtB} }
func (o OpReadYAtB) Encode() []byte   { return []byte{OpcodeReadYAtB} }
func (o OpWriteAAtB) Encode() []byte  { return []byte{OpcodeWriteAAtB} }
func (o OpWriteXAtB) Encode() []byte  { return []byte{OpcodeWriteXAtB} }
func (o OpWriteYAtB) Encode() []byte  { return []byte{OpcodeWriteYAtB} }
func (o OpAddAToB) Encode() []byte    { return []byte{OpcodeAddAToB} }
func (o OpSubAFromB) Encode() []byte  { return []byte{OpcodeSubAFromB} }
func (o OpPrintCharX) Encode() []byte { return []byte{OpcodePrintCharX} }
func (o OpStdinX) Encode() []byte     { return []byte{OpcodeStdinX} }
func (o OpAddConstToB) Encode() []byte   { return putU32BE([]byte{OpcodeAddConstToB}, o.Val) }
func (o OpSubConstFromB) Encode() []byte { return putU32BE([]byte{OpcodeSubConstFromB}, o.Val) }
func (o OpPrintA) Encode() []byte     { return []byte{OpcodePrintA} }
func (o OpCall) Encode() []byte       { return putU32BE([]byte{OpcodeCall}, o.Addr) }
func (o OpRet) Encode() []byte        { return []byte{OpcodeRet} }
func (o OpJump) Encode() []byte       { return putU32BE([]byte{OpcodeJump}, uint32(o.Offset)) }
func (o OpJumpIfX) Encode() []byte    { return putU32BE([]byte{OpcodeJumpIfX}, uint32(o.Offset)) }
func (o OpAddU8AtBToX) Encode() []byte  { return []byte{OpcodeAddU8AtBToX} }
func (o OpMulU8AtBToX) Encode() []byte  { return []byte{OpcodeMulU8AtBToX} }
func (o OpAddU32AtBToA) Encode() []byte { return []byte{OpcodeAddU32AtBToA} }
func (o OpMulU32AtBToA) Encode() []byte { return []byte{OpcodeMulU32AtBToA} }
func (o OpNegA) Encode() []byte       { return []byte{OpcodeNegA} }
func (o OpNegX) Encode() []byte       { return []byte{OpcodeNegX} }
func (o OpMoveXToA) Encode() []byte   { return []byte{OpcodeMoveXToA} }

func (o OpHalt) Len() int           { return 1 }
func (o OpSwapXY) Len() int         { return 1 }
func (o OpSwapAB) Len() int         { return 1 }
func (o OpSetX) Len() int           { return 2 }
func (o OpSetY) Len() int           { return 2 }
func (o OpSetA) Len() int           { return 5 }
func (o OpSetB) Len() int           { return 5 }
func (o OpReadAAtB) Len() int       { return 1 }
func (o OpReadXAtB) Len() int       { return 1 }
func (o OpReadYAtB) Len() int       { return 1 }
func (o OpWriteAAtB) Len() int      { return 1 }
func (o OpWriteXAtB) Len() int      { return 1 }
func (o OpWriteYAtB) Len() int      { return 1 }
func (o OpAddAToB) Len() int        { return 1 }
func (o OpSubAFromB) Len() int      { return 1 }
func (o OpPrintCharX) Len() int     { return 1 }
func (o OpStdinX) Len() int         { return 1 }
func (o OpAddConstToB) Len() int    { return 5 }
func (o OpSubConstFromB) Len() int  { return 5 }
func (o OpPrintA) Len() int         { return 1 }
func (o OpCall) Len() int           { return 5 }
func (o OpRet) Len() int            { return 1 }
func (o OpJump) Len() int           { return 5 }
func (o OpJumpIfX) Len() int        { return 5 }
func (o OpAddU8AtBToX) Len() int    { return 1 }
func (o OpMulU8AtBToX) Len() int    { return 1 }
func (o OpAddU32AtBToA) Len() int   { return 1 }
func (o OpMulU32AtBToA) Len() int   { return 1 }
func (o OpNegA) Len() int           { return 1 }
func (o OpNegX) Len() int           { return 1 }
func (o OpMoveXToA) Len() int       { return 1 }

// DecodeSamOp decodes one instruction from the front of buf. An unrecognized
// opcode byte is a programming error (corrupt image or a linker bug), never
// a user-triggered failure, so it panics rather than returning an error.
func DecodeSamOp(buf []byte) SamOp {
	switch buf[0] {
	case OpcodeHalt:
		return OpHalt{}
	case OpcodeSwapXY:
		return OpSwapXY{}
	case OpcodeSwapAB:
		return OpSwapAB{}
	case OpcodeSetX:
		return OpSetX{Val: buf[1]}
	case OpcodeSetY:
		return OpSetY{Val: buf[1]}
	case OpcodeSetA:
		return OpSetA{Val: binary.BigEndian.Uint32(buf[1:5])}
	case OpcodeSetB:
		return OpSetB{Val: binary.BigEndian.Uint32(buf[1:5])}
	case OpcodeReadAAtB:
		return OpReadAAtB{}
	case OpcodeReadXAtB:
		return OpReadXAtB{}
	case OpcodeReadYAtB:
		return OpReadYAtB{}
	case OpcodeWriteAAtB:
		return OpWriteAAtB{}
	case OpcodeWriteXAtB:
		return OpWriteXAtB{}
	case OpcodeWriteYAtB:
		return OpWriteYAtB{}
	case OpcodeAddAToB:
		return OpAddAToB{}
	case OpcodeSubAFromB:
		return OpSubAFromB{}
	case OpcodePrintCharX:
		return OpPrintCharX{}
	case OpcodeStdinX:
		return OpStdinX{}
	case OpcodeAddConstToB:
		return OpAddConstToB{Val: binary.BigEndian.Uint32(buf[1:5])}
	case OpcodeSubConstFromB:
		return OpSubConstFromB{Val: binary.BigEndian.Uint32(buf[1:5])}
	case OpcodePrintA:
		return OpPrintA{}
	case OpcodeCall:
		return OpCall{Addr: binary.BigEndian.Uint32(buf[1:5])}
	case OpcodeRet:
		return OpRet{}
	case OpcodeJump:
		return OpJump{Offset: int32(binary.BigEndian.Uint32(buf[1:5]))}
	case OpcodeJumpIfX:
		return OpJumpIfX{Offset: int32(binary.BigEndian.Uint32(buf[1:5]))}
	case OpcodeAddU8AtBToX:
		return OpAddU8AtBToX{}
	case OpcodeMulU8AtBToX:
		return OpMulU8AtBToX{}
	case OpcodeAddU32AtBToA:
		return OpAddU32AtBToA{}
	case OpcodeMulU32AtBToA:
		return OpMulU32AtBToA{}
	case OpcodeNegA:
		return OpNegA{}
	case OpcodeNegX:
		return OpNegX{}
	case OpcodeMoveXToA:
		return OpMoveXToA{}
	default:
		panic(fmt.Sprintf("brainpluck: decoding invalid sam opcode %d", buf[0]))
	}
}

// ErrHalted is returned by Step/RunOp when stepping an already-halted
// machine.
var ErrHalted = fmt.Errorf("brainpluck: sam machine already halted")

// SamState is the reference SAM interpreter: registers plus a byte tape
// holding the linked image. All A/B arithmetic is wrapping u32, uniformly
// (see SPEC_FULL.md §12 on the non-wrapping/wrapping inconsistency in the
// source this was distilled from).
type SamState struct {
	Cells    []byte
	InstrPtr uint32
	Halted   bool
	A        uint32
	B        uint32
	X        uint8
	Y        uint8
}

// NewSamState builds the initial machine state from a linked image: appends
// a trailing HALT byte and a 4-byte return address to it, sets B to point
// at that return address, and sets IP to main's start offset.
func NewSamState(img *LinkedImage) *SamState {
	cells := make([]byte, len(img.Bytes))
	copy(cells, img.Bytes)
	haltAddr := uint32(len(cells))
	cells = append(cells, OpcodeHalt)
	b := uint32(len(cells))
	var retAddr [4]byte
	binary.BigEndian.PutUint32(retAddr[:], haltAddr)
	cells = append(cells, retAddr[:]...)

	mainAddr, ok := img.FnStarts["main"]
	if !ok {
		panic("brainpluck: linked image has no main function")
	}
	return &SamState{Cells: cells, InstrPtr: mainAddr, A: 0, B: b, X: 0, Y: 0}
}

func (s *SamState) reserveCells(maxCell uint32) {
	if uint32(len(s.Cells)) <= maxCell {
		grown := make([]byte, maxCell+1)
		copy(grown, s.Cells)
		s.Cells = grown
	}
}

func (s *SamState) ReadU32At(at uint32) uint32 {
	s.reserveCells(at + 4)
	return binary.BigEndian.Uint32(s.Cells[at:])
}

func (s *SamState) ReadU8At(at uint32) uint8 {
	s.reserveCells(at)
	return s.Cells[at]
}

func (s *SamState) WriteU32At(val uint32, at uint32) {
	s.reserveCells(at + 4)
	binary.BigEndian.PutUint32(s.Cells[at:], val)
}

func (s *SamState) WriteU8At(val uint8, at uint32) {
	s.reserveCells(at)
	s.Cells[at] = val
}

func (s *SamState) DecodeNextOp() SamOp {
	return DecodeSamOp(s.Cells[s.InstrPtr:])
}

func (s *SamState) Step(r io.Reader, w io.Writer) error {
	s.reserveCells(s.InstrPtr + 5)
	op := s.DecodeNextOp()
	return s.RunOp(op, r, w)
}

func (s *SamState) Run(r io.Reader, w io.Writer) error {
	for !s.Halted {
		if err := s.Step(r, w); err != nil {
			return err
		}
	}
	return nil
}

// RunOp executes one decoded instruction. AddAToB is B += A (A unchanged);
// the source this was distilled from mutated A instead, which SPEC_FULL.md
// records as a bug and explicitly does not reproduce.
func (s *SamState) RunOp(op SamOp, r io.Reader, w io.Writer) error {
	if s.Halted {
		return ErrHalted
	}
	jumped := false
	switch o := op.(type) {
	case OpHalt:
		s.Halted = true
	case OpSwapXY:
		s.X, s.Y = s.Y, s.X
	case OpSwapAB:
		s.A, s.B = s.B, s.A
	case OpSetX:
		s.X = o.Val
	case OpSetY:
		s.Y = o.Val
	case OpSetA:
		s.A = o.Val
	case OpSetB:
		s.B = o.Val
	case OpReadAAtB:
		s.A = s.ReadU32At(s.B)
	case OpReadXAtB:
		s.X = s.ReadU8At(s.B)
	case OpReadYAtB:
		s.Y = s.ReadU8At(s.B)
	case OpWriteAAtB:
		s.WriteU32At(s.A, s.B)
	case OpWriteXAtB:
		s.WriteU8At(s.X, s.B)
	case OpWriteYAtB:
		s.WriteU8At(s.Y, s.B)
	case OpAddAToB:
		s.B += s.A
	case OpSubAFromB:
		s.B -= s.A
	case OpPrintCharX:
		if _, err := w.Write([]byte{s.X}); err != nil {
			return fmt.Errorf("brainpluck: sam PrintCharX: %w", err)
		}
		if f, ok := w.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				return fmt.Errorf("brainpluck: sam PrintCharX flush: %w", err)
			}
		}
	case OpStdinX:
		var buf [1]byte
		n, err := r.Read(buf[:])
		if n == 0 || err == io.EOF {
			s.X = 0
		} else if err != nil {
			return fmt.Errorf("brainpluck: sam StdinX: %w", err)
		} else if buf[0] != 13 {
			s.X = buf[0]
		}
	case OpAddConstToB:
		s.B += o.Val
	case OpSubConstFromB:
		s.B -= o.Val
	case OpPrintA:
		if _, err := fmt.Fprintf(w, "%d", s.A); err != nil {
			return fmt.Errorf("brainpluck: sam PrintA: %w", err)
		}
		if f, ok := w.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				return fmt.Errorf("brainpluck: sam PrintA flush: %w", err)
			}
		}
	case OpRet:
		s.InstrPtr = s.ReadU32At(s.B)
		jumped = true
	case OpAddU8AtBToX:
		s.X += s.ReadU8At(s.B)
	case OpMulU8AtBToX:
		s.X *= s.ReadU8At(s.B)
	case OpAddU32AtBToA:
		s.A += s.ReadU32At(s.B)
	case OpMulU32AtBToA:
		s.A *= s.ReadU32At(s.B)
	case OpNegA:
		s.A = -s.A
	case OpNegX:
		s.X = -s.X
	case OpMoveXToA:
		s.A = uint32(s.X)
	case OpCall:
		s.WriteU32At(s.InstrPtr+5, s.B)
		s.InstrPtr = o.Addr
		jumped = true
	case OpJump:
		s.InstrPtr = addSignedOffset(s.InstrPtr, o.Offset)
		jumped = true
	case OpJumpIfX:
		if s.X != 0 {
			s.InstrPtr = addSignedOffset(s.InstrPtr, o.Offset)
			jumped = true
		}
	default:
		panic(fmt.Sprintf("brainpluck: unhandled sam op %T", op))
	}
	if !jumped {
		s.InstrPtr += uint32(op.Len())
	}
	return nil
}

func addSignedOffset(ip uint32, offset int32) uint32 {
	n := int64(ip) + int64(offset)
	if n < 0 {
		panic("brainpluck: sam jump left of the tape")
	}
	return uint32(n)
}
