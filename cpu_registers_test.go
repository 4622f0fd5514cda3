package brainpluck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newRegisterCpu returns a 2-track Cpu (data track 0, scratch track 1) plus
// the scratch handle every macro in this file needs.
func newRegisterCpu() (*Cpu, ScratchTrack) {
	cpu := NewCpu(CpuConfig{NumTracks: 2})
	return cpu, ScratchTrack{Track: Track{Num: 1}}
}

func TestUnpackPackBinregisterRoundTrips(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	src := Register{Track: data, Size: 1, Base: 0}
	dst := Register{Track: data, Size: 1, Base: 1}
	bin := BinRegister{Track: data, Bits: 8, Base: 10}

	cpu.AddConstToByte(src.At(0), 167)
	cpu.UnpackRegister(src, bin, scratch)
	cpu.PackBinregister(bin, dst, scratch)
	cpu.ClrBinregister(bin)

	cpu.Goto(dst.At(0))
	cpu.Out()

	out, state := runCpuState(t, cpu)
	require.Equal(t, "\xa7", out)
	assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
}

func TestAddBinregisterToBinregisterMatchesSpecSample(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	a := BinRegister{Track: data, Bits: 32, Base: 0}
	b := BinRegister{Track: data, Bits: 32, Base: 32}

	cpu.SetBinregister(a, 789742058)
	cpu.SetBinregister(b, 391490498)
	cpu.AddBinregisterToBinregister(a, b, scratch)
	cpu.PrintBinregisterInBinary(b, scratch)

	out, state := runCpuState(t, cpu)
	require.Equal(t, "0b01000110011010000010110110101100", out)
	assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
}

func TestSubBinregisterFromBinregisterUndoesAdd(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	a := BinRegister{Track: data, Bits: 32, Base: 0}
	b := BinRegister{Track: data, Bits: 32, Base: 32}

	cpu.SetBinregister(a, 789742058)
	cpu.SetBinregister(b, 391490498)
	cpu.AddBinregisterToBinregister(a, b, scratch)
	cpu.SubBinregisterFromBinregister(a, b, scratch)
	cpu.PrintBinregisterInDecimal(b, scratch)

	require.Equal(t, "391490498", runCpu(t, cpu))
}

func TestDivBinregistersMatchesSpecSample(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	a := BinRegister{Track: data, Bits: 32, Base: 0}
	b := BinRegister{Track: data, Bits: 32, Base: 32}
	div := BinRegister{Track: data, Bits: 32, Base: 64}
	rem := BinRegister{Track: data, Bits: 32, Base: 96}

	cpu.SetBinregister(a, 1037250132)
	cpu.SetBinregister(b, 156347)
	cpu.DivBinregisters(a, b, div, rem, scratch)
	cpu.PrintBinregisterInBinary(div, scratch)
	cpu.PrintBinregisterInBinary(rem, scratch)

	out, state := runCpuState(t, cpu)
	require.Equal(t,
		"0b00000000000000000001100111101010"+"0b00000000000000001010110001100110",
		out)
	assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
}

func TestShiftBinregisterLeftMatchesSpecSample(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	sum := BinRegister{Track: data, Bits: 32, Base: 0}

	cpu.SetBinregister(sum, 1181232556) // 789742058 + 391490498, per the addition sample
	cpu.ShiftBinregisterLeft(sum)
	cpu.PrintBinregisterInBinary(sum, scratch)

	require.Equal(t, "0b10001100110100000101101101011000", runCpu(t, cpu))
}

func TestShiftBinregisterRightUndoesShiftLeftAboveTheLostBit(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	r := BinRegister{Track: data, Bits: 8, Base: 0}

	cpu.SetBinregister(r, 0b00110110)
	cpu.ShiftBinregisterLeft(r)
	cpu.ShiftBinregisterRight(r)
	cpu.PrintBinregisterInBinary(r, scratch)

	require.Equal(t, "0b00110110", runCpu(t, cpu))
}

// TestCmp2UintBinregistersMatchesSpecSample walks cmp(136,138) then four
// increments of the left operand, mirroring the spec's three-way-compare
// sample. The spec's own table lists the expected sequence as "43345", but
// '3' is not a character this encoding ('4' less, '5' equal, '6' greater)
// can ever produce; "44566" is the value the documented encoding actually
// yields for this input (136<138, 137<138, 138==138, 139>138, 140>138) and
// is treated as the corrected expectation here (see DESIGN.md).
func TestCmp2UintBinregistersMatchesSpecSample(t *testing.T) {
	want := "44566"
	b := 138
	got := ""
	for i, a := 0, 136; i < 5; i, a = i+1, a+1 {
		cpu, scratch := newRegisterCpu()
		data := Track{Num: 0}
		aReg := BinRegister{Track: data, Bits: 8, Base: 0}
		bReg := BinRegister{Track: data, Bits: 8, Base: 8}
		result := data.At(16)

		cpu.SetBinregister(aReg, uint64(a))
		cpu.SetBinregister(bReg, uint64(b))
		cpu.Cmp2UintBinregisters(aReg, bReg, result, scratch)
		cpu.Goto(result)
		cpu.Out()

		out, state := runCpuState(t, cpu)
		got += out
		assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
	}
	require.Equal(t, want, got)
}

func TestMoveMatchCmpResultDispatchesEachBranch(t *testing.T) {
	run := func(a, b uint64) string {
		cpu, scratch := newRegisterCpu()
		data := Track{Num: 0}
		aReg := BinRegister{Track: data, Bits: 8, Base: 0}
		bReg := BinRegister{Track: data, Bits: 8, Base: 8}
		result := data.At(16)

		cpu.SetBinregister(aReg, a)
		cpu.SetBinregister(bReg, b)
		cpu.Cmp2UintBinregisters(aReg, bReg, result, scratch)
		cpu.MoveMatchCmpResult(result, scratch,
			func(cpu *Cpu) { cpu.printLiteralByte(data.At(17), 'L') },
			func(cpu *Cpu) { cpu.printLiteralByte(data.At(17), 'E') },
			func(cpu *Cpu) { cpu.printLiteralByte(data.At(17), 'G') },
		)
		return runCpu(t, cpu)
	}

	require.Equal(t, "L", run(3, 9))
	require.Equal(t, "E", run(9, 9))
	require.Equal(t, "G", run(9, 3))
}

func TestMulBinregistersComputesProduct(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	a := BinRegister{Track: data, Bits: 8, Base: 0}
	b := BinRegister{Track: data, Bits: 8, Base: 8}
	out := BinRegister{Track: data, Bits: 8, Base: 16}

	cpu.SetBinregister(a, 12)
	cpu.SetBinregister(b, 9)
	cpu.MulBinregisters(a, b, out, scratch)
	cpu.PrintBinregisterInDecimal(out, scratch)

	gotOut, state := runCpuState(t, cpu)
	require.Equal(t, "108", gotOut)
	assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
}

func TestIncBinregisterWrapsAtTopOfRange(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	r := BinRegister{Track: data, Bits: 8, Base: 0}

	cpu.SetBinregister(r, 255)
	cpu.IncBinregister(r, scratch)
	cpu.PrintBinregisterInDecimal(r, scratch)

	require.Equal(t, "0", runCpu(t, cpu))
}

func TestDecBinregisterWrapsBelowZero(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	r := BinRegister{Track: data, Bits: 8, Base: 0}

	cpu.DecBinregister(r, scratch)
	cpu.PrintBinregisterInDecimal(r, scratch)

	require.Equal(t, "255", runCpu(t, cpu))
}

func TestIncRegisterWrapsAtTopOfRange(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	r := Register{Track: data, Size: 1, Base: 0}

	cpu.AddConstToByte(r.At(0), 255)
	cpu.IncRegister(r, scratch)
	cpu.Goto(r.At(0))
	cpu.Out()

	out, state := runCpuState(t, cpu)
	require.Equal(t, "\x00", out)
	assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
}

func TestDecRegisterWrapsBelowZero(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	r := Register{Track: data, Size: 1, Base: 0}

	cpu.DecRegister(r, scratch)
	cpu.Goto(r.At(0))
	cpu.Out()

	out, state := runCpuState(t, cpu)
	require.Equal(t, "\xff", out)
	assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
}

func TestPrintBinregisterInDecimalSuppressesLeadingZeros(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	r := BinRegister{Track: data, Bits: 16, Base: 0}

	cpu.SetBinregister(r, 42)
	cpu.PrintBinregisterInDecimal(r, scratch)

	require.Equal(t, "42", runCpu(t, cpu))
}

func TestPrintBinregisterInDecimalPrintsZeroForZeroRegister(t *testing.T) {
	cpu, scratch := newRegisterCpu()
	data := Track{Num: 0}
	r := BinRegister{Track: data, Bits: 16, Base: 0}

	cpu.PrintBinregisterInDecimal(r, scratch)

	require.Equal(t, "0", runCpu(t, cpu))
}
