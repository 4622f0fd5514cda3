package brainpluck

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// runCpu lowers whatever a Cpu emitted down to BF and executes it, returning
// everything written to stdout.
func runCpu(t *testing.T, cpu *Cpu) string {
	t.Helper()
	out, _ := runCpuState(t, cpu)
	return out
}

// runCpuState is runCpu plus the terminal machine state, for tests that also
// need to walk the tape (e.g. the scratch-cleanliness invariant).
func runCpuState(t *testing.T, cpu *Cpu) (string, *State) {
	t.Helper()
	ops := LowerLirToBf(cpu.IntoOps())
	var out bytes.Buffer
	state := NewState()
	require.NoError(t, state.RunOps(ops, strings.NewReader(""), &out))
	return out.String(), state
}

// assertScratchClean implements the check_scratch_is_empty invariant: every
// cell belonging to scratchTrackNum must be 0 once the program halts. cfg
// must be the same CpuConfig the program was synthesized against, since the
// frame size (and so the stride between a track's cells) is config-specific.
func assertScratchClean(t *testing.T, cfg CpuConfig, state *State, scratchTrackNum int) {
	t.Helper()
	stride := cfg.FrameSize()
	for i, b := range state.Cells() {
		if i%stride == scratchTrackNum {
			require.Equalf(t, byte(0), b, "scratch cell at tape index %d (frame %d) is not clean", i, i/stride)
		}
	}
}

func TestCpuAddConstToByteThenOutPrintsTheValue(t *testing.T) {
	cpu := NewCpu(CpuConfig{NumTracks: 1})
	track := Track{Num: 0}
	pos := track.At(0)

	cpu.AddConstToByte(pos, 65)
	cpu.Goto(pos)
	cpu.Out()

	require.Equal(t, "A", runCpu(t, cpu))
}

func TestCpuZeroByteClearsACell(t *testing.T) {
	cpu := NewCpu(CpuConfig{NumTracks: 1})
	track := Track{Num: 0}
	pos := track.At(0)

	cpu.AddConstToByte(pos, 9)
	cpu.ZeroByte(pos)
	cpu.Goto(pos)
	cpu.Out()

	require.Equal(t, "\x00", runCpu(t, cpu))
}

func TestCpuMoveaddByteZerosSourceAndAccumulatesDest(t *testing.T) {
	cpu := NewCpu(CpuConfig{NumTracks: 1})
	track := Track{Num: 0}
	from, to := track.At(0), track.At(1)

	cpu.AddConstToByte(from, 3)
	cpu.AddConstToByte(to, 4)
	cpu.MoveaddByte(from, to)
	cpu.Goto(from)
	cpu.Out()
	cpu.Goto(to)
	cpu.Out()

	require.Equal(t, "\x00\x07", runCpu(t, cpu))
}

func TestCpuCopyByteLeavesSourceIntact(t *testing.T) {
	cpu := NewCpu(CpuConfig{NumTracks: 2})
	data := Track{Num: 0}
	scratchTrack := Track{Num: 1}
	from, to, scratch := data.At(0), data.At(1), scratchTrack.At(0)

	cpu.AddConstToByte(from, 42)
	cpu.CopyByte(from, to, scratch)
	cpu.Goto(from)
	cpu.Out()
	cpu.Goto(to)
	cpu.Out()

	out, state := runCpuState(t, cpu)
	require.Equal(t, "**", out)
	assertScratchClean(t, cpu.Config(), state, scratchTrack.Num)
}

func TestCpuCopyRegisterCopiesEveryByte(t *testing.T) {
	cpu := NewCpu(CpuConfig{NumTracks: 2})
	data := Track{Num: 0}
	scratch := ScratchTrack{Track: Track{Num: 1}}

	src := Register{Track: data, Size: 2, Base: 0}
	dst := Register{Track: data, Size: 2, Base: 2}

	cpu.AddConstToByte(src.At(0), 1)
	cpu.AddConstToByte(src.At(1), 2)
	cpu.CopyRegister(src, dst, scratch)

	cpu.Goto(dst.At(0))
	cpu.Out()
	cpu.Goto(dst.At(1))
	cpu.Out()

	out, state := runCpuState(t, cpu)
	require.Equal(t, "\x01\x02", out)
	assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
}

func TestCpuIfNonzeroRunsBodyOnlyWhenSet(t *testing.T) {
	cpu := NewCpu(CpuConfig{NumTracks: 2})
	data := Track{Num: 0}
	scratch := ScratchTrack{Track: Track{Num: 1}}
	flag := data.At(0)
	out := data.At(1)

	cpu.AddConstToByte(flag, 1)
	cpu.IfNonzero(flag, scratch, func(cpu *Cpu) {
		cpu.AddConstToByte(out, 1)
	})
	cpu.Goto(out)
	cpu.Out()

	gotOut, state := runCpuState(t, cpu)
	require.Equal(t, "\x01", gotOut)
	assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
}

func TestCpuIfNonzeroSkipsBodyWhenZero(t *testing.T) {
	cpu := NewCpu(CpuConfig{NumTracks: 2})
	data := Track{Num: 0}
	scratch := ScratchTrack{Track: Track{Num: 1}}
	flag := data.At(0)
	out := data.At(1)

	cpu.IfNonzero(flag, scratch, func(cpu *Cpu) {
		cpu.AddConstToByte(out, 1)
	})
	cpu.Goto(out)
	cpu.Out()

	gotOut, state := runCpuState(t, cpu)
	require.Equal(t, "\x00", gotOut)
	assertScratchClean(t, cpu.Config(), state, scratch.Track.Num)
}

func TestCpuLoopWhileDecrementsToZero(t *testing.T) {
	cpu := NewCpu(CpuConfig{NumTracks: 2})
	data := Track{Num: 0}
	counter := data.At(0)
	out := data.At(1)

	cpu.AddConstToByte(counter, 3)
	cpu.LoopWhile(counter, func(cpu *Cpu) {
		cpu.Dec()
		cpu.IncAt(out)
	})
	cpu.Goto(out)
	cpu.Out()

	require.Equal(t, "\x03", runCpu(t, cpu))
}
