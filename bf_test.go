package brainpluck

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBfMatchesLoopsAndIgnoresComments(t *testing.T) {
	ops, err := ParseBf("++[>+<-]this is a comment.")
	require.NoError(t, err)
	require.Equal(t, []BfOp{
		OpInc{}, OpInc{},
		OpLoop{Body: []BfOp{OpRight{}, OpInc{}, OpLeft{}, OpDec{}}},
		OpOut{},
	}, ops)
}

func TestParseBfUnbalancedOpenReportsPosition(t *testing.T) {
	_, err := ParseBf("+[+\n[+")
	require.Error(t, err)
	var perr *ParseBfError
	require.ErrorAs(t, err, &perr)
	require.True(t, perr.Open)
	require.Equal(t, TextPos{Line: 2, Col: 1}, perr.At)
}

func TestParseBfUnbalancedCloseReportsPosition(t *testing.T) {
	_, err := ParseBf("+]")
	require.Error(t, err)
	var perr *ParseBfError
	require.ErrorAs(t, err, &perr)
	require.False(t, perr.Open)
}

func TestStateRunOpsHelloWorld(t *testing.T) {
	src := "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."
	ops, err := ParseBf(src)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, NewState().RunOps(ops, strings.NewReader(""), &out))
	require.Equal(t, "Hello World!\n", out.String())
}

func TestStateRunOpsLeftOfCellZeroIsAnError(t *testing.T) {
	ops, err := ParseBf("<")
	require.NoError(t, err)
	err = NewState().RunOps(ops, strings.NewReader(""), &bytes.Buffer{})
	require.ErrorIs(t, err, ErrPtrOutOfBounds)
}

func TestStateRunOpsCrashStopsExecution(t *testing.T) {
	ops, err := ParseBf("+!+")
	require.NoError(t, err)
	var out bytes.Buffer
	state := NewState()
	err = state.RunOps(ops, strings.NewReader(""), &out)
	require.ErrorIs(t, err, ErrCrashed)
	// the second '+' never ran
	require.Equal(t, byte(1), state.Cells()[0])
}

func TestStateRunOpsStdinSkipsCarriageReturn(t *testing.T) {
	ops, err := ParseBf(",")
	require.NoError(t, err)
	state := NewState()
	require.NoError(t, state.RunOps(ops, strings.NewReader("\r"), &bytes.Buffer{}))
	require.Equal(t, byte(0), state.Cells()[0])
}

func TestStateRunOpsStdinEOFReadsZero(t *testing.T) {
	ops, err := ParseBf(",")
	require.NoError(t, err)
	state := NewState()
	require.NoError(t, state.RunOps(ops, strings.NewReader(""), &bytes.Buffer{}))
	require.Equal(t, byte(0), state.Cells()[0])
}

func TestStateWithTapeLimitRejectsRunawayGrowth(t *testing.T) {
	ops, err := ParseBf(">>>")
	require.NoError(t, err)
	state := NewState().WithTapeLimit(2)
	err = state.RunOps(ops, strings.NewReader(""), &bytes.Buffer{})
	require.ErrorIs(t, err, ErrTapeLimitExceeded)
}

func TestStateRunOpsExtendedMoveAddMovesAndZeros(t *testing.T) {
	ops := []BfOp{OpInc{}, OpInc{}, OpInc{}, OpMoveAdd{Delta: 2}}
	state := NewState()
	require.NoError(t, state.RunOps(ops, strings.NewReader(""), &bytes.Buffer{}))
	require.Equal(t, byte(0), state.Cells()[0])
	require.Equal(t, byte(3), state.Cells()[2])
}

func TestStateRunOpsExtendedMoveAddMulScalesByFactor(t *testing.T) {
	ops := []BfOp{
		OpInc{}, OpInc{}, // cell0 = 2
		OpMoveAddMul{Targets: []MulTarget{{Delta: 1, Factor: 3}, {Delta: 2, Factor: -1}}},
	}
	state := NewState()
	require.NoError(t, state.RunOps(ops, strings.NewReader(""), &bytes.Buffer{}))
	require.Equal(t, byte(0), state.Cells()[0])
	require.Equal(t, byte(6), state.Cells()[1])
	require.Equal(t, byte(256-2), state.Cells()[2])
}

func TestOpsToStringRoundTripsThroughParse(t *testing.T) {
	src := "++>+<-[->+<].,"
	ops, err := ParseBf(src)
	require.NoError(t, err)
	require.Equal(t, src, OpsToString(ops))
}
