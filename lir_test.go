package brainpluck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLowerLirToBfEmptyInputProducesEmptyOutput(t *testing.T) {
	require.Equal(t, []BfOp{}, LowerLirToBf(nil))
}

func TestLowerLirToBfLowersInAndLeftPrimitives(t *testing.T) {
	ops := LowerLirToBf([]Lir{LirIn{}, LirLeft{}})
	require.Equal(t, []BfOp{OpIn{}, OpLeft{}}, ops)
}

func TestLowerLirToBfHandlesDeeplyNestedEmptyLoops(t *testing.T) {
	lir := []Lir{LirLoop{Body: []Lir{LirLoop{Body: []Lir{LirLoop{Body: nil}}}}}}
	ops := LowerLirToBf(lir)
	require.Equal(t, []BfOp{
		OpLoop{Body: []BfOp{
			OpLoop{Body: []BfOp{
				OpLoop{Body: []BfOp{}},
			}},
		}},
	}, ops)
}
