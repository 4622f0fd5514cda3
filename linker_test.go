package brainpluck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinkSamFnsLaysOutFramesAfterMainRetSlot(t *testing.T) {
	fns := map[string]*SamFn{
		"main": {
			Name:      "main",
			Instrs:    []PreLinkOp{PreLinkSimple{Op: OpHalt{}}},
			FrameSize: 8,
		},
		"helper": {
			Name:      "helper",
			Instrs:    []PreLinkOp{PreLinkSimple{Op: OpRet{}}},
			FrameSize: 4,
		},
	}

	img, err := LinkSamFns(fns)
	require.NoError(t, err)

	// sorted order: helper, main - each function body is one byte here.
	require.Equal(t, uint32(0), img.FnStarts["helper"])
	require.Equal(t, uint32(1), img.FnStarts["main"])

	// DataSize = codeLen(2) + the trailing HALT byte + main's frame(8) + helper's frame(4).
	require.Equal(t, uint32(2+1+8+4), img.DataSize)
}

func TestLinkSamFnsFunctionsAreOrderedByName(t *testing.T) {
	fns := map[string]*SamFn{
		"main":  {Name: "main", Instrs: []PreLinkOp{PreLinkSimple{Op: OpHalt{}}}},
		"zzlast": {Name: "zzlast", Instrs: []PreLinkOp{PreLinkSimple{Op: OpHalt{}}}},
		"aafirst": {Name: "aafirst", Instrs: []PreLinkOp{PreLinkSimple{Op: OpHalt{}}}},
	}
	img, err := LinkSamFns(fns)
	require.NoError(t, err)
	// sorted order: aafirst, main, zzlast -> each is one byte
	require.Equal(t, uint32(0), img.FnStarts["aafirst"])
	require.Equal(t, uint32(1), img.FnStarts["main"])
	require.Equal(t, uint32(2), img.FnStarts["zzlast"])
}

func TestLinkSamFnsResolvesSetBFrameToFrameBasePlusOffset(t *testing.T) {
	fns := map[string]*SamFn{
		"main": {
			Name:      "main",
			Instrs:    []PreLinkOp{PreLinkSetBFrame{FnName: "main", Offset: 3}},
			FrameSize: 8,
		},
	}
	img, err := LinkSamFns(fns)
	require.NoError(t, err)

	decoded := DecodeSamOp(img.Bytes)
	setB, ok := decoded.(OpSetB)
	require.True(t, ok)

	mainFrameBase := uint32(len(img.Bytes)) + 1 // codeLen + the trailing HALT byte NewSamState appends
	require.Equal(t, mainFrameBase+3, setB.Val)
}

func TestLinkSamFnsRejectsUnknownFrameReference(t *testing.T) {
	fns := map[string]*SamFn{
		"main": {
			Name:   "main",
			Instrs: []PreLinkOp{PreLinkSetBFrame{FnName: "ghost", Offset: 0}},
		},
	}
	_, err := LinkSamFns(fns)
	require.Error(t, err)
}
