package brainpluck

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// runWasm instantiates the given module against a fresh "env" host
// (a one-page tape plus the read/write byte functions) and calls run_bf,
// feeding it from in and collecting everything it writes into out.
func runWasm(t *testing.T, module []byte, in []byte) []byte {
	t.Helper()
	ctx := context.Background()

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	var out []byte
	pos := 0
	readByte := func() uint32 {
		if pos >= len(in) {
			return 0
		}
		b := in[pos]
		pos++
		return uint32(b)
	}
	writeByte := func(_ context.Context, _ api.Module, v uint32) {
		out = append(out, byte(v))
	}

	_, err := r.NewHostModuleBuilder("env").
		ExportMemory("tape", 1).
		NewFunctionBuilder().WithFunc(readByte).Export("read_input_byte").
		NewFunctionBuilder().WithFunc(writeByte).Export("write_output_byte").
		Instantiate(ctx)
	require.NoError(t, err)

	mod, err := r.Instantiate(ctx, module)
	require.NoError(t, err)

	_, err = mod.ExportedFunction("run_bf").Call(ctx)
	require.NoError(t, err)

	return out
}

func TestBfToWasmHelloWorld(t *testing.T) {
	ops := mustParse(t, "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.")
	module := BfToWasm(ops)
	got := runWasm(t, module, nil)
	require.Equal(t, "Hello World!\n", string(got))
}

func TestBfToWasmEchoesStdinUntilZero(t *testing.T) {
	ops := mustParse(t, ",[.,]")
	module := BfToWasm(ops)
	got := runWasm(t, module, []byte("hi\x00"))
	require.Equal(t, "hi", string(got))
}

func TestBfToWasmMatchesInterpreterOnOptimizedOps(t *testing.T) {
	src := "+++[->++>+++<<]>.>."
	plain := mustParse(t, src)

	var wantOut bytes.Buffer
	require.NoError(t, NewState().RunOps(plain, bytes.NewReader(nil), &writeOnly{&wantOut}))

	optimized, err := OptimizeBf(mustParse(t, src), 1.0)
	require.NoError(t, err)

	module := BfToWasm(optimized)
	got := runWasm(t, module, nil)

	require.Equal(t, wantOut.Bytes(), got)
}

type writeOnly struct{ buf *bytes.Buffer }

func (w *writeOnly) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *writeOnly) Flush() error                { return nil }
