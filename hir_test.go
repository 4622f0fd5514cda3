package brainpluck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHirParsesArithmeticPrecedence(t *testing.T) {
	prog, err := ParseHir("fn main() { print(2+3*4); }")
	require.NoError(t, err)

	main, ok := prog.Fns["main"]
	require.True(t, ok)
	require.Len(t, main.Stmts, 1)

	call, ok := main.Stmts[0].(StmtFnCall)
	require.True(t, ok)
	require.Equal(t, "print", call.Call.FnName)

	sum, ok := call.Call.Args[0].(ExprBinOp)
	require.True(t, ok)
	require.Equal(t, OpPlus, sum.Kind)
	require.Equal(t, ExprLiteral{Value: 2}, sum.A)

	product, ok := sum.B.(ExprBinOp)
	require.True(t, ok)
	require.Equal(t, OpMul, product.Kind)
	require.Equal(t, ExprLiteral{Value: 3}, product.A)
	require.Equal(t, ExprLiteral{Value: 4}, product.B)
}

func TestParseHirParsesTypedArgsAndReturn(t *testing.T) {
	prog, err := ParseHir("fn addOne(x:u8) -> u8 { x+1 }")
	require.NoError(t, err)

	fn, ok := prog.Fns["addOne"]
	require.True(t, ok)
	require.Equal(t, []FnArgDecl{{ArgName: "x", ArgType: VarU8}}, fn.Args)
	require.NotNil(t, fn.Ret)
	require.Equal(t, VarU8, *fn.Ret)
	require.Len(t, fn.Stmts, 1)
	_, ok = fn.Stmts[0].(StmtExpr)
	require.True(t, ok)
}

func TestParseHirParsesLetIfElseAndAssignment(t *testing.T) {
	prog, err := ParseHir(`fn main() {
		let x:u8 = 5;
		if x {
			x = x-1;
		} else {
			x = 0;
		}
	}`)
	require.NoError(t, err)

	main := prog.Fns["main"]
	require.Len(t, main.Stmts, 2)

	decl, ok := main.Stmts[0].(StmtVarDecl)
	require.True(t, ok)
	require.Equal(t, "x", decl.VarName)
	require.Equal(t, VarU8, decl.Typ)

	ifStmt, ok := main.Stmts[1].(StmtIf)
	require.True(t, ok)
	require.Len(t, ifStmt.Then, 1)
	require.Len(t, ifStmt.Else, 1)
}

func TestParseHirRejectsDuplicateFunctionNames(t *testing.T) {
	_, err := ParseHir("fn f() { 1 } fn f() { 2 }")
	require.Error(t, err)
}

func TestParseHirRejectsEmptySource(t *testing.T) {
	_, err := ParseHir("")
	require.Error(t, err)
}

func TestParseHirRejectsUnclosedBlock(t *testing.T) {
	_, err := ParseHir("fn main() { print(1);")
	require.Error(t, err)
}
