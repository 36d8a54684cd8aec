package grammar

import (
	"testing"

	"github.com/alecthomas/participle/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cminusfc/cminusfc/internal/ast"
)

const factorialSource = `
int arr[10];

void neg_idx_except();

int factorial(int n) {
    int result;
    result = 1;
    while (n > 1) {
        result = result * n;
        n = n - 1;
    }
    return result;
}

int sum(int a[], int len) {
    int i;
    int total;
    i = 0;
    total = 0;
    while (i < len) {
        if (a[i] > 0) {
            total = total + a[i];
        } else {
            total = total - a[i];
        }
        i = i + 1;
    }
    return total;
}
`

func TestParseFactorialSource(t *testing.T) {
	prog, err := ParseString("factorial.cm", factorialSource)
	require.NoError(t, err)
	require.Len(t, prog.Declarations, 4)

	assert.NotNil(t, prog.Declarations[0].Var)
	assert.Equal(t, "arr", prog.Declarations[0].Var.Name)
	require.NotNil(t, prog.Declarations[0].Var.Len)
	assert.Equal(t, 10, *prog.Declarations[0].Var.Len)

	assert.NotNil(t, prog.Declarations[1].Fun)
	assert.Equal(t, "neg_idx_except", prog.Declarations[1].Fun.Name)
	assert.Nil(t, prog.Declarations[1].Fun.Body)

	assert.NotNil(t, prog.Declarations[2].Fun)
	assert.Equal(t, "factorial", prog.Declarations[2].Fun.Name)
	require.NotNil(t, prog.Declarations[2].Fun.Body)
}

func TestLowerFactorialSource(t *testing.T) {
	prog, err := ParseString("factorial.cm", factorialSource)
	require.NoError(t, err)

	m := Lower(prog)
	require.Len(t, m.Globals, 1)
	assert.Equal(t, "arr", m.Globals[0].Name)
	assert.True(t, m.Globals[0].Type.IsArray())
	assert.Equal(t, uint64(10), m.Globals[0].Type.Len)

	require.Len(t, m.Functions, 3)

	negIdx := m.Functions[0]
	assert.Equal(t, "neg_idx_except", negIdx.Name)
	assert.True(t, negIdx.Extern)
	assert.Empty(t, negIdx.Body)

	factorial := m.Functions[1]
	assert.Equal(t, "factorial", factorial.Name)
	require.Len(t, factorial.Params, 1)
	assert.Equal(t, "n", factorial.Params[0].Name)

	require.NotEmpty(t, factorial.Body)
	var sawWhile bool
	for _, s := range factorial.Body {
		if s.Kind == ast.StmtWhile {
			sawWhile = true
			require.NotNil(t, s.Cond)
			assert.Equal(t, ast.ExprBinary, s.Cond.Kind)
			assert.Equal(t, ast.OpGt, s.Cond.Op)
			require.NotEmpty(t, s.Body)
		}
	}
	assert.True(t, sawWhile, "expected a lowered while statement in factorial's body")

	sum := m.Functions[2]
	require.Len(t, sum.Params, 2)
	assert.True(t, sum.Params[0].Type.IsArray())
	assert.Equal(t, uint64(0), sum.Params[0].Type.Len, "array parameters decay with length 0")

	var sawIf bool
	for _, s := range sum.Body {
		if s.Kind == ast.StmtWhile {
			for _, inner := range s.Body {
				if inner.Kind == ast.StmtIf {
					sawIf = true
					require.NotEmpty(t, inner.Then)
					require.NotEmpty(t, inner.Else)
				}
			}
		}
	}
	assert.True(t, sawIf, "expected a lowered if/else nested inside the while body")
}

func TestLowerAssignmentAndIndex(t *testing.T) {
	const src = `
int main() {
    int a[5];
    a[2] = 7 + a[0];
    return a[2];
}
`
	prog, err := ParseString("idx.cm", src)
	require.NoError(t, err)
	m := Lower(prog)
	require.Len(t, m.Functions, 1)

	body := m.Functions[0].Body
	require.Len(t, body, 3)

	decl := body[0]
	assert.Equal(t, ast.StmtDecl, decl.Kind)
	assert.Equal(t, "a", decl.DeclName)
	assert.True(t, decl.DeclType.IsArray())

	assign := body[1]
	assert.Equal(t, ast.StmtAssign, assign.Kind)
	assert.Equal(t, "a", assign.Target.Name)
	require.NotNil(t, assign.Target.Index)
	require.NotNil(t, assign.Value)
	assert.Equal(t, ast.ExprBinary, assign.Value.Kind)
	assert.Equal(t, ast.OpAdd, assign.Value.Op)

	ret := body[2]
	assert.Equal(t, ast.StmtReturn, ret.Kind)
	require.NotNil(t, ret.Value)
	assert.Equal(t, ast.ExprIndex, ret.Value.Kind)
}

func TestParseErrorReportsPosition(t *testing.T) {
	_, err := ParseString("bad.cm", "int main( { return 0; }")
	require.Error(t, err)
	var pe participle.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Position().Line)
}
