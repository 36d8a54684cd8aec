package irgen

import (
	"testing"

	"github.com/cminusfc/cminusfc/internal/grammar"
	"github.com/cminusfc/cminusfc/internal/ir"
	"github.com/cminusfc/cminusfc/internal/validator"
)

func buildSource(t *testing.T, src string) *ir.Module {
	t.Helper()
	prog, err := grammar.ParseString("t.cm", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mod := grammar.Lower(prog)
	if err := validator.New().ValidateModule(mod); err != nil {
		t.Fatalf("validate: %v", err)
	}
	irMod, err := Build(mod)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return irMod
}

func countOp(fn *ir.Function, op ir.Opcode) int {
	n := 0
	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if in.Op == op {
				n++
			}
		}
		if b.Term != nil && b.Term.Op == op {
			n++
		}
	}
	return n
}

func TestBuildDeclaresNegIdxExceptExtern(t *testing.T) {
	m := buildSource(t, "int main() { return 0; }")
	fn := m.FindFunc(negIdxExceptName)
	if fn == nil {
		t.Fatal("expected an implicit neg_idx_except declaration")
	}
	if !fn.Extern {
		t.Error("neg_idx_except should be extern")
	}
}

func TestStraightLineArithmetic(t *testing.T) {
	m := buildSource(t, `
int add(int a, int b) {
    int c;
    c = a + b;
    return c;
}
`)
	fn := m.FindFunc("add")
	if fn == nil {
		t.Fatal("expected function add")
	}
	if countOp(fn, ir.OpAlloca) == 0 {
		t.Error("expected allocas for parameters and the local before mem2reg runs")
	}
	if countOp(fn, ir.OpAdd) != 1 {
		t.Error("expected exactly one add")
	}
}

func TestArrayIndexEmitsNegativeIndexGuard(t *testing.T) {
	m := buildSource(t, `
int at(int a[], int i) {
    return a[i];
}
`)
	fn := m.FindFunc("at")
	if fn == nil {
		t.Fatal("expected function at")
	}
	if countOp(fn, ir.OpICmp) == 0 {
		t.Error("expected an icmp guarding the array index against negative values")
	}
	if countOp(fn, ir.OpCall) != 1 {
		t.Error("expected exactly one call, to neg_idx_except on the guard's error edge")
	}
	if len(fn.Blocks) < 3 {
		t.Errorf("expected the negative-index guard to split the block, got %d blocks", len(fn.Blocks))
	}
}

func TestGlobalArrayDecaysOnCall(t *testing.T) {
	m := buildSource(t, `
int arr[4];

int sum(int a[], int n) {
    int i;
    int total;
    i = 0;
    total = 0;
    while (i < n) {
        total = total + a[i];
        i = i + 1;
    }
    return total;
}

int main() {
    return sum(arr, 4);
}
`)
	main := m.FindFunc("main")
	if main == nil {
		t.Fatal("expected function main")
	}
	if countOp(main, ir.OpGEP) == 0 {
		t.Error("expected the global array argument to decay via a gep to its first element")
	}
}

func TestIntFloatPromotionInsertsSIToFP(t *testing.T) {
	m := buildSource(t, `
float scale(int n) {
    float f;
    f = n * 2.5;
    return f;
}
`)
	fn := m.FindFunc("scale")
	if fn == nil {
		t.Fatal("expected function scale")
	}
	if countOp(fn, ir.OpSIToFP) == 0 {
		t.Error("expected an explicit sitofp when multiplying an int by a float literal")
	}
	if countOp(fn, ir.OpFMul) != 1 {
		t.Error("expected the multiplication to lower to fmul once operands are unified")
	}
}

func TestComparisonZextsToI32(t *testing.T) {
	m := buildSource(t, `
int gt(int a, int b) {
    int r;
    r = a > b;
    return r;
}
`)
	fn := m.FindFunc("gt")
	if fn == nil {
		t.Fatal("expected function gt")
	}
	if countOp(fn, ir.OpICmp) != 1 {
		t.Error("expected one icmp for the comparison")
	}
	if countOp(fn, ir.OpZExt) != 1 {
		t.Error("expected the comparison result to be zext'd to i32 before the store")
	}
}

func TestWhileLoopUsesRawI1Condition(t *testing.T) {
	m := buildSource(t, `
int count(int n) {
    int i;
    i = 0;
    while (i < n) {
        i = i + 1;
    }
    return i;
}
`)
	fn := m.FindFunc("count")
	if fn == nil {
		t.Fatal("expected function count")
	}
	// The loop condition is a bare comparison, so it must feed the cond-br
	// directly with no zext in between.
	if countOp(fn, ir.OpZExt) != 0 {
		t.Error("a while condition that is a bare comparison should not be zext'd")
	}
	if countOp(fn, ir.OpCondBr) != 1 {
		t.Error("expected exactly one conditional branch for the loop")
	}
}
