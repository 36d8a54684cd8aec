package ast

import (
	"encoding/json"
	"testing"
)

func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got T
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return got
}

func jsonEqual(t *testing.T, got, want any) {
	t.Helper()
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(want)
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("mismatch after round-trip\ngot:  %s\nwant: %s", gotJSON, wantJSON)
	}
}

func TestModuleRoundTrip(t *testing.T) {
	m := Module{
		Type: "module",
		Name: "test",
		Globals: []Global{
			{Name: "counter", Type: Int()},
		},
		Functions: []Function{
			{
				Name:    "main",
				Params:  []Parameter{},
				Returns: Int(),
				Body:    []Statement{},
			},
		},
	}
	got := roundTrip(t, m)
	jsonEqual(t, got, m)
}

func TestFunctionWithParamsAndArray(t *testing.T) {
	fn := Function{
		Name: "sum",
		Params: []Parameter{
			{Name: "xs", Type: Array(Int(), 10)},
			{Name: "n", Type: Int()},
		},
		Returns: Int(),
		Body: []Statement{
			{
				Kind: StmtReturn,
				Value: &Expression{
					Kind: ExprBinary,
					Op:   OpAdd,
					Left: &Expression{Kind: ExprVariable, Name: "n"},
					Right: &Expression{
						Kind:  ExprIndex,
						Array: &Expression{Kind: ExprVariable, Name: "xs"},
						Index: &Expression{Kind: ExprIntLit, IntValue: 0},
					},
				},
			},
		},
	}
	got := roundTrip(t, fn)
	jsonEqual(t, got, fn)
}

func TestExternFunction(t *testing.T) {
	fn := Function{
		Name:    "neg_idx_except",
		Params:  []Parameter{},
		Returns: Void(),
		Extern:  true,
	}
	got := roundTrip(t, fn)
	jsonEqual(t, got, fn)
}

func TestStatementShapes(t *testing.T) {
	stmts := []Statement{
		{
			Kind:   StmtAssign,
			Target: Lvalue{Name: "x"},
			Value:  &Expression{Kind: ExprIntLit, IntValue: 42},
		},
		{
			Kind:   StmtAssign,
			Target: Lvalue{Name: "xs", Index: &Expression{Kind: ExprIntLit, IntValue: 2}},
			Value:  &Expression{Kind: ExprFloatLit, FloatValue: 1.5},
		},
		{
			Kind: StmtIf,
			Cond: &Expression{
				Kind:  ExprBinary,
				Op:    OpGt,
				Left:  &Expression{Kind: ExprVariable, Name: "x"},
				Right: &Expression{Kind: ExprIntLit, IntValue: 0},
			},
			Then: []Statement{{Kind: StmtReturn, Value: &Expression{Kind: ExprIntLit, IntValue: 1}}},
			Else: []Statement{{Kind: StmtReturn, Value: &Expression{Kind: ExprIntLit, IntValue: 0}}},
		},
		{
			Kind: StmtWhile,
			Cond: &Expression{
				Kind:  ExprBinary,
				Op:    OpLt,
				Left:  &Expression{Kind: ExprVariable, Name: "i"},
				Right: &Expression{Kind: ExprIntLit, IntValue: 10},
			},
			Body: []Statement{
				{
					Kind:   StmtAssign,
					Target: Lvalue{Name: "i"},
					Value: &Expression{
						Kind:  ExprBinary,
						Op:    OpAdd,
						Left:  &Expression{Kind: ExprVariable, Name: "i"},
						Right: &Expression{Kind: ExprIntLit, IntValue: 1},
					},
				},
			},
		},
		{
			Kind: StmtExpr,
			Expr: &Expression{Kind: ExprCall, Name: "side_effect"},
		},
	}

	for i, s := range stmts {
		got := roundTrip(t, s)
		jsonEqual(t, got, stmts[i])
	}
}

func TestExpressionShapes(t *testing.T) {
	exprs := []Expression{
		{Kind: ExprIntLit, IntValue: 7},
		{Kind: ExprFloatLit, FloatValue: 3.5},
		{Kind: ExprVariable, Name: "x"},
		{
			Kind:  ExprBinary,
			Op:    OpMul,
			Left:  &Expression{Kind: ExprIntLit, IntValue: 2},
			Right: &Expression{Kind: ExprIntLit, IntValue: 3},
		},
		{
			Kind:    ExprUnary,
			Op:      OpNeg,
			Operand: &Expression{Kind: ExprIntLit, IntValue: 4},
		},
		{
			Kind: ExprCall,
			Name: "add",
			Args: []Expression{
				{Kind: ExprIntLit, IntValue: 1},
				{Kind: ExprIntLit, IntValue: 2},
			},
		},
		{
			Kind:  ExprIndex,
			Array: &Expression{Kind: ExprVariable, Name: "arr"},
			Index: &Expression{Kind: ExprIntLit, IntValue: 0},
		},
	}

	for i, e := range exprs {
		got := roundTrip(t, e)
		jsonEqual(t, got, exprs[i])
	}
}

func TestTypeShapes(t *testing.T) {
	types := []Type{Int(), Float(), Void(), Array(Int(), 4), Array(Float(), 2)}
	for i, ty := range types {
		got := roundTrip(t, ty)
		jsonEqual(t, got, types[i])
	}
	if !Array(Int(), 4).IsArray() {
		t.Error("Array(...).IsArray() should be true")
	}
	if !Float().IsFloat() {
		t.Error("Float().IsFloat() should be true")
	}
	if !Void().IsVoid() {
		t.Error("Void().IsVoid() should be true")
	}
}

func TestConstants(t *testing.T) {
	stmtKinds := []string{StmtDecl, StmtAssign, StmtIf, StmtWhile, StmtReturn, StmtExpr}
	wantStmtKinds := []string{"decl", "assign", "if", "while", "return", "expr"}
	for i, got := range stmtKinds {
		if got != wantStmtKinds[i] {
			t.Errorf("statement kind %d = %q, want %q", i, got, wantStmtKinds[i])
		}
	}

	exprKinds := []string{ExprIntLit, ExprFloatLit, ExprVariable, ExprBinary, ExprUnary, ExprCall, ExprIndex}
	wantExprKinds := []string{"int_literal", "float_literal", "variable", "binary", "unary", "call", "index"}
	for i, got := range exprKinds {
		if got != wantExprKinds[i] {
			t.Errorf("expression kind %d = %q, want %q", i, got, wantExprKinds[i])
		}
	}

	binOps := []string{OpAdd, OpSub, OpMul, OpDiv, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe}
	wantBinOps := []string{"+", "-", "*", "/", "==", "!=", "<", "<=", ">", ">="}
	for i, got := range binOps {
		if got != wantBinOps[i] {
			t.Errorf("binary operator %d = %q, want %q", i, got, wantBinOps[i])
		}
	}
}
