package validator

import (
	"testing"

	"github.com/cminusfc/cminusfc/internal/ast"
)

func TestValidateModuleOK(t *testing.T) {
	m := &ast.Module{
		Name: "test",
		Functions: []ast.Function{
			{
				Name:    "main",
				Returns: ast.Int(),
				Body: []ast.Statement{
					{Kind: ast.StmtReturn, Value: &ast.Expression{Kind: ast.ExprIntLit, IntValue: 0}},
				},
			},
		},
	}
	if err := New().ValidateModule(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateModuleNoFunctions(t *testing.T) {
	m := &ast.Module{Name: "empty"}
	if err := New().ValidateModule(m); err == nil {
		t.Fatal("expected error for module with no functions")
	}
}

func TestValidateDuplicateFunctionNames(t *testing.T) {
	fn := ast.Function{Name: "f", Returns: ast.Void(), Body: []ast.Statement{}}
	m := &ast.Module{Name: "t", Functions: []ast.Function{fn, fn}}
	if err := New().ValidateModule(m); err == nil {
		t.Fatal("expected error for duplicate function names")
	}
}

func TestValidateUndefinedVariable(t *testing.T) {
	m := &ast.Module{
		Name: "t",
		Functions: []ast.Function{
			{
				Name:    "f",
				Returns: ast.Int(),
				Body: []ast.Statement{
					{Kind: ast.StmtReturn, Value: &ast.Expression{Kind: ast.ExprVariable, Name: "x"}},
				},
			},
		},
	}
	if err := New().ValidateModule(m); err == nil {
		t.Fatal("expected error for undefined variable")
	}
}

func TestValidateArrayIndexAssign(t *testing.T) {
	m := &ast.Module{
		Name: "t",
		Functions: []ast.Function{
			{
				Name: "f",
				Params: []ast.Parameter{
					{Name: "xs", Type: ast.Array(ast.Int(), 4)},
				},
				Returns: ast.Void(),
				Body: []ast.Statement{
					{
						Kind:   ast.StmtAssign,
						Target: ast.Lvalue{Name: "xs", Index: &ast.Expression{Kind: ast.ExprIntLit, IntValue: 0}},
						Value:  &ast.Expression{Kind: ast.ExprIntLit, IntValue: 5},
					},
					{Kind: ast.StmtReturn},
				},
			},
		},
	}
	if err := New().ValidateModule(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAssignWholeArrayRejected(t *testing.T) {
	m := &ast.Module{
		Name: "t",
		Functions: []ast.Function{
			{
				Name: "f",
				Params: []ast.Parameter{
					{Name: "xs", Type: ast.Array(ast.Int(), 4)},
				},
				Returns: ast.Void(),
				Body: []ast.Statement{
					{
						Kind:   ast.StmtAssign,
						Target: ast.Lvalue{Name: "xs"},
						Value:  &ast.Expression{Kind: ast.ExprIntLit, IntValue: 5},
					},
				},
			},
		},
	}
	if err := New().ValidateModule(m); err == nil {
		t.Fatal("expected error assigning to whole array")
	}
}

func TestValidateCallArityMismatch(t *testing.T) {
	m := &ast.Module{
		Name: "t",
		Functions: []ast.Function{
			{Name: "g", Params: []ast.Parameter{{Name: "a", Type: ast.Int()}}, Returns: ast.Int(), Body: []ast.Statement{
				{Kind: ast.StmtReturn, Value: &ast.Expression{Kind: ast.ExprVariable, Name: "a"}},
			}},
			{Name: "f", Returns: ast.Int(), Body: []ast.Statement{
				{Kind: ast.StmtReturn, Value: &ast.Expression{Kind: ast.ExprCall, Name: "g"}},
			}},
		},
	}
	if err := New().ValidateModule(m); err == nil {
		t.Fatal("expected arity mismatch error")
	}
}

func TestValidateIntFloatAssignable(t *testing.T) {
	if !typesCompatible(ast.Float(), ast.Int()) {
		t.Error("int should be assignable to float (implicit sitofp at irgen)")
	}
	if !typesCompatible(ast.Int(), ast.Float()) {
		t.Error("float should be assignable to int (implicit fptosi at irgen)")
	}
	if typesCompatible(ast.Int(), ast.Array(ast.Int(), 2)) {
		t.Error("array should not be compatible with int")
	}
}

func TestValidateExternNoBody(t *testing.T) {
	m := &ast.Module{
		Name: "t",
		Functions: []ast.Function{
			{Name: "neg_idx_except", Returns: ast.Void(), Extern: true},
			{Name: "main", Returns: ast.Void(), Body: []ast.Statement{{Kind: ast.StmtReturn}}},
		},
	}
	if err := New().ValidateModule(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
