// Package validator checks a parsed cminus-f module for the well-formedness
// the IR builder assumes: every name resolves, every expression's type is
// known and consistent with its context, and every return statement matches
// the function's return type. It does not check that every path through a
// non-void function ends in a return. Malformed input is rejected here, not
// downstream — internal/irgen assumes a module that passed ValidateModule.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cminusfc/cminusfc/internal/ast"
)

// Validator accumulates errors across a module so one run reports everything
// wrong with it instead of stopping at the first mistake.
type Validator struct {
	errors []string
}

func New() *Validator {
	return &Validator{errors: make([]string, 0)}
}

type funcSig struct {
	params []ast.Type
	ret    ast.Type
}

// ValidateModule validates a complete module: global/function name
// uniqueness, and every function body in turn.
func (v *Validator) ValidateModule(m *ast.Module) error {
	v.errors = v.errors[:0]

	if m.Name == "" {
		v.addError("module name cannot be empty")
	}

	globals := make(map[string]ast.Type)
	for i, g := range m.Globals {
		if g.Name == "" {
			v.addError("global %d: name cannot be empty", i)
			continue
		}
		if !isValidIdentifier(g.Name) {
			v.addError("global %d: invalid name '%s'", i, g.Name)
		}
		if _, dup := globals[g.Name]; dup {
			v.addError("duplicate global name: %s", g.Name)
		}
		globals[g.Name] = g.Type
	}

	if len(m.Functions) == 0 {
		v.addError("module must contain at least one function")
	}

	funcs := make(map[string]funcSig)
	for i, fn := range m.Functions {
		if _, dup := funcs[fn.Name]; dup {
			v.addError("duplicate function name: %s", fn.Name)
		}
		sig := funcSig{ret: fn.Returns}
		for _, p := range fn.Params {
			sig.params = append(sig.params, p.Type)
		}
		funcs[fn.Name] = sig
		if err := v.validateFunction(&m.Functions[i], globals, funcs); err != nil {
			v.addError("function %d (%s): %v", i, fn.Name, err)
		}
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *Validator) validateFunction(fn *ast.Function, globals map[string]ast.Type, funcs map[string]funcSig) error {
	if fn.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !isValidIdentifier(fn.Name) {
		return fmt.Errorf("invalid function name '%s'", fn.Name)
	}

	scope := make(map[string]ast.Type, len(globals)+len(fn.Params))
	for name, t := range globals {
		scope[name] = t
	}

	paramNames := make(map[string]bool)
	for i, p := range fn.Params {
		if p.Name == "" {
			return fmt.Errorf("parameter %d: name cannot be empty", i)
		}
		if !isValidIdentifier(p.Name) {
			return fmt.Errorf("parameter %d: invalid name '%s'", i, p.Name)
		}
		if paramNames[p.Name] {
			return fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		paramNames[p.Name] = true
		scope[p.Name] = p.Type
	}

	if fn.Extern {
		if len(fn.Body) != 0 {
			return fmt.Errorf("extern function cannot have a body")
		}
		return nil
	}

	if fn.Body == nil {
		return fmt.Errorf("function body cannot be null")
	}

	for i, stmt := range fn.Body {
		if err := v.validateStatement(&stmt, scope, fn.Returns, funcs); err != nil {
			return fmt.Errorf("statement %d: %v", i, err)
		}
	}
	return nil
}

func (v *Validator) validateStatement(stmt *ast.Statement, scope map[string]ast.Type, retType ast.Type, funcs map[string]funcSig) error {
	switch stmt.Kind {
	case ast.StmtDecl:
		if stmt.DeclName == "" {
			return fmt.Errorf("declaration must have a name")
		}
		if !isValidIdentifier(stmt.DeclName) {
			return fmt.Errorf("invalid declaration name '%s'", stmt.DeclName)
		}
		if stmt.DeclInit != nil {
			t, err := v.typeOf(stmt.DeclInit, scope, funcs)
			if err != nil {
				return fmt.Errorf("declaration init: %v", err)
			}
			if !typesCompatible(stmt.DeclType, t) {
				return fmt.Errorf("declaration '%s': init type %s does not match declared type %s", stmt.DeclName, t, stmt.DeclType)
			}
		}
		scope[stmt.DeclName] = stmt.DeclType

	case ast.StmtAssign:
		if stmt.Target.Name == "" {
			return fmt.Errorf("assign statement must have a target")
		}
		targetType, ok := scope[stmt.Target.Name]
		if !ok {
			return fmt.Errorf("undefined variable: %s", stmt.Target.Name)
		}
		if stmt.Target.Index != nil {
			if !targetType.IsArray() {
				return fmt.Errorf("cannot index non-array '%s'", stmt.Target.Name)
			}
			if _, err := v.typeOf(stmt.Target.Index, scope, funcs); err != nil {
				return fmt.Errorf("assign index: %v", err)
			}
			targetType = *targetType.Elem
		} else if targetType.IsArray() {
			return fmt.Errorf("cannot assign to whole array '%s'", stmt.Target.Name)
		}
		if stmt.Value == nil {
			return fmt.Errorf("assign statement must have a value")
		}
		vt, err := v.typeOf(stmt.Value, scope, funcs)
		if err != nil {
			return fmt.Errorf("assign value: %v", err)
		}
		if !typesCompatible(targetType, vt) {
			return fmt.Errorf("cannot assign %s to %s '%s'", vt, targetType, stmt.Target.Name)
		}

	case ast.StmtIf:
		if stmt.Cond == nil {
			return fmt.Errorf("if statement must have a condition")
		}
		if _, err := v.typeOf(stmt.Cond, scope, funcs); err != nil {
			return fmt.Errorf("if condition: %v", err)
		}
		thenScope := copyScope(scope)
		for i, s := range stmt.Then {
			if err := v.validateStatement(&s, thenScope, retType, funcs); err != nil {
				return fmt.Errorf("then block statement %d: %v", i, err)
			}
		}
		elseScope := copyScope(scope)
		for i, s := range stmt.Else {
			if err := v.validateStatement(&s, elseScope, retType, funcs); err != nil {
				return fmt.Errorf("else block statement %d: %v", i, err)
			}
		}

	case ast.StmtWhile:
		if stmt.Cond == nil {
			return fmt.Errorf("while statement must have a condition")
		}
		if _, err := v.typeOf(stmt.Cond, scope, funcs); err != nil {
			return fmt.Errorf("while condition: %v", err)
		}
		bodyScope := copyScope(scope)
		for i, s := range stmt.Body {
			if err := v.validateStatement(&s, bodyScope, retType, funcs); err != nil {
				return fmt.Errorf("while body statement %d: %v", i, err)
			}
		}

	case ast.StmtReturn:
		if stmt.Value == nil {
			if !retType.IsVoid() {
				return fmt.Errorf("non-void function must return a value")
			}
			return nil
		}
		t, err := v.typeOf(stmt.Value, scope, funcs)
		if err != nil {
			return fmt.Errorf("return value: %v", err)
		}
		if !typesCompatible(retType, t) {
			return fmt.Errorf("return type %s does not match function return type %s", t, retType)
		}

	case ast.StmtExpr:
		if stmt.Expr == nil {
			return nil // an empty statement (";")
		}
		if _, err := v.typeOf(stmt.Expr, scope, funcs); err != nil {
			return fmt.Errorf("expression: %v", err)
		}

	default:
		return fmt.Errorf("unknown statement kind: %s", stmt.Kind)
	}
	return nil
}

// typeOf validates expr and returns its type, recursively checking operand
// types against each opcode's requirements.
func (v *Validator) typeOf(expr *ast.Expression, scope map[string]ast.Type, funcs map[string]funcSig) (ast.Type, error) {
	switch expr.Kind {
	case ast.ExprIntLit:
		return ast.Int(), nil
	case ast.ExprFloatLit:
		return ast.Float(), nil

	case ast.ExprVariable:
		if expr.Name == "" {
			return ast.Type{}, fmt.Errorf("variable expression must have a name")
		}
		t, ok := scope[expr.Name]
		if !ok {
			return ast.Type{}, fmt.Errorf("undefined variable: %s", expr.Name)
		}
		return t, nil

	case ast.ExprBinary:
		if !isValidBinaryOp(expr.Op) {
			return ast.Type{}, fmt.Errorf("invalid binary operator: %s", expr.Op)
		}
		if expr.Left == nil || expr.Right == nil {
			return ast.Type{}, fmt.Errorf("binary expression must have left and right operands")
		}
		lt, err := v.typeOf(expr.Left, scope, funcs)
		if err != nil {
			return ast.Type{}, fmt.Errorf("left operand: %v", err)
		}
		rt, err := v.typeOf(expr.Right, scope, funcs)
		if err != nil {
			return ast.Type{}, fmt.Errorf("right operand: %v", err)
		}
		if lt.IsArray() || rt.IsArray() {
			return ast.Type{}, fmt.Errorf("binary operator %s does not operate on arrays", expr.Op)
		}
		switch expr.Op {
		case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
			return ast.Int(), nil // comparisons yield i1, zext'd to int at expression boundaries
		default:
			if lt.IsFloat() || rt.IsFloat() {
				return ast.Float(), nil
			}
			return ast.Int(), nil
		}

	case ast.ExprUnary:
		if expr.Op != ast.OpNeg {
			return ast.Type{}, fmt.Errorf("invalid unary operator: %s", expr.Op)
		}
		if expr.Operand == nil {
			return ast.Type{}, fmt.Errorf("unary expression must have an operand")
		}
		t, err := v.typeOf(expr.Operand, scope, funcs)
		if err != nil {
			return ast.Type{}, fmt.Errorf("unary operand: %v", err)
		}
		if t.IsArray() {
			return ast.Type{}, fmt.Errorf("unary %s does not operate on arrays", expr.Op)
		}
		return t, nil

	case ast.ExprCall:
		if expr.Name == "" {
			return ast.Type{}, fmt.Errorf("call expression must have a function name")
		}
		sig, ok := funcs[expr.Name]
		if !ok {
			return ast.Type{}, fmt.Errorf("call to undeclared function '%s'", expr.Name)
		}
		if len(expr.Args) != len(sig.params) {
			return ast.Type{}, fmt.Errorf("call to '%s': expected %d arguments, got %d", expr.Name, len(sig.params), len(expr.Args))
		}
		for i := range expr.Args {
			at, err := v.typeOf(&expr.Args[i], scope, funcs)
			if err != nil {
				return ast.Type{}, fmt.Errorf("argument %d: %v", i, err)
			}
			if !typesCompatible(sig.params[i], at) {
				return ast.Type{}, fmt.Errorf("argument %d: expected %s, got %s", i, sig.params[i], at)
			}
		}
		return sig.ret, nil

	case ast.ExprIndex:
		if expr.Array == nil || expr.Index == nil {
			return ast.Type{}, fmt.Errorf("index expression must have an array and an index")
		}
		at, err := v.typeOf(expr.Array, scope, funcs)
		if err != nil {
			return ast.Type{}, fmt.Errorf("index array: %v", err)
		}
		if !at.IsArray() {
			return ast.Type{}, fmt.Errorf("cannot index non-array type %s", at)
		}
		it, err := v.typeOf(expr.Index, scope, funcs)
		if err != nil {
			return ast.Type{}, fmt.Errorf("index: %v", err)
		}
		if it.IsFloat() || it.IsArray() {
			return ast.Type{}, fmt.Errorf("array index must be int, got %s", it)
		}
		return *at.Elem, nil

	default:
		return ast.Type{}, fmt.Errorf("unknown expression kind: %s", expr.Kind)
	}
}

func (v *Validator) addError(format string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func typesCompatible(want, got ast.Type) bool {
	if want.Kind != got.Kind {
		// int/float implicit conversion happens explicitly via sitofp/fptosi
		// in irgen, so the validator allows it at assignment/return/argument
		// boundaries.
		return (want.Kind == ast.TypeInt || want.Kind == ast.TypeFloat) &&
			(got.Kind == ast.TypeInt || got.Kind == ast.TypeFloat)
	}
	if want.IsArray() {
		// Array parameters decay to pointers (internal/grammar always lowers
		// them with Len 0), which erases length from the type: a function
		// expecting int[] accepts an argument array of any declared length.
		return typesCompatible(*want.Elem, *got.Elem)
	}
	return true
}

func isValidBinaryOp(op string) bool {
	switch op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv,
		ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	default:
		return false
	}
}

func copyScope(scope map[string]ast.Type) map[string]ast.Type {
	newScope := make(map[string]ast.Type, len(scope))
	for k, v := range scope {
		newScope[k] = v
	}
	return newScope
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}
