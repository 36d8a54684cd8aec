package irgen

import (
	"fmt"

	"github.com/cminusfc/cminusfc/internal/ast"
	"github.com/cminusfc/cminusfc/internal/ir"
)

// lvalueAddr resolves an assignment target or array-index operand to the
// address it addresses, plus the source type stored there (the element
// type, for an indexed array access).
func (b *builder) lvalueAddr(lv *ast.Lvalue) (ir.Value, ast.Type, error) {
	v := b.lookup(lv.Name)
	if v == nil {
		return nil, ast.Type{}, fmt.Errorf("undefined variable %q", lv.Name)
	}

	if v.decayed {
		elemType := *v.srcType.Elem
		ptr := b.block.NewLoad(ir.NewPtr(lowerType(elemType)), v.addr)
		if lv.Index == nil {
			// The whole decayed array used as a value is just its pointer;
			// callers needing this (passing it on to another call) load it
			// directly rather than going through lvalueAddr.
			return ptr, v.srcType, nil
		}
		idx, err := b.lowerIndex(lv.Index)
		if err != nil {
			return nil, ast.Type{}, err
		}
		gep := b.block.NewGEP(lowerType(elemType), ptr, false, idx)
		return gep, elemType, nil
	}

	if v.srcType.IsArray() {
		if lv.Index == nil {
			return v.addr, v.srcType, nil
		}
		idx, err := b.lowerIndex(lv.Index)
		if err != nil {
			return nil, ast.Type{}, err
		}
		elemType := *v.srcType.Elem
		gep := b.block.NewGEP(lowerType(elemType), v.addr, true, ir.NewConstInt(ir.I32, 0), idx)
		return gep, elemType, nil
	}

	return v.addr, v.srcType, nil
}

// lowerIndex lowers an array index expression and guards it with the
// runtime negative-index check the IR contract assumes exists.
func (b *builder) lowerIndex(e *ast.Expression) (ir.Value, error) {
	tv, err := b.lowerExpr(e)
	if err != nil {
		return nil, err
	}
	idx := tv.val
	b.emitNegIndexCheck(idx)
	return idx, nil
}

// emitNegIndexCheck splits the current block so a negative idx calls
// neg_idx_except before control reaches the address computation. Structural
// well-formedness requires the error block end in a terminator even though
// neg_idx_except is not expected to return.
func (b *builder) emitNegIndexCheck(idx ir.Value) {
	isNeg := b.block.NewICmp(ir.PredLT, idx, ir.NewConstInt(ir.I32, 0))
	errBB := b.fn.NewBlock("")
	contBB := b.fn.NewBlock("")
	b.block.NewCondBr(isNeg, errBB, contBB)

	errBB.NewCall(b.negIdxExcept)
	errBB.NewBr(contBB)

	b.block = contBB
}

// lowerCond lowers a condition expression to an i1 value suitable for a
// cond-br, unwrapping the zext back to i1 when the condition is itself a
// bare comparison rather than a zext'd-to-i32 sub-expression.
func (b *builder) lowerCond(e *ast.Expression) (ir.Value, error) {
	if e.Kind == ast.ExprBinary && isComparison(e.Op) {
		return b.lowerComparison(e)
	}
	tv, err := b.lowerExpr(e)
	if err != nil {
		return nil, err
	}
	if tv.typ.IsFloat() {
		return b.block.NewFCmp(ir.PredNE, tv.val, ir.NewConstFloat(0)), nil
	}
	return b.block.NewICmp(ir.PredNE, tv.val, ir.NewConstInt(ir.I32, 0)), nil
}

func isComparison(op string) bool {
	switch op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	default:
		return false
	}
}

func predFor(op string) ir.Pred {
	switch op {
	case ast.OpEq:
		return ir.PredEQ
	case ast.OpNe:
		return ir.PredNE
	case ast.OpLt:
		return ir.PredLT
	case ast.OpLe:
		return ir.PredLE
	case ast.OpGt:
		return ir.PredGT
	default:
		return ir.PredGE
	}
}

// lowerComparison emits the icmp/fcmp for e.Op and returns the raw i1, for
// use directly as a branch condition (lowerCond) without the zext-to-i32
// widening a comparison gets when it appears as an ordinary value.
func (b *builder) lowerComparison(e *ast.Expression) (ir.Value, error) {
	left, err := b.lowerExpr(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.lowerExpr(e.Right)
	if err != nil {
		return nil, err
	}
	left, right = b.unifyNumeric(left, right)
	pred := predFor(e.Op)
	if left.typ.IsFloat() {
		return b.block.NewFCmp(pred, left.val, right.val), nil
	}
	return b.block.NewICmp(pred, left.val, right.val), nil
}

// lowerExpr lowers e to a value and its source type. Comparisons are
// zext'd to i32 here, per the IR contract's expression-boundary rule;
// lowerCond bypasses this when the comparison feeds a branch directly.
func (b *builder) lowerExpr(e *ast.Expression) (typedValue, error) {
	switch e.Kind {
	case ast.ExprIntLit:
		return typedValue{val: ir.NewConstInt(ir.I32, e.IntValue), typ: ast.Int()}, nil
	case ast.ExprFloatLit:
		return typedValue{val: ir.NewConstFloat(e.FloatValue), typ: ast.Float()}, nil
	case ast.ExprVariable:
		return b.lowerVariableRead(e.Name)
	case ast.ExprIndex:
		return b.lowerIndexRead(e)
	case ast.ExprUnary:
		return b.lowerUnary(e)
	case ast.ExprCall:
		return b.lowerCall(e)
	case ast.ExprBinary:
		if isComparison(e.Op) {
			cmp, err := b.lowerComparison(e)
			if err != nil {
				return typedValue{}, err
			}
			return typedValue{val: b.block.NewZExt(cmp), typ: ast.Int()}, nil
		}
		return b.lowerArith(e)
	default:
		return typedValue{}, fmt.Errorf("unhandled expression kind %q", e.Kind)
	}
}

func (b *builder) lowerVariableRead(name string) (typedValue, error) {
	v := b.lookup(name)
	if v == nil {
		return typedValue{}, fmt.Errorf("undefined variable %q", name)
	}
	if v.decayed {
		elemType := *v.srcType.Elem
		ptr := b.block.NewLoad(ir.NewPtr(lowerType(elemType)), v.addr)
		return typedValue{val: ptr, typ: v.srcType}, nil
	}
	if v.srcType.IsArray() {
		// A bare array name used as a value decays to a pointer to its
		// first element — passed on to a call expecting a decayed array
		// parameter. The resulting type carries Len 0, irgen's decayed
		// marker, matching lowerParamType's own decay rule.
		elemType := *v.srcType.Elem
		ptr := b.block.NewGEP(lowerType(elemType), v.addr, true, ir.NewConstInt(ir.I32, 0), ir.NewConstInt(ir.I32, 0))
		return typedValue{val: ptr, typ: ast.Array(elemType, 0)}, nil
	}
	loaded := b.block.NewLoad(lowerType(v.srcType), v.addr)
	return typedValue{val: loaded, typ: v.srcType}, nil
}

func (b *builder) lowerIndexRead(e *ast.Expression) (typedValue, error) {
	lv := ast.Lvalue{Name: e.Name, Index: e.Index}
	addr, elemType, err := b.lvalueAddr(&lv)
	if err != nil {
		return typedValue{}, err
	}
	loaded := b.block.NewLoad(lowerType(elemType), addr)
	return typedValue{val: loaded, typ: elemType}, nil
}

func (b *builder) lowerUnary(e *ast.Expression) (typedValue, error) {
	operand, err := b.lowerExpr(e.Operand)
	if err != nil {
		return typedValue{}, err
	}
	if operand.typ.IsFloat() {
		return typedValue{val: b.block.NewFSub(ir.NewConstFloat(0), operand.val), typ: ast.Float()}, nil
	}
	return typedValue{val: b.block.NewSub(ir.NewConstInt(ir.I32, 0), operand.val), typ: ast.Int()}, nil
}

func (b *builder) lowerCall(e *ast.Expression) (typedValue, error) {
	fn, ok := b.funcs[e.Name]
	if !ok {
		return typedValue{}, fmt.Errorf("undefined function %q", e.Name)
	}
	args := make([]ir.Value, 0, len(e.Args))
	for i := range e.Args {
		arg, err := b.lowerExpr(&e.Args[i])
		if err != nil {
			return typedValue{}, err
		}
		args = append(args, arg.val)
	}
	call := b.block.NewCall(fn, args...)
	return typedValue{val: call, typ: retTypeOf(fn)}, nil
}

func retTypeOf(fn *ir.Function) ast.Type {
	switch {
	case fn.RetType.IsFloat():
		return ast.Float()
	case fn.RetType == ir.Void:
		return ast.Void()
	default:
		return ast.Int()
	}
}

func (b *builder) lowerArith(e *ast.Expression) (typedValue, error) {
	left, err := b.lowerExpr(e.Left)
	if err != nil {
		return typedValue{}, err
	}
	right, err := b.lowerExpr(e.Right)
	if err != nil {
		return typedValue{}, err
	}
	left, right = b.unifyNumeric(left, right)
	if left.typ.IsFloat() {
		var v ir.Value
		switch e.Op {
		case ast.OpAdd:
			v = b.block.NewFAdd(left.val, right.val)
		case ast.OpSub:
			v = b.block.NewFSub(left.val, right.val)
		case ast.OpMul:
			v = b.block.NewFMul(left.val, right.val)
		default:
			v = b.block.NewFDiv(left.val, right.val)
		}
		return typedValue{val: v, typ: ast.Float()}, nil
	}
	var v ir.Value
	switch e.Op {
	case ast.OpAdd:
		v = b.block.NewAdd(left.val, right.val)
	case ast.OpSub:
		v = b.block.NewSub(left.val, right.val)
	case ast.OpMul:
		v = b.block.NewMul(left.val, right.val)
	default:
		v = b.block.NewSDiv(left.val, right.val)
	}
	return typedValue{val: v, typ: ast.Int()}, nil
}

// unifyNumeric promotes an int operand to float via an explicit sitofp when
// the other operand is float, per the IR contract's "conversions are
// explicit" rule.
func (b *builder) unifyNumeric(left, right typedValue) (typedValue, typedValue) {
	if left.typ.IsFloat() == right.typ.IsFloat() {
		return left, right
	}
	if left.typ.IsFloat() {
		right = typedValue{val: b.block.NewSIToFP(right.val), typ: ast.Float()}
	} else {
		left = typedValue{val: b.block.NewSIToFP(left.val), typ: ast.Float()}
	}
	return left, right
}

// lowerExprAs lowers e for use where want's type is already known (an
// assignment target or a declaration's initializer), inserting the sitofp
// or fptosi conversion the IR contract requires at the boundary.
func (b *builder) lowerExprAs(e *ast.Expression, want ast.Type) (ir.Value, error) {
	tv, err := b.lowerExpr(e)
	if err != nil {
		return nil, err
	}
	if want.IsFloat() && !tv.typ.IsFloat() {
		return b.block.NewSIToFP(tv.val), nil
	}
	if !want.IsFloat() && tv.typ.IsFloat() {
		return b.block.NewFPToSI(tv.val), nil
	}
	return tv.val, nil
}
