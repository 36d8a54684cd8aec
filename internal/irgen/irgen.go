// Package irgen lowers a validated internal/ast.Module into internal/ir,
// the form the dominator, Mem2Reg, and code generation passes consume.
// Callers are expected to have already run internal/validator on the
// module; irgen performs no semantic checking of its own.
package irgen

import (
	"fmt"

	"github.com/cminusfc/cminusfc/internal/ast"
	"github.com/cminusfc/cminusfc/internal/ir"
)

// negIdxExceptName is the runtime helper called whenever a generated array
// access cannot rule out a negative index at compile time.
const negIdxExceptName = "neg_idx_except"

// variable is one name's binding in the current scope: an address (always
// a pointer value) plus enough of the source type to know how to address
// through it. decayed marks an array-typed function parameter, whose slot
// holds a pointer value rather than directly addressing array storage.
type variable struct {
	addr    ir.Value
	srcType ast.Type
	decayed bool
}

// typedValue threads a value's source-level type alongside its IR value,
// since int/float promotion and comparison-to-i32 widening both need it at
// expression boundaries.
type typedValue struct {
	val ir.Value
	typ ast.Type
}

// builder holds the mutable state threaded through one function's lowering:
// current block, scope stack, and the module-wide symbol tables. Unlike the
// upstream AST→IR builder this is modeled on, this state is an explicit
// value passed as a receiver rather than a global.
type builder struct {
	mod          *ir.Module
	fn           *ir.Function
	retType      ast.Type
	block        *ir.BasicBlock
	scopes       []map[string]*variable
	globals      map[string]*variable
	funcs        map[string]*ir.Function
	negIdxExcept *ir.Function
}

// Build lowers m into a new ir.Module. m must have already passed
// internal/validator.ValidateModule.
func Build(m *ast.Module) (*ir.Module, error) {
	b := &builder{
		mod:     ir.NewModule(m.Name),
		globals: make(map[string]*variable),
		funcs:   make(map[string]*ir.Function),
	}

	for _, g := range m.Globals {
		irType := lowerType(g.Type)
		gv := b.mod.NewGlobal(g.Name, irType)
		b.globals[g.Name] = &variable{addr: gv, srcType: g.Type}
	}

	b.negIdxExcept = b.mod.NewFunc(negIdxExceptName, ir.Void, nil, nil)
	b.negIdxExcept.Extern = true
	b.funcs[negIdxExceptName] = b.negIdxExcept

	for _, fn := range m.Functions {
		if fn.Name == negIdxExceptName {
			continue
		}
		b.declareFunc(&fn)
	}

	for _, fn := range m.Functions {
		if fn.Name == negIdxExceptName || fn.Extern {
			continue
		}
		if err := b.buildFunc(&fn); err != nil {
			return nil, fmt.Errorf("irgen: function %s: %w", fn.Name, err)
		}
	}

	return b.mod, nil
}

func (b *builder) declareFunc(fn *ast.Function) {
	paramNames := make([]string, len(fn.Params))
	paramTypes := make([]*ir.Type, len(fn.Params))
	for i, p := range fn.Params {
		paramNames[i] = p.Name
		paramTypes[i] = lowerParamType(p.Type)
	}
	irFn := b.mod.NewFunc(fn.Name, lowerType(fn.Returns), paramNames, paramTypes)
	irFn.Extern = fn.Extern
	b.funcs[fn.Name] = irFn
}

// lowerType maps a source type onto its IR counterpart directly (no decay).
func lowerType(t ast.Type) *ir.Type {
	switch t.Kind {
	case ast.TypeInt:
		return ir.I32
	case ast.TypeFloat:
		return ir.F32
	case ast.TypeArray:
		return ir.NewArray(lowerType(*t.Elem), t.Len)
	default:
		return ir.Void
	}
}

// lowerParamType applies the array-parameter-decays-to-pointer rule: a
// parameter typed array<T,n> (irgen never sees n > 0 here — internal/ast's
// lowering always marks a decayed array parameter with length 0) is a
// pointer to its element type, not a pointer to an array.
func lowerParamType(t ast.Type) *ir.Type {
	if t.IsArray() {
		return ir.NewPtr(lowerType(*t.Elem))
	}
	return lowerType(t)
}

func (b *builder) buildFunc(fn *ast.Function) error {
	irFn := b.funcs[fn.Name]
	b.fn = irFn
	b.retType = fn.Returns
	entry := irFn.NewBlock("entry")
	b.block = entry
	b.scopes = []map[string]*variable{{}}

	for i, p := range fn.Params {
		arg := irFn.Params[i]
		if p.Type.IsArray() {
			elemType := lowerType(*p.Type.Elem)
			slot := b.block.NewAlloca(ir.NewPtr(elemType))
			b.block.NewStore(arg, slot)
			b.bind(p.Name, &variable{addr: slot, srcType: p.Type, decayed: true})
			continue
		}
		slot := b.block.NewAlloca(lowerType(p.Type))
		b.block.NewStore(arg, slot)
		b.bind(p.Name, &variable{addr: slot, srcType: p.Type})
	}

	if err := b.buildStmts(fn.Body); err != nil {
		return err
	}

	// A fallen-through block at the end of a function body (the validator
	// does not check that every path ends in a return) still needs a
	// terminator to satisfy the IR invariant.
	if b.block.Term == nil {
		if fn.Returns.IsVoid() {
			b.block.NewRet(nil)
		} else {
			b.block.NewRet(zeroOf(lowerType(fn.Returns)))
		}
	}
	return nil
}

func zeroOf(t *ir.Type) ir.Value {
	if t.IsFloat() {
		return ir.NewConstFloat(0)
	}
	return ir.NewConstInt(t, 0)
}

func (b *builder) pushScope()    { b.scopes = append(b.scopes, map[string]*variable{}) }
func (b *builder) popScope()     { b.scopes = b.scopes[:len(b.scopes)-1] }
func (b *builder) bind(name string, v *variable) {
	b.scopes[len(b.scopes)-1][name] = v
}

func (b *builder) lookup(name string) *variable {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if v, ok := b.scopes[i][name]; ok {
			return v
		}
	}
	return b.globals[name]
}

func (b *builder) buildStmts(stmts []ast.Statement) error {
	for _, s := range stmts {
		if err := b.buildStmt(&s); err != nil {
			return err
		}
		// A terminated block can't accept more instructions; any statements
		// textually following a return are unreachable and dropped, matching
		// how the reference front end handles dead code after a return.
		if b.block.Term != nil {
			return nil
		}
	}
	return nil
}

func (b *builder) buildStmt(s *ast.Statement) error {
	switch s.Kind {
	case ast.StmtDecl:
		return b.buildDecl(s)
	case ast.StmtAssign:
		return b.buildAssign(s)
	case ast.StmtIf:
		return b.buildIf(s)
	case ast.StmtWhile:
		return b.buildWhile(s)
	case ast.StmtReturn:
		return b.buildReturn(s)
	case ast.StmtExpr:
		if s.Expr != nil {
			_, err := b.lowerExpr(s.Expr)
			return err
		}
		return nil
	default:
		return fmt.Errorf("unhandled statement kind %q", s.Kind)
	}
}

func (b *builder) buildDecl(s *ast.Statement) error {
	slot := b.block.NewAlloca(lowerType(s.DeclType))
	b.bind(s.DeclName, &variable{addr: slot, srcType: s.DeclType})
	if s.DeclInit != nil {
		v, err := b.lowerExprAs(s.DeclInit, s.DeclType)
		if err != nil {
			return err
		}
		b.block.NewStore(v, slot)
	}
	return nil
}

func (b *builder) buildAssign(s *ast.Statement) error {
	addr, elemType, err := b.lvalueAddr(&s.Target)
	if err != nil {
		return err
	}
	v, err := b.lowerExprAs(s.Value, elemType)
	if err != nil {
		return err
	}
	b.block.NewStore(v, addr)
	return nil
}

func (b *builder) buildIf(s *ast.Statement) error {
	cond, err := b.lowerCond(s.Cond)
	if err != nil {
		return err
	}
	thenBB := b.fn.NewBlock("")
	joinBB := b.fn.NewBlock("")
	elseBB := joinBB
	if len(s.Else) > 0 {
		elseBB = b.fn.NewBlock("")
	}
	b.block.NewCondBr(cond, thenBB, elseBB)

	b.block = thenBB
	b.pushScope()
	err = b.buildStmts(s.Then)
	b.popScope()
	if err != nil {
		return err
	}
	if b.block.Term == nil {
		b.block.NewBr(joinBB)
	}

	if len(s.Else) > 0 {
		b.block = elseBB
		b.pushScope()
		err = b.buildStmts(s.Else)
		b.popScope()
		if err != nil {
			return err
		}
		if b.block.Term == nil {
			b.block.NewBr(joinBB)
		}
	}

	b.block = joinBB
	return nil
}

func (b *builder) buildWhile(s *ast.Statement) error {
	headBB := b.fn.NewBlock("")
	bodyBB := b.fn.NewBlock("")
	exitBB := b.fn.NewBlock("")

	if b.block.Term == nil {
		b.block.NewBr(headBB)
	}

	b.block = headBB
	cond, err := b.lowerCond(s.Cond)
	if err != nil {
		return err
	}
	b.block.NewCondBr(cond, bodyBB, exitBB)

	b.block = bodyBB
	b.pushScope()
	err = b.buildStmts(s.Body)
	b.popScope()
	if err != nil {
		return err
	}
	if b.block.Term == nil {
		b.block.NewBr(headBB)
	}

	b.block = exitBB
	return nil
}

func (b *builder) buildReturn(s *ast.Statement) error {
	if s.Value == nil {
		b.block.NewRet(nil)
		return nil
	}
	v, err := b.lowerExprAs(s.Value, b.retType)
	if err != nil {
		return err
	}
	b.block.NewRet(v)
	return nil
}
