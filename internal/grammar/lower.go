package grammar

import "github.com/cminusfc/cminusfc/internal/ast"

// Lower converts a parsed Program into the semantic tree the validator and
// internal/irgen consume. It performs no semantic checking of its own —
// undefined variables, arity mismatches, and the like are the validator's
// job — it only reshapes syntax into ast's flatter, kind-tagged structs.
func Lower(p *Program) *ast.Module {
	m := &ast.Module{Type: "module", Name: "cminus"}
	for _, d := range p.Declarations {
		switch {
		case d.Fun != nil:
			m.Functions = append(m.Functions, lowerFun(d.Fun))
		case d.Var != nil:
			m.Globals = append(m.Globals, lowerGlobal(d.Var))
		}
	}
	return m
}

func lowerType(spec *TypeSpecifier, arrayLen *int) ast.Type {
	var base ast.Type
	switch spec.Name {
	case "int":
		base = ast.Int()
	case "float":
		base = ast.Float()
	default:
		base = ast.Void()
	}
	if arrayLen != nil {
		return ast.Array(base, uint64(*arrayLen))
	}
	return base
}

func lowerGlobal(v *VarDecl) ast.Global {
	return ast.Global{Name: v.Name, Type: lowerType(v.Type, v.Len)}
}

func lowerFun(f *FunDecl) ast.Function {
	fn := ast.Function{Name: f.Name, Returns: lowerType(f.Type, nil)}
	for _, p := range f.Params {
		t := lowerType(p.Type, nil)
		if p.Array {
			t = ast.Array(t, 0) // decays to a pointer at the IR boundary
		}
		fn.Params = append(fn.Params, ast.Parameter{Name: p.Name, Type: t})
	}
	if f.Body == nil {
		fn.Extern = true
		return fn
	}
	fn.Body = lowerStmts(f.Body.Stmts)
	return fn
}

func lowerStmts(stmts []*Statement) []ast.Statement {
	out := make([]ast.Statement, 0, len(stmts))
	for _, s := range stmts {
		if s.Compound != nil {
			out = append(out, lowerStmts(s.Compound.Stmts)...)
			continue
		}
		out = append(out, lowerStmt(s))
	}
	return out
}

// lowerBlock lowers a statement used where the grammar allows either a
// single statement or a brace-delimited block (an if/while body) into the
// list ast.Statement expects there.
func lowerBlock(s *Statement) []ast.Statement {
	if s.Compound != nil {
		return lowerStmts(s.Compound.Stmts)
	}
	return []ast.Statement{lowerStmt(s)}
}

func lowerStmt(s *Statement) ast.Statement {
	switch {
	case s.Decl != nil:
		d := s.Decl
		st := ast.Statement{Kind: ast.StmtDecl, DeclName: d.Name, DeclType: lowerType(d.Type, d.Len)}
		if d.Init != nil {
			e := lowerExpr(d.Init)
			st.DeclInit = &e
		}
		return st
	case s.Selection != nil:
		sel := s.Selection
		st := ast.Statement{Kind: ast.StmtIf}
		cond := lowerExpr(sel.Cond)
		st.Cond = &cond
		st.Then = lowerBlock(sel.Then)
		if sel.Else != nil {
			st.Else = lowerBlock(sel.Else)
		}
		return st
	case s.Iteration != nil:
		it := s.Iteration
		st := ast.Statement{Kind: ast.StmtWhile}
		cond := lowerExpr(it.Cond)
		st.Cond = &cond
		st.Body = lowerBlock(it.Body)
		return st
	case s.Return != nil:
		st := ast.Statement{Kind: ast.StmtReturn}
		if s.Return.Value != nil {
			e := lowerExpr(s.Return.Value)
			st.Value = &e
		}
		return st
	case s.ExprStmt != nil && s.ExprStmt.Expr != nil:
		e := s.ExprStmt.Expr
		if e.Assign != nil {
			target := lowerLValue(e.Assign.Target)
			value := lowerExpr(e.Assign.Value)
			return ast.Statement{Kind: ast.StmtAssign, Target: target, Value: &value}
		}
		expr := lowerExpr(e)
		return ast.Statement{Kind: ast.StmtExpr, Expr: &expr}
	default:
		return ast.Statement{Kind: ast.StmtExpr}
	}
}

// lowerExpr lowers e for its value. An assignment used as a sub-expression
// (rather than a whole statement, the only place lowerStmt represents it
// structurally) lowers to the value it assigns — cminus-f programs only
// ever write assignment as a statement, so this only matters for the
// grammar's more permissive expression production.
func lowerExpr(e *Expression) ast.Expression {
	if e.Assign != nil {
		return lowerExpr(e.Assign.Value)
	}
	return lowerSimple(e.Simple)
}

func lowerLValue(l *LValue) ast.Lvalue {
	lv := ast.Lvalue{Name: l.Name}
	if l.Index != nil {
		idx := lowerExpr(l.Index)
		lv.Index = &idx
	}
	return lv
}

func lowerSimple(s *SimpleExpr) ast.Expression {
	left := lowerAdditive(s.Left)
	if s.Op == "" {
		return left
	}
	right := lowerAdditive(s.Right)
	return ast.Expression{Kind: ast.ExprBinary, Op: s.Op, Left: &left, Right: &right}
}

func lowerAdditive(a *AdditiveExpr) ast.Expression {
	result := lowerTerm(a.Left)
	for _, rest := range a.Rest {
		right := lowerTerm(rest.Term)
		result = ast.Expression{Kind: ast.ExprBinary, Op: rest.Op, Left: &result, Right: &right}
	}
	return result
}

func lowerTerm(t *Term) ast.Expression {
	result := lowerFactor(t.Left)
	for _, rest := range t.Rest {
		right := lowerFactor(rest.Factor)
		result = ast.Expression{Kind: ast.ExprBinary, Op: rest.Op, Left: &result, Right: &right}
	}
	return result
}

func lowerFactor(f *Factor) ast.Expression {
	switch {
	case f.Paren != nil:
		return lowerExpr(f.Paren)
	case f.Call != nil:
		args := make([]ast.Expression, 0, len(f.Call.Args))
		for _, a := range f.Call.Args {
			args = append(args, lowerExpr(a))
		}
		return ast.Expression{Kind: ast.ExprCall, Name: f.Call.Name, Args: args}
	case f.Var != nil:
		if f.Var.Index != nil {
			idx := lowerExpr(f.Var.Index)
			arr := ast.Expression{Kind: ast.ExprVariable, Name: f.Var.Name}
			return ast.Expression{Kind: ast.ExprIndex, Name: f.Var.Name, Array: &arr, Index: &idx}
		}
		return ast.Expression{Kind: ast.ExprVariable, Name: f.Var.Name}
	case f.Neg != nil:
		operand := lowerFactor(f.Neg)
		return ast.Expression{Kind: ast.ExprUnary, Op: ast.OpNeg, Operand: &operand}
	case f.Int != nil:
		return ast.Expression{Kind: ast.ExprIntLit, IntValue: *f.Int}
	default:
		return ast.Expression{Kind: ast.ExprFloatLit, FloatValue: float32(*f.Float)}
	}
}
