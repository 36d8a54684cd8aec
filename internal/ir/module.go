package ir

// Module owns every global and function in one translation unit. Ownership
// is hierarchical (Module -> Function -> BasicBlock -> Instruction);
// cross-references between them (call targets, branch targets, operands)
// are non-owning back-references.
type Module struct {
	Name    string
	Globals []*GlobalVariable
	Funcs   []*Function
}

func NewModule(name string) *Module { return &Module{Name: name} }

// NewGlobal declares a module-level variable of elemType and returns it.
func (m *Module) NewGlobal(name string, elemType *Type) *GlobalVariable {
	g := &GlobalVariable{Name: name, ElemType: elemType}
	m.Globals = append(m.Globals, g)
	return g
}

// NewFunc declares a function with the given signature and appends it to
// the module. Callers populate Blocks/Params for a definition, or leave them
// empty and set Extern for a declaration (e.g. the neg_idx_except runtime
// helper).
func (m *Module) NewFunc(name string, ret *Type, paramNames []string, paramTypes []*Type) *Function {
	f := &Function{Name: name, RetType: ret, Parent: m}
	for i, t := range paramTypes {
		n := ""
		if i < len(paramNames) {
			n = paramNames[i]
		}
		f.Params = append(f.Params, &Argument{Name: n, Typ: t, Index: i})
	}
	m.Funcs = append(m.Funcs, f)
	return f
}

// FindFunc looks up a declared or defined function by name.
func (m *Module) FindFunc(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
