package ir

// ConstInt is an i1 or i32 constant.
type ConstInt struct {
	valueBase
	Typ *Type
	Val int64
}

func NewConstInt(t *Type, v int64) *ConstInt { return &ConstInt{Typ: t, Val: v} }

func (c *ConstInt) Type() *Type { return c.Typ }

// ZeroInt is the canonical zero constant of an integer/pointer-ish type,
// used by Mem2Reg to poison reads of a variable that is undefined along an
// incoming edge.
func ZeroInt(t *Type) *ConstInt { return NewConstInt(t, 0) }

// ConstFloat is an f32 constant.
type ConstFloat struct {
	valueBase
	Val float32
}

func NewConstFloat(v float32) *ConstFloat { return &ConstFloat{Val: v} }

func (c *ConstFloat) Type() *Type { return F32 }

// GlobalVariable is a module-level storage location, always addressed
// through a pointer to its element type.
type GlobalVariable struct {
	valueBase
	Name      string
	ElemType  *Type
}

func (g *GlobalVariable) Type() *Type { return NewPtr(g.ElemType) }

// Argument is a function parameter.
type Argument struct {
	valueBase
	Name  string
	Typ   *Type
	Index int
}

func (a *Argument) Type() *Type { return a.Typ }
