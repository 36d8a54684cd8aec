// Package ir defines the intermediate representation consumed by the
// dominator, Mem2Reg, and code generation passes. It mirrors the shape of a
// conventional SSA-capable IR (values, uses, basic blocks, functions,
// modules) without carrying any of LLVM's metadata or type-system baggage —
// only what the cminus-f target needs.
package ir

import "fmt"

// Kind discriminates the sum of Type variants described in the data model.
type Kind int

const (
	KindVoid Kind = iota
	KindI1
	KindI32
	KindF32
	KindPtr
	KindArray
	KindFunc
)

// Type is a value in the small, closed type algebra: void, i1, i32, f32,
// pointers, fixed-size arrays, and function signatures.
type Type struct {
	Kind     Kind
	Elem     *Type   // Ptr, Array
	Len      uint64  // Array
	Params   []*Type // Func
	Ret      *Type   // Func
}

// Common scalar types. These are safe to share because Type carries no
// mutable state.
var (
	Void = &Type{Kind: KindVoid}
	I1   = &Type{Kind: KindI1}
	I32  = &Type{Kind: KindI32}
	F32  = &Type{Kind: KindF32}
)

// NewPtr returns a pointer-to-elem type.
func NewPtr(elem *Type) *Type { return &Type{Kind: KindPtr, Elem: elem} }

// NewArray returns a fixed-size array-of-elem type.
func NewArray(elem *Type, length uint64) *Type {
	return &Type{Kind: KindArray, Elem: elem, Len: length}
}

// NewFunc returns a function signature type.
func NewFunc(ret *Type, params ...*Type) *Type {
	return &Type{Kind: KindFunc, Ret: ret, Params: params}
}

// Size returns the byte size of the type per the data model's rules:
// array<T,n>.size = n*T.size, ptr.size = 8, i1.size = 1, i32/f32.size = 4,
// void.size = 0.
func (t *Type) Size() int {
	switch t.Kind {
	case KindVoid:
		return 0
	case KindI1:
		return 1
	case KindI32, KindF32:
		return 4
	case KindPtr:
		return 8
	case KindArray:
		return int(t.Len) * t.Elem.Size()
	case KindFunc:
		return 0
	default:
		panic(fmt.Sprintf("ir: unhandled type kind %d", t.Kind))
	}
}

// IsFloat reports whether the type is f32.
func (t *Type) IsFloat() bool { return t.Kind == KindF32 }

// IsScalar reports whether the type is a non-aggregate value type (i1, i32,
// f32, or ptr) — the set of types a Mem2Reg-promotable alloca may hold.
func (t *Type) IsScalar() bool {
	switch t.Kind {
	case KindI1, KindI32, KindF32, KindPtr:
		return true
	default:
		return false
	}
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindPtr:
		return t.Elem.Equal(o.Elem)
	case KindArray:
		return t.Len == o.Len && t.Elem.Equal(o.Elem)
	case KindFunc:
		if !t.Ret.Equal(o.Ret) || len(t.Params) != len(o.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(o.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (t *Type) String() string {
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindI1:
		return "i1"
	case KindI32:
		return "i32"
	case KindF32:
		return "f32"
	case KindPtr:
		return fmt.Sprintf("ptr<%s>", t.Elem)
	case KindArray:
		return fmt.Sprintf("array<%s,%d>", t.Elem, t.Len)
	case KindFunc:
		return fmt.Sprintf("fn(...)->%s", t.Ret)
	default:
		return "?"
	}
}
