package ir

// This file holds the per-opcode constructors used to build a function body.
// Each returns the freshly appended *Instruction so callers can chain it as
// an operand of the next one, the same convention the IR's own front end
// (internal/irgen) relies on throughout.

func (b *BasicBlock) NewAlloca(elemType *Type) *Instruction {
	in := &Instruction{Op: OpAlloca, ResType: NewPtr(elemType), AllocType: elemType}
	return b.append(in)
}

func (b *BasicBlock) NewLoad(resType *Type, ptr Value) *Instruction {
	in := &Instruction{Op: OpLoad, ResType: resType}
	in.setOperandInit(ptr)
	return b.append(in)
}

// NewStore mirrors the operand order "store v, a": operand 0 is the value
// being written, operand 1 is the destination pointer.
func (b *BasicBlock) NewStore(val, ptr Value) *Instruction {
	in := &Instruction{Op: OpStore}
	in.setOperandInit(val)
	in.setOperandInit(ptr)
	return b.append(in)
}

func (b *BasicBlock) newBinary(op Opcode, resType *Type, x, y Value) *Instruction {
	in := &Instruction{Op: op, ResType: resType}
	in.setOperandInit(x)
	in.setOperandInit(y)
	return b.append(in)
}

func (b *BasicBlock) NewAdd(x, y Value) *Instruction  { return b.newBinary(OpAdd, I32, x, y) }
func (b *BasicBlock) NewSub(x, y Value) *Instruction  { return b.newBinary(OpSub, I32, x, y) }
func (b *BasicBlock) NewMul(x, y Value) *Instruction  { return b.newBinary(OpMul, I32, x, y) }
func (b *BasicBlock) NewSDiv(x, y Value) *Instruction { return b.newBinary(OpSDiv, I32, x, y) }

func (b *BasicBlock) NewFAdd(x, y Value) *Instruction { return b.newBinary(OpFAdd, F32, x, y) }
func (b *BasicBlock) NewFSub(x, y Value) *Instruction { return b.newBinary(OpFSub, F32, x, y) }
func (b *BasicBlock) NewFMul(x, y Value) *Instruction { return b.newBinary(OpFMul, F32, x, y) }
func (b *BasicBlock) NewFDiv(x, y Value) *Instruction { return b.newBinary(OpFDiv, F32, x, y) }

func (b *BasicBlock) NewICmp(pred Pred, x, y Value) *Instruction {
	in := &Instruction{Op: OpICmp, Pred: pred, ResType: I1}
	in.setOperandInit(x)
	in.setOperandInit(y)
	return b.append(in)
}

func (b *BasicBlock) NewFCmp(pred Pred, x, y Value) *Instruction {
	in := &Instruction{Op: OpFCmp, Pred: pred, ResType: I1}
	in.setOperandInit(x)
	in.setOperandInit(y)
	return b.append(in)
}

func (b *BasicBlock) NewSIToFP(x Value) *Instruction {
	in := &Instruction{Op: OpSIToFP, ResType: F32}
	in.setOperandInit(x)
	return b.append(in)
}

func (b *BasicBlock) NewFPToSI(x Value) *Instruction {
	in := &Instruction{Op: OpFPToSI, ResType: I32}
	in.setOperandInit(x)
	return b.append(in)
}

func (b *BasicBlock) NewZExt(x Value) *Instruction {
	in := &Instruction{Op: OpZExt, ResType: I32}
	in.setOperandInit(x)
	return b.append(in)
}

// NewGEP computes an address from base plus one or two indices. arrayForm
// selects the array-decay addressing rule (base: ptr<array<T,n>>, indices:
// outer, inner) versus the scalar rule (base: ptr<T>, one index).
func (b *BasicBlock) NewGEP(resElemType *Type, base Value, arrayForm bool, indices ...Value) *Instruction {
	in := &Instruction{Op: OpGEP, ResType: NewPtr(resElemType), ArrayForm: arrayForm}
	in.setOperandInit(base)
	for _, idx := range indices {
		in.setOperandInit(idx)
	}
	return b.append(in)
}

func (b *BasicBlock) NewCall(fn *Function, args ...Value) *Instruction {
	in := &Instruction{Op: OpCall, ResType: fn.RetType, Callee: fn}
	for _, a := range args {
		in.setOperandInit(a)
	}
	return b.append(in)
}

// NewBr installs an unconditional branch as this block's terminator.
func (b *BasicBlock) NewBr(target *BasicBlock) *Instruction {
	in := &Instruction{Op: OpBr, Then: target}
	b.setTerm(in, target)
	return in
}

// NewCondBr installs a conditional branch as this block's terminator.
func (b *BasicBlock) NewCondBr(cond Value, then, els *BasicBlock) *Instruction {
	in := &Instruction{Op: OpCondBr, Then: then, Else: els}
	in.setOperandInit(cond)
	b.setTerm(in, then, els)
	return in
}

// NewRet installs a return as this block's terminator. v is nil for a
// void-returning function.
func (b *BasicBlock) NewRet(v Value) *Instruction {
	in := &Instruction{Op: OpRet}
	if v != nil {
		in.setOperandInit(v)
	}
	b.setTerm(in)
	return in
}
