package ir

// Opcode discriminates the fixed set of instructions the pipeline
// understands. There is no extensibility story: an unrecognized opcode
// reaching code generation is a fatal compiler error, not a dynamic dispatch.
type Opcode int

const (
	OpAlloca Opcode = iota
	OpLoad
	OpStore
	OpGEP
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpICmp
	OpFCmp
	OpSIToFP
	OpFPToSI
	OpZExt
	OpCall
	OpBr
	OpCondBr
	OpRet
	OpPhi
)

func (op Opcode) String() string {
	switch op {
	case OpAlloca:
		return "alloca"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpGEP:
		return "gep"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpSDiv:
		return "sdiv"
	case OpFAdd:
		return "fadd"
	case OpFSub:
		return "fsub"
	case OpFMul:
		return "fmul"
	case OpFDiv:
		return "fdiv"
	case OpICmp:
		return "icmp"
	case OpFCmp:
		return "fcmp"
	case OpSIToFP:
		return "sitofp"
	case OpFPToSI:
		return "fptosi"
	case OpZExt:
		return "zext"
	case OpCall:
		return "call"
	case OpBr:
		return "br"
	case OpCondBr:
		return "br.cond"
	case OpRet:
		return "ret"
	case OpPhi:
		return "phi"
	default:
		return "?"
	}
}

// Pred is a comparison predicate shared by icmp and fcmp.
type Pred int

const (
	PredEQ Pred = iota
	PredNE
	PredLT
	PredLE
	PredGT
	PredGE
)

func (p Pred) String() string {
	switch p {
	case PredEQ:
		return "eq"
	case PredNE:
		return "ne"
	case PredLT:
		return "lt"
	case PredLE:
		return "le"
	case PredGT:
		return "gt"
	case PredGE:
		return "ge"
	default:
		return "?"
	}
}

// Incoming is one (value, predecessor) pair of a phi instruction. The
// predecessor is stored as a plain back-reference rather than through the
// use/value machinery: blocks are never read or stored by a load/store, only
// consulted for branch-edge identity, so CFG edits (block merges, dominator
// tree rebuilds) just reassign the field directly.
type Incoming struct {
	Value Value
	Block *BasicBlock
}

// Instruction is every non-terminator and terminator opcode in one struct,
// tagged by Op. Fields not meaningful for a given Op are left zero.
type Instruction struct {
	valueBase

	Op      Opcode
	Pred    Pred
	ResType *Type
	Name    string
	Parent  *BasicBlock

	operands []Value
	useSlots []*Use

	AllocType *Type // alloca: pointee type
	Callee    *Function
	Incs      []*Incoming // phi

	// gep
	ArrayForm bool // true: base is ptr<array<T,n>>, indices are (outer, inner)

	// branch targets (terminators only)
	Then *BasicBlock
	Else *BasicBlock
}

func (i *Instruction) Type() *Type {
	if i.ResType == nil {
		return Void
	}
	return i.ResType
}

// Operand returns the value at slot for non-phi instructions.
func (i *Instruction) Operand(slot int) Value { return i.operands[slot] }

// NumOperands returns the non-phi operand count.
func (i *Instruction) NumOperands() int { return len(i.operands) }

// SetOperand implements Operandable. For phi instructions slot indexes Incs;
// otherwise it indexes the positional operand list.
func (i *Instruction) SetOperand(slot int, v Value) {
	if i.Op == OpPhi {
		i.Incs[slot].Value = v
		return
	}
	i.operands[slot] = v
}

// setOperandInit appends a new tracked operand at construction time, wiring
// up its Use bookkeeping.
func (i *Instruction) setOperandInit(v Value) {
	slot := len(i.operands)
	i.operands = append(i.operands, v)
	i.useSlots = append(i.useSlots, addUse(v, i, slot))
}

// AddIncoming appends an (value, pred) pair to a phi, tracking the value
// operand's use so later replacement (e.g. dead-phi cleanup) stays correct.
func (phi *Instruction) AddIncoming(v Value, pred *BasicBlock) {
	slot := len(phi.Incs)
	phi.Incs = append(phi.Incs, &Incoming{Value: v, Block: pred})
	phi.useSlots = append(phi.useSlots, addUse(v, phi, slot))
}

// IncomingFor returns the incoming value for pred, and whether one was
// found — every phi must have exactly one pair per predecessor once Mem2Reg
// renaming has completed.
func (phi *Instruction) IncomingFor(pred *BasicBlock) (Value, bool) {
	for _, inc := range phi.Incs {
		if inc.Block == pred {
			return inc.Value, true
		}
	}
	return nil, false
}

// detachOperandUses removes every Use this instruction holds on its
// operands, leaving no dangling Use behind — required before the
// instruction itself is erased.
func (i *Instruction) detachOperandUses() {
	if i.Op == OpPhi {
		for idx, inc := range i.Incs {
			removeUse(inc.Value, i.useSlots[idx])
		}
		return
	}
	for idx, v := range i.operands {
		removeUse(v, i.useSlots[idx])
	}
}
