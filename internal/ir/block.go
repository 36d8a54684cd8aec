package ir

// BasicBlock is an ordered run of instructions ending in exactly one
// terminator (Br, CondBr, or Ret), held in Term rather than in Insts. All
// phi instructions in Insts precede all non-phi instructions. Preds and
// Succs are derived from terminator operands and kept consistent with them
// by every method that mutates a terminator.
type BasicBlock struct {
	valueBase

	Name   string
	Parent *Function
	Insts  []*Instruction
	Term   *Instruction

	Preds []*BasicBlock
	Succs []*BasicBlock
}

func (b *BasicBlock) Type() *Type { return Void }

func (b *BasicBlock) numPhis() int {
	n := 0
	for _, in := range b.Insts {
		if in.Op != OpPhi {
			break
		}
		n++
	}
	return n
}

// insertPhiAtHead inserts t after any existing phis (per invariant: all phis
// precede all non-phis) and returns the new instruction.
func (b *BasicBlock) insertPhiAtHead(t *Type) *Instruction {
	phi := &Instruction{Op: OpPhi, ResType: t, Parent: b}
	n := b.numPhis()
	b.Insts = append(b.Insts, nil)
	copy(b.Insts[n+1:], b.Insts[n:])
	b.Insts[n] = phi
	return phi
}

// InsertPhiAtHead is the exported form used by the Mem2Reg pass.
func (b *BasicBlock) InsertPhiAtHead(t *Type) *Instruction { return b.insertPhiAtHead(t) }

// append adds a fully-built non-terminator instruction to the end of the
// block's instruction list (after any phis, since callers never append a
// phi through this path).
func (b *BasicBlock) append(in *Instruction) *Instruction {
	in.Parent = b
	b.Insts = append(b.Insts, in)
	return in
}

// setTerm installs in as the block's sole terminator and recomputes Succs,
// threading this block onto each successor's Preds. Replacing an existing
// terminator first detaches the old one so no predecessor edges are
// duplicated.
func (b *BasicBlock) setTerm(in *Instruction, succs ...*BasicBlock) {
	if b.Term != nil {
		b.detachTerm()
	}
	in.Parent = b
	b.Term = in
	b.Succs = succs
	for _, s := range succs {
		s.Preds = append(s.Preds, b)
	}
}

// detachTerm removes this block from each current successor's Preds list,
// used when rewriting or erasing a terminator (e.g. CFG simplification
// collapsing a block into its sole successor).
func (b *BasicBlock) detachTerm() {
	for _, s := range b.Succs {
		for i, p := range s.Preds {
			if p == b {
				s.Preds = append(s.Preds[:i], s.Preds[i+1:]...)
				break
			}
		}
	}
	b.Succs = nil
}

// DropTerm detaches the block's terminator from its successors' Preds
// lists and clears it, without erasing the terminator instruction itself —
// used by CFG simplification when splicing two blocks together.
func (b *BasicBlock) DropTerm() {
	b.detachTerm()
	b.Term = nil
}

// EraseInst removes in from the block (Insts or Term) after detaching its
// operand uses. It must have no remaining uses itself.
func (b *BasicBlock) EraseInst(in *Instruction) {
	if HasUses(in) {
		panic("ir: erase of instruction with remaining uses")
	}
	in.detachOperandUses()
	if in == b.Term {
		b.detachTerm()
		b.Term = nil
		return
	}
	for i, c := range b.Insts {
		if c == in {
			b.Insts = append(b.Insts[:i], b.Insts[i+1:]...)
			return
		}
	}
}
