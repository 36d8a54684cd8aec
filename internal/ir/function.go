package ir

import "fmt"

func labelFromIndex(n int) string { return fmt.Sprintf("bb%d", n) }

// Function is an ordered list of basic blocks (Blocks[0] is the entry) plus
// an ordered parameter list. Extern functions (declared but not defined,
// e.g. the runtime's neg_idx_except) have no blocks.
type Function struct {
	Name    string
	RetType *Type
	Params  []*Argument
	Blocks  []*BasicBlock
	Extern  bool
	Parent  *Module

	labelCounter int
}

// Sig returns the function's type, used wherever a call site needs to check
// arity/types against the declaration.
func (f *Function) Sig() *Type {
	params := make([]*Type, len(f.Params))
	for i, a := range f.Params {
		params[i] = a.Typ
	}
	return NewFunc(f.RetType, params...)
}

// Entry returns the function's entry block.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// NewBlock appends a new, empty basic block to the function.
func (f *Function) NewBlock(name string) *BasicBlock {
	if name == "" {
		name = f.nextLabel()
	}
	b := &BasicBlock{Name: name, Parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) nextLabel() string {
	n := f.labelCounter
	f.labelCounter++
	return labelFromIndex(n)
}

// RecomputePredsSuccs rebuilds every block's Preds/Succs from scratch by
// reading terminator operands. Used after structural CFG edits (e.g. block
// merging) that didn't go through setTerm/detachTerm incrementally.
func (f *Function) RecomputePredsSuccs() {
	for _, b := range f.Blocks {
		b.Preds = nil
	}
	for _, b := range f.Blocks {
		b.Succs = nil
		if b.Term == nil {
			continue
		}
		switch b.Term.Op {
		case OpBr:
			b.Succs = []*BasicBlock{b.Term.Then}
		case OpCondBr:
			b.Succs = []*BasicBlock{b.Term.Then, b.Term.Else}
		}
	}
	for _, b := range f.Blocks {
		for _, s := range b.Succs {
			s.Preds = append(s.Preds, b)
		}
	}
}

// RPO returns the function's basic blocks in reverse postorder from the
// entry block, the numbering the dominator pass is built on. Blocks
// unreachable from the entry are excluded.
func (f *Function) RPO() []*BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	visited := make(map[*BasicBlock]bool, len(f.Blocks))
	var post []*BasicBlock
	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, b)
	}
	visit(f.Entry())
	rpo := make([]*BasicBlock, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}
