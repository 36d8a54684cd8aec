// Package mem2reg promotes scalar, non-address-taken allocas to SSA values,
// inserting phi instructions at the iterated dominance frontier of each
// variable's definitions and rewriting loads/stores into a dominator-tree
// renaming pass. Array allocas, and allocas whose address escapes through a
// gep or call, are left untouched.
package mem2reg

import (
	"github.com/cminusfc/cminusfc/internal/dominator"
	"github.com/cminusfc/cminusfc/internal/ir"
)

// Run promotes every eligible alloca in fn. It is idempotent: running it
// again on an already-promoted function is a no-op, since there are no
// promotable allocas left to find.
func Run(fn *ir.Function) {
	if fn.Extern || len(fn.Blocks) == 0 {
		return
	}
	promotable, defBlocks := collectPromotable(fn)
	if len(promotable) == 0 {
		return
	}
	dom := dominator.Analyze(fn)
	phiOwner := insertPhis(dom, promotable, defBlocks)

	stacks := make(map[*ir.Instruction][]ir.Value)
	renameBlock(fn.Entry(), dom, stacks, phiOwner, promotable)

	removeDeadAllocas(promotable)
}

// isAddressTaken reports whether a's address escapes anywhere other than as
// the pointer operand of a load or the destination operand of a store — the
// only two operations that read/write through it without exposing it. This
// resolves a case the reference implementation leaves implicit by assuming
// the front end never generates such escapes except via arrays: here the
// escape set is computed explicitly so any gep/call/store-of-the-pointer
// use correctly disables promotion.
func isAddressTaken(a *ir.Instruction) bool {
	taken := false
	ir.ForEachUse(a, func(owner ir.Operandable, slot int) {
		in, ok := owner.(*ir.Instruction)
		if !ok {
			taken = true
			return
		}
		switch in.Op {
		case ir.OpLoad:
			if slot != 0 {
				taken = true
			}
		case ir.OpStore:
			if slot != 1 {
				taken = true
			}
		default:
			taken = true
		}
	})
	return taken
}

func collectPromotable(fn *ir.Function) (map[*ir.Instruction]bool, map[*ir.Instruction][]*ir.BasicBlock) {
	promotable := make(map[*ir.Instruction]bool)
	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if in.Op != ir.OpAlloca {
				continue
			}
			if !in.AllocType.IsScalar() {
				continue
			}
			if isAddressTaken(in) {
				continue
			}
			promotable[in] = true
		}
	}

	defBlocks := make(map[*ir.Instruction][]*ir.BasicBlock)
	seen := make(map[*ir.Instruction]map[*ir.BasicBlock]bool)
	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if in.Op != ir.OpStore {
				continue
			}
			ptr, ok := in.Operand(1).(*ir.Instruction)
			if !ok || !promotable[ptr] {
				continue
			}
			if seen[ptr] == nil {
				seen[ptr] = make(map[*ir.BasicBlock]bool)
			}
			if !seen[ptr][b] {
				seen[ptr][b] = true
				defBlocks[ptr] = append(defBlocks[ptr], b)
			}
		}
	}
	return promotable, defBlocks
}

// insertPhis places phi instructions at the iterated dominance frontier of
// each promotable alloca's definitions and returns the map from an inserted
// phi back to the alloca it replaces.
func insertPhis(dom *dominator.Result, promotable map[*ir.Instruction]bool, defBlocks map[*ir.Instruction][]*ir.BasicBlock) map[*ir.Instruction]*ir.Instruction {
	phiOwner := make(map[*ir.Instruction]*ir.Instruction)
	for a := range promotable {
		defs := defBlocks[a]
		defSet := make(map[*ir.BasicBlock]bool, len(defs))
		for _, b := range defs {
			defSet[b] = true
		}
		placed := make(map[*ir.BasicBlock]bool)
		worklist := append([]*ir.BasicBlock{}, defs...)
		for len(worklist) > 0 {
			x := worklist[0]
			worklist = worklist[1:]
			for _, y := range dom.DomFront(x) {
				if placed[y] {
					continue
				}
				phi := y.InsertPhiAtHead(a.AllocType)
				phiOwner[phi] = a
				placed[y] = true
				if !defSet[y] {
					worklist = append(worklist, y)
				}
			}
		}
	}
	return phiOwner
}

func zeroValue(t *ir.Type) ir.Value {
	if t.IsFloat() {
		return ir.NewConstFloat(0)
	}
	return ir.ZeroInt(t)
}

func topOrZero(stack []ir.Value, t *ir.Type) ir.Value {
	if len(stack) == 0 {
		return zeroValue(t)
	}
	return stack[len(stack)-1]
}

// renameBlock performs the dominator-tree-DFS renaming pass of Mem2Reg
// Phase 3: it seeds each promotable variable's stack from phis and stores
// seen in b, replaces loads with the current top-of-stack value, resolves
// every outgoing phi incoming pair (poisoning to a zero constant when the
// variable is undefined along that edge, per the promotion's SSA-legality
// requirement), recurses into b's dominator-tree children, then unwinds its
// own pushes before erasing the loads/stores it rewrote.
func renameBlock(b *ir.BasicBlock, dom *dominator.Result, stacks map[*ir.Instruction][]ir.Value, phiOwner map[*ir.Instruction]*ir.Instruction, promotable map[*ir.Instruction]bool) {
	var pushed []*ir.Instruction
	for _, in := range b.Insts {
		if in.Op != ir.OpPhi {
			break
		}
		if owner, ok := phiOwner[in]; ok {
			stacks[owner] = append(stacks[owner], ir.Value(in))
			pushed = append(pushed, owner)
		}
	}

	var toErase []*ir.Instruction
	for _, in := range b.Insts {
		if in.Op == ir.OpPhi {
			continue
		}
		switch in.Op {
		case ir.OpLoad:
			ptr, ok := in.Operand(0).(*ir.Instruction)
			if !ok || !promotable[ptr] {
				continue
			}
			val := topOrZero(stacks[ptr], ptr.AllocType)
			ir.ReplaceAllUsesWith(in, val)
			toErase = append(toErase, in)
		case ir.OpStore:
			ptr, ok := in.Operand(1).(*ir.Instruction)
			if !ok || !promotable[ptr] {
				continue
			}
			stacks[ptr] = append(stacks[ptr], in.Operand(0))
			pushed = append(pushed, ptr)
			toErase = append(toErase, in)
		}
	}

	for _, s := range b.Succs {
		for _, in := range s.Insts {
			if in.Op != ir.OpPhi {
				break
			}
			owner, ok := phiOwner[in]
			if !ok {
				continue
			}
			val := topOrZero(stacks[owner], owner.AllocType)
			in.AddIncoming(val, b)
		}
	}

	for _, child := range dom.DomSucc(b) {
		renameBlock(child, dom, stacks, phiOwner, promotable)
	}

	for i := len(pushed) - 1; i >= 0; i-- {
		a := pushed[i]
		stacks[a] = stacks[a][:len(stacks[a])-1]
	}
	for _, in := range toErase {
		b.EraseInst(in)
	}
}

func removeDeadAllocas(promotable map[*ir.Instruction]bool) {
	for a := range promotable {
		if ir.HasUses(a) {
			continue
		}
		a.Parent.EraseInst(a)
	}
}
