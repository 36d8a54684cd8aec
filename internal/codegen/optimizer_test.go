package codegen

import (
	"testing"

	"github.com/cminusfc/cminusfc/internal/ir"
)

func countOp(fn *ir.Function, op ir.Opcode) int {
	n := 0
	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if in.Op == op {
				n++
			}
		}
		if b.Term != nil && b.Term.Op == op {
			n++
		}
	}
	return n
}

// TestOptNoneLeavesModuleUntouched matches the "no optimizations" tier:
// OptimizeModule must return before running a single pass.
func TestOptNoneLeavesModuleUntouched(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunc("main", ir.I32, nil, nil)
	entry := fn.NewBlock("entry")
	unused := entry.NewAlloca(ir.I32)
	entry.NewStore(ir.NewConstInt(ir.I32, 7), unused)
	entry.NewRet(ir.NewConstInt(ir.I32, 0))

	if err := NewOptimizer(OptNone).OptimizeModule(m); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if countOp(fn, ir.OpAlloca) != 1 || countOp(fn, ir.OpStore) != 1 {
		t.Error("OptNone must not touch the IR at all")
	}
}

// TestOptBasicFoldsAndEliminatesDeadStores matches the "mem2reg, constant
// folding, DCE" tier: a dead alloca/store disappears and a constant-only
// computation collapses to its folded value.
func TestOptBasicFoldsAndEliminatesDeadStores(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunc("main", ir.I32, nil, nil)
	entry := fn.NewBlock("entry")
	unused := entry.NewAlloca(ir.I32)
	entry.NewStore(ir.NewConstInt(ir.I32, 999), unused)
	sum := entry.NewAdd(ir.NewConstInt(ir.I32, 10), ir.NewConstInt(ir.I32, 5))
	entry.NewRet(sum)

	if err := NewOptimizer(OptBasic).OptimizeModule(m); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if countOp(fn, ir.OpAlloca) != 0 || countOp(fn, ir.OpStore) != 0 {
		t.Error("expected the unused alloca/store to be eliminated")
	}
	ret := fn.Blocks[0].Term
	c, ok := ret.Operand(0).(*ir.ConstInt)
	if !ok || c.Val != 15 {
		t.Errorf("expected constant-folded return of 15, got %#v", ret.Operand(0))
	}
}

// TestOptStandardCommonSubexpressionElimination matches the CSE pass added
// at this tier: recomputing a+b a second time must be replaced by a reuse
// of the first add's result.
func TestOptStandardCommonSubexpressionElimination(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunc("f", ir.I32, []string{"a", "b"}, []*ir.Type{ir.I32, ir.I32})
	entry := fn.NewBlock("entry")
	first := entry.NewAdd(fn.Params[0], fn.Params[1])
	second := entry.NewAdd(fn.Params[0], fn.Params[1])
	entry.NewRet(entry.NewAdd(first, second))

	if err := NewOptimizer(OptStandard).OptimizeModule(m); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if got := countOp(fn, ir.OpAdd); got != 2 {
		t.Errorf("expected the duplicate a+b to be eliminated (2 adds remaining), got %d", got)
	}
}

// TestOptStandardRemovesDeadFunctions matches eliminateDeadFunctions: a
// function nobody calls is dropped from the module, but main always stays.
func TestOptStandardRemovesDeadFunctions(t *testing.T) {
	m := ir.NewModule("t")
	dead := m.NewFunc("unused", ir.I32, nil, nil)
	deadEntry := dead.NewBlock("entry")
	deadEntry.NewRet(ir.NewConstInt(ir.I32, 0))

	main := m.NewFunc("main", ir.I32, nil, nil)
	mainEntry := main.NewBlock("entry")
	mainEntry.NewRet(ir.NewConstInt(ir.I32, 0))

	if err := NewOptimizer(OptStandard).OptimizeModule(m); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if m.FindFunc("unused") != nil {
		t.Error("expected the never-called function to be removed")
	}
	if m.FindFunc("main") == nil {
		t.Error("main must always be kept")
	}
}

// TestOptAggressiveInlinesComparisonWithoutCorruption is a regression test
// for cloneWithArgs: it used to panic on a single-operand opcode (OpZExt,
// indexing a nonexistent second operand) and silently fabricate an OpAdd
// for any other two-operand opcode it didn't special-case, miscompiling a
// comparison into an addition. gt's body — icmp followed by a zext
// consuming the icmp's own result — is exactly the shape a post-mem2reg
// comparison function takes, and exercises both the opcode dispatch and
// the intra-block operand rewiring inlineCall needs to get right.
func TestOptAggressiveInlinesComparisonWithoutCorruption(t *testing.T) {
	m := ir.NewModule("t")
	gt := m.NewFunc("gt", ir.I32, []string{"x", "y"}, []*ir.Type{ir.I32, ir.I32})
	gtEntry := gt.NewBlock("entry")
	cmp := gtEntry.NewICmp(ir.PredGT, gt.Params[0], gt.Params[1])
	gtEntry.NewRet(gtEntry.NewZExt(cmp))

	main := m.NewFunc("main", ir.I32, nil, nil)
	mainEntry := main.NewBlock("entry")
	call := mainEntry.NewCall(gt, ir.NewConstInt(ir.I32, 3), ir.NewConstInt(ir.I32, 1))
	mainEntry.NewRet(call)

	if err := NewOptimizer(OptAggressive).OptimizeModule(m); err != nil {
		t.Fatalf("optimize: %v", err)
	}

	var foundCmp, foundZExt bool
	for _, in := range main.Blocks[0].Insts {
		switch in.Op {
		case ir.OpICmp:
			foundCmp = true
			if in.Pred != ir.PredGT {
				t.Errorf("inlined comparison lost its predicate: got %s, want gt", in.Pred)
			}
		case ir.OpZExt:
			foundZExt = true
			if in.Operand(0).Type() != ir.I1 {
				t.Errorf("inlined zext should consume the cloned icmp's i1 result, not the original's operand")
			}
		case ir.OpAdd:
			t.Error("comparison must not be miscompiled into an add")
		}
	}
	if !foundCmp || !foundZExt {
		t.Error("expected gt's icmp and zext to be spliced into main")
	}
	if main.Blocks[0].Term.Op != ir.OpRet {
		t.Fatal("main's terminator should remain a ret")
	}
}

// TestOptAggressiveSkipsCandidatesWithUnsupportedOpcodes ensures a
// single-block function that cloneWithArgs cannot safely duplicate (here,
// one that loads through a pointer parameter) is never inlined: the
// candidate filter must reject it up front rather than let inlineCall
// panic on an unrecognized opcode.
func TestOptAggressiveSkipsCandidatesWithUnsupportedOpcodes(t *testing.T) {
	m := ir.NewModule("t")
	first := m.NewFunc("first", ir.I32, []string{"p"}, []*ir.Type{ir.NewPtr(ir.I32)})
	firstEntry := first.NewBlock("entry")
	firstEntry.NewRet(firstEntry.NewLoad(ir.I32, first.Params[0]))

	main := m.NewFunc("main", ir.I32, nil, nil)
	mainEntry := main.NewBlock("entry")
	slot := mainEntry.NewAlloca(ir.I32)
	call := mainEntry.NewCall(first, slot)
	mainEntry.NewRet(call)

	if err := NewOptimizer(OptAggressive).OptimizeModule(m); err != nil {
		t.Fatalf("optimize: %v", err)
	}

	foundCall := false
	for _, in := range main.Blocks[0].Insts {
		if in.Op == ir.OpCall {
			foundCall = true
		}
	}
	if !foundCall {
		t.Error("a function containing an unsupported opcode (load) must not be inlined")
	}
}
