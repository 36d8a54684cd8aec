package codegen

import (
	"fmt"

	"github.com/cminusfc/cminusfc/internal/dominator"
	"github.com/cminusfc/cminusfc/internal/ir"
	"github.com/cminusfc/cminusfc/internal/mem2reg"
)

// OptimizationLevel represents the level of optimization to apply.
type OptimizationLevel int

const (
	// OptNone - No optimizations.
	OptNone OptimizationLevel = iota
	// OptBasic - Basic optimizations (mem2reg, constant folding, DCE).
	OptBasic
	// OptStandard - Standard optimizations (includes CSE, CFG simplification).
	OptStandard
	// OptAggressive - Aggressive optimizations (includes inlining, loop opts).
	OptAggressive
)

// Optimizer manages and applies optimization passes to the IR.
type Optimizer struct {
	level OptimizationLevel
}

// NewOptimizer creates a new optimizer with the specified optimization level.
func NewOptimizer(level OptimizationLevel) *Optimizer {
	return &Optimizer{level: level}
}

// OptimizeModule applies optimization passes to the entire module.
func (opt *Optimizer) OptimizeModule(module *ir.Module) error {
	if opt.level == OptNone {
		return nil
	}

	for _, fn := range module.Funcs {
		opt.optimizeFunction(fn)
	}

	if opt.level >= OptStandard {
		opt.eliminateDeadFunctions(module)
	}
	if opt.level >= OptAggressive {
		opt.inlineSmallFunctions(module)
	}
	return nil
}

// optimizeFunction applies optimization passes to a single function.
func (opt *Optimizer) optimizeFunction(fn *ir.Function) {
	if fn.Extern || len(fn.Blocks) == 0 {
		return
	}

	// mem2reg should run first as it enables every other pass: once memory
	// traffic becomes SSA values, folding/CSE/DCE all see far more of the
	// computation directly instead of through an alloca.
	if opt.level >= OptBasic {
		opt.mem2reg(fn)
		opt.constantFolding(fn)
		opt.deadCodeElimination(fn)
	}

	if opt.level >= OptStandard {
		opt.commonSubexpressionElimination(fn)
		opt.simplifyCFG(fn)
	}

	if opt.level >= OptAggressive {
		opt.loopInvariantCodeMotion(fn)
	}
}

func (opt *Optimizer) mem2reg(fn *ir.Function) {
	mem2reg.Run(fn)
}

// constantFolding replaces instructions whose operands are all constants
// with the folded constant value.
func (opt *Optimizer) constantFolding(fn *ir.Function) {
	for _, b := range fn.Blocks {
		var toErase []*ir.Instruction
		for _, in := range b.Insts {
			folded := opt.tryFold(in)
			if folded == nil {
				continue
			}
			ir.ReplaceAllUsesWith(in, folded)
			toErase = append(toErase, in)
		}
		for _, in := range toErase {
			b.EraseInst(in)
		}
	}
}

func (opt *Optimizer) tryFold(in *ir.Instruction) ir.Value {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv:
		x, ok1 := in.Operand(0).(*ir.ConstInt)
		y, ok2 := in.Operand(1).(*ir.ConstInt)
		if !ok1 || !ok2 {
			return nil
		}
		switch in.Op {
		case ir.OpAdd:
			return ir.NewConstInt(ir.I32, x.Val+y.Val)
		case ir.OpSub:
			return ir.NewConstInt(ir.I32, x.Val-y.Val)
		case ir.OpMul:
			return ir.NewConstInt(ir.I32, x.Val*y.Val)
		case ir.OpSDiv:
			if y.Val == 0 {
				return nil
			}
			return ir.NewConstInt(ir.I32, x.Val/y.Val)
		}
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		x, ok1 := in.Operand(0).(*ir.ConstFloat)
		y, ok2 := in.Operand(1).(*ir.ConstFloat)
		if !ok1 || !ok2 {
			return nil
		}
		switch in.Op {
		case ir.OpFAdd:
			return ir.NewConstFloat(x.Val + y.Val)
		case ir.OpFSub:
			return ir.NewConstFloat(x.Val - y.Val)
		case ir.OpFMul:
			return ir.NewConstFloat(x.Val * y.Val)
		case ir.OpFDiv:
			if y.Val == 0 {
				return nil
			}
			return ir.NewConstFloat(x.Val / y.Val)
		}
	case ir.OpICmp:
		x, ok1 := in.Operand(0).(*ir.ConstInt)
		y, ok2 := in.Operand(1).(*ir.ConstInt)
		if !ok1 || !ok2 {
			return nil
		}
		if evalPred(in.Pred, float64(x.Val), float64(y.Val)) {
			return ir.NewConstInt(ir.I1, 1)
		}
		return ir.NewConstInt(ir.I1, 0)
	case ir.OpFCmp:
		x, ok1 := in.Operand(0).(*ir.ConstFloat)
		y, ok2 := in.Operand(1).(*ir.ConstFloat)
		if !ok1 || !ok2 {
			return nil
		}
		if evalPred(in.Pred, float64(x.Val), float64(y.Val)) {
			return ir.NewConstInt(ir.I1, 1)
		}
		return ir.NewConstInt(ir.I1, 0)
	}
	return nil
}

func evalPred(p ir.Pred, x, y float64) bool {
	switch p {
	case ir.PredEQ:
		return x == y
	case ir.PredNE:
		return x != y
	case ir.PredLT:
		return x < y
	case ir.PredLE:
		return x <= y
	case ir.PredGT:
		return x > y
	case ir.PredGE:
		return x >= y
	default:
		return false
	}
}

// deadCodeElimination removes instructions with no uses and no side
// effects. Stores, calls, and terminators are never removed here.
func (opt *Optimizer) deadCodeElimination(fn *ir.Function) {
	changed := true
	for changed {
		changed = false
		for _, b := range fn.Blocks {
			var toErase []*ir.Instruction
			for _, in := range b.Insts {
				if opt.hasSideEffects(in) {
					continue
				}
				if ir.HasUses(in) {
					continue
				}
				toErase = append(toErase, in)
			}
			for _, in := range toErase {
				b.EraseInst(in)
				changed = true
			}
		}
	}
}

func (opt *Optimizer) hasSideEffects(in *ir.Instruction) bool {
	switch in.Op {
	case ir.OpStore, ir.OpCall:
		return true
	default:
		return false
	}
}

// commonSubexpressionElimination replaces a pure instruction with an
// earlier, identical one already computed in the same block.
func (opt *Optimizer) commonSubexpressionElimination(fn *ir.Function) {
	for _, b := range fn.Blocks {
		seen := make(map[string]*ir.Instruction)
		var toErase []*ir.Instruction
		for _, in := range b.Insts {
			if opt.hasSideEffects(in) || in.Op == ir.OpAlloca || in.Op == ir.OpPhi || in.Op == ir.OpLoad {
				continue
			}
			key, ok := opt.expressionKey(in)
			if !ok {
				continue
			}
			if existing, dup := seen[key]; dup {
				ir.ReplaceAllUsesWith(in, existing)
				toErase = append(toErase, in)
				continue
			}
			seen[key] = in
		}
		for _, in := range toErase {
			b.EraseInst(in)
		}
	}
}

func (opt *Optimizer) expressionKey(in *ir.Instruction) (string, bool) {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		return opKey(in.Op, in.Operand(0), in.Operand(1)), true
	case ir.OpICmp, ir.OpFCmp:
		return opKey(in.Op, in.Operand(0), in.Operand(1)) + "#" + in.Pred.String(), true
	default:
		return "", false
	}
}

func opKey(op ir.Opcode, x, y ir.Value) string {
	return op.String() + ":" + valueKey(x) + "," + valueKey(y)
}

func valueKey(v ir.Value) string {
	switch t := v.(type) {
	case *ir.Instruction:
		return fmt.Sprintf("i:%p", t)
	case *ir.Argument:
		return fmt.Sprintf("a:%p", t)
	case *ir.GlobalVariable:
		return "g:" + t.Name
	case *ir.ConstInt:
		return fmt.Sprintf("ci:%d", t.Val)
	case *ir.ConstFloat:
		return fmt.Sprintf("cf:%f", t.Val)
	default:
		return "?"
	}
}

// simplifyCFG merges a block into its sole predecessor when that
// predecessor ends in an unconditional branch to it and it has no other
// predecessors — the same structural cleanup as a fallthrough-merge pass.
func (opt *Optimizer) simplifyCFG(fn *ir.Function) {
	changed := true
	for changed {
		changed = false
		for _, b := range fn.Blocks {
			if b.Term == nil || b.Term.Op != ir.OpBr {
				continue
			}
			target := b.Term.Then
			if target == b || len(target.Preds) != 1 || target == fn.Entry() {
				continue
			}
			mergeBlocks(fn, b, target)
			changed = true
			break
		}
	}
}

func mergeBlocks(fn *ir.Function, into, from *ir.BasicBlock) {
	into.DropTerm()
	into.Insts = append(into.Insts, from.Insts...)
	for _, in := range from.Insts {
		in.Parent = into
	}
	into.Term = from.Term
	if into.Term != nil {
		into.Term.Parent = into
	}
	into.Succs = from.Succs
	for i, fb := range fn.Blocks {
		if fb == from {
			fn.Blocks = append(fn.Blocks[:i], fn.Blocks[i+1:]...)
			break
		}
	}
	fn.RecomputePredsSuccs()
}

// loopInvariantCodeMotion hoists pure instructions whose operands are all
// defined outside a natural loop to the loop header's immediate dominator
// (its de facto preheader, since cminus-f's structured if/while never
// shares a header across two loops).
func (opt *Optimizer) loopInvariantCodeMotion(fn *ir.Function) {
	dom := dominator.Analyze(fn)
	for _, latch := range fn.Blocks {
		for _, header := range latch.Succs {
			if !dom.Dominates(header, latch) {
				continue // not a back edge
			}
			body := loopBody(fn, header, latch, dom)
			preheader := dom.IDom(header)
			if preheader == nil || preheader == header {
				continue
			}
			hoistInvariants(body, header, preheader)
		}
	}
}

func loopBody(fn *ir.Function, header, latch *ir.BasicBlock, dom *dominator.Result) map[*ir.BasicBlock]bool {
	body := map[*ir.BasicBlock]bool{header: true, latch: true}
	for _, b := range fn.Blocks {
		if dom.Dominates(header, b) {
			body[b] = true
		}
	}
	return body
}

func hoistInvariants(body map[*ir.BasicBlock]bool, header, preheader *ir.BasicBlock) {
	for b := range body {
		if b == header {
			continue
		}
		var toMove []*ir.Instruction
		for _, in := range b.Insts {
			if !isLoopInvariantCandidate(in) {
				continue
			}
			if allOperandsOutside(in, body) {
				toMove = append(toMove, in)
			}
		}
		for _, in := range toMove {
			moveInstruction(b, preheader, in)
		}
	}
}

func isLoopInvariantCandidate(in *ir.Instruction) bool {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpFAdd, ir.OpFSub, ir.OpFMul:
		return true
	default:
		return false
	}
}

func allOperandsOutside(in *ir.Instruction, body map[*ir.BasicBlock]bool) bool {
	for i := 0; i < in.NumOperands(); i++ {
		if defIn, ok := in.Operand(i).(*ir.Instruction); ok {
			if defIn.Parent != nil && body[defIn.Parent] {
				return false
			}
		}
	}
	return true
}

func moveInstruction(from, to *ir.BasicBlock, in *ir.Instruction) {
	for i, c := range from.Insts {
		if c == in {
			from.Insts = append(from.Insts[:i], from.Insts[i+1:]...)
			break
		}
	}
	in.Parent = to
	// Insert before the preheader's terminator.
	to.Insts = append(to.Insts, in)
}

// eliminateDeadFunctions removes function definitions that are never
// called and are not the program's entry point; extern declarations are
// always kept since they are bound by the runtime, not by call sites here.
func (opt *Optimizer) eliminateDeadFunctions(module *ir.Module) {
	called := make(map[*ir.Function]bool)
	for _, fn := range module.Funcs {
		for _, b := range fn.Blocks {
			for _, in := range b.Insts {
				if in.Op == ir.OpCall {
					called[in.Callee] = true
				}
			}
		}
	}
	var kept []*ir.Function
	for _, fn := range module.Funcs {
		if fn.Extern || fn.Name == "main" || called[fn] {
			kept = append(kept, fn)
		}
	}
	module.Funcs = kept
}

// isInlinableOpcode reports whether cloneWithArgs knows how to duplicate an
// instruction of this opcode. inlineSmallFunctions only admits a function as
// a candidate when every instruction in its single block passes this check,
// so cloneWithArgs never has to guess at an opcode it wasn't built for.
func isInlinableOpcode(op ir.Opcode) bool {
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv,
		ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv,
		ir.OpICmp, ir.OpFCmp,
		ir.OpSIToFP, ir.OpFPToSI, ir.OpZExt:
		return true
	default:
		return false
	}
}

// inlineSmallFunctions inlines calls to tiny, non-recursive, single-block
// functions — the only shape simple enough to splice without a general
// CFG-stitching inliner.
func (opt *Optimizer) inlineSmallFunctions(module *ir.Module) {
	const maxInlineInsts = 4
	candidates := make(map[*ir.Function]bool)
	for _, fn := range module.Funcs {
		if fn.Extern || len(fn.Blocks) != 1 {
			continue
		}
		if len(fn.Blocks[0].Insts) > maxInlineInsts {
			continue
		}
		if callsItself(fn) {
			continue
		}
		inlinable := true
		for _, in := range fn.Blocks[0].Insts {
			if !isInlinableOpcode(in.Op) {
				inlinable = false
				break
			}
		}
		if !inlinable {
			continue
		}
		candidates[fn] = true
	}
	for _, fn := range module.Funcs {
		for _, b := range fn.Blocks {
			for _, in := range b.Insts {
				if in.Op == ir.OpCall && candidates[in.Callee] && in.Callee != fn {
					inlineCall(b, in)
				}
			}
		}
	}
}

func callsItself(fn *ir.Function) bool {
	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if in.Op == ir.OpCall && in.Callee == fn {
				return true
			}
		}
	}
	return false
}

// inlineCall substitutes a call's arguments for the callee's parameters and
// splices its single block's non-terminator instructions in place of the
// call, replacing uses of the call with the callee's returned value.
func inlineCall(b *ir.BasicBlock, call *ir.Instruction) {
	callee := call.Callee
	argMap := make(map[*ir.Argument]ir.Value, len(callee.Params))
	for i, p := range callee.Params {
		argMap[p] = call.Operand(i)
	}

	idx := indexOf(b.Insts, call)
	if idx < 0 {
		return
	}

	// instMap tracks, for every callee instruction already cloned, which
	// cloned value replaces it — a later instruction in the same block
	// (e.g. a zext consuming an icmp's result) must be rewired to point at
	// the clone, not at the original still living in the callee's own body.
	instMap := make(map[*ir.Instruction]ir.Value, len(callee.Blocks[0].Insts))
	var inserted []*ir.Instruction
	for _, in := range callee.Blocks[0].Insts {
		clone := cloneWithArgs(in, argMap, instMap)
		instMap[in] = clone
		inserted = append(inserted, clone)
	}

	var retVal ir.Value
	if term := callee.Blocks[0].Term; term != nil && term.Op == ir.OpRet && term.NumOperands() > 0 {
		retVal = resolveOperand(term.Operand(0), argMap, instMap)
	}

	b.Insts = append(b.Insts[:idx], append(inserted, b.Insts[idx+1:]...)...)
	for _, in := range inserted {
		in.Parent = b
	}
	if retVal != nil {
		ir.ReplaceAllUsesWith(call, retVal)
	}
}

func indexOf(insts []*ir.Instruction, target *ir.Instruction) int {
	for i, in := range insts {
		if in == target {
			return i
		}
	}
	return -1
}

// resolveOperand maps one of the callee's own values to its equivalent in
// the splice: a parameter becomes the call's actual argument, an
// instruction becomes whatever clone replaced it, and anything else (a
// constant, a global) is already valid in the caller and passes through.
func resolveOperand(v ir.Value, argMap map[*ir.Argument]ir.Value, instMap map[*ir.Instruction]ir.Value) ir.Value {
	if a, ok := v.(*ir.Argument); ok {
		if mapped, ok := argMap[a]; ok {
			return mapped
		}
		return v
	}
	if in, ok := v.(*ir.Instruction); ok {
		if mapped, ok := instMap[in]; ok {
			return mapped
		}
		return v
	}
	return v
}

// cloneWithArgs duplicates a single instruction from an inlined callee's
// only block, substituting callee arguments and already-cloned operands for
// the inlined call's actual arguments. inlineSmallFunctions only ever
// passes an instruction whose opcode satisfies isInlinableOpcode, so the
// switch below is exhaustive over what can actually reach it; the default
// case can only fire if that invariant is broken, and panics rather than
// fabricate a wrong opcode.
func cloneWithArgs(in *ir.Instruction, argMap map[*ir.Argument]ir.Value, instMap map[*ir.Instruction]ir.Value) *ir.Instruction {
	sub := func(v ir.Value) ir.Value { return resolveOperand(v, argMap, instMap) }
	b := &ir.BasicBlock{}
	switch in.Op {
	case ir.OpAdd:
		return b.NewAdd(sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpSub:
		return b.NewSub(sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpMul:
		return b.NewMul(sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpSDiv:
		return b.NewSDiv(sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpFAdd:
		return b.NewFAdd(sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpFSub:
		return b.NewFSub(sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpFMul:
		return b.NewFMul(sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpFDiv:
		return b.NewFDiv(sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpICmp:
		return b.NewICmp(in.Pred, sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpFCmp:
		return b.NewFCmp(in.Pred, sub(in.Operand(0)), sub(in.Operand(1)))
	case ir.OpSIToFP:
		return b.NewSIToFP(sub(in.Operand(0)))
	case ir.OpFPToSI:
		return b.NewFPToSI(sub(in.Operand(0)))
	case ir.OpZExt:
		return b.NewZExt(sub(in.Operand(0)))
	default:
		panic(fmt.Sprintf("cloneWithArgs: opcode %s should have been excluded by isInlinableOpcode", in.Op))
	}
}
