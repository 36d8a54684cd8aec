package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cminusfc/cminusfc/internal/frame"
	"github.com/cminusfc/cminusfc/internal/ir"
)

// imm12Min/imm12Max bound the signed 12-bit immediate the target's addi.d,
// ld.*, and st.* instructions accept directly; anything outside it has to
// be materialized into a scratch register first.
const (
	imm12Min = -2048
	imm12Max = 2047
)

func fitsImm12(v int) bool { return v >= imm12Min && v <= imm12Max }

// funcLowerer carries the state threaded through one function's
// instruction-by-instruction lowering: where it writes generated lines, the
// stack layout Plan produced, and the module-unique label each of its
// blocks lowers to.
type funcLowerer struct {
	prog   *Program
	fn     *ir.Function
	layout *frame.Layout
	labels map[*ir.BasicBlock]string
	names  map[*ir.Instruction]string
}

func blockLabel(fn *ir.Function, b *ir.BasicBlock) string { return fn.Name + "_" + b.Name }
func exitLabel(fn *ir.Function) string                    { return fn.Name + "_exit" }

func newFuncLowerer(prog *Program, fn *ir.Function, layout *frame.Layout) *funcLowerer {
	labels := make(map[*ir.BasicBlock]string, len(fn.Blocks))
	for _, b := range fn.Blocks {
		labels[b] = blockLabel(fn, b)
	}
	return &funcLowerer{prog: prog, fn: fn, layout: layout, labels: labels, names: instNames(fn)}
}

// instNames assigns a stable %tN name to every value-producing instruction
// in fn, in block order. The names exist only for the "# <ir>" disassembly
// comments lowerFunction emits ahead of each instruction's generated code;
// nothing in the pipeline's own invariants depends on them.
func instNames(fn *ir.Function) map[*ir.Instruction]string {
	names := make(map[*ir.Instruction]string)
	n := 0
	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if in.Type() != ir.Void {
				names[in] = fmt.Sprintf("%%t%d", n)
				n++
			}
		}
	}
	return names
}

// operandText renders one operand's IR text for a disassembly comment.
func (fl *funcLowerer) operandText(v ir.Value) string {
	switch c := v.(type) {
	case *ir.ConstInt:
		return strconv.FormatInt(c.Val, 10)
	case *ir.ConstFloat:
		return strconv.FormatFloat(float64(c.Val), 'g', -1, 32)
	case *ir.GlobalVariable:
		return "@" + c.Name
	case *ir.Argument:
		return "%" + c.Name
	case *ir.Instruction:
		if name, ok := fl.names[c]; ok {
			return name
		}
		return "%<void>"
	default:
		return "?"
	}
}

// disasm renders in's IR text for the "# <ir>" comment lowerFunction emits
// ahead of the code it lowers to — the same instr.print()-before-codegen
// convention the reference compiler uses for debugging generated listings.
func (fl *funcLowerer) disasm(in *ir.Instruction) string {
	result := ""
	if name, ok := fl.names[in]; ok {
		result = name + " = "
	}
	switch in.Op {
	case ir.OpAlloca:
		return fmt.Sprintf("%salloca %s", result, in.AllocType)
	case ir.OpLoad:
		return fmt.Sprintf("%sload %s, %s", result, in.Type(), fl.operandText(in.Operand(0)))
	case ir.OpStore:
		return fmt.Sprintf("store %s, %s", fl.operandText(in.Operand(0)), fl.operandText(in.Operand(1)))
	case ir.OpGEP:
		parts := make([]string, in.NumOperands())
		for i := range parts {
			parts[i] = fl.operandText(in.Operand(i))
		}
		return fmt.Sprintf("%sgep %s", result, strings.Join(parts, ", "))
	case ir.OpICmp, ir.OpFCmp:
		return fmt.Sprintf("%s%s %s %s, %s", result, in.Op, in.Pred, fl.operandText(in.Operand(0)), fl.operandText(in.Operand(1)))
	case ir.OpSIToFP, ir.OpFPToSI, ir.OpZExt:
		return fmt.Sprintf("%s%s %s", result, in.Op, fl.operandText(in.Operand(0)))
	case ir.OpCall:
		args := make([]string, in.NumOperands())
		for i := range args {
			args[i] = fl.operandText(in.Operand(i))
		}
		return fmt.Sprintf("%scall @%s(%s)", result, in.Callee.Name, strings.Join(args, ", "))
	default:
		parts := make([]string, in.NumOperands())
		for i := range parts {
			parts[i] = fl.operandText(in.Operand(i))
		}
		return fmt.Sprintf("%s%s %s", result, in.Op, strings.Join(parts, ", "))
	}
}

// disasmTerm renders a block's terminator the same way disasm renders an
// ordinary instruction.
func (fl *funcLowerer) disasmTerm(term *ir.Instruction) string {
	switch term.Op {
	case ir.OpRet:
		if term.NumOperands() == 0 {
			return "ret void"
		}
		return fmt.Sprintf("ret %s", fl.operandText(term.Operand(0)))
	case ir.OpBr:
		return fmt.Sprintf("br label %%%s", fl.labels[term.Then])
	case ir.OpCondBr:
		return fmt.Sprintf("br.cond %s, label %%%s, label %%%s",
			fl.operandText(term.Operand(0)), fl.labels[term.Then], fl.labels[term.Else])
	default:
		return term.Op.String()
	}
}

// loadImm32 materializes a 32-bit constant into reg: a single addi.w when it
// fits a 12-bit immediate, otherwise lu12i.w (upper 20 bits) followed by ori
// (lower 12, which never overlaps the shifted-in zeros of the first
// instruction, so the split is exact regardless of sign).
func (fl *funcLowerer) loadImm32(reg string, val int32) {
	if fitsImm12(int(val)) {
		fl.prog.inst("addi.w", reg, regZero, strconv.Itoa(int(val)))
		return
	}
	hi := val >> 12
	lo := val & 0xfff
	fl.prog.inst("lu12i.w", reg, strconv.Itoa(int(hi)))
	fl.prog.inst("ori", reg, reg, strconv.Itoa(int(lo)))
}

// stackOp emits opcode reg, <addr>, <imm-or-0> against the frame slot at
// off, spilling the offset through scratch when it doesn't fit a 12-bit
// immediate. addrReg is the scratch register used for the spilled address
// (callers pick one outside the registers already live across the call,
// reg included).
func (fl *funcLowerer) stackOp(opcode, reg string, off int, addrReg string) {
	if fitsImm12(off) {
		fl.prog.inst(opcode, reg, regFP, strconv.Itoa(off))
		return
	}
	fl.loadImm32(addrReg, int32(off))
	fl.prog.inst("add.d", addrReg, regFP, addrReg)
	fl.prog.inst(opcode, reg, addrReg, "0")
}

func (fl *funcLowerer) mustOffset(v ir.Value) int {
	off, ok := fl.layout.Offset(v)
	if !ok {
		panic(fmt.Sprintf("codegen: %v has no stack slot", v))
	}
	return off
}

// loadToGReg loads an integer- or pointer-typed value into reg: an
// immediate constant is materialized directly, a global's address is
// resolved via la.local, everything else is read from its stack slot with
// a width matched to its type (byte for i1, word for i32, doubleword for
// pointers).
func (fl *funcLowerer) loadToGReg(v ir.Value, reg string) {
	switch c := v.(type) {
	case *ir.ConstInt:
		fl.loadImm32(reg, int32(c.Val))
		return
	case *ir.GlobalVariable:
		fl.prog.inst("la.local", reg, c.Name)
		return
	}
	op := loadOpFor(v.Type())
	fl.stackOp(op, reg, fl.mustOffset(v), scratchG)
}

func loadOpFor(t *ir.Type) string {
	switch t.Kind {
	case ir.KindI1:
		return "ld.b"
	case ir.KindI32, ir.KindF32:
		return "ld.w"
	default: // pointer
		return "ld.d"
	}
}

func storeOpFor(t *ir.Type) string {
	switch t.Kind {
	case ir.KindI1:
		return "st.b"
	case ir.KindI32, ir.KindF32:
		return "st.w"
	default:
		return "st.d"
	}
}

// storeFromGReg writes reg into v's own stack slot (v must be an
// instruction result or argument, never a constant or global).
func (fl *funcLowerer) storeFromGReg(v ir.Value, reg string) {
	fl.stackOp(storeOpFor(v.Type()), reg, fl.mustOffset(v), scratchG)
}

// loadToFReg loads a float-typed value into freg: a float constant is
// materialized through its IEEE-754 bit pattern and moved across register
// files, everything else is read from its stack slot.
func (fl *funcLowerer) loadToFReg(v ir.Value, freg string) {
	if c, ok := v.(*ir.ConstFloat); ok {
		bits := int32(math.Float32bits(c.Val))
		fl.loadImm32(scratchG, bits)
		fl.prog.inst("movgr2fr.w", freg, scratchG)
		return
	}
	fl.stackFloatOp("fld.s", freg, fl.mustOffset(v))
}

func (fl *funcLowerer) storeFromFReg(v ir.Value, freg string) {
	fl.stackFloatOp("fst.s", freg, fl.mustOffset(v))
}

func (fl *funcLowerer) stackFloatOp(opcode, freg string, off int) {
	if fitsImm12(off) {
		fl.prog.inst(opcode, freg, regFP, strconv.Itoa(off))
		return
	}
	fl.loadImm32(scratchG, int32(off))
	fl.prog.inst("add.d", scratchG, regFP, scratchG)
	fl.prog.inst(opcode, freg, scratchG, "0")
}

// lowerFunction emits one function's prologue, body, and epilogue into prog.
func lowerFunction(prog *Program, fn *ir.Function) {
	layout := frame.Plan(fn)
	fl := newFuncLowerer(prog, fn, layout)

	prog.attr(".globl", fn.Name)
	prog.attr(".type", fn.Name, "@function")
	prog.label(fn.Name)

	fl.genPrologue()
	for _, b := range fn.Blocks {
		prog.label(fl.labels[b])
		for _, in := range b.Insts {
			// Phis carry no code of their own (resolvePhis materializes
			// them on each incoming edge instead), so there is nothing
			// being lowered here to comment on.
			if in.Op != ir.OpPhi {
				prog.comment(fl.disasm(in))
			}
			fl.lowerInst(in)
		}
		prog.comment(fl.disasmTerm(b.Term))
		fl.lowerTerm(b)
	}
	fl.genEpilogue()
}

func (fl *funcLowerer) genPrologue() {
	p := fl.prog
	p.inst("st.d", regRA, regSP, "-8")
	p.inst("st.d", regFP, regSP, "-16")
	p.inst("addi.d", regFP, regSP, "0")

	size := int(fl.layout.FrameSize)
	if fitsImm12(-size) {
		p.inst("addi.d", regSP, regSP, strconv.Itoa(-size))
	} else {
		fl.loadImm32(greg(0), int32(size))
		p.inst("sub.d", regSP, regSP, greg(0))
	}

	gi, fi := 0, 0
	for _, arg := range fl.fn.Params {
		if arg.Typ.IsFloat() {
			fl.storeFromFReg(arg, aFReg(fi))
			fi++
		} else {
			fl.storeFromGReg(arg, aGReg(gi))
			gi++
		}
	}
}

func (fl *funcLowerer) genEpilogue() {
	p := fl.prog
	p.label(exitLabel(fl.fn))
	size := int(fl.layout.FrameSize)
	if fitsImm12(size) {
		p.inst("addi.d", regSP, regSP, strconv.Itoa(size))
	} else {
		fl.loadImm32(greg(0), int32(size))
		p.inst("add.d", regSP, regSP, greg(0))
	}
	p.inst("ld.d", regRA, regSP, "-8")
	p.inst("ld.d", regFP, regSP, "-16")
	p.inst("jr", regRA)
}

// lowerInst dispatches every non-terminator, non-phi opcode. Phis carry no
// code of their own: their values are materialized by resolvePhis on each
// incoming edge, at the predecessor's branch.
func (fl *funcLowerer) lowerInst(in *ir.Instruction) {
	switch in.Op {
	case ir.OpPhi:
		return
	case ir.OpAlloca:
		fl.genAlloca(in)
	case ir.OpLoad:
		fl.genLoad(in)
	case ir.OpStore:
		fl.genStore(in)
	case ir.OpGEP:
		fl.genGEP(in)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv:
		fl.genBinary(in)
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		fl.genFloatBinary(in)
	case ir.OpICmp:
		fl.genICmp(in)
	case ir.OpFCmp:
		fl.genFCmp(in)
	case ir.OpSIToFP:
		fl.genSIToFP(in)
	case ir.OpFPToSI:
		fl.genFPToSI(in)
	case ir.OpZExt:
		fl.genZExt(in)
	case ir.OpCall:
		fl.genCall(in)
	default:
		panic(fmt.Sprintf("codegen: unexpected non-terminator opcode %v", in.Op))
	}
}

func (fl *funcLowerer) genAlloca(in *ir.Instruction) {
	// The pointee's backing bytes were already reserved by frame.Plan right
	// after this instruction's own slot; the pointer value is the address
	// of that backing storage, not of the slot holding the pointer itself.
	off := fl.mustOffset(in) - in.AllocType.Size()
	if fitsImm12(off) {
		fl.prog.inst("addi.d", greg(1), regFP, strconv.Itoa(off))
	} else {
		fl.loadImm32(greg(1), int32(off))
		fl.prog.inst("add.d", greg(1), regFP, greg(1))
	}
	fl.storeFromGReg(in, greg(1))
}

func (fl *funcLowerer) genLoad(in *ir.Instruction) {
	ptr := in.Operand(0)
	fl.loadToGReg(ptr, greg(0))
	if in.Type().IsFloat() {
		fl.prog.inst("fld.s", freg(0), greg(0), "0")
		fl.storeFromFReg(in, freg(0))
		return
	}
	fl.prog.inst(loadOpFor(in.Type()), greg(0), greg(0), "0")
	fl.storeFromGReg(in, greg(0))
}

func (fl *funcLowerer) genStore(in *ir.Instruction) {
	val, ptr := in.Operand(0), in.Operand(1)
	fl.loadToGReg(ptr, greg(0))
	if val.Type().IsFloat() {
		fl.loadToFReg(val, freg(0))
		fl.prog.inst("fst.s", freg(0), greg(0), "0")
		return
	}
	fl.loadToGReg(val, greg(1))
	fl.prog.inst(storeOpFor(val.Type()), greg(1), greg(0), "0")
}

func (fl *funcLowerer) genBinary(in *ir.Instruction) {
	fl.loadToGReg(in.Operand(0), greg(0))
	fl.loadToGReg(in.Operand(1), greg(1))
	switch in.Op {
	case ir.OpAdd:
		fl.prog.inst("add.w", greg(2), greg(0), greg(1))
	case ir.OpSub:
		fl.prog.inst("sub.w", greg(2), greg(0), greg(1))
	case ir.OpMul:
		fl.prog.inst("mul.w", greg(2), greg(0), greg(1))
	case ir.OpSDiv:
		fl.prog.inst("div.w", greg(2), greg(0), greg(1))
	}
	fl.storeFromGReg(in, greg(2))
}

func (fl *funcLowerer) genFloatBinary(in *ir.Instruction) {
	fl.loadToFReg(in.Operand(0), freg(0))
	fl.loadToFReg(in.Operand(1), freg(1))
	switch in.Op {
	case ir.OpFAdd:
		fl.prog.inst("fadd.s", freg(2), freg(0), freg(1))
	case ir.OpFSub:
		fl.prog.inst("fsub.s", freg(2), freg(0), freg(1))
	case ir.OpFMul:
		fl.prog.inst("fmul.s", freg(2), freg(0), freg(1))
	case ir.OpFDiv:
		fl.prog.inst("fdiv.s", freg(2), freg(0), freg(1))
	}
	fl.storeFromFReg(in, freg(2))
}

// genICmp lowers every integer predicate through slt, since the target has
// no dedicated compare-and-set opcodes: gt and lt are a single slt with
// operands swapped or not, ge/le fold the non-strict bound into a +1 before
// the strict slt, and eq/ne combine both strict comparisons with nor/or.
func (fl *funcLowerer) genICmp(in *ir.Instruction) {
	fl.loadToGReg(in.Operand(0), greg(0))
	fl.loadToGReg(in.Operand(1), greg(1))
	p := fl.prog
	switch in.Pred {
	case ir.PredGT:
		p.inst("slt", greg(0), greg(1), greg(0))
	case ir.PredGE:
		p.inst("addi.w", greg(0), greg(0), "1")
		p.inst("slt", greg(0), greg(1), greg(0))
	case ir.PredEQ:
		p.inst("slt", greg(2), greg(1), greg(0))
		p.inst("slt", greg(3), greg(0), greg(1))
		p.inst("nor", greg(0), greg(2), greg(3))
	case ir.PredNE:
		p.inst("slt", greg(2), greg(1), greg(0))
		p.inst("slt", greg(3), greg(0), greg(1))
		p.inst("or", greg(0), greg(2), greg(3))
	case ir.PredLE:
		p.inst("addi.w", greg(1), greg(1), "1")
		p.inst("slt", greg(0), greg(0), greg(1))
	case ir.PredLT:
		p.inst("slt", greg(0), greg(0), greg(1))
	}
	fl.storeFromGReg(in, greg(0))
}

func (fl *funcLowerer) genFCmp(in *ir.Instruction) {
	fl.loadToFReg(in.Operand(0), freg(0))
	fl.loadToFReg(in.Operand(1), freg(1))
	p := fl.prog
	switch in.Pred {
	case ir.PredGT:
		p.inst("fcmp.slt.s", "$fcc0", freg(1), freg(0))
	case ir.PredGE:
		p.inst("fcmp.sle.s", "$fcc0", freg(1), freg(0))
	case ir.PredEQ:
		p.inst("fcmp.seq.s", "$fcc0", freg(0), freg(1))
	case ir.PredNE:
		p.inst("fcmp.sne.s", "$fcc0", freg(0), freg(1))
	case ir.PredLE:
		p.inst("fcmp.sle.s", "$fcc0", freg(0), freg(1))
	case ir.PredLT:
		p.inst("fcmp.slt.s", "$fcc0", freg(0), freg(1))
	}
	p.inst("movcf2gr", greg(0), "$fcc0")
	fl.storeFromGReg(in, greg(0))
}

func (fl *funcLowerer) genSIToFP(in *ir.Instruction) {
	fl.loadToGReg(in.Operand(0), greg(0))
	fl.prog.inst("movgr2fr.w", freg(0), greg(0))
	fl.prog.inst("ffint.s.w", freg(1), freg(0))
	fl.storeFromFReg(in, freg(1))
}

func (fl *funcLowerer) genFPToSI(in *ir.Instruction) {
	fl.loadToFReg(in.Operand(0), freg(0))
	fl.prog.inst("ftintrz.w.s", freg(1), freg(0))
	fl.storeFromFReg(in, freg(1))
}

func (fl *funcLowerer) genZExt(in *ir.Instruction) {
	fl.loadToGReg(in.Operand(0), greg(0))
	fl.prog.inst("bstrpick.w", greg(0), greg(0), "0", "0")
	fl.storeFromGReg(in, greg(0))
}

func (fl *funcLowerer) genCall(in *ir.Instruction) {
	gi, fi := 0, 0
	for i := 0; i < in.NumOperands(); i++ {
		arg := in.Operand(i)
		if arg.Type().IsFloat() {
			fl.loadToFReg(arg, aFReg(fi))
			fi++
		} else {
			fl.loadToGReg(arg, aGReg(gi))
			gi++
		}
	}
	fl.prog.inst("bl", in.Callee.Name)
	switch {
	case in.Type().IsFloat():
		fl.storeFromFReg(in, aFReg(0))
	case in.Type().Kind != ir.KindVoid:
		fl.storeFromGReg(in, aGReg(0))
	}
}

// genGEP computes an address from a base pointer plus one or two indices.
// The array-decay form (ptr<array<T,n>> base, outer+inner indices) scales
// each index by its dimension's element size before accumulating; the
// scalar form (ptr<T> base, one index) scales by T's size directly.
func (fl *funcLowerer) genGEP(in *ir.Instruction) {
	base := in.Operand(0)
	elemType := in.Type().Elem
	fl.loadToGReg(base, greg(0))
	fl.loadToGReg(in.Operand(1), greg(1))
	if in.ArrayForm {
		fl.loadToGReg(in.Operand(2), greg(2))
		arrayType := base.Type().Elem
		fl.loadImm32(greg(3), int32(arrayType.Size()))
		fl.loadImm32(greg(4), int32(arrayType.Elem.Size()))
		fl.prog.inst("mul.w", greg(1), greg(1), greg(3))
		fl.prog.inst("bstrpick.d", greg(1), greg(1), "31", "0")
		fl.prog.inst("add.d", greg(0), greg(0), greg(1))
		fl.prog.inst("mul.w", greg(2), greg(2), greg(4))
		fl.prog.inst("bstrpick.d", greg(2), greg(2), "31", "0")
		fl.prog.inst("add.d", greg(0), greg(0), greg(2))
	} else {
		fl.loadImm32(greg(2), int32(elemType.Size()))
		fl.prog.inst("mul.w", greg(1), greg(1), greg(2))
		fl.prog.inst("bstrpick.d", greg(1), greg(1), "31", "0")
		fl.prog.inst("add.d", greg(0), greg(0), greg(1))
	}
	fl.storeFromGReg(in, greg(0))
}

// lowerTerm lowers a block's terminator, resolving any phi in a successor
// block that takes its value from this block first — the assignments have
// to land in the successor's frame slots before control transfers there,
// since once the branch is taken the predecessor's own registers are gone.
func (fl *funcLowerer) lowerTerm(b *ir.BasicBlock) {
	term := b.Term
	switch term.Op {
	case ir.OpRet:
		fl.genRet(term)
	case ir.OpBr:
		fl.resolvePhis(term.Then, b)
		fl.prog.inst("b", fl.labels[term.Then])
	case ir.OpCondBr:
		fl.loadToGReg(term.Operand(0), greg(0))
		fl.resolvePhis(term.Then, b)
		fl.resolvePhis(term.Else, b)
		fl.prog.inst("bstrpick.d", greg(1), greg(0), "0", "0")
		fl.prog.inst("bnez", greg(1), fl.labels[term.Then])
		fl.prog.inst("b", fl.labels[term.Else])
	default:
		panic(fmt.Sprintf("codegen: block %q has no terminator", b.Name))
	}
}

func (fl *funcLowerer) genRet(term *ir.Instruction) {
	if term.NumOperands() == 0 {
		fl.prog.inst("addi.d", aGReg(0), regZero, "0")
	} else if term.Operand(0).Type().IsFloat() {
		fl.loadToFReg(term.Operand(0), aFReg(0))
	} else {
		fl.loadToGReg(term.Operand(0), aGReg(0))
	}
	fl.prog.inst("b", exitLabel(fl.fn))
}

func (fl *funcLowerer) resolvePhis(succ, pred *ir.BasicBlock) {
	for _, in := range succ.Insts {
		if in.Op != ir.OpPhi {
			break // phis are always grouped at the head of a block
		}
		v, ok := in.IncomingFor(pred)
		if !ok {
			continue
		}
		if v.Type().IsFloat() {
			fl.loadToFReg(v, scratchF)
			fl.storeFromFReg(in, scratchF)
		} else {
			fl.loadToGReg(v, scratchG)
			// $t8 now holds the value, so a large slot offset is synthesized
			// in $t1 instead ($t0 may still hold a conditional branch's
			// condition).
			fl.stackOp(storeOpFor(in.Type()), scratchG, fl.mustOffset(in), greg(1))
		}
	}
}
