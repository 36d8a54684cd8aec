package frame

import (
	"testing"

	"github.com/cminusfc/cminusfc/internal/ir"
)

func TestPlanBasic(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunc("f", ir.I32, []string{"a"}, []*ir.Type{ir.I32})
	entry := fn.NewBlock("entry")
	add := entry.NewAdd(fn.Params[0], ir.NewConstInt(ir.I32, 1))
	entry.NewRet(add)

	l := Plan(fn)

	if l.FrameSize%PrologueAlign != 0 {
		t.Errorf("frame size %d not aligned to %d", l.FrameSize, PrologueAlign)
	}
	if off, ok := l.Offset(fn.Params[0]); !ok || off >= 0 {
		t.Errorf("argument offset = %d, ok=%v; want negative", off, ok)
	}
	if off, ok := l.Offset(add); !ok || off >= 0 {
		t.Errorf("instruction offset = %d, ok=%v; want negative", off, ok)
	}
	argOff, _ := l.Offset(fn.Params[0])
	addOff, _ := l.Offset(add)
	if addOff >= argOff {
		t.Errorf("instruction slot %d should be further from $fp than argument slot %d", addOff, argOff)
	}
}

func TestPlanAllocaReservesBackingStore(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunc("f", ir.Void, nil, nil)
	entry := fn.NewBlock("entry")
	arr := entry.NewAlloca(ir.NewArray(ir.I32, 10))
	entry.NewRet(nil)

	l := Plan(fn)
	arrOff, ok := l.Offset(arr)
	if !ok {
		t.Fatal("alloca result should have a slot")
	}
	// The array's 40 bytes of backing storage must push the frame size out
	// well beyond just the pointer slot.
	if int(l.FrameSize) < -arrOff+40 {
		t.Errorf("frame size %d too small for pointer slot at %d plus 40 bytes backing storage", l.FrameSize, arrOff)
	}
}

func TestPlanFrameSizeAtLeastSlotsPlusBase(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunc("f", ir.I32, []string{"a", "b"}, []*ir.Type{ir.I32, ir.I32})
	entry := fn.NewBlock("entry")
	add := entry.NewAdd(fn.Params[0], fn.Params[1])
	entry.NewRet(add)

	l := Plan(fn)
	slots := fn.Params[0].Type().Size() + fn.Params[1].Type().Size() + add.Type().Size()
	if int(l.FrameSize) < PrologueOffsetBase+slots {
		t.Errorf("frame size %d smaller than prologue base %d plus %d bytes of slots", l.FrameSize, PrologueOffsetBase, slots)
	}
}
