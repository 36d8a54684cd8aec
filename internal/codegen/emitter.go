package codegen

import (
	"strconv"

	"github.com/cminusfc/cminusfc/internal/ir"
)

// Emit renders an already-optimized module to a complete assembly listing:
// a .bss section reserving one object per global, followed by a .text
// section holding one label+prologue+body+epilogue per defined function.
// Declared-only (extern) functions contribute nothing — the linker
// resolves their calls against the runtime support object.
func Emit(m *ir.Module) string {
	prog := &Program{}

	if len(m.Globals) > 0 {
		prog.comment("Global variables")
		prog.attr(".text")
		prog.attr(".section", ".bss", "\"aw\"", "@nobits")
		for _, g := range m.Globals {
			size := g.ElemType.Size()
			sizeStr := strconv.Itoa(size)
			prog.attr(".globl", g.Name)
			prog.attr(".type", g.Name, "@object")
			prog.attr(".size", g.Name, sizeStr)
			prog.label(g.Name)
			prog.attr(".space", sizeStr)
		}
	}

	prog.attr(".text")
	for _, fn := range m.Funcs {
		if fn.Extern {
			continue
		}
		lowerFunction(prog, fn)
	}

	return prog.String()
}
