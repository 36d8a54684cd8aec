// Package frame computes the $fp-relative stack layout of a function after
// Mem2Reg has run: one slot per argument, one slot per non-void instruction
// result, and backing storage behind any alloca that survived promotion.
package frame

import "github.com/cminusfc/cminusfc/internal/ir"

// PrologueOffsetBase reserves the saved $ra (at $sp-8) and $fp (at $sp-16)
// below which every other slot is laid out.
const PrologueOffsetBase = 16

// PrologueAlign is the required alignment of the total frame size.
const PrologueAlign = 16

// Layout is the per-function result of Plan: every value with a stack slot
// maps to its $fp-relative (negative) byte offset, and FrameSize is the
// total, 16-byte-aligned frame allocation.
type Layout struct {
	Offsets   map[ir.Value]int
	FrameSize uint32
}

func alignUp(offset, size int) int {
	if size == 0 {
		return offset
	}
	return (offset + size - 1) &^ (size - 1)
}

// Plan lays out fn's stack frame: arguments first (in source order), then
// one slot per non-void instruction result in program order, with an
// alloca's pointee storage reserved immediately after its own (pointer)
// slot.
func Plan(fn *ir.Function) *Layout {
	offsets := make(map[ir.Value]int)
	offset := PrologueOffsetBase

	for _, arg := range fn.Params {
		size := arg.Type().Size()
		offset = alignUp(offset+size, size)
		offsets[arg] = -offset
	}

	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if in.Type().Kind != ir.KindVoid {
				size := in.Type().Size()
				offset = alignUp(offset+size, size)
				offsets[in] = -offset
			}
			if in.Op == ir.OpAlloca {
				offset += in.AllocType.Size()
			}
		}
	}

	frameSize := alignUp(offset, PrologueAlign)
	return &Layout{Offsets: offsets, FrameSize: uint32(frameSize)}
}

// Offset returns v's frame-relative offset and whether it has one — void
// instructions, constants, globals, and the alloca's own backing bytes (only
// addressed, never looked up directly) have no entry. Phi instructions, like
// every other non-void instruction, do.
func (l *Layout) Offset(v ir.Value) (int, bool) {
	off, ok := l.Offsets[v]
	return off, ok
}
