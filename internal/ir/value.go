package ir

// Value is anything an instruction operand can refer to: a constant, a
// global, a function argument, an instruction result, or a basic block
// (branch targets and phi incoming blocks are values too).
type Value interface {
	Type() *Type
	// uses returns the head of this value's use list, for internal
	// bookkeeping only; callers should use ReplaceAllUsesWith.
	uses() *Use
	setUses(*Use)
}

// Use is one edge of the (non-owning) use-def graph: it records that
// Owner's operand at Slot currently points at a Value. Uses for a given
// Value are threaded into a doubly-linked list so ReplaceAllUsesWith runs in
// O(uses) instead of scanning every instruction in the function.
type Use struct {
	Owner Operandable
	Slot  int
	prev  *Use
	next  *Use
}

// Operandable is implemented by anything that owns a mutable operand list.
// Instruction is the only implementation; for a phi, the slot indexes its
// incoming pairs.
type Operandable interface {
	SetOperand(slot int, v Value)
}

// valueBase is embedded by every concrete Value to provide use-list storage.
type valueBase struct {
	head *Use
}

func (b *valueBase) uses() *Use       { return b.head }
func (b *valueBase) setUses(u *Use)   { b.head = u }

// addUse links a new use of v at owner's operand slot.
func addUse(v Value, owner Operandable, slot int) *Use {
	u := &Use{Owner: owner, Slot: slot}
	linkUse(v, u)
	return u
}

func linkUse(v Value, u *Use) {
	head := v.uses()
	u.prev = nil
	u.next = head
	if head != nil {
		head.prev = u
	}
	v.setUses(u)
}

// removeUse detaches u from whatever value's use list it is threaded into.
func removeUse(v Value, u *Use) {
	if u.prev != nil {
		u.prev.next = u.next
	} else if v.uses() == u {
		v.setUses(u.next)
	}
	if u.next != nil {
		u.next.prev = u.prev
	}
	u.prev, u.next = nil, nil
}

// ReplaceAllUsesWith rewrites every recorded use of old to point at next,
// relinking old's use list onto next's. It is the IR-wide invariant: after
// this call, old.uses() is empty.
func ReplaceAllUsesWith(old, next Value) {
	u := old.uses()
	for u != nil {
		following := u.next
		u.Owner.SetOperand(u.Slot, next)
		u.prev, u.next = nil, nil
		linkUse(next, u)
		u = following
	}
	old.setUses(nil)
}

// HasUses reports whether any operand still refers to v.
func HasUses(v Value) bool { return v.uses() != nil }
