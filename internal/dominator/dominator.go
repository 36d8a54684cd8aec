// Package dominator computes, per function, the immediate-dominator map,
// dominance frontiers, and dominator-tree successors that the Mem2Reg pass
// builds on. It implements the Cooper-Harvey-Kennedy iterative algorithm:
// a reverse-postorder numbering plus a converging walk-and-intersect over
// idom candidates, rather than a transitive-closure bitset fixpoint.
package dominator

import "github.com/cminusfc/cminusfc/internal/ir"

// Result is the output of analyzing one function.
type Result struct {
	rpoIndex map[*ir.BasicBlock]int
	idom     map[*ir.BasicBlock]*ir.BasicBlock
	domFront map[*ir.BasicBlock][]*ir.BasicBlock
	domSucc  map[*ir.BasicBlock][]*ir.BasicBlock
	entry    *ir.BasicBlock
}

// IDom returns b's immediate dominator. The entry block is its own
// immediate dominator.
func (r *Result) IDom(b *ir.BasicBlock) *ir.BasicBlock { return r.idom[b] }

// DomFront returns b's dominance frontier.
func (r *Result) DomFront(b *ir.BasicBlock) []*ir.BasicBlock { return r.domFront[b] }

// DomSucc returns the children of b in the dominator tree.
func (r *Result) DomSucc(b *ir.BasicBlock) []*ir.BasicBlock { return r.domSucc[b] }

// Dominates reports whether a dominates b (reflexively: a dominates a).
// Blocks unreachable from the entry neither dominate nor are dominated.
func (r *Result) Dominates(a, b *ir.BasicBlock) bool {
	if _, ok := r.rpoIndex[a]; !ok {
		return false
	}
	if _, ok := r.rpoIndex[b]; !ok {
		return false
	}
	cur := b
	for {
		if cur == a {
			return true
		}
		if cur == r.entry {
			return a == r.entry
		}
		cur = r.idom[cur]
	}
}

// StrictlyDominates reports whether a dominates b and a != b.
func (r *Result) StrictlyDominates(a, b *ir.BasicBlock) bool {
	return a != b && r.Dominates(a, b)
}

// Analyze computes dominator information for fn. Blocks unreachable from
// the entry are excluded from every map, matching the RPO numbering they'd
// otherwise lack.
func Analyze(fn *ir.Function) *Result {
	rpo := fn.RPO()
	r := &Result{
		rpoIndex: make(map[*ir.BasicBlock]int, len(rpo)),
		idom:     make(map[*ir.BasicBlock]*ir.BasicBlock, len(rpo)),
		domFront: make(map[*ir.BasicBlock][]*ir.BasicBlock, len(rpo)),
		domSucc:  make(map[*ir.BasicBlock][]*ir.BasicBlock, len(rpo)),
	}
	if len(rpo) == 0 {
		return r
	}
	entry := rpo[0]
	r.entry = entry
	for i, b := range rpo {
		r.rpoIndex[b] = i
	}
	r.idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *ir.BasicBlock
			for _, p := range b.Preds {
				if _, ok := r.rpoIndex[p]; !ok {
					continue // not yet reachable-ordered; treat as undefined
				}
				if r.idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = r.intersect(newIdom, p)
			}
			if newIdom != nil && r.idom[b] != newIdom {
				r.idom[b] = newIdom
				changed = true
			}
		}
	}

	r.computeDomFrontiers(rpo)
	r.computeDomTree(rpo, entry)
	return r
}

func (r *Result) intersect(b1, b2 *ir.BasicBlock) *ir.BasicBlock {
	for b1 != b2 {
		for r.rpoIndex[b1] > r.rpoIndex[b2] {
			b1 = r.idom[b1]
		}
		for r.rpoIndex[b2] > r.rpoIndex[b1] {
			b2 = r.idom[b2]
		}
	}
	return b1
}

func (r *Result) computeDomFrontiers(rpo []*ir.BasicBlock) {
	for _, b := range rpo {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			if _, ok := r.rpoIndex[p]; !ok {
				continue
			}
			runner := p
			for runner != r.idom[b] {
				r.domFront[runner] = appendUnique(r.domFront[runner], b)
				runner = r.idom[runner]
			}
		}
	}
}

func (r *Result) computeDomTree(rpo []*ir.BasicBlock, entry *ir.BasicBlock) {
	for _, b := range rpo {
		if b == entry {
			continue
		}
		parent := r.idom[b]
		r.domSucc[parent] = append(r.domSucc[parent], b)
	}
}

func appendUnique(list []*ir.BasicBlock, b *ir.BasicBlock) []*ir.BasicBlock {
	for _, x := range list {
		if x == b {
			return list
		}
	}
	return append(list, b)
}
