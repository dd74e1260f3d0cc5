// Copyright (C) 2024 Tribles Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package query

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/triblespace/tribles-go/trible"
	"github.com/triblespace/tribles-go/tribleset"
)

// Term is one slot of a Pattern: either a Variable to bind, or a
// constant of the slot's natural width (16 bytes for entity/
// attribute, 32 for value).
type Term struct {
	isVar    bool
	variable Variable
	constant []byte
}

// Var builds a Term that binds v to this slot.
func Var(v Variable) Term { return Term{isVar: true, variable: v} }

// Const builds a Term fixing this slot to value. value's length must
// match the slot's natural width.
func Const(value []byte) Term {
	return Term{constant: append([]byte(nil), value...)}
}

var slotWidth = [3]int{trible.EntitySize, trible.AttributeSize, trible.ValueSize}

// PatternConstraint binds the variables of a trible template against a
// TribleSet: Estimate and Propose pick whichever of the set's six
// orderings has the longest already-bound leading segment run, per
// spec.md's pattern-constraint permutation rule.
type PatternConstraint struct {
	set   *tribleset.TribleSet
	slots [3]Term // entity, attribute, value
	vars  *bitset.BitSet
}

// NewPattern builds a PatternConstraint over set, binding e, a and v
// to the entity, attribute and value slots of every matching trible.
func NewPattern(set *tribleset.TribleSet, e, a, v Term) (*PatternConstraint, error) {
	slots := [3]Term{e, a, v}
	for i, t := range slots {
		if t.isVar {
			continue
		}
		if len(t.constant) != slotWidth[i] {
			return nil, fmt.Errorf("query: slot %d constant is %d bytes, want %d", i, len(t.constant), slotWidth[i])
		}
	}
	vars := bitset.New(MaxVariables)
	for _, t := range slots {
		if t.isVar {
			vars.Set(uint(t.variable))
		}
	}
	return &PatternConstraint{set: set, slots: slots, vars: vars}, nil
}

// Variables implements Constraint.
func (p *PatternConstraint) Variables() *bitset.BitSet { return p.vars.Clone() }

// Influence implements Constraint: binding any variable in a pattern
// can sharpen the estimate of every other variable in the same
// pattern, since they all share the same underlying tribles.
func (p *PatternConstraint) Influence(v Variable) *bitset.BitSet {
	if !p.touches(v) {
		return bitset.New(MaxVariables)
	}
	out := p.vars.Clone()
	out.Clear(uint(v))
	return out
}

func (p *PatternConstraint) touches(v Variable) bool {
	for _, t := range p.slots {
		if t.isVar && t.variable == v {
			return true
		}
	}
	return false
}

func (p *PatternConstraint) slotOf(v Variable) int {
	for i, t := range p.slots {
		if t.isVar && t.variable == v {
			return i
		}
	}
	return -1
}

// slotBytes reports whether slot si is already pinned down, either by a
// constant or by a bound variable, and if so appends its bytes to buf.
func (p *PatternConstraint) slotBytes(si int, binding *Binding, buf []byte) ([]byte, bool) {
	t := p.slots[si]
	if !t.isVar {
		return append(buf, t.constant...), true
	}
	if !binding.IsBound(t.variable) {
		return buf, false
	}
	return append(buf, binding.Value(t.variable)[:slotWidth[si]]...), true
}

// bestOrdering finds, among the six orderings, the one whose slot
// sequence has the longest run of bound slots immediately preceding
// si, and returns that ordering, the bound prefix bytes, and the
// segment boundary si's own segment ends at.
func (p *PatternConstraint) bestOrdering(si int, binding *Binding) (*trible.Ordering, []byte, int) {
	var best *trible.Ordering
	var bestPrefix []byte
	bestLen := -1
	for _, o := range trible.Orderings {
		order := slotOrder(o)
		pos := -1
		for i, s := range order {
			if s == si {
				pos = i
				break
			}
		}
		var prefix []byte
		ok := true
		for j := 0; j < pos; j++ {
			var got bool
			prefix, got = p.slotBytes(order[j], binding, prefix)
			if !got {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if len(prefix) > bestLen {
			bestLen = len(prefix)
			best = o
			bestPrefix = prefix
		}
	}
	boundary := bestLen + slotWidth[si]
	return best, bestPrefix, boundary
}

func slotOrder(o *trible.Ordering) [3]int {
	var order [3]int
	i := 0
	for _, r := range o.String() {
		switch r {
		case 'E':
			order[i] = 0
		case 'A':
			order[i] = 1
		case 'V':
			order[i] = 2
		}
		i++
	}
	return order
}

// Estimate implements Constraint.
func (p *PatternConstraint) Estimate(v Variable, binding *Binding) uint64 {
	si := p.slotOf(v)
	if si < 0 {
		return Unbounded
	}
	o, prefix, boundary := p.bestOrdering(si, binding)
	n, err := p.set.Index(o).SegmentCountAt(prefix, boundary)
	if err != nil {
		panic(fmt.Sprintf("query: pattern estimate: %v", err))
	}
	return n
}

// Propose implements Constraint.
func (p *PatternConstraint) Propose(v Variable, binding *Binding, out [][]byte) [][]byte {
	si := p.slotOf(v)
	if si < 0 {
		return out
	}
	o, prefix, boundary := p.bestOrdering(si, binding)
	width := boundary - len(prefix)
	for _, infix := range p.set.Index(o).Infixes(prefix, width) {
		out = append(out, infix)
	}
	return out
}

// Confirm implements Constraint: a candidate survives only if the
// resulting full slot assignment (with v bound to it) occurs in the
// set, checked via the EAV index.
func (p *PatternConstraint) Confirm(v Variable, binding *Binding, candidates [][]byte) [][]byte {
	si := p.slotOf(v)
	if si < 0 {
		return candidates
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if p.matches(si, c, binding) {
			kept = append(kept, c)
		}
	}
	return kept
}

func (p *PatternConstraint) matches(si int, candidate []byte, binding *Binding) bool {
	var prefix []byte
	for i, t := range p.slots {
		if i == si {
			prefix = append(prefix, candidate...)
			continue
		}
		if !t.isVar {
			prefix = append(prefix, t.constant...)
			continue
		}
		if !binding.IsBound(t.variable) {
			return true // underconstrained slot: can't rule this candidate out yet.
		}
		prefix = append(prefix, binding.Value(t.variable)[:slotWidth[i]]...)
	}
	count, err := p.set.Index(trible.EAV).SegmentCountAt(prefix, trible.Size)
	if err != nil {
		panic(fmt.Sprintf("query: pattern confirm: %v", err))
	}
	return count > 0
}
