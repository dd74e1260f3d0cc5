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
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// And is the intersection of its children: a tuple satisfies And iff
// it satisfies every child.
type And struct {
	children []Constraint
}

// NewAnd builds an And constraint over children.
func NewAnd(children ...Constraint) *And {
	return &And{children: children}
}

// Variables implements Constraint: the union of every child's.
func (a *And) Variables() *bitset.BitSet {
	out := bitset.New(MaxVariables)
	for _, c := range a.children {
		out.InPlaceUnion(c.Variables())
	}
	return out
}

// Estimate implements Constraint: the tightest (minimum) bound among
// children that touch v, since every child must agree.
func (a *And) Estimate(v Variable, binding *Binding) uint64 {
	best := uint64(Unbounded)
	for _, c := range a.children {
		if !c.Variables().Test(uint(v)) {
			continue
		}
		if e := c.Estimate(v, binding); e < best {
			best = e
		}
	}
	return best
}

// tightest returns the child touching v with the smallest Estimate.
func (a *And) tightest(v Variable, binding *Binding) Constraint {
	var best Constraint
	bestEstimate := uint64(Unbounded)
	for _, c := range a.children {
		if !c.Variables().Test(uint(v)) {
			continue
		}
		if e := c.Estimate(v, binding); best == nil || e < bestEstimate {
			best = c
			bestEstimate = e
		}
	}
	return best
}

// Propose implements Constraint: candidates come from the child with
// the smallest estimate on v, then every other touching child filters
// them via Confirm.
func (a *And) Propose(v Variable, binding *Binding, out [][]byte) [][]byte {
	driver := a.tightest(v, binding)
	if driver == nil {
		return out
	}
	start := len(out)
	out = driver.Propose(v, binding, out)
	candidates := out[start:]
	for _, c := range a.children {
		if c == driver || !c.Variables().Test(uint(v)) {
			continue
		}
		candidates = c.Confirm(v, binding, candidates)
	}
	return out[:start+len(candidates)]
}

// Confirm implements Constraint: a candidate survives only if every
// touching child confirms it.
func (a *And) Confirm(v Variable, binding *Binding, candidates [][]byte) [][]byte {
	for _, c := range a.children {
		if !c.Variables().Test(uint(v)) {
			continue
		}
		candidates = c.Confirm(v, binding, candidates)
	}
	return candidates
}

// Influence implements Constraint: the union of every child's
// influence set for v.
func (a *And) Influence(v Variable) *bitset.BitSet {
	out := bitset.New(MaxVariables)
	for _, c := range a.children {
		out.InPlaceUnion(c.Influence(v))
	}
	return out
}

// Or is the union of its children: a tuple satisfies Or iff it
// satisfies at least one child.
type Or struct {
	children []Constraint
}

// NewOr builds an Or constraint over children.
func NewOr(children ...Constraint) *Or {
	return &Or{children: children}
}

// Variables implements Constraint.
func (o *Or) Variables() *bitset.BitSet {
	out := bitset.New(MaxVariables)
	for _, c := range o.children {
		out.InPlaceUnion(c.Variables())
	}
	return out
}

// Estimate implements Constraint: the sum over children, since the
// union can be at most as large as the total of its parts.
func (o *Or) Estimate(v Variable, binding *Binding) uint64 {
	var sum uint64
	touched := false
	for _, c := range o.children {
		if !c.Variables().Test(uint(v)) {
			continue
		}
		touched = true
		sum += c.Estimate(v, binding)
	}
	if !touched {
		return Unbounded
	}
	return sum
}

// Propose implements Constraint: the deduplicated union of every
// touching child's proposals.
func (o *Or) Propose(v Variable, binding *Binding, out [][]byte) [][]byte {
	start := len(out)
	for _, c := range o.children {
		if !c.Variables().Test(uint(v)) {
			continue
		}
		out = c.Propose(v, binding, out)
	}
	fresh := out[start:]
	sort.Slice(fresh, func(i, j int) bool { return string(fresh[i]) < string(fresh[j]) })
	deduped := fresh[:0]
	for i, c := range fresh {
		if i == 0 || string(c) != string(fresh[i-1]) {
			deduped = append(deduped, c)
		}
	}
	return out[:start+len(deduped)]
}

// Confirm implements Constraint: a candidate survives if any touching
// child confirms it.
func (o *Or) Confirm(v Variable, binding *Binding, candidates [][]byte) [][]byte {
	kept := candidates[:0]
	for _, c := range candidates {
		ok := false
		for _, child := range o.children {
			if !child.Variables().Test(uint(v)) {
				continue
			}
			if len(child.Confirm(v, binding, [][]byte{c})) > 0 {
				ok = true
				break
			}
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return kept
}

// Influence implements Constraint: the union of every child's
// influence set for v.
func (o *Or) Influence(v Variable) *bitset.BitSet {
	out := bitset.New(MaxVariables)
	for _, c := range o.children {
		out.InPlaceUnion(c.Influence(v))
	}
	return out
}

// Mask hides a set of variables from the rest of the query while still
// evaluating its inner constraint against them: Variables/Estimate/
// Propose/Confirm/Influence never report the masked variables, but the
// inner constraint still sees them bound wherever the outer binding
// happens to carry a value for them.
type Mask struct {
	inner  Constraint
	hidden *bitset.BitSet
}

// NewMask hides hiddenVars from inner.
func NewMask(inner Constraint, hiddenVars ...Variable) *Mask {
	hidden := bitset.New(MaxVariables)
	for _, v := range hiddenVars {
		hidden.Set(uint(v))
	}
	return &Mask{inner: inner, hidden: hidden}
}

// Variables implements Constraint.
func (m *Mask) Variables() *bitset.BitSet {
	out := m.inner.Variables().Clone()
	out.InPlaceDifference(m.hidden)
	return out
}

// Estimate implements Constraint.
func (m *Mask) Estimate(v Variable, binding *Binding) uint64 {
	if m.hidden.Test(uint(v)) {
		return Unbounded
	}
	return m.inner.Estimate(v, binding)
}

// Propose implements Constraint.
func (m *Mask) Propose(v Variable, binding *Binding, out [][]byte) [][]byte {
	if m.hidden.Test(uint(v)) {
		return out
	}
	return m.inner.Propose(v, binding, out)
}

// Confirm implements Constraint.
func (m *Mask) Confirm(v Variable, binding *Binding, candidates [][]byte) [][]byte {
	if m.hidden.Test(uint(v)) {
		return candidates
	}
	return m.inner.Confirm(v, binding, candidates)
}

// Influence implements Constraint.
func (m *Mask) Influence(v Variable) *bitset.BitSet {
	out := m.inner.Influence(v).Clone()
	out.InPlaceDifference(m.hidden)
	return out
}
