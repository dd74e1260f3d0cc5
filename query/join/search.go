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

// Package join implements the depth-first, worst-case-optimal search
// over a query.Constraint: at every step it binds whichever variable
// currently has the smallest candidate estimate, so the number of
// intermediate tuples it ever materialises is bounded by the AGM
// bound of the query (the "Atreides family" guarantee).
package join

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/triblespace/tribles-go/query"
)

// Options configures a Search. The zero value is ready to use.
type Options struct {
	// Logf, if set, receives printf-style diagnostic lines: which
	// variable is bound at each step and from how many candidates. Nil is a silent
	// no-op, matching the rest of this module's ambient logging idiom.
	Logf func(format string, args ...interface{})
}

func (o Options) logf(format string, args ...interface{}) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

// frame is one level of the search stack: the variable bound at this
// depth, its surviving candidate list, and a cursor into it.
type frame struct {
	v          query.Variable
	candidates [][]byte
	cursor     int
}

// Search drives a pull-iteration depth-first join over a fixed set of
// head variables. Create one with NewSearch and pull results with
// Next/Tuple; dropping it (letting it become unreachable) releases all
// search state, matching the "no explicit cancellation" contract.
type Search struct {
	constraint query.Constraint
	vars       []query.Variable
	opts       Options

	binding *query.Binding
	stack   []frame

	// estimate caches the last computed estimate per variable;
	// touched marks which entries are stale and need recomputing
	// before the next variable-choice step.
	estimate map[query.Variable]uint64
	touched  map[query.Variable]bool

	// buffers are the reusable per-variable proposal buffers: index i
	// holds the buffer used the last time vars[i] was bound, grown
	// (never freed) across backtracking.
	buffers [][][]byte

	started bool
}

// NewSearch builds a Search that will enumerate bindings for vars
// satisfying constraint.
func NewSearch(constraint query.Constraint, vars []query.Variable, opts Options) *Search {
	s := &Search{
		constraint: constraint,
		vars:       append([]query.Variable(nil), vars...),
		opts:       opts,
		binding:    query.NewBinding(),
		estimate:   make(map[query.Variable]uint64, len(vars)),
		touched:    make(map[query.Variable]bool, len(vars)),
		buffers:    make([][][]byte, len(vars)),
	}
	for _, v := range s.vars {
		s.touched[v] = true
	}
	return s
}

// Binding exposes the live binding; valid to read only between a
// successful Next and the following Next call.
func (s *Search) Binding() *query.Binding { return s.binding }

// Tuple copies the current binding's head values into a fresh slice of
// 32-byte values, one per variable passed to NewSearch, in that order.
func (s *Search) Tuple() [][]byte {
	out := make([][]byte, len(s.vars))
	for i, v := range s.vars {
		val := make([]byte, len(s.binding.Value(v)))
		copy(val, s.binding.Value(v))
		out[i] = val
	}
	return out
}

func (s *Search) refreshEstimates() {
	for v := range s.touched {
		if s.binding.IsBound(v) {
			delete(s.touched, v)
			continue
		}
		s.estimate[v] = s.constraint.Estimate(v, s.binding)
	}
	maps.Clear(s.touched)
}

// chooseVariable picks the unbound variable minimising the tuple
// (ceil(log2(estimate+1)), -|influence(v)|, v): smallest candidate set
// first, ties broken toward the variable that invalidates the most
// other estimates, remaining ties broken toward the lower variable
// index.
func (s *Search) chooseVariable() (query.Variable, int) {
	bestIdx := -1
	var bestVar query.Variable
	var bestCost int
	var bestInfluence int
	for i, v := range s.vars {
		if s.binding.IsBound(v) {
			continue
		}
		cost := log2CeilEstimate(s.estimate[v])
		influence := int(s.constraint.Influence(v).Count())
		if bestIdx == -1 ||
			cost < bestCost ||
			(cost == bestCost && influence > bestInfluence) ||
			(cost == bestCost && influence == bestInfluence && v < bestVar) {
			bestIdx, bestVar, bestCost, bestInfluence = i, v, cost, influence
		}
	}
	return bestVar, bestIdx
}

func log2CeilEstimate(estimate uint64) int {
	return query.Log2CeilEstimate(estimate)
}

// allBound reports whether every head variable is currently bound.
func (s *Search) allBound() bool {
	for _, v := range s.vars {
		if !s.binding.IsBound(v) {
			return false
		}
	}
	return true
}

// Next advances the search to the next satisfying tuple, returning
// false once the search space is exhausted. Call Tuple to read the
// result after a successful Next.
func (s *Search) Next() bool {
	if !s.started {
		s.started = true
		if s.allBound() {
			// Degenerate zero-variable query: exactly one empty tuple.
			return true
		}
	} else if !s.backtrack() {
		return false
	}

	for {
		if s.allBound() {
			return true
		}
		s.refreshEstimates()
		v, idx := s.chooseVariable()
		buf := growBuffer(s.buffers[idx], 8)
		buf = s.constraint.Propose(v, s.binding, buf)
		buf = s.constraint.Confirm(v, s.binding, buf)
		s.buffers[idx] = buf
		if len(buf) == 0 {
			if !s.backtrack() {
				return false
			}
			continue
		}
		s.bindNext(v, idx, buf)
	}
}

func (s *Search) bindNext(v query.Variable, idx int, candidates [][]byte) {
	s.opts.logf("join: binding var %d from %d candidates", v, len(candidates))
	s.binding.Bind(v, candidates[0])
	s.stack = append(s.stack, frame{v: v, candidates: candidates, cursor: 1})
	s.markTouched(v)
}

func (s *Search) markTouched(v query.Variable) {
	influence := s.constraint.Influence(v)
	for _, w := range s.vars {
		if influence.Test(uint(w)) {
			s.touched[w] = true
		}
	}
}

// backtrack unbinds the top frame's variable, either advancing it to
// its next candidate or popping it (and repeating on the frame
// beneath) if it is exhausted. Returns false once the stack empties,
// meaning the search space is exhausted.
func (s *Search) backtrack() bool {
	for len(s.stack) > 0 {
		top := &s.stack[len(s.stack)-1]
		s.binding.Unbind(top.v)
		if top.cursor < len(top.candidates) {
			s.binding.Bind(top.v, top.candidates[top.cursor])
			top.cursor++
			s.markTouched(top.v)
			return true
		}
		s.stack = s.stack[:len(s.stack)-1]
	}
	return false
}

// growBuffer is a small helper kept in the teacher's idiom of reusing
// slice capacity across calls rather than reallocating it.
func growBuffer(buf [][]byte, n int) [][]byte {
	return slices.Grow(buf[:0], n)
}
