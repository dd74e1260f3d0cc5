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
	"math"

	"github.com/bits-and-blooms/bitset"
)

// Unbounded is the estimate a Constraint reports for a variable it
// does not touch at all.
const Unbounded = math.MaxUint64

// Constraint is the join engine's view of a query: something that can
// bound the candidates for one variable given the current values of
// the others. PatternConstraint, And, Or and Mask are the concrete
// implementations; the join package only depends on this interface.
type Constraint interface {
	// Variables returns the set of variable indices this constraint
	// touches.
	Variables() *bitset.BitSet

	// Estimate returns a cardinality bound on the values v could
	// still take given binding. It must be finite whenever v is in
	// Variables() and unbound in binding, and Unbounded otherwise.
	Estimate(v Variable, binding *Binding) uint64

	// Propose appends candidate 32-byte values for v to out and
	// returns the extended slice.
	Propose(v Variable, binding *Binding, out [][]byte) [][]byte

	// Confirm filters candidates in place, returning the subslice of
	// entries that satisfy this constraint given binding.
	Confirm(v Variable, binding *Binding, candidates [][]byte) [][]byte

	// Influence returns the set of variables whose estimate may
	// change once v is bound.
	Influence(v Variable) *bitset.BitSet
}

// log2Ceil returns ceil(log2(n)), and 0 for n == 0. Log2CeilEstimate
// applies it to estimate+1 for join's variable-choice tuple.
func log2Ceil(n uint64) int {
	if n == 0 {
		return 0
	}
	bits := 0
	for v := n; v > 0; v >>= 1 {
		bits++
	}
	if n&(n-1) == 0 {
		return bits - 1
	}
	return bits
}

// Log2CeilEstimate is the join engine's cost metric ⌈log2(estimate+1)⌉
// for a raw cardinality estimate.
func Log2CeilEstimate(estimate uint64) int {
	if estimate == Unbounded {
		return log2Ceil(estimate)
	}
	return log2Ceil(estimate + 1)
}
