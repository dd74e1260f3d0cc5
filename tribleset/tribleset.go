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

// Package tribleset implements the six-index in-memory dataset: one
// PATCH per entity/attribute/value permutation, all sharing the same
// leaves, so storage cost is roughly six times the inner-node
// overhead rather than six times the data.
package tribleset

import (
	"fmt"

	"github.com/triblespace/tribles-go/patch"
	"github.com/triblespace/tribles-go/trible"
)

// TribleSet holds the same set of tribles indexed under all six
// orderings. It is immutable: Insert, Union, Intersection and
// Difference all return a new TribleSet, sharing storage with their
// inputs via PATCH's own copy-on-write.
type TribleSet struct {
	indices [6]*patch.PATCH
}

// New returns an empty TribleSet.
func New() *TribleSet {
	var ts TribleSet
	for i, o := range trible.Orderings {
		ts.indices[i] = patch.New(o)
	}
	return &ts
}

// indexOf returns the slot in TribleSet.indices for ordering o.
func indexOf(o *trible.Ordering) int {
	for i, candidate := range trible.Orderings {
		if candidate == o {
			return i
		}
	}
	panic(fmt.Sprintf("tribleset: %s is not one of the six standard orderings", o))
}

// Index returns the PATCH backing ordering o. This is the low-level
// accessor the query package's pattern constraints use to look up
// candidates; most callers should use Insert/Iter/Union/Intersection/
// Difference instead.
func (ts *TribleSet) Index(o *trible.Ordering) *patch.PATCH {
	return ts.indices[indexOf(o)]
}

// Insert returns a new TribleSet with t added to all six indices. The
// six new leaves all point at the same *trible.Trible (see
// PATCH.InsertShared), so t's 64 bytes are stored once, not six
// times; inserting a trible already present is a no-op.
func (ts *TribleSet) Insert(t trible.Trible) *TribleSet {
	var next TribleSet
	shared := &t
	for i, idx := range ts.indices {
		next.indices[i] = idx.InsertShared(shared)
	}
	return &next
}

// Len returns the number of distinct tribles in the set.
func (ts *TribleSet) Len() uint64 {
	return ts.indices[0].LeafCount()
}

// Iter returns a pull iterator over every trible, in byte-ascending
// order under ordering o (defaults to EAV semantics if o is nil).
func (ts *TribleSet) Iter(o *trible.Ordering) *patch.Iterator {
	if o == nil {
		o = trible.EAV
	}
	return ts.Index(o).Iterate()
}

func (ts *TribleSet) pointwise(other *TribleSet, op func(a, b *patch.PATCH) *patch.PATCH) *TribleSet {
	var next TribleSet
	for i := range ts.indices {
		next.indices[i] = op(ts.indices[i], other.indices[i])
	}
	return &next
}

// Union returns a new TribleSet containing every trible in ts or
// other.
func (ts *TribleSet) Union(other *TribleSet) *TribleSet {
	return ts.pointwise(other, (*patch.PATCH).Union)
}

// Intersection returns a new TribleSet containing every trible in
// both ts and other.
func (ts *TribleSet) Intersection(other *TribleSet) *TribleSet {
	return ts.pointwise(other, (*patch.PATCH).Intersection)
}

// Difference returns a new TribleSet containing every trible in ts
// that is not in other.
func (ts *TribleSet) Difference(other *TribleSet) *TribleSet {
	return ts.pointwise(other, (*patch.PATCH).Difference)
}
