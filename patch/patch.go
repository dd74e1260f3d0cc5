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

// Package patch implements the Persistent Adaptive Trie with Cuckoo-
// compressed child tables and Hash-maintenance (PATCH) that backs
// every index in this module. A PATCH is parameterised on a
// trible.Ordering: all keys inserted into one PATCH must be 64-byte
// tribles compared under that single ordering.
package patch

import (
	"fmt"

	"github.com/triblespace/tribles-go/trible"
)

// PATCH is a persistent, copy-on-write trie over 64-byte tribles,
// keyed under a single trible.Ordering. The zero value is not valid;
// use New.
type PATCH struct {
	ordering *trible.Ordering
	root     *node
}

// New returns an empty PATCH keyed under o.
func New(o *trible.Ordering) *PATCH {
	return &PATCH{ordering: o}
}

// Ordering returns the ordering this PATCH is keyed under.
func (p *PATCH) Ordering() *trible.Ordering { return p.ordering }

// Clone returns a PATCH sharing all of p's nodes. Mutating the clone
// (via Insert) never affects p, and vice versa: both share storage
// until one of them diverges, at which point only the nodes on the
// path to the change are copied.
func (p *PATCH) Clone() *PATCH {
	return &PATCH{ordering: p.ordering, root: p.root}
}

// Insert returns a new PATCH with key added. p itself is unchanged.
// Inserting a key already present is a no-op (the returned PATCH
// shares p's root).
func (p *PATCH) Insert(key trible.Trible) *PATCH {
	return p.InsertShared(&key)
}

// InsertShared behaves like Insert, but threads key itself into any
// new leaf instead of copying it. A caller that inserts the same
// trible into several PATCHes -- TribleSet.Insert is the only one --
// can pass the same *trible.Trible to each PATCH's InsertShared so
// every one of them ends up with a leaf pointing at that single
// 64-byte allocation rather than each holding its own copy.
func (p *PATCH) InsertShared(key *trible.Trible) *PATCH {
	newRoot := insertNode(p.ordering, p.root, 0, key)
	return &PATCH{ordering: p.ordering, root: newRoot}
}

// Contains reports whether key has been inserted.
func (p *PATCH) Contains(key trible.Trible) bool {
	n := p.root
	d := 0
	for n != nil {
		for d < n.endDepth {
			if byteAt(p.ordering, d, n.prefix) != byteAt(p.ordering, d, &key) {
				return false
			}
			d++
		}
		if n.endDepth == trible.Size {
			return true
		}
		child, ok := n.table.Lookup(byteAt(p.ordering, d, &key))
		if !ok {
			return false
		}
		n = child.(*node)
	}
	return false
}

// LeafCount returns the number of tribles in the whole PATCH.
func (p *PATCH) LeafCount() uint64 {
	if p.root == nil {
		return 0
	}
	return p.root.leafCount
}

// LeafCountPrefix returns the number of tribles whose key (in this
// PATCH's ordering) starts with prefix.
func (p *PATCH) LeafCountPrefix(prefix []byte) uint64 {
	n := findNode(p.ordering, p.root, prefix)
	if n == nil {
		return 0
	}
	return n.leafCount
}

// SegmentCount returns the number of distinct keys in the subtree
// whose segment boundary falls at len(prefix). len(prefix) must equal
// one of the ordering's three segment boundaries (16, 32 or 64 under
// EAV; see SegmentCountAt for other orderings); it is the
// constant-time cardinality estimate the query engine uses.
func (p *PATCH) SegmentCount(prefix []byte) (uint64, error) {
	return p.SegmentCountAt(prefix, len(prefix))
}

// SegmentCountAt returns the number of distinct combinations of bytes
// [0,boundary) among keys starting with prefix. boundary must be one
// of this PATCH's ordering's three segment boundaries (trible.
// SegmentationOf(p.Ordering()).Boundaries, which are permuted and
// hold different depths per ordering -- e.g. VAE's are {64,48,32},
// not the canonical {16,32,64}) and must be >= len(prefix); this is
// what lets a pattern constraint estimate the cardinality of a
// variable occupying the segment right after an already-bound prefix,
// without prefix itself reaching that boundary.
func (p *PATCH) SegmentCountAt(prefix []byte, boundary int) (uint64, error) {
	seg := trible.SegmentationOf(p.ordering)
	if !seg.IsSegmentBoundary(boundary) {
		return 0, fmt.Errorf("patch: %d is not a segment boundary for ordering %s", boundary, p.ordering)
	}
	if boundary < len(prefix) {
		return 0, fmt.Errorf("patch: boundary %d precedes prefix length %d", boundary, len(prefix))
	}
	n := findNode(p.ordering, p.root, prefix)
	if n == nil {
		return 0, nil
	}
	return segmentCountAt(seg, n, boundary), nil
}

// Infixes enumerates, for every key starting with prefix, the bytes
// at depth range [len(prefix), len(prefix)+width), deduplicated and
// sorted ascending.
func (p *PATCH) Infixes(prefix []byte, width int) [][]byte {
	return infixes(p.ordering, p.root, prefix, len(prefix), len(prefix)+width)
}

// Iterate returns a pull iterator over every trible in the PATCH, in
// byte-ascending order under this PATCH's ordering.
func (p *PATCH) Iterate() *Iterator {
	return newIterator(p.root)
}

// IteratePrefix returns a pull iterator over every trible whose key
// starts with prefix.
func (p *PATCH) IteratePrefix(prefix []byte) *Iterator {
	return newIterator(findNode(p.ordering, p.root, prefix))
}

// Union returns a new PATCH containing every key in p or other (or
// both). p and other must share the same ordering.
func (p *PATCH) Union(other *PATCH) *PATCH {
	p.requireSameOrdering(other)
	return &PATCH{ordering: p.ordering, root: unionNode(p.ordering, p.root, other.root, 0)}
}

// Intersection returns a new PATCH containing every key in both p and
// other.
func (p *PATCH) Intersection(other *PATCH) *PATCH {
	p.requireSameOrdering(other)
	return &PATCH{ordering: p.ordering, root: intersectNode(p.ordering, p.root, other.root, 0)}
}

// Difference returns a new PATCH containing every key in p that is
// not in other.
func (p *PATCH) Difference(other *PATCH) *PATCH {
	p.requireSameOrdering(other)
	return &PATCH{ordering: p.ordering, root: differenceNode(p.ordering, p.root, other.root, 0)}
}

func (p *PATCH) requireSameOrdering(other *PATCH) {
	if p.ordering != other.ordering {
		panic("patch: set operation between PATCHes with different orderings")
	}
}

// DebugString renders a short human-readable summary of the root
// node, useful when a test assertion about leaf/segment counts or
// the rolling hash fails.
func (p *PATCH) DebugString() string {
	if p.root == nil {
		return "patch(empty)"
	}
	n := p.root
	return fmt.Sprintf("patch(ordering=%s leaves=%d depth=[%d,%d] hash=%x)",
		p.ordering, n.leafCount, n.startDepth, n.endDepth, n.hash)
}
