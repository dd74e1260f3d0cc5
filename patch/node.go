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

package patch

import (
	"fmt"

	"github.com/triblespace/tribles-go/patch/cuckoo"
	"github.com/triblespace/tribles-go/trible"
)

// node is a PATCH trie node. At endDepth == trible.Size it is a leaf
// holding exactly one trible (pointed to by prefix); otherwise it is a
// branch with a cuckoo-compressed child table keyed on the byte at
// endDepth.
//
// prefix always points at the canonical (EAV) bytes of *some* leaf
// reachable from this node -- for a branch that means an arbitrary
// representative, since path compression guarantees every leaf in the
// subtree agrees on bytes [0, endDepth) under this node's ordering.
// It is a pointer rather than an embedded value so that the six
// per-ordering PATCHes in a TribleSet can all point a leaf at the
// exact same *trible.Trible: inserting one trible allocates its
// 64-byte payload once, not six times (see PATCH.InsertShared).
type node struct {
	prefix *trible.Trible

	startDepth int
	endDepth   int

	leafCount     uint64
	segmentCounts [3]uint64 // indexed by Segmentation.Boundaries position
	hash          rollingHash

	table *cuckoo.Table // nil for leaves
}

func (n *node) isLeaf() bool { return n.table == nil }

func newLeaf(start int, key *trible.Trible) *node {
	return &node{
		prefix:        key,
		startDepth:    start,
		endDepth:      trible.Size,
		leafCount:     1,
		segmentCounts: [3]uint64{1, 1, 1},
		hash:          hashLeaf(key),
	}
}

// withStart returns n reinterpreted as starting at a new (deeper)
// depth, sharing n's table and prefix. This is how a node that used
// to be reached directly from the root is "pushed down" beneath a new
// branch created by a key split, without copying its subtree.
func (n *node) withStart(start int) *node {
	if n.startDepth == start {
		return n
	}
	clone := *n
	clone.startDepth = start
	// clone.table (if any) is shared with n: a node's table is only
	// ever mutated via cloneBranch, which allocates a fresh table
	// first, so two *node wrappers pointing at the same table are
	// always safe as long as neither mutates it directly.
	return &clone
}

func byteAt(o *trible.Ordering, depth int, t *trible.Trible) byte {
	return t[o.ByteAt(depth)]
}

// lcp returns the depth at which key first diverges from n.prefix,
// starting the scan at d and never exceeding n.endDepth.
func lcp(o *trible.Ordering, n *node, d int, key *trible.Trible) int {
	m := d
	for m < n.endDepth {
		if byteAt(o, m, n.prefix) != byteAt(o, m, key) {
			return m
		}
		m++
	}
	return m
}

// cloneBranch produces a mutable copy of a branch node: a fresh
// cuckoo table so the original (possibly still reachable from another
// PATCH root) is left untouched.
func cloneBranch(n *node) *node {
	clone := *n
	clone.table = n.table.Clone()
	return &clone
}

// makeBranch2 builds a two-child branch at depth m from two already-
// diverging nodes a and b (diverging means byteAt(o,m,a)!=byteAt(o,m,b)).
func makeBranch2(o *trible.Ordering, d, m int, a, b *node) *node {
	branch := &node{
		prefix:     a.prefix,
		startDepth: d,
		endDepth:   m,
		table:      cuckoo.New(),
	}
	insertChild(branch.table, byteAt(o, m, a.prefix), a)
	insertChild(branch.table, byteAt(o, m, b.prefix), b)
	recomputeBranch(branch, o)
	return branch
}

func insertChild(t *cuckoo.Table, key byte, child *node) {
	for {
		err := t.Insert(key, child)
		if err == nil {
			return
		}
		if t.Capacity() == cuckoo.MaxCapacity {
			panic(fmt.Sprintf("patch: cuckoo table stuck at full capacity: %v", err))
		}
		t.Grow()
	}
}

// recomputeBranch derives leafCount, segmentCounts and hash for a
// branch from its current children. It must be called after any
// mutation to branch.table.
func recomputeBranch(branch *node, o *trible.Ordering) {
	seg := trible.SegmentationOf(o)
	var lc uint64
	var h rollingHash
	var sc [3]uint64
	branch.table.Range(func(_ byte, c cuckoo.Child) {
		child := c.(*node)
		lc += child.leafCount
		h = h.xor(child.hash)
		for i, boundary := range seg.Boundaries {
			sc[i] += segmentCountAt(seg, child, boundary)
		}
	})
	branch.leafCount = lc
	branch.hash = h
	branch.segmentCounts = sc
}

// segmentCountAt is the constant-time recursive rule: if the queried
// boundary falls within (or at the end of) n's compressed prefix
// range, every leaf in n's subtree necessarily agrees on bytes up to
// that boundary, so there is exactly one distinct value -- otherwise
// n's own cached segmentCounts already holds the answer (computed the
// same way, bottom-up, when n was last built).
func segmentCountAt(seg trible.Segmentation, n *node, boundary int) uint64 {
	if boundary <= n.endDepth {
		return 1
	}
	idx := boundaryIndex(seg, boundary)
	return n.segmentCounts[idx]
}

// boundaryIndex maps a boundary depth to its segmentCounts slot by
// finding which canonical segment (entity, attribute or value) ends at
// that depth under seg -- seg.Boundaries is permuted and holds
// different depth values per ordering (e.g. VAE's is {64,48,32}, not
// the canonical {16,32,64}), so the depth alone doesn't say which slot
// without consulting the owning ordering's Segmentation.
func boundaryIndex(seg trible.Segmentation, boundary int) int {
	for i, b := range seg.Boundaries {
		if b == boundary {
			return i
		}
	}
	panic(fmt.Sprintf("patch: %d is not a segment boundary", boundary))
}
