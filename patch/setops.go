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
	"github.com/triblespace/tribles-go/patch/cuckoo"
	"github.com/triblespace/tribles-go/trible"
)

func equalHash(a, b *node) bool {
	return a.hash == b.hash && a.leafCount == b.leafCount
}

// divergence finds where a and b's prefixes first differ, starting at
// d and never scanning past either node's own end. It returns the
// depth m and whichever of a.endDepth/b.endDepth is smaller (the
// "limit"): m==limit means the nodes still agree everywhere both of
// them have an opinion, so the answer depends on which one is deeper.
func divergence(o *trible.Ordering, a, b *node, d int) (m, limit int) {
	limit = a.endDepth
	if b.endDepth < limit {
		limit = b.endDepth
	}
	m = d
	for m < limit {
		if byteAt(o, m, a.prefix) != byteAt(o, m, b.prefix) {
			return m, limit
		}
		m++
	}
	return m, limit
}

func unionNode(o *trible.Ordering, a, b *node, d int) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if equalHash(a, b) {
		return a
	}
	m, limit := divergence(o, a, b, d)
	if m < limit {
		return makeBranch2(o, d, m, a.withStart(m+1), b.withStart(m+1))
	}
	switch {
	case a.endDepth == limit && b.endDepth == limit:
		if a.endDepth == trible.Size {
			// Both leaves, byte-identical: already equal sets.
			return a
		}
		return mergeBranches(o, d, m, a, b)
	case a.endDepth == limit:
		return descendUnionInto(o, d, m, a, b)
	default:
		return descendUnionInto(o, d, m, b, a)
	}
}

// mergeBranches unions two branches that both end exactly at depth m,
// combining their child tables key by key.
func mergeBranches(o *trible.Ordering, d, m int, a, b *node) *node {
	table := cuckoo.New()
	seen := map[byte]bool{}
	merge := func(key byte, child *node) {
		if seen[key] {
			return
		}
		seen[key] = true
		ac, inA := a.table.Lookup(key)
		other, inB := b.table.Lookup(key)
		var next *node
		if inA && inB {
			next = unionNode(o, ac.(*node), other.(*node), m+1)
		} else {
			next = child
		}
		insertChild(table, key, next)
	}
	a.table.Range(func(k byte, c cuckoo.Child) { merge(k, c.(*node)) })
	b.table.Range(func(k byte, c cuckoo.Child) {
		if !seen[k] {
			merge(k, c.(*node))
		}
	})
	branch := &node{prefix: a.prefix, startDepth: d, endDepth: m, table: table}
	recomputeBranch(branch, o)
	return branch
}

// descendUnionInto handles the case where shallow ends at depth m
// (its own endDepth) while deep continues past m: shallow's child at
// deep's m-byte (if any) is the only part of shallow that deep can
// overlap with.
func descendUnionInto(o *trible.Ordering, d, m int, shallow, deep *node) *node {
	branch := cloneBranch(shallow)
	childByte := byteAt(o, m, deep.prefix)
	existing, ok := branch.table.Lookup(childByte)
	var next *node
	if !ok {
		next = deep.withStart(m + 1)
	} else {
		next = unionNode(o, existing.(*node), deep.withStart(m+1), m+1)
	}
	insertChild(branch.table, childByte, next)
	branch.startDepth = d
	recomputeBranch(branch, o)
	return branch
}

func intersectNode(o *trible.Ordering, a, b *node, d int) *node {
	if a == nil || b == nil {
		return nil
	}
	if equalHash(a, b) {
		return a
	}
	m, limit := divergence(o, a, b, d)
	if m < limit {
		return nil
	}
	switch {
	case a.endDepth == limit && b.endDepth == limit:
		if a.endDepth == trible.Size {
			return a
		}
		return intersectBranches(o, d, m, a, b)
	case a.endDepth == limit:
		return descendIntersectInto(o, d, m, a, b)
	default:
		return descendIntersectInto(o, d, m, b, a)
	}
}

func intersectBranches(o *trible.Ordering, d, m int, a, b *node) *node {
	table := cuckoo.New()
	a.table.Range(func(k byte, c cuckoo.Child) {
		other, ok := b.table.Lookup(k)
		if !ok {
			return
		}
		res := intersectNode(o, c.(*node), other.(*node), m+1)
		if res == nil {
			return
		}
		insertChild(table, k, res)
	})
	return compress(o, d, m, table)
}

// descendIntersectInto handles the case where shallow ends at m and
// deep continues past it: the intersection can only live inside
// shallow's single child at deep's m-byte, so the result collapses to
// that recursive intersection reinterpreted at depth d (path
// compression -- there is no divergence left to justify a branch).
func descendIntersectInto(o *trible.Ordering, d, m int, shallow, deep *node) *node {
	child, ok := shallow.table.Lookup(byteAt(o, m, deep.prefix))
	if !ok {
		return nil
	}
	res := intersectNode(o, child.(*node), deep.withStart(m+1), m+1)
	if res == nil {
		return nil
	}
	return res.withStart(d)
}

func differenceNode(o *trible.Ordering, a, b *node, d int) *node {
	if a == nil {
		return nil
	}
	if b == nil {
		return a
	}
	if equalHash(a, b) {
		return nil
	}
	m, limit := divergence(o, a, b, d)
	if m < limit {
		// a and b's subtrees are disjoint at this depth; nothing
		// to remove from a.
		return a
	}
	switch {
	case a.endDepth == limit && b.endDepth == limit:
		if a.endDepth == trible.Size {
			return nil
		}
		return differenceBranches(o, d, m, a, b)
	case a.endDepth == limit:
		return differenceShallowA(o, d, m, a, b)
	default:
		return differenceDeepA(o, d, m, a, b)
	}
}

func differenceBranches(o *trible.Ordering, d, m int, a, b *node) *node {
	table := cuckoo.New()
	a.table.Range(func(k byte, c cuckoo.Child) {
		other, ok := b.table.Lookup(k)
		if !ok {
			insertChild(table, k, c.(*node))
			return
		}
		res := differenceNode(o, c.(*node), other.(*node), m+1)
		if res == nil {
			return
		}
		insertChild(table, k, res)
	})
	return compress(o, d, m, table)
}

// differenceShallowA handles a.endDepth==m<b.endDepth: b's subtree is
// confined to a's single child at b's m-byte, so only that child is
// touched; every other child of a survives unconditionally.
func differenceShallowA(o *trible.Ordering, d, m int, a, b *node) *node {
	childByte := byteAt(o, m, b.prefix)
	existing, ok := a.table.Lookup(childByte)
	if !ok {
		return a
	}
	res := differenceNode(o, existing.(*node), b.withStart(m+1), m+1)
	branch := cloneBranch(a)
	if res == nil {
		branch.table.Remove(childByte)
	} else {
		insertChild(branch.table, childByte, res)
	}
	branch.startDepth = d
	return compressBranch(o, branch)
}

// differenceDeepA handles b.endDepth==m<a.endDepth: a's entire
// subtree is confined to b's single child at a's m-byte. If b has no
// such child, b cannot remove anything from a.
func differenceDeepA(o *trible.Ordering, d, m int, a, b *node) *node {
	childByte := byteAt(o, m, a.prefix)
	other, ok := b.table.Lookup(childByte)
	if !ok {
		return a
	}
	res := differenceNode(o, a.withStart(m+1), other.(*node), m+1)
	if res == nil {
		return nil
	}
	return res.withStart(d)
}

// compress builds a branch from a freshly-populated table, collapsing
// it per the path-compression invariant: zero children is the empty
// set, one child absorbs the branch entirely, two or more children
// keep the branch materialised.
func compress(o *trible.Ordering, d, m int, table *cuckoo.Table) *node {
	branch := &node{startDepth: d, endDepth: m, table: table}
	return compressBranch(o, branch)
}

func compressBranch(o *trible.Ordering, branch *node) *node {
	switch branch.table.Len() {
	case 0:
		return nil
	case 1:
		var only *node
		branch.table.Range(func(_ byte, c cuckoo.Child) { only = c.(*node) })
		return only.withStart(branch.startDepth)
	default:
		var first *node
		branch.table.Range(func(_ byte, c cuckoo.Child) {
			if first == nil {
				first = c.(*node)
			}
		})
		branch.prefix = first.prefix
		recomputeBranch(branch, o)
		return branch
	}
}
