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

import "github.com/triblespace/tribles-go/trible"

// insertNode implements the insertion algorithm of spec section 4.2:
// it never mutates n or any node reachable from another root -- every
// node on the path from the root to the inserted key is copied fresh
// (cloneBranch / withStart), so a caller still holding the old root
// observes the tree exactly as it was before the call.
func insertNode(o *trible.Ordering, n *node, d int, key *trible.Trible) *node {
	if n == nil {
		return newLeaf(d, key)
	}

	m := lcp(o, n, d, key)

	if m == n.endDepth && n.endDepth == trible.Size {
		// Duplicate leaf: identical bytes all the way down.
		return n
	}

	if m == n.endDepth {
		// n is a branch and the key agrees with its whole prefix;
		// descend into (or create) the child for key's byte here.
		childByte := byteAt(o, m, key)
		existing, ok := n.table.Lookup(childByte)
		var next *node
		if !ok {
			next = newLeaf(m+1, key)
		} else {
			child := existing.(*node)
			next = insertNode(o, child, m+1, key)
			if next == child {
				// The key was already present below: nothing changed.
				return n
			}
		}
		branch := cloneBranch(n)
		insertChild(branch.table, childByte, next)
		recomputeBranch(branch, o)
		return branch
	}

	// Split: n and key diverge at m, strictly before n.endDepth.
	return makeBranch2(o, d, m, n.withStart(m+1), newLeaf(m+1, key))
}
