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
	"sort"

	"github.com/triblespace/tribles-go/trible"
)

// Iterator is a pull iterator over a PATCH's leaves, byte-ascending
// in the PATCH's own ordering. Dropping it (letting it become
// unreachable) releases all of its state; there is no Close method
// because it holds no OS resources, only Go heap frames.
type Iterator struct {
	frames []frame
	cur    trible.Trible
}

type frame struct {
	n    *node
	keys []byte
	idx  int
}

// Next advances the iterator and reports whether a leaf was found.
// Call Trible to read the current leaf after a successful Next.
func (it *Iterator) Next() bool {
	for len(it.frames) > 0 {
		top := &it.frames[len(it.frames)-1]
		if top.n.isLeaf() {
			it.cur = *top.n.prefix
			it.frames = it.frames[:len(it.frames)-1]
			return true
		}
		if top.idx >= len(top.keys) {
			it.frames = it.frames[:len(it.frames)-1]
			continue
		}
		key := top.keys[top.idx]
		top.idx++
		child, _ := top.n.table.Lookup(key)
		it.push(child.(*node))
	}
	return false
}

func (it *Iterator) push(n *node) {
	f := frame{n: n}
	if !n.isLeaf() {
		f.keys = n.table.Keys()
	}
	it.frames = append(it.frames, f)
}

// Trible returns the leaf the most recent successful Next call
// landed on.
func (it *Iterator) Trible() trible.Trible { return it.cur }

func newIterator(root *node) *Iterator {
	it := &Iterator{}
	if root != nil {
		it.push(root)
	}
	return it
}

// findNode descends from root following prefix (interpreted as the
// ordering's depth-order bytes), returning the node whose range
// covers depth len(prefix), or nil if no leaf has that prefix.
func findNode(o *trible.Ordering, root *node, prefix []byte) *node {
	n := root
	d := 0
	for d < len(prefix) {
		if n == nil {
			return nil
		}
		if d < n.endDepth {
			if byteAt(o, d, n.prefix) != prefix[d] {
				return nil
			}
			d++
			continue
		}
		child, ok := n.table.Lookup(prefix[d])
		if !ok {
			return nil
		}
		n = child.(*node)
	}
	return n
}

// Infixes enumerates, for every leaf whose key (in this PATCH's
// ordering) starts with prefix, the bytes at tree-depth range
// [start,end), deduplicated. prefix's length must be <= start.
func infixes(o *trible.Ordering, root *node, prefix []byte, start, end int) [][]byte {
	n := findNode(o, root, prefix)
	if n == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out [][]byte
	collectInfixes(o, n, start, end, seen, &out)
	sort.Slice(out, func(i, j int) bool { return string(out[i]) < string(out[j]) })
	return out
}

func collectInfixes(o *trible.Ordering, n *node, start, end int, seen map[string]struct{}, out *[][]byte) {
	if n.endDepth >= end {
		buf := make([]byte, end-start)
		for depth := start; depth < end; depth++ {
			buf[depth-start] = byteAt(o, depth, n.prefix)
		}
		key := string(buf)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			*out = append(*out, buf)
		}
		return
	}
	n.table.Range(func(_ byte, c interface{}) {
		collectInfixes(o, c.(*node), start, end, seen, out)
	})
}
