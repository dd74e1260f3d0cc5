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
	"math/rand"
	"testing"

	"github.com/triblespace/tribles-go/trible"
)

func randomTrible(r *rand.Rand) trible.Trible {
	var t trible.Trible
	for {
		for i := range t {
			t[i] = byte(r.Intn(256))
		}
		if !isZeroRange(t[:16]) && !isZeroRange(t[16:32]) {
			return t
		}
	}
}

func isZeroRange(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// TestSplit is spec.md Scenario A: three keys sharing their first
// byte and diverging at the second must produce a root branch at
// depth 1 with exactly three children.
func TestSplit(t *testing.T) {
	p := New(trible.EAV)
	var keys []trible.Trible
	for _, second := range []byte{0x00, 0x01, 0x02} {
		var k trible.Trible
		k[0] = 0x00
		k[1] = second
		k[2] = 0xAA // entity must stay non-zero
		for i := 16; i < 32; i++ {
			k[i] = byte(i) // attribute non-zero
		}
		for i := 32; i < 64; i++ {
			k[i] = byte(second) + byte(i)
		}
		keys = append(keys, k)
		p = p.Insert(k)
	}
	if got := p.LeafCount(); got != 3 {
		t.Fatalf("leaf count = %d, want 3", got)
	}
	if p.root == nil || p.root.isLeaf() {
		t.Fatalf("expected a branch root")
	}
	if p.root.startDepth != 0 || p.root.endDepth != 1 {
		t.Fatalf("root depth range = [%d,%d), want [0,1)", p.root.startDepth, p.root.endDepth)
	}
	if p.root.table.Len() != 3 {
		t.Fatalf("root children = %d, want 3", p.root.table.Len())
	}
	want := hashLeaf(&keys[0]).xor(hashLeaf(&keys[1])).xor(hashLeaf(&keys[2]))
	if p.root.hash != want {
		t.Fatalf("root hash mismatch")
	}
	for _, k := range keys {
		if !p.Contains(k) {
			t.Fatalf("missing key %x", k)
		}
	}
}

func TestDuplicateInsertNoOp(t *testing.T) {
	p := New(trible.EAV)
	r := rand.New(rand.NewSource(1))
	k := randomTrible(r)
	p1 := p.Insert(k)
	p2 := p1.Insert(k)
	if p1.root.hash != p2.root.hash || p1.LeafCount() != p2.LeafCount() {
		t.Fatalf("duplicate insertion changed the tree")
	}
}

func TestLeafCountConsistency(t *testing.T) {
	p := New(trible.EAV)
	r := rand.New(rand.NewSource(2))
	seen := map[trible.Trible]bool{}
	for i := 0; i < 300; i++ {
		k := randomTrible(r)
		seen[k] = true
		p = p.Insert(k)
	}
	if got := p.LeafCount(); uint64(len(seen)) != got {
		t.Fatalf("leaf count = %d, want %d", got, len(seen))
	}
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		if n.isLeaf() {
			if n.leafCount != 1 {
				t.Fatalf("leaf has leafCount=%d", n.leafCount)
			}
			return
		}
		var sum uint64
		n.table.Range(func(_ byte, c interface{}) {
			child := c.(*node)
			sum += child.leafCount
			walk(child)
		})
		if sum != n.leafCount {
			t.Fatalf("branch leafCount=%d, sum of children=%d", n.leafCount, sum)
		}
	}
	walk(p.root)
}

func TestSetAlgebraLaws(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	build := func(n int) *PATCH {
		p := New(trible.EAV)
		for i := 0; i < n; i++ {
			p = p.Insert(randomTrible(r))
		}
		return p
	}
	a := build(50)
	b := build(50)
	c := build(50)

	if a.Union(a).LeafCount() != a.LeafCount() {
		t.Fatalf("A union A != A")
	}
	if a.Intersection(a).LeafCount() != a.LeafCount() {
		t.Fatalf("A intersect A != A")
	}
	if d := a.Difference(a); d.LeafCount() != 0 {
		t.Fatalf("A difference A != empty, got %d", d.LeafCount())
	}

	ab := a.Union(b)
	ba := b.Union(a)
	if ab.LeafCount() != ba.LeafCount() {
		t.Fatalf("union not commutative by count")
	}

	abc1 := a.Union(b).Union(c)
	abc2 := a.Union(b.Union(c))
	if abc1.LeafCount() != abc2.LeafCount() {
		t.Fatalf("union not associative by count")
	}

	unionCount := a.Union(b).LeafCount()
	interCount := a.Intersection(b).LeafCount()
	if unionCount+interCount != a.LeafCount()+b.LeafCount() {
		t.Fatalf("|A∪B|+|A∩B| = %d, want %d", unionCount+interCount, a.LeafCount()+b.LeafCount())
	}
}

func TestSegmentCountAndInfixes(t *testing.T) {
	p := New(trible.EAV)
	entity := make([]byte, 16)
	entity[0] = 1
	attr1 := make([]byte, 16)
	attr1[0] = 2
	attr2 := make([]byte, 16)
	attr2[0] = 3
	v1 := make([]byte, 32)
	v1[0] = 10
	v2 := make([]byte, 32)
	v2[0] = 11

	k1, _ := trible.New(entity, attr1, v1)
	k2, _ := trible.New(entity, attr2, v2)
	p = p.Insert(k1).Insert(k2)

	prefix := entity // EAV ordering: first 16 bytes are entity, already in depth order.
	sc, err := p.SegmentCount(prefix)
	if err != nil {
		t.Fatal(err)
	}
	if sc != 1 {
		t.Fatalf("segment count at entity boundary = %d, want 1 (same entity)", sc)
	}

	infixes := p.Infixes(prefix, trible.AttributeSize)
	if len(infixes) != 2 {
		t.Fatalf("infixes = %d, want 2 distinct attributes", len(infixes))
	}
}

func TestSixOrderingsAgree(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	var tribles []trible.Trible
	patches := map[*trible.Ordering]*PATCH{}
	for _, o := range trible.Orderings {
		patches[o] = New(o)
	}
	for i := 0; i < 100; i++ {
		k := randomTrible(r)
		tribles = append(tribles, k)
		for _, o := range trible.Orderings {
			patches[o] = patches[o].Insert(k)
		}
	}
	for _, o := range trible.Orderings {
		it := patches[o].Iterate()
		count := 0
		for it.Next() {
			tr := it.Trible()
			if !patches[trible.EAV].Contains(tr) {
				t.Fatalf("ordering %s produced a trible not in EAV index", o)
			}
			count++
		}
		if count != len(tribles) {
			t.Fatalf("ordering %s iterated %d tribles, want %d", o, count, len(tribles))
		}
	}
}
