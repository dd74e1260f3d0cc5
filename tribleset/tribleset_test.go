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

package tribleset

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/triblespace/tribles-go/trible"
)

func randomTrible(r *rand.Rand) trible.Trible {
	var entity, attribute [16]byte
	var value [32]byte
	for {
		r.Read(entity[:])
		r.Read(attribute[:])
		r.Read(value[:])
		t, err := trible.New(entity[:], attribute[:], value[:])
		if err == nil {
			return t
		}
	}
}

func TestEmptySet(t *testing.T) {
	ts := New()
	if ts.Len() != 0 {
		t.Fatalf("empty set len = %d, want 0", ts.Len())
	}
	for _, o := range trible.Orderings {
		it := ts.Iter(o)
		if it.Next() {
			t.Fatalf("empty set iterated a trible under %s", o)
		}
	}
}

// TestSixIndicesAgree checks that inserting into a TribleSet keeps all
// six underlying PATCHes in sync with each other.
func TestSixIndicesAgree(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	ts := New()
	var want []trible.Trible
	for i := 0; i < 200; i++ {
		tr := randomTrible(r)
		want = append(want, tr)
		ts = ts.Insert(tr)
	}
	if ts.Len() != uint64(len(want)) {
		t.Fatalf("len = %d, want %d", ts.Len(), len(want))
	}
	for _, o := range trible.Orderings {
		count := 0
		it := ts.Iter(o)
		for it.Next() {
			tr := it.Trible()
			found := false
			for _, w := range want {
				if tr == w {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("ordering %s produced a trible never inserted", o)
			}
			count++
		}
		if count != len(want) {
			t.Fatalf("ordering %s iterated %d tribles, want %d", o, count, len(want))
		}
	}
}

func TestInsertDuplicateNoOp(t *testing.T) {
	r := rand.New(rand.NewSource(8))
	tr := randomTrible(r)
	ts := New().Insert(tr)
	ts2 := ts.Insert(tr)
	if ts2.Len() != 1 {
		t.Fatalf("duplicate insert changed len to %d", ts2.Len())
	}
}

func TestSetAlgebra(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	build := func(n int) *TribleSet {
		ts := New()
		for i := 0; i < n; i++ {
			ts = ts.Insert(randomTrible(r))
		}
		return ts
	}
	a := build(40)
	b := build(40)

	union := a.Union(b)
	inter := a.Intersection(b)
	diff := a.Difference(b)

	if union.Len()+inter.Len() != a.Len()+b.Len() {
		t.Fatalf("|A∪B|+|A∩B| = %d, want %d", union.Len()+inter.Len(), a.Len()+b.Len())
	}
	if diff.Len() > a.Len() {
		t.Fatalf("|A-B| = %d exceeds |A| = %d", diff.Len(), a.Len())
	}
	if union.Intersection(diff).Len() != diff.Len() {
		t.Fatalf("A-B is not a subset of A∪B")
	}
}

// TestArchiveRoundTrip is spec.md testable property 5: archiving and
// re-parsing a set must reproduce the same tribles, and archiving the
// parsed set must reproduce the same bytes.
func TestArchiveRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(10))
	ts := New()
	for i := 0; i < 150; i++ {
		ts = ts.Insert(randomTrible(r))
	}
	blob := ts.Archive()
	if len(blob)%trible.Size != 0 {
		t.Fatalf("archive length %d is not a multiple of %d", len(blob), trible.Size)
	}
	parsed, err := Parse(blob)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Len() != ts.Len() {
		t.Fatalf("parsed len = %d, want %d", parsed.Len(), ts.Len())
	}
	reblob := parsed.Archive()
	if !bytes.Equal(blob, reblob) {
		t.Fatalf("archive(parse(bytes)) != bytes")
	}
}

func TestArchiveEmpty(t *testing.T) {
	blob := New().Archive()
	if len(blob) != 0 {
		t.Fatalf("empty archive length = %d, want 0", len(blob))
	}
	parsed, err := Parse(blob)
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if parsed.Len() != 0 {
		t.Fatalf("parsed empty archive len = %d, want 0", parsed.Len())
	}
}

func TestParseRejectsShortArchive(t *testing.T) {
	if _, err := Parse(make([]byte, trible.Size+1)); err == nil {
		t.Fatalf("expected error for non-multiple-of-%d length", trible.Size)
	}
}
