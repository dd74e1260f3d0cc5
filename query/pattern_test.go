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
	"testing"

	"github.com/triblespace/tribles-go/trible"
	"github.com/triblespace/tribles-go/tribleset"
)

func id(b byte) []byte {
	out := make([]byte, trible.EntitySize)
	out[0] = b
	return out
}

func val(b byte) []byte {
	out := make([]byte, trible.ValueSize)
	out[0] = b
	return out
}

func mustTrible(t *testing.T, e, a, v []byte) trible.Trible {
	t.Helper()
	tr, err := trible.New(e, a, v)
	if err != nil {
		t.Fatalf("trible.New: %v", err)
	}
	return tr
}

func buildSet(t *testing.T) *tribleset.TribleSet {
	t.Helper()
	ts := tribleset.New()
	nameAttr := id(1)
	ageAttr := id(2)
	ts = ts.Insert(mustTrible(t, id(10), nameAttr, val(100)))
	ts = ts.Insert(mustTrible(t, id(10), ageAttr, val(30)))
	ts = ts.Insert(mustTrible(t, id(11), nameAttr, val(101)))
	ts = ts.Insert(mustTrible(t, id(11), ageAttr, val(31)))
	return ts
}

func TestPatternConstraintEstimateAndPropose(t *testing.T) {
	ts := buildSet(t)
	var vars VariableSet
	e := vars.NewVariable()
	v := vars.NewVariable()

	pat, err := NewPattern(ts, Var(e), Const(id(1)), Var(v))
	if err != nil {
		t.Fatal(err)
	}
	binding := NewBinding()

	est := pat.Estimate(e, binding)
	if est != 2 {
		t.Fatalf("estimate(e) = %d, want 2 (two distinct entities with attr 1)", est)
	}

	candidates := pat.Propose(e, binding, nil)
	if len(candidates) != 2 {
		t.Fatalf("propose(e) returned %d candidates, want 2", len(candidates))
	}

	binding.Bind(e, id(10))
	est2 := pat.Estimate(v, binding)
	if est2 != 1 {
		t.Fatalf("estimate(v | e=10) = %d, want 1", est2)
	}
	vcands := pat.Propose(v, binding, nil)
	if len(vcands) != 1 {
		t.Fatalf("propose(v | e=10) returned %d candidates, want 1", len(vcands))
	}
}

func TestPatternConstraintConfirm(t *testing.T) {
	ts := buildSet(t)
	var vars VariableSet
	e := vars.NewVariable()
	v := vars.NewVariable()
	pat, err := NewPattern(ts, Var(e), Const(id(1)), Var(v))
	if err != nil {
		t.Fatal(err)
	}
	binding := NewBinding()
	binding.Bind(e, id(10))

	ok := pat.Confirm(v, binding, [][]byte{val(100)})
	if len(ok) != 1 {
		t.Fatalf("confirm of a real value filtered it out")
	}
	bad := pat.Confirm(v, binding, [][]byte{val(255)})
	if len(bad) != 0 {
		t.Fatalf("confirm accepted a value never inserted")
	}
}

func TestAndConstraintNarrowsEstimate(t *testing.T) {
	ts := buildSet(t)
	var vars VariableSet
	e := vars.NewVariable()
	v1 := vars.NewVariable()
	v2 := vars.NewVariable()

	byName, err := NewPattern(ts, Var(e), Const(id(1)), Var(v1))
	if err != nil {
		t.Fatal(err)
	}
	byAge, err := NewPattern(ts, Var(e), Const(id(2)), Var(v2))
	if err != nil {
		t.Fatal(err)
	}
	and := NewAnd(byName, byAge)

	binding := NewBinding()
	if and.Estimate(e, binding) != 2 {
		t.Fatalf("and estimate(e) = %d, want 2", and.Estimate(e, binding))
	}
	cands := and.Propose(e, binding, nil)
	if len(cands) != 2 {
		t.Fatalf("and propose(e) = %d candidates, want 2", len(cands))
	}
}

func TestOrConstraintSumsEstimate(t *testing.T) {
	ts := buildSet(t)
	var vars VariableSet
	e := vars.NewVariable()
	v := vars.NewVariable()
	byName, err := NewPattern(ts, Var(e), Const(id(1)), Var(v))
	if err != nil {
		t.Fatal(err)
	}
	byAge, err := NewPattern(ts, Var(e), Const(id(2)), Var(v))
	if err != nil {
		t.Fatal(err)
	}
	or := NewOr(byName, byAge)
	binding := NewBinding()
	if got := or.Estimate(e, binding); got != 4 {
		t.Fatalf("or estimate(e) = %d, want 4 (sum of both children)", got)
	}
	cands := or.Propose(e, binding, nil)
	if len(cands) != 2 {
		t.Fatalf("or propose(e) = %d deduplicated candidates, want 2", len(cands))
	}
}

func TestMaskHidesVariable(t *testing.T) {
	ts := buildSet(t)
	var vars VariableSet
	e := vars.NewVariable()
	v := vars.NewVariable()
	pat, err := NewPattern(ts, Var(e), Const(id(1)), Var(v))
	if err != nil {
		t.Fatal(err)
	}
	masked := NewMask(pat, v)
	if masked.Variables().Test(uint(v)) {
		t.Fatalf("masked variable still reported by Variables()")
	}
	if masked.Estimate(v, NewBinding()) != Unbounded {
		t.Fatalf("masked variable should report Unbounded")
	}
	if !masked.Variables().Test(uint(e)) {
		t.Fatalf("unmasked variable missing from Variables()")
	}
}
