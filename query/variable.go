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

// Package query implements the constraint abstraction and pattern
// constraints that drive a join: a query is built by combining
// pattern, And, Or and Mask constraints over a set of Variables, then
// handed to the join package to search for bindings.
package query

import "fmt"

// MaxVariables is the largest number of distinct Variables a single
// query can allocate. Binding stores bound/unbound state as a bitset
// sized to this ceiling.
const MaxVariables = 128

// Variable names one of the columns of a query's result tuples. It is
// an index into a Binding, not a value; allocate one with a
// VariableSet.
type Variable uint8

// VariableSet hands out Variables in order starting from zero and
// refuses to allocate past MaxVariables. The zero value is ready to
// use.
type VariableSet struct {
	next int
}

// NewVariable allocates a single, previously-unused Variable.
func (vs *VariableSet) NewVariable() Variable {
	return vs.NewVariables(1)[0]
}

// NewVariables allocates n previously-unused Variables in ascending
// order. It panics if doing so would exceed MaxVariables; a query with
// that many distinct variables has outgrown this library's join
// engine.
func (vs *VariableSet) NewVariables(n int) []Variable {
	if vs.next+n > MaxVariables {
		panic(fmt.Sprintf("query: variable allocation would exceed the %d-variable ceiling", MaxVariables))
	}
	out := make([]Variable, n)
	for i := 0; i < n; i++ {
		out[i] = Variable(vs.next)
		vs.next++
	}
	return out
}

// Len returns the number of Variables allocated so far.
func (vs *VariableSet) Len() int { return vs.next }
