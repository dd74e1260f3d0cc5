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
	"github.com/bits-and-blooms/bitset"

	"github.com/triblespace/tribles-go/trible"
)

// Binding maps bound Variables to their 32-byte value and tracks which
// Variables are currently bound. The join engine threads a single
// Binding through the whole search, mutating it in place as it binds
// and unbinds variables while backtracking.
type Binding struct {
	bound  *bitset.BitSet
	values [MaxVariables][trible.ValueSize]byte
}

// NewBinding returns an empty Binding with nothing bound.
func NewBinding() *Binding {
	return &Binding{bound: bitset.New(MaxVariables)}
}

// IsBound reports whether v currently has a value.
func (b *Binding) IsBound(v Variable) bool {
	return b.bound.Test(uint(v))
}

// Value returns the 32 bytes bound to v. The result is only valid if
// IsBound(v).
func (b *Binding) Value(v Variable) []byte {
	return b.values[v][:]
}

// Bind sets v's value and marks it bound. value must be at most
// trible.ValueSize bytes; a shorter value (such as a 16-byte entity or
// attribute id) overwrites only the leading bytes, and the remaining
// bytes keep whatever they held before.
func (b *Binding) Bind(v Variable, value []byte) {
	copy(b.values[v][:], value)
	b.bound.Set(uint(v))
}

// Unbind marks v as unbound again. It does not need to clear the
// stored bytes: callers must not read Value(v) before the next Bind.
func (b *Binding) Unbind(v Variable) {
	b.bound.Clear(uint(v))
}

// BoundSet returns the bitset of currently bound variables. Callers
// must not mutate the result.
func (b *Binding) BoundSet() *bitset.BitSet {
	return b.bound
}

// Clone returns a deep copy of b, independent of further mutation.
func (b *Binding) Clone() *Binding {
	clone := &Binding{bound: b.bound.Clone()}
	clone.values = b.values
	return clone
}
