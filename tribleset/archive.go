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
	"fmt"

	"github.com/triblespace/tribles-go/trible"
)

// Archive serialises ts to the canonical "SimpleArchive" byte layout:
// the concatenation of its tribles in EAV order, with no header. The
// result is deterministic: archiving the same set twice always
// produces byte-identical output, which is what makes archives
// suitable as content-addressed blobs in the pile.
func (ts *TribleSet) Archive() []byte {
	n := ts.Len()
	out := make([]byte, 0, n*trible.Size)
	it := ts.Iter(trible.EAV)
	for it.Next() {
		tr := it.Trible()
		out = append(out, tr[:]...)
	}
	return out
}

// Parse decodes a SimpleArchive byte slice into a TribleSet. It
// returns an error if the input length is not a multiple of
// trible.Size.
func Parse(archive []byte) (*TribleSet, error) {
	if len(archive)%trible.Size != 0 {
		return nil, fmt.Errorf("tribleset: archive length %d is not a multiple of %d", len(archive), trible.Size)
	}
	ts := New()
	for off := 0; off < len(archive); off += trible.Size {
		var t trible.Trible
		copy(t[:], archive[off:off+trible.Size])
		ts = ts.Insert(t)
	}
	return ts, nil
}
