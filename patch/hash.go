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
	"crypto/rand"
	"encoding/binary"

	"github.com/dchest/siphash"

	"github.com/triblespace/tribles-go/trible"
)

// rollingHash is the XOR-combinable 128-bit keyed hash used for
// subtree equality short-circuiting in Union/Intersection/Difference.
// It is not a cryptographic identity: the key is process-local and
// regenerated on every process start, so two equal rollingHash values
// observed in different processes carry no meaning.
type rollingHash [16]byte

func (h rollingHash) xor(o rollingHash) rollingHash {
	var out rollingHash
	for i := range out {
		out[i] = h[i] ^ o[i]
	}
	return out
}

var hashK0, hashK1 = newProcessKey()

func newProcessKey() (uint64, uint64) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("patch: failed to seed rolling hash key: " + err.Error())
	}
	return binary.LittleEndian.Uint64(buf[0:8]), binary.LittleEndian.Uint64(buf[8:16])
}

// hashLeaf computes the rolling hash of a single trible. It only ever
// depends on the trible's 64 canonical bytes, never on the ordering a
// particular PATCH happens to use, so the same leaf hashes identically
// across all six orderings of a TribleSet.
func hashLeaf(t *trible.Trible) rollingHash {
	lo, hi := siphash.Hash128(hashK0, hashK1, t[:])
	var h rollingHash
	binary.LittleEndian.PutUint64(h[0:8], lo)
	binary.LittleEndian.PutUint64(h[8:16], hi)
	return h
}
