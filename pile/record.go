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

// Package pile implements the append-only, memory-mapped blob and
// branch file: a single file made of 64-byte-aligned records, safe
// for many readers and many appending writers across processes.
package pile

import (
	"encoding/binary"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// recordAlign is the byte alignment every record (and its padding)
// respects.
const recordAlign = 64

// blobHeaderSize is the fixed portion of a blob record, before the
// payload: magic(16) || timestamp_ms(8) || length(8) || hash(32).
const blobHeaderSize = 16 + 8 + 8 + 32

// branchRecordSize is the fixed, already-aligned size of a branch
// record: magic(16) || branch_id(16) || blob_hash(32).
const branchRecordSize = 16 + 16 + 32

// HashSize is the width of a content hash: blake2b-256.
const HashSize = 32

// Hash is a blake2b-256 content hash.
type Hash [HashSize]byte

func hashPayload(payload []byte) Hash {
	return Hash(blake2b.Sum256(payload))
}

// magicBlob and magicBranch are the 16-byte constants that open every
// record and let a reader tell blob and branch records apart without
// a global file header.
var (
	magicBlob   = [16]byte{'T', 'r', 'i', 'b', 'l', 'e', 'P', 'i', 'l', 'e', 'B', 'l', 'o', 'b', 0x01, 0x00}
	magicBranch = [16]byte{'T', 'r', 'i', 'b', 'l', 'e', 'P', 'i', 'l', 'e', 'B', 'r', 'a', 'n', 0x01, 0x00}
)

func alignUp(n int64) int64 {
	rem := n % recordAlign
	if rem == 0 {
		return n
	}
	return n + (recordAlign - rem)
}

// encodeBlob renders a full blob record -- header, payload and zero
// padding -- ready for a single atomic write.
func encodeBlob(payload []byte, timestampMs int64, hash Hash) []byte {
	total := alignUp(int64(blobHeaderSize) + int64(len(payload)))
	buf := make([]byte, total)
	copy(buf[0:16], magicBlob[:])
	binary.LittleEndian.PutUint64(buf[16:24], uint64(timestampMs))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(len(payload)))
	copy(buf[32:64], hash[:])
	copy(buf[64:], payload)
	return buf
}

// encodeBranch renders a full (already-aligned) branch record.
func encodeBranch(id uuid.UUID, blobHash Hash) []byte {
	buf := make([]byte, branchRecordSize)
	copy(buf[0:16], magicBranch[:])
	copy(buf[16:32], id[:])
	copy(buf[32:64], blobHash[:])
	return buf
}

// blobHeader is a parsed, still-unverified blob record header.
type blobHeader struct {
	timestampMs int64
	length      int64
	hash        Hash
}

func decodeBlobHeader(buf []byte) blobHeader {
	var h blobHeader
	h.timestampMs = int64(binary.LittleEndian.Uint64(buf[16:24]))
	h.length = int64(binary.LittleEndian.Uint64(buf[24:32]))
	copy(h.hash[:], buf[32:64])
	return h
}

type branchRecord struct {
	id       uuid.UUID
	blobHash Hash
}

func decodeBranchRecord(buf []byte) branchRecord {
	var r branchRecord
	copy(r.id[:], buf[16:32])
	copy(r.blobHash[:], buf[32:64])
	return r
}

func isMagic(buf []byte, magic [16]byte) bool {
	if len(buf) < 16 {
		return false
	}
	for i := 0; i < 16; i++ {
		if buf[i] != magic[i] {
			return false
		}
	}
	return true
}
