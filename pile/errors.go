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

package pile

import "fmt"

// CorruptPileError is returned by Refresh when it encounters a record
// with an unknown magic, or one that would run past the current file
// length. ValidLength is the offset of the first byte of the bad
// record; Restore truncates the file there.
type CorruptPileError struct {
	ValidLength int64
}

func (e *CorruptPileError) Error() string {
	return fmt.Sprintf("pile: corrupt record at offset %d", e.ValidLength)
}

// BlobHashMismatchError is returned by Get when a payload's computed
// hash disagrees with the hash recorded in its header. The caller must
// not trust the returned bytes.
type BlobHashMismatchError struct {
	Hash Hash
}

func (e *BlobHashMismatchError) Error() string {
	return fmt.Sprintf("pile: blob %x failed hash verification", e.Hash)
}

// BranchCasFailedError is returned by UpdateBranch when another writer
// updated the branch first. The caller should reread Head and retry.
type BranchCasFailedError struct {
	Branch  [16]byte
	Current Hash
}

func (e *BranchCasFailedError) Error() string {
	return fmt.Sprintf("pile: branch %x CAS failed, current head is %x", e.Branch, e.Current)
}

// BlobNotFoundError is returned by Get for a hash never appended to
// this handle's view of the pile.
type BlobNotFoundError struct {
	Hash Hash
}

func (e *BlobNotFoundError) Error() string {
	return fmt.Sprintf("pile: blob %x not found", e.Hash)
}

// truncationUnderValidated panics: the file shrank below this
// handle's applied_length, meaning previously issued byte slices now
// dangle. spec.md requires this to abort the process rather than
// return an error, since there is no safe way to unwind from live
// dangling references into unmapped memory.
func truncationUnderValidated(appliedLength, fileLength int64) {
	panic(fmt.Sprintf("pile: file truncated to %d bytes, below validated length %d -- aborting", fileLength, appliedLength))
}
