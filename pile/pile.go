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

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// defaultValidatedCacheSize bounds how many blob hashes a handle
// remembers as already hash-verified, so repeated Reads of hot blobs
// don't re-hash their payload every time.
const defaultValidatedCacheSize = 1 << 14

// Options configures an open Pile handle.
type Options struct {
	// Logf, if set, receives a printf-style diagnostic line when
	// Restore truncates the file after a corrupt record. Nothing else
	// is logged. Nil is a silent no-op.
	Logf func(format string, args ...interface{})

	// ValidatedCacheSize bounds the LRU cache of hash-verified blobs.
	// Zero uses defaultValidatedCacheSize.
	ValidatedCacheSize int
}

func (o Options) logf(format string, args ...interface{}) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

type blobLocation struct {
	offset int64
	length int64
}

// Pile is one open handle onto an append-only pile file. A file may
// be opened by many handles, in one process or many; handles coordinate
// blob appends lock-free (relying on atomic O_APPEND writes) and branch
// updates via a short-lived exclusive OS file lock.
type Pile struct {
	path  string
	f     *os.File
	flock *flock.Flock
	opts  Options

	mu            sync.Mutex
	mapping       growingMap
	appliedLength int64
	blobIndex     map[Hash]blobLocation
	branchIndex   map[uuid.UUID]Hash
	pending       map[Hash]struct{}
	validated     *lru.Cache
}

// Open opens (creating if necessary) the pile file at path. The
// handle starts with empty in-memory indices; call Refresh to scan
// whatever records already exist before reading or looking up
// branches.
func Open(path string, opts Options) (*Pile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("pile: open %s: %w", path, err)
	}
	size := opts.ValidatedCacheSize
	if size <= 0 {
		size = defaultValidatedCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Pile{
		path:        path,
		f:           f,
		flock:       flock.New(path),
		opts:        opts,
		blobIndex:   make(map[Hash]blobLocation),
		branchIndex: make(map[uuid.UUID]Hash),
		pending:     make(map[Hash]struct{}),
		validated:   cache,
	}, nil
}

// Close releases the handle's file descriptor and memory mappings. In-
// flight byte slices returned by Get must not be used afterward.
func (p *Pile) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	mapErr := p.mapping.close()
	fErr := p.f.Close()
	if mapErr != nil {
		return mapErr
	}
	return fErr
}

// Put computes payload's content hash, appends a blob record in one
// atomic write, then refreshes so the new record (and any records
// concurrent writers appended before it) are reflected in this
// handle's indices before Put returns.
func (p *Pile) Put(payload []byte) (Hash, error) {
	h := hashPayload(payload)
	buf := encodeBlob(payload, time.Now().UnixMilli(), h)

	p.mu.Lock()
	p.pending[h] = struct{}{}
	p.mu.Unlock()

	if _, err := p.f.Write(buf); err != nil {
		return Hash{}, fmt.Errorf("pile: append blob: %w", err)
	}
	if err := p.Refresh(); err != nil {
		return Hash{}, err
	}
	blobsAppended.Inc()
	return h, nil
}

// Get returns the payload bytes for hash, a slice of the handle's
// memory mapping. The hash is verified against the payload on first
// read and cached as validated thereafter.
func (p *Pile) Get(hash Hash) ([]byte, error) {
	p.mu.Lock()
	loc, ok := p.blobIndex[hash]
	p.mu.Unlock()
	if !ok {
		return nil, &BlobNotFoundError{Hash: hash}
	}
	raw := p.mapping.bytes(loc.offset, loc.length)
	if _, ok := p.validated.Get(hash); !ok {
		if hashPayload(raw) != hash {
			return nil, &BlobHashMismatchError{Hash: hash}
		}
		p.validated.Add(hash, struct{}{})
	}
	return raw, nil
}

// Refresh takes a shared lock and scans any records written since the
// last Refresh, incorporating them into the blob and branch indices.
func (p *Pile) Refresh() error {
	if err := p.flock.RLock(); err != nil {
		return fmt.Errorf("pile: shared lock: %w", err)
	}
	defer p.flock.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scanLocked()
}

// Restore takes an exclusive lock and scans for corruption; if a
// corrupt (unknown-magic or truncated) record is found, the file is
// truncated to the last validated record boundary and the pending set
// is reset.
func (p *Pile) Restore() error {
	if err := p.flock.Lock(); err != nil {
		return fmt.Errorf("pile: exclusive lock: %w", err)
	}
	defer p.flock.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.scanLocked()
	var corrupt *CorruptPileError
	if errors.As(err, &corrupt) {
		p.opts.logf("pile: truncating %s to %d bytes after corrupt record", p.path, corrupt.ValidLength)
		if err := p.f.Truncate(corrupt.ValidLength); err != nil {
			return fmt.Errorf("pile: truncate after corruption: %w", err)
		}
		p.pending = make(map[Hash]struct{})
		return nil
	}
	return err
}

// UpdateBranch performs the compare-and-swap branch head update:
// refresh, acquire the exclusive lock, refresh again (so the CAS base
// is current), append the branch record, release the lock.
func (p *Pile) UpdateBranch(id uuid.UUID, expectedPrior, newHash Hash) error {
	if err := p.Refresh(); err != nil {
		return err
	}
	if err := p.flock.Lock(); err != nil {
		return fmt.Errorf("pile: exclusive lock: %w", err)
	}
	defer p.flock.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.scanLocked(); err != nil {
		return err
	}
	current := p.branchIndex[id]
	if current != expectedPrior {
		branchCasFailures.Inc()
		return &BranchCasFailedError{Branch: id, Current: current}
	}

	buf := encodeBranch(id, newHash)
	if _, err := p.f.Write(buf); err != nil {
		return fmt.Errorf("pile: append branch record: %w", err)
	}
	return p.scanLocked()
}

// Head returns the branch's most recently applied blob hash.
func (p *Pile) Head(id uuid.UUID) (Hash, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.branchIndex[id]
	return h, ok
}

// Branches returns every branch id this handle has observed.
func (p *Pile) Branches() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uuid.UUID, 0, len(p.branchIndex))
	for id := range p.branchIndex {
		out = append(out, id)
	}
	return out
}

// scanLocked walks from appliedLength to the current end of file,
// validating and indexing each record. p.mu must already be held.
func (p *Pile) scanLocked() error {
	info, err := p.f.Stat()
	if err != nil {
		return err
	}
	length := info.Size()
	if length < p.appliedLength {
		truncationUnderValidated(p.appliedLength, length)
	}
	if err := p.mapping.grow(p.f); err != nil {
		return fmt.Errorf("pile: mmap: %w", err)
	}

	offset := p.appliedLength
	scanned := false
	// offset is committed to p.appliedLength before every return, not
	// just on a clean finish: a record found corrupt must not undo the
	// records already validated earlier in this same scan.
	defer func() { p.appliedLength = offset }()
	for offset < length {
		if offset+16 > length {
			return &CorruptPileError{ValidLength: offset}
		}
		head := p.mapping.bytes(offset, 16)
		switch {
		case isMagic(head, magicBlob):
			if offset+blobHeaderSize > length {
				return &CorruptPileError{ValidLength: offset}
			}
			header := decodeBlobHeader(p.mapping.bytes(offset, blobHeaderSize))
			total := alignUp(int64(blobHeaderSize) + header.length)
			if offset+total > length {
				return &CorruptPileError{ValidLength: offset}
			}
			if _, known := p.blobIndex[header.hash]; !known {
				p.blobIndex[header.hash] = blobLocation{
					offset: offset + blobHeaderSize,
					length: header.length,
				}
			}
			delete(p.pending, header.hash)
			offset += total
			scanned = true
		case isMagic(head, magicBranch):
			if offset+branchRecordSize > length {
				return &CorruptPileError{ValidLength: offset}
			}
			rec := decodeBranchRecord(p.mapping.bytes(offset, branchRecordSize))
			p.branchIndex[rec.id] = rec.blobHash
			offset += branchRecordSize
			scanned = true
		default:
			return &CorruptPileError{ValidLength: offset}
		}
	}
	if scanned {
		refreshScans.Inc()
	}
	return nil
}
