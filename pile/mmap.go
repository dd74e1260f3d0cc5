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
	"os"

	"github.com/edsrzf/mmap-go"
)

// growingMap tracks a read-only mapping of a file that only ever
// grows. Each time the file has grown, current is replaced by a fresh
// mapping covering the whole file; the previous mapping is kept alive
// in retired rather than unmapped, so byte slices handed out from it
// earlier (an in-flight Get result, say) never dangle. Everything is
// unmapped together in close.
type growingMap struct {
	current mmap.MMap
	length  int64
	retired []mmap.MMap
}

// grow remaps f if its current size exceeds what is already mapped.
// It is a no-op if nothing changed.
func (g *growingMap) grow(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= g.length {
		return nil
	}
	if size == 0 {
		g.length = 0
		return nil
	}
	m, err := mmap.MapRegion(f, int(size), mmap.RDONLY, 0, 0)
	if err != nil {
		return err
	}
	if g.current != nil {
		g.retired = append(g.retired, g.current)
	}
	g.current = m
	g.length = size
	return nil
}

// bytes returns a slice of the current mapping covering [off, off+n).
func (g *growingMap) bytes(off, n int64) []byte {
	return g.current[off : off+n]
}

func (g *growingMap) close() error {
	var firstErr error
	for _, m := range g.retired {
		if err := m.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	g.retired = nil
	if g.current != nil {
		if err := g.current.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
		g.current = nil
	}
	return firstErr
}
