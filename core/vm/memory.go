// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package vm

// Memory is the frame's linear, byte-addressable scratch space. It grows on
// demand to exactly the highest byte touched; there is no gas-metered cost to growth here (gas
// metering is out of scope).
type Memory struct {
	store []byte
}

// NewMemory returns an empty memory.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Len() int { return len(m.store) }

// Resize grows the backing store to at least size bytes, zero-filling the
// new region. Shrinking is a no-op.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) >= size {
		return
	}
	m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
}

// Set writes value into the memory starting at offset, resizing as needed.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	m.Resize(offset + size)
	copy(m.store[offset:offset+size], value)
}

// Set32 writes val, left-padded to 32 bytes, at offset.
func (m *Memory) Set32(offset uint64, val []byte) {
	m.Resize(offset + 32)
	var word [32]byte
	copy(word[32-len(val):], val)
	copy(m.store[offset:offset+32], word[:])
}

// GetCopy returns a standalone copy of size bytes starting at offset,
// zero-extended past the end of the store.
func (m *Memory) GetCopy(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	if offset < uint64(len(m.store)) {
		copy(out, m.store[offset:])
	}
	return out
}

// GetPtr returns a slice view (not a copy) of size bytes starting at
// offset, after growing the store to cover the range.
func (m *Memory) GetPtr(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	m.Resize(offset + size)
	return m.store[offset : offset+size]
}

// Data returns the full backing slice; used by SaveInto to persist the
// frame's memory verbatim.
func (m *Memory) Data() []byte { return m.store }

// MemoryFromBytes rebuilds a Memory from a persisted byte slice, the
// inverse of Data.
func MemoryFromBytes(b []byte) *Memory {
	store := make([]byte, len(b))
	copy(store, b)
	return &Memory{store: store}
}
