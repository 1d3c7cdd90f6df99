package hamt

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(n uint64) [32]byte {
	var k [32]byte
	binary.BigEndian.PutUint64(k[24:], n)
	return k
}

func val(n uint64) [32]byte {
	var v [32]byte
	binary.BigEndian.PutUint64(v[24:], n)
	return v
}

func newArena(t *testing.T, size int) *Hamt {
	t.Helper()
	h, err := Open(make([]byte, size), true)
	require.NoError(t, err)
	return h
}

func TestRoundTripInsertFind(t *testing.T) {
	h := newArena(t, 1<<16)
	for i := uint64(0); i < 200; i++ {
		require.NoError(t, h.Insert(key(i), val(i)))
	}
	for i := uint64(0); i < 200; i++ {
		v, ok := h.Find(key(i))
		require.True(t, ok)
		assert.Equal(t, val(i), v)
	}
	_, ok := h.Find(key(99999))
	assert.False(t, ok)
}

func TestInsertIdempotentReplaceNeverAllocates(t *testing.T) {
	h := newArena(t, 1<<12)
	require.NoError(t, h.Insert(key(1), val(1)))
	before := h.bumpNext()
	require.NoError(t, h.Insert(key(1), val(2)))
	assert.Equal(t, before, h.bumpNext())
	v, ok := h.Find(key(1))
	require.True(t, ok)
	assert.Equal(t, val(2), v)
}

func TestZeroValueIsStoredNotAbsent(t *testing.T) {
	h := newArena(t, 1<<12)
	var zero [32]byte
	require.NoError(t, h.Insert(key(5), zero))
	v, ok := h.Find(key(5))
	require.True(t, ok)
	assert.Equal(t, zero, v)
}

func TestRemoveRoundTrip(t *testing.T) {
	h := newArena(t, 1<<16)
	for i := uint64(0); i < 64; i++ {
		require.NoError(t, h.Insert(key(i), val(i)))
	}
	for i := uint64(0); i < 64; i += 2 {
		v, existed := h.Remove(key(i))
		require.True(t, existed)
		assert.Equal(t, val(i), v)
	}
	for i := uint64(0); i < 64; i++ {
		v, ok := h.Find(key(i))
		if i%2 == 0 {
			assert.False(t, ok)
		} else {
			require.True(t, ok)
			assert.Equal(t, val(i), v)
		}
	}
}

func TestRemoveAbsentKey(t *testing.T) {
	h := newArena(t, 1<<12)
	require.NoError(t, h.Insert(key(1), val(1)))
	_, existed := h.Remove(key(2))
	assert.False(t, existed)
}

func TestResetClears(t *testing.T) {
	arena := make([]byte, 1<<12)
	h, err := Open(arena, true)
	require.NoError(t, err)
	require.NoError(t, h.Insert(key(1), val(1)))

	h2, err := Open(arena, true)
	require.NoError(t, err)
	_, ok := h2.Find(key(1))
	assert.False(t, ok)
}

func TestOpenWithoutResetPreservesContents(t *testing.T) {
	arena := make([]byte, 1<<12)
	h, err := Open(arena, true)
	require.NoError(t, err)
	require.NoError(t, h.Insert(key(7), val(7)))

	h2, err := Open(arena, false)
	require.NoError(t, err)
	v, ok := h2.Find(key(7))
	require.True(t, ok)
	assert.Equal(t, val(7), v)
}

func TestInsertStabilityUnderFailure(t *testing.T) {
	h := newArena(t, controlSize+branchSize+leafSize) // room for exactly one leaf
	require.NoError(t, h.Insert(key(1), val(1)))

	before := make([]byte, len(h.arena))
	copy(before, h.arena)

	err := h.Insert(key(2), val(2))
	require.Error(t, err)
	assert.Equal(t, before, h.arena)
}

func TestOpenArenaTooSmall(t *testing.T) {
	_, err := Open(make([]byte, controlSize), true)
	assert.Error(t, err)
}

func TestCollisionChainDivergesCorrectly(t *testing.T) {
	h := newArena(t, 1<<14)
	// two keys whose top nibbles collide (both zero) but differ further in.
	var k1, k2 [32]byte
	k1[31] = 0x01
	k2[31] = 0x02
	require.NoError(t, h.Insert(k1, val(1)))
	require.NoError(t, h.Insert(k2, val(2)))

	v1, ok := h.Find(k1)
	require.True(t, ok)
	assert.Equal(t, val(1), v1)
	v2, ok := h.Find(k2)
	require.True(t, ok)
	assert.Equal(t, val(2), v2)
}
