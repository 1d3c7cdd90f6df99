package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryGrowsAndZeroFills(t *testing.T) {
	m := NewMemory()
	m.Set(0, 3, []byte{1, 2, 3})
	assert.Equal(t, 3, m.Len())

	got := m.GetCopy(0, 10)
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0, 0, 0}, got)
}

func TestMemorySet32LeftPads(t *testing.T) {
	m := NewMemory()
	m.Set32(0, []byte{0xff})
	got := m.GetCopy(0, 32)
	assert.Equal(t, byte(0xff), got[31])
	assert.Equal(t, byte(0), got[0])
}

func TestMemoryGetPtrGrowsInPlace(t *testing.T) {
	m := NewMemory()
	p := m.GetPtr(0, 8)
	p[0] = 7
	assert.Equal(t, byte(7), m.Data()[0])
}
