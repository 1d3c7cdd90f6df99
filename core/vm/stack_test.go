package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestStackPushPopOrder(t *testing.T) {
	s := NewStack()
	s.Push(uint256.NewInt(1))
	s.Push(uint256.NewInt(2))
	s.Push(uint256.NewInt(3))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, uint64(3), s.Pop().Uint64())
	assert.Equal(t, uint64(2), s.Pop().Uint64())
	assert.Equal(t, uint64(1), s.Pop().Uint64())
}

func TestStackDupAndSwap(t *testing.T) {
	s := NewStack()
	s.Push(uint256.NewInt(10))
	s.Push(uint256.NewInt(20))
	s.Dup(2) // duplicate the bottom (10) to the top
	assert.Equal(t, uint64(10), s.Peek().Uint64())

	s2 := NewStack()
	s2.Push(uint256.NewInt(1))
	s2.Push(uint256.NewInt(2))
	s2.Swap(1)
	assert.Equal(t, uint64(1), s2.Peek().Uint64())
	assert.Equal(t, uint64(2), s2.Back(1).Uint64())
}
